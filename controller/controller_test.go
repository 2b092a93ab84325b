package controller

import (
	"math"
	"testing"
	"time"

	"github.com/cepro/gridrl/feed"
	"github.com/cepro/gridrl/microgrid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testSite returns the state of a site with the test batteries at `soc` and the given feed sample.
func testSite(sample feed.Sample, soc ...float64) microgrid.SiteStatus {
	site := microgrid.SiteStatus{
		Time:      time.Date(2024, 6, 3, 17, 0, 0, 0, time.UTC),
		Sample:    sample,
		StepHours: 0.25,
	}
	usable := []float64{400, 100}
	headroom := []float64{200, 50}
	for i, s := range soc {
		status := microgrid.StorageStatus{
			UsableKWh:           usable[i],
			DischargeHeadroomKW: headroom[i],
			ChargeHeadroomKW:    headroom[i],
		}
		status.SoC = s
		status.SoH = 1
		status.TemperatureC = 20
		site.Storage = append(site.Storage, status)
	}
	return site
}

func TestComponents(t *testing.T) {

	type subTest struct {
		name      string
		component controlComponent
		expected  controlComponent
	}

	subTests := []subTest{
		{
			name:      "Import avoidance off peak",
			component: importAvoidance(0.12, 0.3, 100),
			expected:  INACTIVE_CONTROL_COMPONENT,
		},
		{
			name:      "Import avoidance at peak while exporting",
			component: importAvoidance(0.35, 0.3, -100),
			expected:  INACTIVE_CONTROL_COMPONENT,
		},
		{
			name:      "Import avoidance at peak while importing",
			component: importAvoidance(0.35, 0.3, 100),
			expected:  controlComponent{name: "import_avoidance", status: componentStatusActiveAllowMoreDischarge, targetPower: 0, controlPoint: controlPointSite},
		},
		{
			name:      "Export avoidance while importing",
			component: exportAvoidance(10),
			expected:  INACTIVE_CONTROL_COMPONENT,
		},
		{
			name:      "Export avoidance while exporting",
			component: exportAvoidance(-10),
			expected:  controlComponent{name: "export_avoidance", status: componentStatusActiveAllowMoreCharge, targetPower: 0, controlPoint: controlPointSite},
		},
		{
			name:      "Charge to SoC at a normal price",
			component: chargeToSoC(testSite(feed.Sample{PricePerKWh: 0.12}, 0.5, 0.5), 0.08, 0.9),
			expected:  INACTIVE_CONTROL_COMPONENT,
		},
		{
			name:      "Charge to SoC when cheap",
			component: chargeToSoC(testSite(feed.Sample{PricePerKWh: 0.07}, 0.5, 0.5), 0.08, 0.9),
			// (0.4 * 400 + 0.4 * 100) kWh over a quarter hour
			expected: controlComponent{name: "charge_to_soc", status: componentStatusActiveAllowMoreCharge, targetPower: -800, controlPoint: controlPointBess},
		},
		{
			name:      "Charge to SoC when already charged",
			component: chargeToSoC(testSite(feed.Sample{PricePerKWh: 0.07}, 0.9, 0.95), 0.08, 0.9),
			expected:  INACTIVE_CONTROL_COMPONENT,
		},
	}

	for _, st := range subTests {
		t.Run(st.name, func(t *testing.T) {
			assert.Equal(t, st.expected.name, st.component.name)
			assert.Equal(t, st.expected.status, st.component.status)
			assert.Equal(t, st.expected.controlPoint, st.component.controlPoint)
			assert.InDelta(t, st.expected.targetPower, st.component.targetPower, 1e-9)
		})
	}
}

func TestPlan(t *testing.T) {

	type subTest struct {
		name                string
		site                microgrid.SiteStatus
		expectedNames       string
		expectedStorage     []float64
		expectedGrid        float64
		expectedCurtailment float64
	}

	subTests := []subTest{
		{
			name:            "Peak import is avoided with every unit",
			site:            testSite(feed.Sample{LoadKW: 300, PricePerKWh: 0.35}, 0.6, 0.6),
			expectedNames:   "import_avoidance",
			expectedStorage: []float64{200, 50},
			expectedGrid:    50,
		},
		{
			name:            "Peak import is shared by headroom",
			site:            testSite(feed.Sample{LoadKW: 125, PricePerKWh: 0.35}, 0.6, 0.6),
			expectedNames:   "import_avoidance",
			expectedStorage: []float64{100, 25},
			expectedGrid:    0,
		},
		{
			name:            "Units at the reserve do not discharge",
			site:            testSite(feed.Sample{LoadKW: 300, PricePerKWh: 0.35}, 0.15, 0.6),
			expectedNames:   "import_avoidance",
			expectedStorage: []float64{0, 50},
			expectedGrid:    250,
		},
		{
			name:            "Surplus solar is stored",
			site:            testSite(feed.Sample{SolarKW: 500, LoadKW: 100, PricePerKWh: 0.12}, 0.5, 0.5),
			expectedNames:   "export_avoidance",
			expectedStorage: []float64{-200, -50},
			expectedGrid:    -150,
		},
		{
			name:                "Surplus beyond storage and export limit is curtailed",
			site:                testSite(feed.Sample{SolarKW: 1000, LoadKW: 100, PricePerKWh: 0.12}, 0.5, 0.5),
			expectedNames:       "export_avoidance",
			expectedStorage:     []float64{-200, -50},
			expectedGrid:        -250,
			expectedCurtailment: 0.4,
		},
		{
			name:            "Cheap import charges towards the target",
			site:            testSite(feed.Sample{LoadKW: 100, PricePerKWh: 0.07}, 0.5, 0.5),
			expectedNames:   "charge_to_soc",
			expectedStorage: []float64{-200, -50},
			expectedGrid:    350,
		},
		{
			name:            "Nothing to do",
			site:            testSite(feed.Sample{LoadKW: 100, PricePerKWh: 0.12}, 0.5, 0.5),
			expectedNames:   "idle",
			expectedStorage: []float64{0, 0},
			expectedGrid:    100,
		},
	}

	for _, st := range subTests {
		t.Run(st.name, func(t *testing.T) {
			p := newTestController(t).plan(st.site)
			assert.Equal(t, st.expectedNames, p.activeComponentNames)
			require.Len(t, p.storageKW, len(st.expectedStorage))
			for i := range st.expectedStorage {
				assert.InDelta(t, st.expectedStorage[i], p.storageKW[i], 1e-9)
			}
			assert.InDelta(t, st.expectedGrid, p.gridKW, 1e-9)
			assert.InDelta(t, st.expectedCurtailment, p.curtailment, 1e-9)
		})
	}
}

func TestHotUnitsAreLeftIdle(t *testing.T) {
	site := testSite(feed.Sample{LoadKW: 300, PricePerKWh: 0.35}, 0.6, 0.6)
	site.Storage[0].TemperatureC = 45

	p := newTestController(t).plan(site)
	assert.Equal(t, []float64{0, 50}, p.storageKW)
}

func TestActionIsNormalised(t *testing.T) {
	c := newTestController(t)
	site := testSite(feed.Sample{LoadKW: 300, PricePerKWh: 0.35}, 0.6, 0.6)
	site.EVAcceptKW = 50

	action := c.Action(site)
	require.Len(t, action, 5)
	assert.InDelta(t, 1, action[0], 1e-9)
	assert.InDelta(t, 1, action[1], 1e-9)
	assert.InDelta(t, 0, action[2], 1e-6) // 50 of the 100 kW EV limit
	assert.InDelta(t, 100.0/400, action[3], 1e-9)
	assert.Equal(t, -1.0, action[4])
}

func TestBaselineRunsEpisodes(t *testing.T) {
	c := newTestController(t)
	env, err := microgrid.New(microgrid.TestConfig(), microgrid.TestFeed(3))
	require.NoError(t, err)

	first, err := c.Evaluate(env, 2, 7)
	require.NoError(t, err)
	require.Len(t, first.Episodes, 2)
	for _, episode := range first.Episodes {
		assert.Equal(t, 96, episode.Steps)
		assert.False(t, math.IsNaN(episode.TotalReward))
	}

	second, err := c.Evaluate(env, 2, 7)
	require.NoError(t, err)
	assert.Equal(t, first.MeanReward, second.MeanReward)
}

func TestBaselineActionsStayInRange(t *testing.T) {
	c := newTestController(t)
	env, err := microgrid.New(microgrid.TestConfig(), microgrid.TestFeed(2))
	require.NoError(t, err)

	env.Reset(3)
	for !env.Done() {
		action := c.Action(env.Site())
		for _, a := range action {
			assert.True(t, a >= -1 && a <= 1, "action component %v out of range", a)
		}
		_, err := env.Step(action)
		require.NoError(t, err)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testBaselineConfig()
	cfg.ReserveSoC = 0.95
	_, err := New(cfg, microgrid.TestConfig().Safety)
	assert.Error(t, err)
}
