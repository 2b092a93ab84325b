package controller

import (
	"testing"

	"github.com/cepro/gridrl/microgrid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestController creates a controller over the test site's limits
func newTestController(t *testing.T) *Controller {
	c, err := New(testBaselineConfig(), microgrid.TestConfig().Safety)
	require.NoError(t, err)
	return c
}

func testBaselineConfig() Config {
	return Config{
		CheapPricePerKWh: 0.08,
		PeakPricePerKWh:  0.3,
		TargetSoC:        0.9,
		ReserveSoC:       0.2,
	}
}

func TestPrioritiseControlComponents(t *testing.T) {

	type subTest struct {
		name                string
		components          []controlComponent
		basePower           float64
		expectedNames       string
		expectedTargetPower float64
	}

	subTests := []subTest{
		{
			name:                "No components",
			components:          []controlComponent{},
			expectedNames:       "idle",
			expectedTargetPower: 0,
		},
		{
			name: "Inactive components only",
			components: []controlComponent{
				{name: "component1", status: componentStatusInactive, targetPower: 100, controlPoint: controlPointBess},
				{name: "component2", status: componentStatusInactive, targetPower: 200, controlPoint: controlPointBess},
			},
			expectedNames:       "idle",
			expectedTargetPower: 0,
		},
		{
			name: "Greedy component blocks lower priorities",
			components: []controlComponent{
				{name: "greedy", status: componentStatusActiveGreedy, targetPower: 100, controlPoint: controlPointBess},
				{name: "lower_priority", status: componentStatusActiveGreedy, targetPower: 200, controlPoint: controlPointBess},
			},
			expectedNames:       "greedy",
			expectedTargetPower: 100,
		},
		{
			name: "Allow more charge",
			components: []controlComponent{
				{name: "allow_more_charge", status: componentStatusActiveAllowMoreCharge, targetPower: -50, controlPoint: controlPointBess},
				{name: "discharge_more", status: componentStatusActiveAllowMoreDischarge, targetPower: 200, controlPoint: controlPointBess}, // discharge should be ignored
				{name: "discharge_greedy", status: componentStatusActiveGreedy, targetPower: 50, controlPoint: controlPointBess},          // discharge should be ignored
				{name: "charge_more", status: componentStatusActiveAllowMoreCharge, targetPower: -100, controlPoint: controlPointBess},    // charges more, so is allowed
				{name: "charge_less", status: componentStatusActiveGreedy, targetPower: -75, controlPoint: controlPointBess},             // charges less, so is ignored
			},
			expectedNames:       "allow_more_charge,charge_more",
			expectedTargetPower: -100,
		},
		{
			name: "Allow more discharge",
			components: []controlComponent{
				{name: "inactive", status: componentStatusInactive, targetPower: 0, controlPoint: controlPointBess},
				{name: "allow_more_discharge", status: componentStatusActiveAllowMoreDischarge, targetPower: 50, controlPoint: controlPointBess},
				{name: "charge_more", status: componentStatusActiveAllowMoreCharge, targetPower: -200, controlPoint: controlPointBess}, // charge should be ignored
				{name: "charge_greedy", status: componentStatusActiveGreedy, targetPower: -50, controlPoint: controlPointBess},        // charge should be ignored
				{name: "discharge_greedy", status: componentStatusActiveGreedy, targetPower: 100, controlPoint: controlPointBess},     // discharges more, so is allowed
				{name: "discharge_more", status: componentStatusActiveGreedy, targetPower: 150, controlPoint: controlPointBess},       // ignored as the previous component was greedy
			},
			expectedNames:       "allow_more_discharge,discharge_greedy",
			expectedTargetPower: 100,
		},
		{
			name: "Site control point is offset by the base power",
			components: []controlComponent{
				{name: "site_zero", status: componentStatusActiveAllowMoreDischarge, targetPower: 0, controlPoint: controlPointSite},
				{name: "bess_small", status: componentStatusActiveGreedy, targetPower: 30, controlPoint: controlPointBess}, // discharges less than the site target needs
			},
			basePower:           80,
			expectedNames:       "site_zero",
			expectedTargetPower: 80,
		},
	}

	for _, st := range subTests {
		t.Run(st.name, func(t *testing.T) {
			action := newTestController(t).prioritiseControlComponents(st.components, st.basePower)
			assert.Equal(t, st.expectedNames, action.activeComponentNames)
			assert.Equal(t, st.expectedTargetPower, action.bessTargetPower)
		})
	}
}
