package cartesian

import (
	"math"
	"testing"
)

func TestLinearInterpolate(t *testing.T) {

	type subTest struct {
		name      string
		p1        Point
		p2        Point
		x         float64
		expectedY float64
	}

	subTests := []subTest{
		{"positive gradient, positive value", Point{0, 0}, Point{1, 1}, 0.5, 0.5},
		{"positive gradient, negative value", Point{0, 0}, Point{-1, -1}, -0.5, -0.5},
		{"negative gradient, positive value", Point{6, 6}, Point{12, 0}, 9, 3},
		{"negative gradient, negative value", Point{3, 6}, Point{-3, -6}, -1.5, -3},
		{"negative gradient, zero value", Point{6, 6}, Point{-6, -6}, 0, 0},
	}
	for _, subTest := range subTests {
		t.Run(subTest.name, func(t *testing.T) {
			y := linearInterpolation(subTest.p1, subTest.p2, subTest.x)
			if y != subTest.expectedY {
				t.Errorf("Got %f, expected %f", y, subTest.expectedY)
			}
		})
	}

}

func TestValueAt(t *testing.T) {

	// a bimodal daily profile, as used for EV arrivals
	bimodal := Curve{
		Points: []Point{
			{0, 0},
			{8, 4},
			{12, 1},
			{18, 6},
			{24, 0},
		},
	}

	type subTest struct {
		name          string
		curve         Curve
		x             float64
		expectedValue float64
	}

	subTests := []subTest{
		{"first point", bimodal, 0, 0},
		{"rising to morning peak", bimodal, 4, 2},
		{"morning peak", bimodal, 8, 4},
		{"midday trough", bimodal, 10, 2.5},
		{"evening peak", bimodal, 18, 6},
		{"last point", bimodal, 24, 0},
		{
			name:          "vertical step uses first matching segment",
			curve:         Curve{Points: []Point{{0, 0}, {5, 0}, {5, 10}, {10, 10}}},
			x:             5,
			expectedValue: 0,
		},
		{
			name:          "leading vertical step takes later point",
			curve:         Curve{Points: []Point{{0, 0}, {0, 5}, {1, 5}}},
			x:             0,
			expectedValue: 5,
		},
		{"outside range below", bimodal, -1, math.NaN()},
		{"outside range above", bimodal, 24.5, math.NaN()},
	}

	for _, subTest := range subTests {
		t.Run(subTest.name, func(t *testing.T) {
			v := subTest.curve.ValueAt(subTest.x)
			if math.IsNaN(subTest.expectedValue) && math.IsNaN(v) {
				return
			}
			if v != subTest.expectedValue {
				t.Errorf("Got %f, expected %f", v, subTest.expectedValue)
			}
		})
	}

}

func TestValidate(t *testing.T) {
	good := Curve{Points: []Point{{0, 0}, {1, 1}}}
	if err := good.Validate(); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}

	bad := []Curve{
		{Points: []Point{{0, 0}}},
		{Points: []Point{{1, 0}, {0, 1}}},
		{Points: []Point{{0, math.NaN()}, {1, 1}}},
	}
	for i, c := range bad {
		if err := c.Validate(); err == nil {
			t.Errorf("Curve %d: expected an error", i)
		}
	}
}
