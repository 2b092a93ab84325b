package cartesian

import (
	"errors"
	"math"
)

// Point represents a cartesian X,Y point
type Point struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// Curve is a piecewise-linear function defined by its points, which must be ordered by X.
type Curve struct {
	Points []Point `yaml:"points"`
}

// Validate checks that the curve has at least two points and that the X values never decrease.
func (c *Curve) Validate() error {
	if len(c.Points) < 2 {
		return errors.New("curve needs at least two points")
	}
	for i := 1; i < len(c.Points); i++ {
		if c.Points[i].X < c.Points[i-1].X {
			return errors.New("curve points must be ordered by x")
		}
	}
	for _, p := range c.Points {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return errors.New("curve points must be finite")
		}
	}
	return nil
}

// ValueAt returns the y-value of the curve at `x`.
// NaN is returned if `x` is not within the horizontal span of the curve.
func (c *Curve) ValueAt(x float64) float64 {

	// Loop over each pair of points in the curve
	for i := 0; i < len(c.Points)-1; i++ {
		p1 := c.Points[i]
		p2 := c.Points[i+1]

		// Check if `x` is 'within the vertical band' of the two current points
		if p1.X <= x && x <= p2.X {
			if p1.X == p2.X {
				// vertical step, take the later point
				return p2.Y
			}
			return linearInterpolation(p1, p2, x)
		}
	}
	return math.NaN()
}

// linearInterpolation returns the y-value at `x` given two points.
func linearInterpolation(p1, p2 Point, x float64) float64 {
	return p1.Y + (x-p1.X)*((p2.Y-p1.Y)/(p2.X-p1.X))
}
