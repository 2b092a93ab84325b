package controller

// controlComponent represents the output of some control mode - e.g. export avoidance or charging to a target SoC
type controlComponent struct {
	name         string          // Friendly name of this component for debug logging
	status       componentStatus // Determines if this component is active, and if lower-priority components are allowed to alter the target power
	targetPower  float64         // The power associated with this control component
	controlPoint controlPoint    // The point where the targetPower should be applied
}

// componentStatus determines whether a component is used, and what lower priority components may do after it
type componentStatus string

const (
	componentStatusInactive                 componentStatus = "componentStatusInactive"                 // the component is not active and can be ignored
	componentStatusActiveGreedy             componentStatus = "componentStatusActiveGreedy"             // no lower priority component may change the target power
	componentStatusActiveAllowMoreCharge    componentStatus = "componentStatusActiveAllowMoreCharge"    // lower priority components may charge harder than this one
	componentStatusActiveAllowMoreDischarge componentStatus = "componentStatusActiveAllowMoreDischarge" // lower priority components may discharge harder than this one
)

// controlPoint indicates where a target power level should be applied - i.e. at the storage inverters or at the site boundary
type controlPoint string

const (
	controlPointUnknown controlPoint = "controlPointUnknown" // a default value that is not valid to use
	controlPointBess    controlPoint = "controlPointBess"    // the target is the combined storage power
	controlPointSite    controlPoint = "controlPointSite"    // the target is the grid exchange at the site boundary
)

// INACTIVE_CONTROL_COMPONENT is a pre-defined control component that does nothing as it's status is inactive.
var INACTIVE_CONTROL_COMPONENT = controlComponent{
	status: componentStatusInactive,
}

// bessPower returns the combined storage power that meets the component's target, given the site's grid exchange
// with the storage idle.
func (c controlComponent) bessPower(basePower float64) float64 {
	if c.controlPoint == controlPointSite {
		return basePower - c.targetPower
	}
	return c.targetPower
}

// chargingControlComponentThatAllowsMoreCharge is a convenience for components that charge at a given rate.
func chargingControlComponentThatAllowsMoreCharge(name string, chargePower float64) controlComponent {
	return controlComponent{
		name:         name,
		status:       componentStatusActiveAllowMoreCharge,
		targetPower:  chargePower,
		controlPoint: controlPointBess,
	}
}
