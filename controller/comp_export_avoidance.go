package controller

// exportAvoidance returns the control component for soaking up surplus renewables rather than exporting them.
func exportAvoidance(basePower float64) controlComponent {
	if basePower >= 0 {
		return INACTIVE_CONTROL_COMPONENT
	}

	return controlComponent{
		name:         "export_avoidance",
		status:       componentStatusActiveAllowMoreCharge,
		targetPower:  0, // Target zero power at the site boundary
		controlPoint: controlPointSite,
	}
}
