package controller

// importAvoidance returns the control component for avoiding grid imports while the import price is at or above
// the peak price.
func importAvoidance(price, peakPrice, basePower float64) controlComponent {
	if price < peakPrice {
		return INACTIVE_CONTROL_COMPONENT
	}
	return importAvoidanceHelper(basePower, "import_avoidance", true)
}

// importAvoidanceHelper generates the control component for an import avoidance action.
func importAvoidanceHelper(basePower float64, controlComponentName string, allowMoreDischarge bool) controlComponent {
	if basePower <= 0 {
		return INACTIVE_CONTROL_COMPONENT // there is nothing to do as the site is not importing
	}

	status := componentStatusActiveGreedy
	if allowMoreDischarge {
		status = componentStatusActiveAllowMoreDischarge
	}

	return controlComponent{
		name:         controlComponentName,
		status:       status,
		targetPower:  0, // Target zero power at the site boundary
		controlPoint: controlPointSite,
	}
}
