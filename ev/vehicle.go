package ev

import (
	"time"

	"github.com/google/uuid"
)

// Status is the position of a vehicle in its visit: it arrives, charges and then departs.
type Status int

const (
	Arrived Status = iota
	Charging
	Departed
)

func (s Status) String() string {
	switch s {
	case Arrived:
		return "arrived"
	case Charging:
		return "charging"
	case Departed:
		return "departed"
	default:
		return "unknown"
	}
}

// Vehicle is one EV visit to the site.
type Vehicle struct {
	ID                 uuid.UUID
	Status             Status
	ArrivedAt          time.Time
	Deadline           time.Time // the vehicle leaves at this time, charged or not
	EnergyRequiredKWh  float64
	EnergyDeliveredKWh float64
}

// RemainingKWh returns the energy still needed by the vehicle.
func (v *Vehicle) RemainingKWh() float64 {
	remaining := v.EnergyRequiredKWh - v.EnergyDeliveredKWh
	if remaining < 0 {
		return 0
	}
	return remaining
}

// HoursLeft returns the time until the vehicle departs, as seen from `t`.
func (v *Vehicle) HoursLeft(t time.Time) float64 {
	return v.Deadline.Sub(t).Hours()
}
