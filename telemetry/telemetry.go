package telemetry

import (
	"time"

	"github.com/google/uuid"
)

// StepDiagnostics breaks down one environment step. It is reported alongside the reward but is not part of the
// learning signal.
type StepDiagnostics struct {
	Step int
	Time time.Time // start of the simulated interval

	ImportKW    float64
	ExportKW    float64
	CurtailedKW float64
	UnmetKWh    float64

	StorageKW    []float64
	SoC          []float64
	SoH          []float64
	TemperatureC []float64

	EVKW         float64
	EVConnected  int
	EVDepartures int
	EVSatisfied  int
	EVAtRisk     int

	// each cost term is already weighted, and TotalCost is their sum
	ImportCost       float64
	ExportRevenue    float64
	EmissionCost     float64
	DegradationCost  float64
	ViolationPenalty float64
	UnmetPenalty     float64
	TotalCost        float64

	EmissionKg float64
	Violations []string
}

// EpisodeSummary holds the totals for one completed episode
type EpisodeSummary struct {
	ID        uuid.UUID
	RunID     uuid.UUID
	Time      time.Time // wall-clock time at which the episode finished
	StartTime time.Time // simulated time at which the episode started
	Worker    int
	Steps     int

	TotalReward     float64
	TotalCost       float64
	ImportCost      float64
	ExportRevenue   float64
	EmissionKg      float64
	DegradationCost float64
	UnmetKWh        float64
	Violations      int
	EVSuccessRate   float64
	MinSoH          float64
}

// UpdateReport holds the diagnostics of one collect/update cycle of the trainer
type UpdateReport struct {
	ID         uuid.UUID
	RunID      uuid.UUID
	Time       time.Time
	Iteration  int
	TotalSteps int
	Episodes   int // completed in this cycle

	MeanEpisodeReward float64
	PolicyLoss        float64
	ValueLoss         float64
	Entropy           float64
	ApproxKL          float64
	ClipFraction      float64
	GradNorm          float64
	LearningRate      float64
	GradientSteps     int
	Epochs            int
	EarlyStopped      bool
	AdvantageMaxAbs   float64 // largest raw advantage magnitude, in standard deviations
}
