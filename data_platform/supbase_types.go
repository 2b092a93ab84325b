package dataplatform

import (
	"time"

	"github.com/cepro/gridrl/repository"
	"github.com/google/uuid"
)

const (
	episodesTable = "episode_summaries"
	updatesTable  = "update_reports"
)

// supabaseEpisode holds the json encoding schema for an episode summary in supabase.
type supabaseEpisode struct {
	ID              uuid.UUID `json:"id"`
	RunID           uuid.UUID `json:"run_id"`
	Time            time.Time `json:"time"`
	StartTime       time.Time `json:"start_time"`
	Worker          int       `json:"worker"`
	Steps           int       `json:"steps"`
	TotalReward     float64   `json:"total_reward"`
	TotalCost       float64   `json:"total_cost"`
	ImportCost      float64   `json:"import_cost"`
	ExportRevenue   float64   `json:"export_revenue"`
	EmissionKg      float64   `json:"emission_kg"`
	DegradationCost float64   `json:"degradation_cost"`
	UnmetKWh        float64   `json:"unmet_kwh"`
	Violations      int       `json:"violations"`
	EVSuccessRate   float64   `json:"ev_success_rate"`
	MinSoH          float64   `json:"min_soh"`
}

// supabaseUpdate holds the json encoding schema for a trainer update report in supabase.
type supabaseUpdate struct {
	ID                uuid.UUID `json:"id"`
	RunID             uuid.UUID `json:"run_id"`
	Time              time.Time `json:"time"`
	Iteration         int       `json:"iteration"`
	TotalSteps        int       `json:"total_steps"`
	Episodes          int       `json:"episodes"`
	MeanEpisodeReward float64   `json:"mean_episode_reward"`
	PolicyLoss        float64   `json:"policy_loss"`
	ValueLoss         float64   `json:"value_loss"`
	Entropy           float64   `json:"entropy"`
	ApproxKL          float64   `json:"approx_kl"`
	ClipFraction      float64   `json:"clip_fraction"`
	GradNorm          float64   `json:"grad_norm"`
	LearningRate      float64   `json:"learning_rate"`
	GradientSteps     int       `json:"gradient_steps"`
	Epochs            int       `json:"epochs"`
	EarlyStopped      bool      `json:"early_stopped"`
	AdvantageMaxAbs   float64   `json:"advantage_max_abs"`
}

func convertEpisodes(episodes []repository.StoredEpisodeSummary) []supabaseEpisode {
	var supabaseEpisodes []supabaseEpisode
	for _, episode := range episodes {
		supabaseEpisodes = append(supabaseEpisodes, supabaseEpisode(episode.EpisodeSummary))
	}
	return supabaseEpisodes
}

func convertUpdates(updates []repository.StoredUpdateReport) []supabaseUpdate {
	var supabaseUpdates []supabaseUpdate
	for _, update := range updates {
		supabaseUpdates = append(supabaseUpdates, supabaseUpdate(update.UpdateReport))
	}
	return supabaseUpdates
}
