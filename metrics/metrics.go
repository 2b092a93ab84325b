// Package metrics exports training progress to Prometheus.
package metrics

import (
	"strconv"

	"github.com/cepro/gridrl/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Training holds the gauges updated from episode summaries and update reports. It satisfies the trainer's observer
// interface.
type Training struct {
	episodeReward     *prometheus.GaugeVec
	episodeCost       *prometheus.GaugeVec
	episodeUnmetKWh   *prometheus.GaugeVec
	episodeViolations *prometheus.GaugeVec
	evSuccessRate     *prometheus.GaugeVec
	minSoH            *prometheus.GaugeVec
	episodes          prometheus.Counter

	iteration    prometheus.Gauge
	totalSteps   prometheus.Gauge
	meanReward   prometheus.Gauge
	policyLoss   prometheus.Gauge
	valueLoss    prometheus.Gauge
	entropy      prometheus.Gauge
	approxKL     prometheus.Gauge
	clipFraction prometheus.Gauge
	gradNorm     prometheus.Gauge
	learningRate prometheus.Gauge
	earlyStops   prometheus.Counter
}

// New registers the training metrics on `reg`. It panics if they are already registered there.
func New(reg prometheus.Registerer) *Training {
	factory := promauto.With(reg)
	episodeGauge := func(name, help string) *prometheus.GaugeVec {
		return factory.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: help}, []string{"worker"})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return factory.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
	}

	return &Training{
		episodeReward:     episodeGauge("gridrl_episode_reward", "Total reward of the latest completed episode."),
		episodeCost:       episodeGauge("gridrl_episode_cost", "Total weighted cost of the latest completed episode."),
		episodeUnmetKWh:   episodeGauge("gridrl_episode_unmet_kwh", "Unmet demand in the latest completed episode, in kWh."),
		episodeViolations: episodeGauge("gridrl_episode_violations", "Safety corrections made in the latest completed episode."),
		evSuccessRate:     episodeGauge("gridrl_episode_ev_success_rate", "Fraction of departing EVs that left with their energy need met."),
		minSoH:            episodeGauge("gridrl_episode_min_soh", "Lowest battery state of health reached in the latest completed episode."),
		episodes: factory.NewCounter(prometheus.CounterOpts{
			Name: "gridrl_episodes_total",
			Help: "Total number of completed training episodes.",
		}),

		iteration:    gauge("gridrl_update_iteration", "Number of completed update cycles."),
		totalSteps:   gauge("gridrl_update_total_steps", "Number of environment steps collected."),
		meanReward:   gauge("gridrl_update_mean_episode_reward", "Mean reward of the episodes completed in the latest cycle."),
		policyLoss:   gauge("gridrl_update_policy_loss", "Mean clipped surrogate loss of the latest update."),
		valueLoss:    gauge("gridrl_update_value_loss", "Mean value loss of the latest update."),
		entropy:      gauge("gridrl_update_entropy", "Policy entropy during the latest update."),
		approxKL:     gauge("gridrl_update_approx_kl", "Approximate KL divergence of the final epoch of the latest update."),
		clipFraction: gauge("gridrl_update_clip_fraction", "Fraction of samples whose probability ratio was clipped."),
		gradNorm:     gauge("gridrl_update_grad_norm", "Mean gradient norm before clipping."),
		learningRate: gauge("gridrl_update_learning_rate", "Learning rate of the latest update."),
		earlyStops: factory.NewCounter(prometheus.CounterOpts{
			Name: "gridrl_update_early_stops_total",
			Help: "Number of updates stopped early by the KL target.",
		}),
	}
}

func (t *Training) ObserveEpisode(e telemetry.EpisodeSummary) {
	worker := strconv.Itoa(e.Worker)
	t.episodeReward.WithLabelValues(worker).Set(e.TotalReward)
	t.episodeCost.WithLabelValues(worker).Set(e.TotalCost)
	t.episodeUnmetKWh.WithLabelValues(worker).Set(e.UnmetKWh)
	t.episodeViolations.WithLabelValues(worker).Set(float64(e.Violations))
	t.evSuccessRate.WithLabelValues(worker).Set(e.EVSuccessRate)
	t.minSoH.WithLabelValues(worker).Set(e.MinSoH)
	t.episodes.Inc()
}

func (t *Training) ObserveUpdate(u telemetry.UpdateReport) {
	t.iteration.Set(float64(u.Iteration))
	t.totalSteps.Set(float64(u.TotalSteps))
	if u.Episodes > 0 {
		t.meanReward.Set(u.MeanEpisodeReward)
	}
	t.policyLoss.Set(u.PolicyLoss)
	t.valueLoss.Set(u.ValueLoss)
	t.entropy.Set(u.Entropy)
	t.approxKL.Set(u.ApproxKL)
	t.clipFraction.Set(u.ClipFraction)
	t.gradNorm.Set(u.GradNorm)
	t.learningRate.Set(u.LearningRate)
	if u.EarlyStopped {
		t.earlyStops.Inc()
	}
}
