// Package plotting draws training progress and evaluation episodes to image files.
package plotting

import (
	"errors"
	"fmt"

	"github.com/cepro/gridrl/telemetry"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

var ErrNothingToPlot = errors.New("nothing to plot")

// History keeps every update report it observes, for drawing a learning curve once training ends.
type History struct {
	updates []telemetry.UpdateReport
}

func (h *History) ObserveEpisode(telemetry.EpisodeSummary) {}

func (h *History) ObserveUpdate(u telemetry.UpdateReport) {
	h.updates = append(h.updates, u)
}

func (h *History) Updates() []telemetry.UpdateReport {
	return h.updates
}

// LearningCurve plots the mean episode reward of each update cycle against the number of environment steps
// collected so far. Cycles in which no episode finished are skipped. The image format follows the file extension.
func LearningCurve(path string, updates []telemetry.UpdateReport) error {
	var reward plotter.XYs
	for _, u := range updates {
		if u.Episodes == 0 {
			continue
		}
		reward = append(reward, plotter.XY{X: float64(u.TotalSteps), Y: u.MeanEpisodeReward})
	}
	if len(reward) == 0 {
		return fmt.Errorf("%w: no update completed an episode", ErrNothingToPlot)
	}

	p := plot.New()
	p.Title.Text = "Learning curve"
	p.X.Label.Text = "Environment steps"
	p.Y.Label.Text = "Mean episode reward"
	p.Add(plotter.NewGrid())
	if err := plotutil.AddLinePoints(p, "reward", reward); err != nil {
		return fmt.Errorf("add reward line: %w", err)
	}
	return save(p, path)
}

// EpisodeTrace plots the state of charge of every battery over one episode.
func EpisodeTrace(path string, trace []telemetry.StepDiagnostics) error {
	if len(trace) == 0 {
		return fmt.Errorf("%w: empty episode", ErrNothingToPlot)
	}

	p := plot.New()
	p.Title.Text = "Evaluation episode"
	p.X.Label.Text = "Step"
	p.Y.Label.Text = "State of charge"
	p.Y.Min, p.Y.Max = 0, 1
	p.Add(plotter.NewGrid())

	var lines []interface{}
	for b := range trace[0].SoC {
		soc := make(plotter.XYs, len(trace))
		for i, step := range trace {
			soc[i] = plotter.XY{X: float64(step.Step), Y: step.SoC[b]}
		}
		lines = append(lines, fmt.Sprintf("battery %d", b), soc)
	}
	if err := plotutil.AddLines(p, lines...); err != nil {
		return fmt.Errorf("add state of charge lines: %w", err)
	}
	return save(p, path)
}

func save(p *plot.Plot, path string) error {
	if err := p.Save(8*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("save plot: %w", err)
	}
	return nil
}
