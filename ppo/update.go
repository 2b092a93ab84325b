package ppo

import (
	"fmt"
	"math"

	"github.com/cepro/gridrl/nn"
	"github.com/cepro/gridrl/telemetry"
	"gonum.org/v1/gonum/floats"
)

// minibatchStats are the losses and diagnostics of one gradient step.
type minibatchStats struct {
	policyLoss   float64
	valueLoss    float64
	entropy      float64
	approxKL     float64
	clipFraction float64
	gradNorm     float64
}

// update runs up to Epochs passes of shuffled minibatch steps over the buffer, stopping early once the policy has
// moved further than TargetKL from the one that collected the data. The buffer is cleared whatever the outcome.
func (t *Trainer) update() (telemetry.UpdateReport, error) {
	defer t.buffer.Reset()

	transitions := t.buffer.Transitions()
	n := len(transitions)
	lr := t.learningRate()
	report := telemetry.UpdateReport{LearningRate: lr}
	if n == 0 {
		return report, nil
	}

	raw := make([]float64, n)
	for i, tr := range transitions {
		raw[i] = tr.Advantage
	}
	advantages, maxAbs := StandardizeAdvantages(raw)
	report.AdvantageMaxAbs = maxAbs

	var totals minibatchStats
	size := t.config.MinibatchSize
	for epoch := 0; epoch < t.config.Epochs; epoch++ {
		perm := t.rng.Perm(n)
		epochKL := 0.0
		batches := 0

		for start := 0; start < n; start += size {
			idx := perm[start:min(start+size, n)]
			batch := make([]Transition, len(idx))
			batchAdvantages := make([]float64, len(idx))
			for i, j := range idx {
				batch[i] = transitions[j]
				batchAdvantages[i] = advantages[j]
			}

			s, err := t.step(batch, batchAdvantages, lr)
			if err != nil {
				return report, err
			}
			report.GradientSteps++
			batches++
			epochKL += s.approxKL

			totals.policyLoss += s.policyLoss
			totals.valueLoss += s.valueLoss
			totals.entropy += s.entropy
			totals.clipFraction += s.clipFraction
			totals.gradNorm += s.gradNorm
		}

		report.Epochs++
		report.ApproxKL = epochKL / float64(batches)
		if t.config.TargetKL > 0 && report.ApproxKL > t.config.TargetKL {
			report.EarlyStopped = true
			t.logger.Warn("Stopping update early", "epoch", epoch+1, "approx_kl", report.ApproxKL, "target_kl", t.config.TargetKL)
			break
		}
	}

	steps := float64(report.GradientSteps)
	report.PolicyLoss = totals.policyLoss / steps
	report.ValueLoss = totals.valueLoss / steps
	report.Entropy = totals.entropy / steps
	report.ClipFraction = totals.clipFraction / steps
	report.GradNorm = totals.gradNorm / steps
	return report, nil
}

// step takes one optimizer step on the minibatch. The loss minimised is
//
//	-mean(min(r*A, clip(r)*A)) - entropyCoef*entropy + valueCoef*mean((V - R)^2)
//
// where r is the probability ratio between the current policy and the one that collected the data. Both networks
// are stepped together after clipping their joint gradient norm; if anything along the way is non-finite nothing
// is written.
func (t *Trainer) step(batch []Transition, advantages []float64, lr float64) (minibatchStats, error) {
	m := float64(len(batch))
	obsRows := make([][]float64, len(batch))
	actionRows := make([][]float64, len(batch))
	for i, tr := range batch {
		obsRows[i] = tr.Obs
		actionRows[i] = tr.Action
	}
	obs := nn.Rows(obsRows)

	logProbs, policyCache := t.policy.LogProbs(obs, nn.Rows(actionRows))
	values, valueCache := t.value.EstimateBatch(obs)

	var s minibatchStats
	s.entropy = t.policy.Entropy()
	dLogProb := make([]float64, len(batch))
	dValue := make([]float64, len(batch))
	eps := t.config.ClipEpsilon
	for i, tr := range batch {
		logRatio := logProbs[i] - tr.LogProb
		ratio := math.Exp(logRatio)

		s.policyLoss -= ClippedSurrogate(ratio, advantages[i], eps) / m
		dLogProb[i] = -surrogateGradient(ratio, advantages[i], eps) * ratio / m

		diff := values[i] - tr.Return
		s.valueLoss += diff * diff / m
		dValue[i] = t.config.ValueCoef * 2 * diff / m

		s.approxKL += ((ratio - 1) - logRatio) / m
		if math.Abs(ratio-1) > eps {
			s.clipFraction += 1 / m
		}
	}

	loss := s.policyLoss - t.config.EntropyCoef*s.entropy + t.config.ValueCoef*s.valueLoss
	if !isFinite(loss) || !isFinite(s.approxKL) {
		return s, t.instability("loss", s)
	}

	policyGrad := make([]float64, t.policy.NumParams())
	valueGrad := make([]float64, t.value.NumParams())
	t.policy.Backward(policyCache, dLogProb, -t.config.EntropyCoef, policyGrad)
	t.value.Backward(valueCache, dValue, valueGrad)

	s.gradNorm = math.Hypot(floats.Norm(policyGrad, 2), floats.Norm(valueGrad, 2))
	if !isFinite(s.gradNorm) {
		return s, t.instability("gradient", s)
	}
	if s.gradNorm > t.config.MaxGradNorm {
		scale := t.config.MaxGradNorm / s.gradNorm
		floats.Scale(scale, policyGrad)
		floats.Scale(scale, valueGrad)
	}

	policyBefore := append([]float64(nil), t.policy.Params()...)
	m1, v1, steps := t.policyOpt.State()

	t.policyOpt.LearningRate = lr
	t.valueOpt.LearningRate = lr
	if err := t.policyOpt.Step(t.policy.Params(), policyGrad); err != nil {
		return s, t.instability("policy parameters", s)
	}
	if err := t.valueOpt.Step(t.value.Params(), valueGrad); err != nil {
		copy(t.policy.Params(), policyBefore)
		if err := t.policyOpt.Restore(m1, v1, steps); err != nil {
			return s, fmt.Errorf("%w: %w", ErrNumericalInstability, err)
		}
		return s, t.instability("value parameters", s)
	}
	return s, nil
}

func (t *Trainer) instability(what string, s minibatchStats) error {
	t.logger.Error("Numerical instability, discarding update",
		"source", what,
		"iteration", t.state.Iteration,
		"policy_loss", s.policyLoss,
		"value_loss", s.valueLoss,
		"entropy", s.entropy,
		"grad_norm", s.gradNorm,
	)
	return fmt.Errorf("%w: non-finite %s at iteration %d", ErrNumericalInstability, what, t.state.Iteration)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
