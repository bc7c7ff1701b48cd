package sampler

import "math"

// Baselines for adaptive collection limits: at a one-in-a-thousand shot
// error rate, a thousand observed errors give a tight estimate and ten
// million shots are enough to find them.
const (
	baselineShotRate  = 1e-3
	baselineMaxErrors = 1_000
	minMaxErrors      = 100
	maxMaxShots       = 100_000_000
	shotBudgetFactor  = 20 // shots per error of budget headroom
)

// PieceErrorRate converts a shot error rate into the equivalent per-piece
// rate for a shot made of n independent pieces, inverting the composition
// p_shot = (1 - (1-2p)^n) / 2. Rates at or above 1/2 are saturated and map
// to 1/2.
func PieceErrorRate(shotErrorRate float64, pieces int) float64 {
	if pieces <= 1 || shotErrorRate <= 0 {
		return max(shotErrorRate, 0)
	}
	if shotErrorRate >= 0.5 {
		return 0.5
	}
	return (1 - math.Pow(1-2*shotErrorRate, 1/float64(pieces))) / 2
}

// expectedShotRate composes a per-round rate over the round count, the
// forward direction of PieceErrorRate.
func expectedShotRate(perRoundRate float64, rounds int) float64 {
	if perRoundRate <= 0 || rounds < 1 {
		return 0
	}
	if perRoundRate >= 0.5 {
		return 0.5
	}
	return (1 - math.Pow(1-2*perRoundRate, float64(rounds))) / 2
}

// AdaptiveMaxErrors sizes a task's error budget from its expected per-round
// error rate. At or above the baseline shot rate the full budget applies;
// below it the budget shrinks quadratically with the rate, floored so rare
// regimes still collect enough errors for a usable estimate.
func AdaptiveMaxErrors(perRoundRate float64, rounds int) uint64 {
	est := expectedShotRate(perRoundRate, rounds)
	if est <= 0 {
		return minMaxErrors
	}
	ratio := est / baselineShotRate
	if ratio >= 1 {
		return baselineMaxErrors
	}
	return max(uint64(baselineMaxErrors*ratio*ratio), minMaxErrors)
}

// AdaptiveMaxShots caps shot consumption inversely to the expected shot
// error rate, with headroom to actually reach the error budget, under a
// hard ceiling.
func AdaptiveMaxShots(perRoundRate float64, rounds int) uint64 {
	est := expectedShotRate(perRoundRate, rounds)
	if est <= 0 {
		return maxMaxShots
	}
	shots := float64(AdaptiveMaxErrors(perRoundRate, rounds)) * shotBudgetFactor / est
	if shots >= maxMaxShots {
		return maxMaxShots
	}
	return uint64(shots)
}
