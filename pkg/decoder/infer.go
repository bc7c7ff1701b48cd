package decoder

import "fmt"

// roundCandidates lists plausible round counts in ascending search order:
// small odd values typical of code distances, then common round magnitudes
// up to very large circuits.
var roundCandidates = []int{3, 5, 7, 9, 11, 13, 15, 17, 19, 21, 23, 25, 50, 100, 200, 500, 1000, 10000}

// maxDetectorsPerRound bounds an acceptable factorization; anything larger
// is assumed to be a wrong guess.
const maxDetectorsPerRound = 10000

// InferRounds guesses a (rounds, detectorsPerRound) factorization for a
// model whose round count was not supplied. For each candidate c it tries c
// and then c+1 (circuits often append one extra final-measurement round
// beyond the nominal count), accepting the first value that divides
// numDetectors into a sane per-round count.
//
// The heuristic is inherently ambiguous when numDetectors is divisible by
// several candidates: the first match wins. An explicit round count is the
// authoritative escape hatch.
func InferRounds(numDetectors int) (rounds, detectorsPerRound int, err error) {
	for _, c := range roundCandidates {
		for _, r := range [2]int{c, c + 1} {
			if numDetectors%r != 0 {
				continue
			}
			perRound := numDetectors / r
			if perRound >= 1 && perRound <= maxDetectorsPerRound {
				return r, perRound, nil
			}
		}
	}
	return 0, 0, fmt.Errorf("%w: %d detectors; supply the round count explicitly",
		ErrInferenceFailed, numDetectors)
}
