package decoder

import "fmt"

// Geometry fixes the shape of one decoding problem: how the detector index
// space factors into rounds, and how the round axis is windowed. It is
// computed once at compile time and immutable afterwards.
type Geometry struct {
	Rounds            int
	DetectorsPerRound int
	WindowSize        int
	Overlap           int
}

// NewGeometry validates and builds a Geometry.
// Constraints: rounds>=1; detectorsPerRound>=1; windowSize>=1; 0<=overlap<windowSize.
func NewGeometry(rounds, detectorsPerRound, windowSize, overlap int) (Geometry, error) {
	if rounds < 1 {
		return Geometry{}, fmt.Errorf("%w: rounds=%d, must be >= 1", ErrInvalidConfig, rounds)
	}
	if detectorsPerRound < 1 {
		return Geometry{}, fmt.Errorf("%w: detectors per round=%d, must be >= 1", ErrInvalidConfig, detectorsPerRound)
	}
	if err := validateWindow(windowSize, overlap); err != nil {
		return Geometry{}, err
	}
	return Geometry{
		Rounds:            rounds,
		DetectorsPerRound: detectorsPerRound,
		WindowSize:        windowSize,
		Overlap:           overlap,
	}, nil
}

func validateWindow(windowSize, overlap int) error {
	if windowSize < 1 {
		return fmt.Errorf("%w: window size=%d, must be >= 1", ErrInvalidConfig, windowSize)
	}
	if overlap < 0 {
		return fmt.Errorf("%w: overlap=%d, must be >= 0", ErrInvalidConfig, overlap)
	}
	if overlap >= windowSize {
		return fmt.Errorf("%w: overlap=%d >= window size=%d leaves record windows empty",
			ErrInvalidConfig, overlap, windowSize)
	}
	return nil
}

// NumDetectors returns the total detector count covered by the geometry.
func (g Geometry) NumDetectors() int {
	return g.Rounds * g.DetectorsPerRound
}

// WindowStep is one step of a window plan. Ranges are half-open round
// intervals, 0-indexed. The record range is the portion whose correction is
// kept; the decode range is the padded portion handed to the matcher,
// clamped to [0, Rounds).
type WindowStep struct {
	RecordStart, RecordEnd int
	DecodeStart, DecodeEnd int
}

// Plan computes the ordered window steps covering the timeline. Record
// ranges partition [0, Rounds) exactly; the final record end always equals
// Rounds. When WindowSize >= Rounds the plan is a single step spanning the
// whole timeline.
func (g Geometry) Plan() []WindowStep {
	steps := make([]WindowStep, 0, (g.Rounds+g.WindowSize-1)/g.WindowSize)
	for recordStart := 0; recordStart < g.Rounds; {
		recordEnd := min(recordStart+g.WindowSize, g.Rounds)
		steps = append(steps, WindowStep{
			RecordStart: recordStart,
			RecordEnd:   recordEnd,
			DecodeStart: max(0, recordStart-g.Overlap),
			DecodeEnd:   min(g.Rounds, recordEnd+g.Overlap),
		})
		// Advance from the actual record end, not by WindowSize, so a short
		// final window cannot drift the partition.
		recordStart = recordEnd
	}
	return steps
}
