// Package matching provides the graph-matching oracle used to turn detection
// events into logical-observable predictions. The oracle is split into two
// interfaces: a Compiler that builds a matcher once per detector error model,
// and the Matcher it returns, which decodes one full-length detection vector
// per call. PathMatcher is the in-tree implementation; tests substitute
// scripted matchers via the matchingtest subpackage.
package matching

import (
	"errors"

	"github.com/qeclabs/surface-decoder/pkg/dem"
)

var (
	// ErrNotGraphlike indicates a mechanism that cannot become a matching
	// edge: more than two detectors, or observables with no detector.
	ErrNotGraphlike = errors.New("matching: error mechanism is not graphlike")
	// ErrProbability indicates a mechanism probability outside (0, 1).
	ErrProbability = errors.New("matching: mechanism probability must be in (0, 1)")
	// ErrSyndromeLength indicates a detection vector whose length disagrees
	// with the compiled detector count.
	ErrSyndromeLength = errors.New("matching: detection vector length does not match detector count")
	// ErrUnmatchable indicates a detection pattern that admits no matching,
	// e.g. an odd number of events with no boundary to absorb the parity.
	ErrUnmatchable = errors.New("matching: detection events admit no matching")
)

// Matcher decodes a single shot. The input has one 0/1 byte per detector
// over the full compiled index space; the result has one 0/1 byte per
// logical observable.
//
// Implementations must state whether Decode is safe for concurrent use;
// callers that fan shots out across goroutines require it.
type Matcher interface {
	Decode(syndrome []uint8) ([]uint8, error)
}

// Compiler builds a Matcher for a detector error model. Compilation may be
// expensive (graph construction happens here); the returned Matcher is
// reused for every shot and window afterwards.
type Compiler interface {
	Compile(model *dem.Model) (Matcher, error)
}
