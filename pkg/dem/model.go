// Package dem models detector error models: the declared detector and
// observable counts of a noisy stabilizer-measurement circuit together with
// its independent error mechanisms. A mechanism fires with some probability
// and flips a small set of detectors and logical observables; the matching
// oracle compiles the mechanism list into its decoding graph.
package dem

// Mechanism is one independent error source. Probability is the chance the
// mechanism fires in a shot; Detectors and Observables list the indices it
// flips when it does.
type Mechanism struct {
	Probability float64
	Detectors   []int
	Observables []int
}

// Model is a detector error model. Mechanisms is the full list of error
// sources; NumDetectors and NumObservables are the declared index spaces
// (always large enough to cover every index referenced by a mechanism).
type Model struct {
	NumDetectors   int
	NumObservables int
	Mechanisms     []Mechanism
}
