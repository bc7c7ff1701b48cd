// Package matchingtest provides scripted matching oracles for tests that
// exercise windowed decoding without a real matching backend.
package matchingtest

import (
	"errors"
	"sync"

	"github.com/qeclabs/surface-decoder/pkg/dem"
	"github.com/qeclabs/surface-decoder/pkg/matching"
)

// ErrScriptExhausted indicates more Decode calls than scripted predictions.
var ErrScriptExhausted = errors.New("matchingtest: scripted predictions exhausted")

// Fake is a Matcher that returns the entries of Script in order, one per
// Decode call, and records a copy of every detection vector it receives.
// It is safe for concurrent use; under concurrency the association between
// a recorded syndrome and a script entry follows call order.
type Fake struct {
	Script [][]uint8

	mu        sync.Mutex
	calls     int
	Syndromes [][]uint8
}

// Decode implements matching.Matcher.
func (f *Fake) Decode(syndrome []uint8) ([]uint8, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Syndromes = append(f.Syndromes, append([]uint8(nil), syndrome...))
	if f.calls >= len(f.Script) {
		return nil, ErrScriptExhausted
	}
	pred := f.Script[f.calls]
	f.calls++
	return append([]uint8(nil), pred...), nil
}

// Calls returns how many times Decode has been invoked.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Compiler hands out a fixed Matcher (or error) regardless of the model.
type Compiler struct {
	Matcher matching.Matcher
	Err     error
}

// Compile implements matching.Compiler.
func (c *Compiler) Compile(*dem.Model) (matching.Matcher, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	return c.Matcher, nil
}
