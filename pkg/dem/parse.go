package dem

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

var (
	// ErrSyntax indicates a malformed line in a serialized model.
	ErrSyntax = errors.New("dem: syntax error")
	// ErrProbability indicates an error probability outside (0, 1).
	ErrProbability = errors.New("dem: probability must be in (0, 1)")
)

// Parse reads a detector error model in the stim text format. Supported
// instructions:
//
//	error(p) D0 D1 L0       an error mechanism; "^" splits the targets
//	                        into independently decodable components
//	detector(...) D5        declares a detector (coordinate args ignored)
//	logical_observable L0   declares an observable
//	shift_detectors(...) N  offsets subsequent detector indices by N
//
// Blank lines and lines starting with "#" are skipped.
func Parse(r io.Reader) (*Model, error) {
	m := &Model{}
	shift := 0
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := parseLine(m, line, &shift); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("dem: read: %w", err)
	}
	return m, nil
}

// FromFile parses a serialized detector error model from disk.
func FromFile(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dem: open %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

func parseLine(m *Model, line string, shift *int) error {
	name, arg, targets, err := splitInstruction(line)
	if err != nil {
		return err
	}
	switch name {
	case "error":
		p, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return fmt.Errorf("%w: bad probability %q", ErrSyntax, arg)
		}
		if p <= 0 || p >= 1 {
			return fmt.Errorf("%w: got %v", ErrProbability, p)
		}
		return m.appendError(p, targets, *shift)
	case "detector":
		for _, tgt := range targets {
			d, ok := parseTarget(tgt, 'D')
			if !ok {
				return fmt.Errorf("%w: detector takes D targets, got %q", ErrSyntax, tgt)
			}
			m.growDetectors(d + *shift)
		}
		return nil
	case "logical_observable":
		for _, tgt := range targets {
			o, ok := parseTarget(tgt, 'L')
			if !ok {
				return fmt.Errorf("%w: logical_observable takes L targets, got %q", ErrSyntax, tgt)
			}
			m.growObservables(o)
		}
		return nil
	case "shift_detectors":
		if len(targets) != 1 {
			return fmt.Errorf("%w: shift_detectors takes one offset", ErrSyntax)
		}
		n, err := strconv.Atoi(targets[0])
		if err != nil || n < 0 {
			return fmt.Errorf("%w: bad shift %q", ErrSyntax, targets[0])
		}
		*shift += n
		return nil
	default:
		return fmt.Errorf("%w: unknown instruction %q", ErrSyntax, name)
	}
}

// appendError adds one error instruction, splitting its targets at "^" into
// separate mechanisms sharing the instruction's probability.
func (m *Model) appendError(p float64, targets []string, shift int) error {
	mech := Mechanism{Probability: p}
	flush := func() {
		if len(mech.Detectors) > 0 || len(mech.Observables) > 0 {
			m.Mechanisms = append(m.Mechanisms, mech)
			mech = Mechanism{Probability: p}
		}
	}
	for _, tgt := range targets {
		if tgt == "^" {
			flush()
			continue
		}
		if d, ok := parseTarget(tgt, 'D'); ok {
			d += shift
			mech.Detectors = append(mech.Detectors, d)
			m.growDetectors(d)
			continue
		}
		if o, ok := parseTarget(tgt, 'L'); ok {
			mech.Observables = append(mech.Observables, o)
			m.growObservables(o)
			continue
		}
		return fmt.Errorf("%w: bad target %q", ErrSyntax, tgt)
	}
	flush()
	return nil
}

func (m *Model) growDetectors(idx int) {
	if idx+1 > m.NumDetectors {
		m.NumDetectors = idx + 1
	}
}

func (m *Model) growObservables(idx int) {
	if idx+1 > m.NumObservables {
		m.NumObservables = idx + 1
	}
}

// splitInstruction breaks "name(arg) t1 t2 ..." into its parts. The
// parenthesized argument is optional; for multi-argument instructions only
// the raw text between the parentheses is returned.
func splitInstruction(line string) (name, arg string, targets []string, err error) {
	fields := strings.Fields(line)
	head := fields[0]
	if i := strings.IndexByte(head, '('); i >= 0 {
		j := strings.IndexByte(head, ')')
		if j < i {
			return "", "", nil, fmt.Errorf("%w: unbalanced parentheses in %q", ErrSyntax, head)
		}
		name, arg = head[:i], head[i+1:j]
	} else {
		name = head
	}
	return name, arg, fields[1:], nil
}

func parseTarget(s string, kind byte) (int, bool) {
	if len(s) < 2 || s[0] != kind {
		return 0, false
	}
	n, err := strconv.Atoi(s[1:])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
