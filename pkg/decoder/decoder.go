package decoder

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/qeclabs/surface-decoder/pkg/bitpack"
	"github.com/qeclabs/surface-decoder/pkg/dem"
	"github.com/qeclabs/surface-decoder/pkg/matching"
	"github.com/qeclabs/surface-decoder/pkg/metrics"
)

// Config is the window configuration consumed from outside the core.
type Config struct {
	// WindowSize is the record window length in rounds. Must be >= 1.
	WindowSize int
	// Overlap is the context padding in rounds on each side of a record
	// window. Must satisfy 0 <= Overlap < WindowSize.
	Overlap int
	// Rounds optionally fixes the total round count. Zero means infer it
	// from the model's detector count at compile time.
	Rounds int
	// Workers bounds concurrent shot decoding in DecodeBatch; zero or one
	// decodes serially. Values above one require a matcher that is safe
	// for concurrent use.
	Workers int
	// Metrics optionally instruments batch decodes. Nil disables.
	Metrics *metrics.Metrics
}

// Decoder builds compiled sliding-window decoders for detector error models.
type Decoder struct {
	log      *zap.SugaredLogger
	compiler matching.Compiler
	cfg      Config
}

// New creates a Decoder and returns an error if the configuration is
// invalid. A nil logger disables logging.
func New(log *zap.SugaredLogger, compiler matching.Compiler, cfg Config) (*Decoder, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if compiler == nil {
		return nil, errors.New("decoder: compiler must not be nil")
	}
	if err := validateWindow(cfg.WindowSize, cfg.Overlap); err != nil {
		return nil, err
	}
	if cfg.Rounds < 0 {
		return nil, fmt.Errorf("%w: rounds=%d, must be >= 0", ErrInvalidConfig, cfg.Rounds)
	}
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("%w: workers=%d, must be >= 0", ErrInvalidConfig, cfg.Workers)
	}
	return &Decoder{log: log, compiler: compiler, cfg: cfg}, nil
}

// Compiled is a decoder bound to one error model: the oracle handle, the
// resolved geometry, and the memoized window plan. All fields are immutable
// after Compile, so a Compiled may be shared across concurrent decode calls.
type Compiled struct {
	log            *zap.SugaredLogger
	matcher        matching.Matcher
	geom           Geometry
	plan           []WindowStep
	numObservables int
	workers        int
	met            *metrics.Metrics
}

// Compile builds the matching graph for model, resolves the round count
// (explicit Config.Rounds, or inference from the detector count), validates
// that the detector count factors evenly into rounds, and fixes the window
// plan. All configuration and shape errors surface here, never per shot.
func (d *Decoder) Compile(model *dem.Model) (*Compiled, error) {
	if model == nil {
		return nil, errors.New("decoder: model must not be nil")
	}
	matcher, err := d.compiler.Compile(model)
	if err != nil {
		return nil, fmt.Errorf("decoder: compile matcher: %w", err)
	}

	rounds := d.cfg.Rounds
	var detectorsPerRound int
	if rounds == 0 {
		rounds, detectorsPerRound, err = InferRounds(model.NumDetectors)
		if err != nil {
			return nil, err
		}
		d.log.Debugw("inferred round count",
			"detectors", model.NumDetectors, "rounds", rounds, "detectorsPerRound", detectorsPerRound)
	} else {
		if model.NumDetectors%rounds != 0 {
			return nil, fmt.Errorf("%w: %d detectors, %d rounds", ErrShapeMismatch, model.NumDetectors, rounds)
		}
		detectorsPerRound = model.NumDetectors / rounds
	}

	geom, err := NewGeometry(rounds, detectorsPerRound, d.cfg.WindowSize, d.cfg.Overlap)
	if err != nil {
		return nil, err
	}
	plan := geom.Plan()
	d.log.Infow("compiled sliding-window decoder",
		"rounds", geom.Rounds,
		"detectorsPerRound", geom.DetectorsPerRound,
		"windowSize", geom.WindowSize,
		"overlap", geom.Overlap,
		"windows", len(plan),
		"observables", model.NumObservables,
	)
	return &Compiled{
		log:            d.log,
		matcher:        matcher,
		geom:           geom,
		plan:           plan,
		numObservables: model.NumObservables,
		workers:        d.cfg.Workers,
		met:            d.cfg.Metrics,
	}, nil
}

// Geometry returns the resolved problem shape.
func (c *Compiled) Geometry() Geometry { return c.geom }

// NumObservables returns the model's logical observable count.
func (c *Compiled) NumObservables() int { return c.numObservables }

// Plan returns a copy of the memoized window plan.
func (c *Compiled) Plan() []WindowStep {
	return append([]WindowStep(nil), c.plan...)
}

// DecodeBatch decodes bit-packed detection events, one row per shot, into
// bit-packed observable predictions. Shots are independent; when the
// decoder was configured with Workers > 1 they are decoded concurrently,
// with output rows written in place so the result is byte-identical to a
// serial decode. A failed shot aborts the whole call with no output.
func (c *Compiled) DecodeBatch(dets []byte) ([]byte, error) {
	rowBytes := bitpack.RowBytes(c.geom.NumDetectors())
	if len(dets)%rowBytes != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a whole number of %d-byte rows",
			ErrInvalidInput, len(dets), rowBytes)
	}
	numShots := len(dets) / rowBytes
	obsBytes := bitpack.RowBytes(c.numObservables)
	out := make([]byte, numShots*obsBytes)
	start := time.Now()

	decodeRow := func(shot int) error {
		syndrome := make([]uint8, c.geom.NumDetectors())
		if err := bitpack.UnpackRowInto(syndrome, dets[shot*rowBytes:(shot+1)*rowBytes]); err != nil {
			return fmt.Errorf("shot %d: %w", shot, err)
		}
		preds, err := c.decodeShot(syndrome)
		if err != nil {
			return fmt.Errorf("shot %d: %w", shot, err)
		}
		bitpack.PackRowInto(out[shot*obsBytes:(shot+1)*obsBytes], preds)
		return nil
	}

	if c.workers <= 1 {
		for shot := 0; shot < numShots; shot++ {
			if err := decodeRow(shot); err != nil {
				return nil, err
			}
		}
		c.met.RecordBatchDecode(numShots, numShots*len(c.plan), time.Since(start).Seconds())
		return out, nil
	}

	var g errgroup.Group
	g.SetLimit(c.workers)
	for shot := 0; shot < numShots; shot++ {
		g.Go(func() error { return decodeRow(shot) })
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	c.met.RecordBatchDecode(numShots, numShots*len(c.plan), time.Since(start).Seconds())
	return out, nil
}

// decodeShot runs the window plan over one shot's dense syndrome and folds
// the per-window predictions into a single result by XOR. The matcher
// always sees a full-length vector; rounds outside the decode window stay
// zero.
func (c *Compiled) decodeShot(syndrome []uint8) ([]uint8, error) {
	dpr := c.geom.DetectorsPerRound
	window := make([]uint8, c.geom.NumDetectors())

	// Single-observable fast path: accumulate one parity bit instead of a
	// vector. This is the common case for surface-code memory experiments.
	if c.numObservables == 1 {
		var parity uint8
		for _, step := range c.plan {
			preds, err := c.decodeWindow(window, syndrome, step, dpr)
			if err != nil {
				return nil, err
			}
			parity ^= preds[0] & 1
		}
		return []uint8{parity}, nil
	}

	acc := make([]uint8, c.numObservables)
	for _, step := range c.plan {
		preds, err := c.decodeWindow(window, syndrome, step, dpr)
		if err != nil {
			return nil, err
		}
		for j := range acc {
			acc[j] ^= preds[j] & 1
		}
	}
	return acc, nil
}

func (c *Compiled) decodeWindow(window, syndrome []uint8, step WindowStep, dpr int) ([]uint8, error) {
	clear(window)
	lo, hi := step.DecodeStart*dpr, step.DecodeEnd*dpr
	copy(window[lo:hi], syndrome[lo:hi])

	preds, err := c.matcher.Decode(window)
	if err != nil {
		return nil, fmt.Errorf("decode rounds [%d,%d): %w", step.DecodeStart, step.DecodeEnd, err)
	}
	if len(preds) != c.numObservables {
		return nil, fmt.Errorf("decoder: matcher returned %d observables, want %d", len(preds), c.numObservables)
	}
	return preds, nil
}
