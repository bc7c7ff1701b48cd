// Package sampler estimates logical error rates by streaming detection
// events and observed observable flips through a compiled decoder and
// scoring predictions against the observations.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/qeclabs/surface-decoder/pkg/bitpack"
	"github.com/qeclabs/surface-decoder/pkg/metrics"
)

// BatchDecoder decodes bit-packed detection events into bit-packed
// observable predictions. It must be safe for concurrent use when the
// sampler runs with Concurrency > 1.
type BatchDecoder interface {
	DecodeBatch(dets []byte) ([]byte, error)
}

var (
	ErrInvalidLogger      = errors.New("invalid logger: must not be nil")
	ErrInvalidDecoder     = errors.New("invalid decoder: must not be nil")
	ErrInvalidShape       = errors.New("invalid shape: detector and observable counts must be positive")
	ErrInvalidBatchSize   = errors.New("invalid batch size: must be greater than 0")
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be greater than 0")
	ErrTruncatedDets      = errors.New("detection event stream truncated mid-row")
	ErrTruncatedObs       = errors.New("observable stream shorter than detection event stream")
)

// Config bounds one sampling task.
type Config struct {
	// BatchSize is the number of shots read and decoded per batch.
	BatchSize int
	// Concurrency bounds the number of batches decoded at once.
	Concurrency int
	// MaxShots stops the task once this many shots have been consumed.
	// Zero means read until the detection stream ends.
	MaxShots uint64
	// MaxErrors stops the task early once this many logical errors have
	// been observed. Zero disables the cap.
	MaxErrors uint64
}

// TaskStats is the outcome of one sampling task.
type TaskStats struct {
	Shots   uint64
	Errors  uint64
	Elapsed time.Duration
}

// ShotErrorRate returns the observed logical error rate per shot.
func (s TaskStats) ShotErrorRate() float64 {
	if s.Shots == 0 {
		return 0
	}
	return float64(s.Errors) / float64(s.Shots)
}

type Sampler struct {
	sugar          *zap.SugaredLogger
	dec            BatchDecoder
	numDetectors   int
	numObservables int
	met            *metrics.Metrics
	cfg            Config
}

// New validates the configuration and builds a Sampler. met may be nil to
// disable instrumentation.
func New(sugar *zap.SugaredLogger, dec BatchDecoder, numDetectors, numObservables int, met *metrics.Metrics, cfg Config) (*Sampler, error) {
	if sugar == nil {
		return nil, ErrInvalidLogger
	}
	if dec == nil {
		return nil, ErrInvalidDecoder
	}
	if numDetectors < 1 || numObservables < 1 {
		return nil, ErrInvalidShape
	}
	if cfg.BatchSize <= 0 {
		return nil, ErrInvalidBatchSize
	}
	if cfg.Concurrency <= 0 {
		return nil, ErrInvalidConcurrency
	}
	return &Sampler{
		sugar:          sugar,
		dec:            dec,
		numDetectors:   numDetectors,
		numObservables: numObservables,
		met:            met,
		cfg:            cfg,
	}, nil
}

// Run streams detection events and observed observables in lockstep, one
// bit-packed row per shot, until the detection stream ends or a limit from
// the Config is reached. Batches are decoded concurrently up to the
// configured bound; reads stay sequential so row pairing is preserved.
//
// Stats are returned even on error, covering the shots scored so far.
func (s *Sampler) Run(ctx context.Context, dets, obs io.Reader) (TaskStats, error) {
	start := time.Now()
	detRow := bitpack.RowBytes(s.numDetectors)
	obsRow := bitpack.RowBytes(s.numObservables)

	var shots, logicalErrors atomic.Uint64
	g, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(s.cfg.Concurrency))

	// dispatched tracks shots handed to the decoder, ahead of the scored
	// count while batches are in flight. Only the read loop touches it.
	var dispatched uint64
	var readErr error
	for {
		if err := gctx.Err(); err != nil {
			readErr = err
			break
		}
		if s.cfg.MaxErrors > 0 && logicalErrors.Load() >= s.cfg.MaxErrors {
			s.sugar.Infow("error budget reached", "errors", logicalErrors.Load(), "maxErrors", s.cfg.MaxErrors)
			break
		}

		batchShots := s.cfg.BatchSize
		if s.cfg.MaxShots > 0 {
			remaining := s.cfg.MaxShots - min(dispatched, s.cfg.MaxShots)
			if remaining == 0 {
				s.sugar.Infow("shot budget reached", "shots", dispatched, "maxShots", s.cfg.MaxShots)
				break
			}
			if uint64(batchShots) > remaining {
				batchShots = int(remaining)
			}
		}

		detBuf := make([]byte, batchShots*detRow)
		n, err := io.ReadFull(dets, detBuf)
		if err == io.EOF {
			break
		}
		last := false
		if errors.Is(err, io.ErrUnexpectedEOF) {
			if n%detRow != 0 {
				readErr = fmt.Errorf("%w: %d trailing bytes", ErrTruncatedDets, n%detRow)
				break
			}
			detBuf = detBuf[:n]
			last = true
		} else if err != nil {
			readErr = fmt.Errorf("read detection events: %w", err)
			break
		}

		gotShots := len(detBuf) / detRow
		obsBuf := make([]byte, gotShots*obsRow)
		if _, err := io.ReadFull(obs, obsBuf); err != nil {
			readErr = fmt.Errorf("%w: %v", ErrTruncatedObs, err)
			break
		}

		dispatched += uint64(gotShots)
		if err := sem.Acquire(gctx, 1); err != nil {
			readErr = err
			break
		}
		g.Go(func() error {
			defer sem.Release(1)

			batchStart := time.Now()
			s.met.AddShotsInFlight(gotShots)
			defer s.met.AddShotsInFlight(-gotShots)

			preds, err := s.dec.DecodeBatch(detBuf)
			s.met.RecordSamplerBatch(err, time.Since(batchStart).Seconds())
			if err != nil {
				s.met.IncError(metrics.ErrTypeMatching)
				return fmt.Errorf("decode batch: %w", err)
			}

			batchErrors := s.score(preds, obsBuf, obsRow)
			shots.Add(uint64(gotShots))
			logicalErrors.Add(batchErrors)
			s.met.AddLogicalErrors(int(batchErrors))
			s.met.UpdateSamplerProgress(shots.Load(), logicalErrors.Load())
			return nil
		})

		if last {
			break
		}
	}

	// A goroutine failure takes priority; readErr covers stream problems and
	// cancellation seen by the read loop, so an interrupted run never looks
	// like a completed one.
	err := g.Wait()
	if err == nil {
		err = readErr
	}

	stats := TaskStats{
		Shots:   shots.Load(),
		Errors:  logicalErrors.Load(),
		Elapsed: time.Since(start),
	}
	s.met.UpdateSamplerProgress(stats.Shots, stats.Errors)
	s.sugar.Infow("sampling task finished",
		"shots", stats.Shots,
		"errors", stats.Errors,
		"shotErrorRate", stats.ShotErrorRate(),
		"elapsed", stats.Elapsed,
	)
	return stats, err
}

// score counts shots whose packed prediction row differs from the observed
// row. Padding bits in the final byte of each row are masked out; writers
// are not required to zero them.
func (s *Sampler) score(preds, obs []byte, obsRow int) uint64 {
	lastMask := byte(0xFF)
	if r := s.numObservables % 8; r != 0 {
		lastMask = byte(1<<r) - 1
	}

	var count uint64
	for shot := 0; shot < len(preds)/obsRow; shot++ {
		got := preds[shot*obsRow : (shot+1)*obsRow]
		want := obs[shot*obsRow : (shot+1)*obsRow]
		for i := range got {
			mask := byte(0xFF)
			if i == obsRow-1 {
				mask = lastMask
			}
			if (got[i]^want[i])&mask != 0 {
				count++
				break
			}
		}
	}
	return count
}
