package decoder

import (
	"fmt"
	"os"

	"github.com/qeclabs/surface-decoder/pkg/bitpack"
	"github.com/qeclabs/surface-decoder/pkg/dem"
)

// DecodeViaFiles runs the whole pipeline through the on-disk convention:
// parse the detector error model at demPath, compile, decode the bit-packed
// detection events at detsPath, and write the bit-packed predictions to
// outPath. numDets and numObs are the caller-declared shapes; the model may
// mention fewer detectors or observables than declared (trailing ones that
// no mechanism touches), but never more.
func (d *Decoder) DecodeViaFiles(numShots, numDets, numObs int, demPath, detsPath, outPath string) error {
	if numShots < 0 {
		return fmt.Errorf("%w: shots=%d, must be >= 0", ErrInvalidInput, numShots)
	}
	if numDets < 1 || numObs < 1 {
		return fmt.Errorf("%w: %d detectors / %d observables, must be >= 1", ErrInvalidInput, numDets, numObs)
	}

	model, err := dem.FromFile(demPath)
	if err != nil {
		return err
	}
	if model.NumDetectors > numDets || model.NumObservables > numObs {
		return fmt.Errorf("%w: model uses %d detectors / %d observables, caller declared %d / %d",
			ErrInvalidInput, model.NumDetectors, model.NumObservables, numDets, numObs)
	}
	// Widen to the declared shape so untouched trailing detectors still
	// occupy their bit positions in the packed rows.
	model.NumDetectors = numDets
	model.NumObservables = numObs

	compiled, err := d.Compile(model)
	if err != nil {
		return err
	}

	dets, err := os.ReadFile(detsPath)
	if err != nil {
		return fmt.Errorf("read detection events: %w", err)
	}
	if want := numShots * bitpack.RowBytes(numDets); len(dets) != want {
		return fmt.Errorf("%w: %s holds %d bytes, want %d for %d shots of %d detectors",
			ErrInvalidInput, detsPath, len(dets), want, numShots, numDets)
	}

	preds, err := compiled.DecodeBatch(dets)
	if err != nil {
		return err
	}
	if err := os.WriteFile(outPath, preds, 0o644); err != nil {
		return fmt.Errorf("write predictions: %w", err)
	}
	d.log.Infow("decoded shots via files",
		"shots", numShots, "dem", demPath, "dets", detsPath, "out", outPath)
	return nil
}
