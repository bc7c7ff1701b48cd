package decoder

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qeclabs/surface-decoder/pkg/bitpack"
	"github.com/qeclabs/surface-decoder/pkg/dem"
	"github.com/qeclabs/surface-decoder/pkg/matching"
	"github.com/qeclabs/surface-decoder/pkg/matching/matchingtest"
)

func testModel(numDets, numObs int) *dem.Model {
	return &dem.Model{NumDetectors: numDets, NumObservables: numObs}
}

// parityMatcher predicts the parity of the whole detection vector. It is
// stateless, so results are independent of decode order.
type parityMatcher struct{}

func (parityMatcher) Decode(syndrome []uint8) ([]uint8, error) {
	var p uint8
	for _, b := range syndrome {
		p ^= b & 1
	}
	return []uint8{p}, nil
}

func TestNew(t *testing.T) {
	t.Parallel()

	compiler := &matchingtest.Compiler{Matcher: &matchingtest.Fake{}}

	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{name: "valid", cfg: Config{WindowSize: 2, Overlap: 1}},
		{name: "zero window", cfg: Config{WindowSize: 0}, wantErr: ErrInvalidConfig},
		{name: "negative overlap", cfg: Config{WindowSize: 2, Overlap: -1}, wantErr: ErrInvalidConfig},
		{name: "overlap not below window", cfg: Config{WindowSize: 2, Overlap: 2}, wantErr: ErrInvalidConfig},
		{name: "negative rounds", cfg: Config{WindowSize: 2, Rounds: -1}, wantErr: ErrInvalidConfig},
		{name: "negative workers", cfg: Config{WindowSize: 2, Workers: -1}, wantErr: ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := New(nil, compiler, tt.cfg)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}

	t.Run("nil compiler", func(t *testing.T) {
		t.Parallel()

		_, err := New(nil, nil, Config{WindowSize: 2})
		require.Error(t, err)
	})
}

func TestCompile(t *testing.T) {
	t.Parallel()

	compiler := &matchingtest.Compiler{Matcher: &matchingtest.Fake{}}

	t.Run("explicit rounds", func(t *testing.T) {
		t.Parallel()

		d, err := New(nil, compiler, Config{WindowSize: 2, Overlap: 1, Rounds: 6})
		require.NoError(t, err)
		c, err := d.Compile(testModel(12, 1))
		require.NoError(t, err)
		assert.Equal(t, Geometry{Rounds: 6, DetectorsPerRound: 2, WindowSize: 2, Overlap: 1}, c.Geometry())
		assert.Len(t, c.Plan(), 3)
	})

	t.Run("rounds do not divide detectors", func(t *testing.T) {
		t.Parallel()

		d, err := New(nil, compiler, Config{WindowSize: 2, Rounds: 5})
		require.NoError(t, err)
		_, err = d.Compile(testModel(12, 1))
		require.ErrorIs(t, err, ErrShapeMismatch)
	})

	t.Run("inferred rounds", func(t *testing.T) {
		t.Parallel()

		d, err := New(nil, compiler, Config{WindowSize: 2})
		require.NoError(t, err)
		c, err := d.Compile(testModel(24, 1))
		require.NoError(t, err)
		assert.Equal(t, 3, c.Geometry().Rounds)
		assert.Equal(t, 8, c.Geometry().DetectorsPerRound)
	})

	t.Run("inference failure", func(t *testing.T) {
		t.Parallel()

		d, err := New(nil, compiler, Config{WindowSize: 2})
		require.NoError(t, err)
		_, err = d.Compile(testModel(2, 1))
		require.ErrorIs(t, err, ErrInferenceFailed)
	})

	t.Run("compiler error propagates", func(t *testing.T) {
		t.Parallel()

		d, err := New(nil, &matchingtest.Compiler{Err: matching.ErrNotGraphlike}, Config{WindowSize: 2, Rounds: 6})
		require.NoError(t, err)
		_, err = d.Compile(testModel(12, 1))
		require.ErrorIs(t, err, matching.ErrNotGraphlike)
	})

	t.Run("nil model", func(t *testing.T) {
		t.Parallel()

		d, err := New(nil, compiler, Config{WindowSize: 2, Rounds: 6})
		require.NoError(t, err)
		_, err = d.Compile(nil)
		require.Error(t, err)
	})
}

// The matcher must receive full-length vectors that are zero outside each
// decode window and copies of the input inside it.
func TestDecodeBatchWindowContents(t *testing.T) {
	t.Parallel()

	fake := &matchingtest.Fake{Script: [][]uint8{{0}, {1}, {1}}}
	d, err := New(nil, &matchingtest.Compiler{Matcher: fake}, Config{WindowSize: 2, Overlap: 1, Rounds: 6})
	require.NoError(t, err)
	c, err := d.Compile(testModel(12, 1))
	require.NoError(t, err)

	// Detector 0 fires in round 0, detector 7 in round 3.
	dets := []byte{0x81, 0x00}
	out, err := c.DecodeBatch(dets)
	require.NoError(t, err)

	// Decode windows cover rounds [0,3), [1,5), [3,6): detector index
	// ranges [0,6), [2,10), [6,12).
	want := [][]uint8{
		{1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
		{0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0},
		{0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0},
	}
	assert.Equal(t, want, fake.Syndromes)

	// 0 XOR 1 XOR 1 = 0.
	assert.Equal(t, []byte{0x00}, out)
}

func TestDecodeBatchAccumulatesByParity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		script [][]uint8
		want   byte
	}{
		{name: "odd flips cancel", script: [][]uint8{{1}, {0}, {1}}, want: 0x00},
		{name: "odd count survives", script: [][]uint8{{1}, {1}, {1}}, want: 0x01},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fake := &matchingtest.Fake{Script: tt.script}
			d, err := New(nil, &matchingtest.Compiler{Matcher: fake}, Config{WindowSize: 2, Rounds: 6})
			require.NoError(t, err)
			c, err := d.Compile(testModel(12, 1))
			require.NoError(t, err)

			out, err := c.DecodeBatch(make([]byte, 2))
			require.NoError(t, err)
			assert.Equal(t, []byte{tt.want}, out)
			assert.Equal(t, 3, fake.Calls())
		})
	}
}

func TestDecodeBatchMultiObservable(t *testing.T) {
	t.Parallel()

	fake := &matchingtest.Fake{Script: [][]uint8{{1, 0, 1}, {0, 1, 1}}}
	d, err := New(nil, &matchingtest.Compiler{Matcher: fake}, Config{WindowSize: 3, Rounds: 6})
	require.NoError(t, err)
	c, err := d.Compile(testModel(12, 3))
	require.NoError(t, err)

	out, err := c.DecodeBatch(make([]byte, 2))
	require.NoError(t, err)
	// Per-observable XOR: {1^0, 0^1, 1^1} packed LSB first.
	assert.Equal(t, []byte{0x03}, out)
}

func TestDecodeBatchInvalidLength(t *testing.T) {
	t.Parallel()

	d, err := New(nil, &matchingtest.Compiler{Matcher: &matchingtest.Fake{}}, Config{WindowSize: 2, Rounds: 6})
	require.NoError(t, err)
	c, err := d.Compile(testModel(12, 1))
	require.NoError(t, err)

	_, err = c.DecodeBatch(make([]byte, 3)) // rows are 2 bytes
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestDecodeBatchMatcherErrorAborts(t *testing.T) {
	t.Parallel()

	d, err := New(nil, &matchingtest.Compiler{Matcher: &matchingtest.Fake{}}, Config{WindowSize: 2, Rounds: 6})
	require.NoError(t, err)
	c, err := d.Compile(testModel(12, 1))
	require.NoError(t, err)

	out, err := c.DecodeBatch(make([]byte, 2))
	require.ErrorIs(t, err, matchingtest.ErrScriptExhausted)
	assert.Nil(t, out)
}

// A window covering the whole timeline must reproduce a plain unwindowed
// decode bit for bit.
func TestSingleWindowMatchesDirectDecode(t *testing.T) {
	t.Parallel()

	// Repetition chain over four rounds, one detector per round, with a
	// logical boundary on the left.
	model := &dem.Model{
		NumDetectors:   4,
		NumObservables: 1,
		Mechanisms: []dem.Mechanism{
			{Probability: 0.1, Detectors: []int{0}, Observables: []int{0}},
			{Probability: 0.1, Detectors: []int{0, 1}},
			{Probability: 0.1, Detectors: []int{1, 2}},
			{Probability: 0.1, Detectors: []int{2, 3}},
			{Probability: 0.1, Detectors: []int{3}},
		},
	}

	compiler := matching.NewPathCompiler(nil)
	direct, err := compiler.Compile(model)
	require.NoError(t, err)

	d, err := New(nil, compiler, Config{WindowSize: 10, Overlap: 2, Rounds: 4})
	require.NoError(t, err)
	c, err := d.Compile(model)
	require.NoError(t, err)
	require.Len(t, c.Plan(), 1)

	for pattern := 0; pattern < 16; pattern++ {
		got, err := c.DecodeBatch([]byte{byte(pattern)})
		require.NoError(t, err)

		syndrome, err := bitpack.UnpackRow([]byte{byte(pattern)}, 4)
		require.NoError(t, err)
		want, err := direct.Decode(syndrome)
		require.NoError(t, err)
		assert.Equal(t, bitpack.PackRow(want), got, "pattern %04b", pattern)
	}
}

// XOR accumulation commutes, so with a stateless matcher the per-shot result
// must not depend on the order the windows are decoded in.
func TestDecodeBatchWindowOrderIndependent(t *testing.T) {
	t.Parallel()

	const numDets = 24
	rowBytes := bitpack.RowBytes(numDets)
	rng := rand.New(rand.NewSource(11))
	dets := make([]byte, 40*rowBytes)
	for i := range dets {
		dets[i] = byte(rng.Intn(256))
	}

	model := testModel(numDets, 1)
	cfg := Config{WindowSize: 3, Overlap: 1, Rounds: 8}

	compile := func() *Compiled {
		d, err := New(nil, &matchingtest.Compiler{Matcher: parityMatcher{}}, cfg)
		require.NoError(t, err)
		c, err := d.Compile(model)
		require.NoError(t, err)
		return c
	}

	ordered := compile()
	want, err := ordered.DecodeBatch(dets)
	require.NoError(t, err)

	reversed := compile()
	for i, j := 0, len(reversed.plan)-1; i < j; i, j = i+1, j-1 {
		reversed.plan[i], reversed.plan[j] = reversed.plan[j], reversed.plan[i]
	}
	got, err := reversed.DecodeBatch(dets)
	require.NoError(t, err)
	assert.Equal(t, want, got, "reversed window order")

	shuffled := compile()
	rng.Shuffle(len(shuffled.plan), func(i, j int) {
		shuffled.plan[i], shuffled.plan[j] = shuffled.plan[j], shuffled.plan[i]
	})
	got, err = shuffled.DecodeBatch(dets)
	require.NoError(t, err)
	assert.Equal(t, want, got, "shuffled window order")
}

func TestDecodeBatchWorkersMatchSerial(t *testing.T) {
	t.Parallel()

	const numDets = 24
	rowBytes := bitpack.RowBytes(numDets)
	rng := rand.New(rand.NewSource(7))
	dets := make([]byte, 50*rowBytes)
	for i := range dets {
		dets[i] = byte(rng.Intn(256))
	}

	model := testModel(numDets, 1)
	cfg := Config{WindowSize: 3, Overlap: 1, Rounds: 8}

	serial, err := New(nil, &matchingtest.Compiler{Matcher: parityMatcher{}}, cfg)
	require.NoError(t, err)
	sc, err := serial.Compile(model)
	require.NoError(t, err)
	wantOut, err := sc.DecodeBatch(dets)
	require.NoError(t, err)

	cfg.Workers = 4
	parallel, err := New(nil, &matchingtest.Compiler{Matcher: parityMatcher{}}, cfg)
	require.NoError(t, err)
	pc, err := parallel.Compile(model)
	require.NoError(t, err)
	gotOut, err := pc.DecodeBatch(dets)
	require.NoError(t, err)

	assert.Equal(t, wantOut, gotOut)
}
