// Package decoder implements sliding-window decoding of long syndrome
// histories. A shot's detection events span many measurement rounds; rather
// than matching the whole history at once, the decoder partitions the round
// axis into consecutive record windows and hands each one to the matching
// oracle with extra context rounds on both sides.
//
// Terminology
//   - Record window: the round range whose correction is kept. Record
//     windows partition [0, rounds) exactly: consecutive, non-overlapping,
//     in increasing order.
//   - Decode window: the larger range actually decoded, padded by the
//     overlap on each side and clamped to the timeline. The padding gives
//     the matcher context at the window edges, which makes the recorded
//     center more reliable.
//
// For every window the oracle receives a full-length detection vector that
// is zero outside the decode window, so it can exploit its complete graph
// topology. Window predictions compose by XOR (Pauli corrections commute
// and square to identity), so the order in which windows are combined never
// affects the result, and a window size covering the whole timeline
// reproduces plain unwindowed decoding exactly.
//
// Workflow
//  1. Construct a Decoder with the window configuration and a
//     matching.Compiler.
//  2. Compile it for a detector error model; this resolves the round count
//     (explicit or inferred from the detector count), validates the shape,
//     and fixes the window plan.
//  3. DecodeBatch bit-packed detection events into bit-packed observable
//     predictions, or use DecodeViaFiles for the on-disk convention.
package decoder
