package decoder

import "errors"

var (
	// ErrInvalidConfig indicates an unusable window configuration:
	// window size < 1, negative overlap, or overlap >= window size
	// (which would leave record windows empty).
	ErrInvalidConfig = errors.New("decoder: invalid window configuration")

	// ErrShapeMismatch indicates a detector count that is not evenly
	// divisible by the resolved round count.
	ErrShapeMismatch = errors.New("decoder: detector count not divisible by round count")

	// ErrInferenceFailed indicates that no candidate round count divides
	// the model's detector count; callers must supply the round count
	// explicitly.
	ErrInferenceFailed = errors.New("decoder: could not infer round count from detector count")

	// ErrInvalidInput indicates a detection-event buffer whose length
	// disagrees with the compiled shot row size.
	ErrInvalidInput = errors.New("decoder: detection event buffer has invalid length")
)
