package engine

import "fmt"

// Strided views a flat buffer as consecutive rows of equal width. Row k of
// a sample-indexed buffer belongs to sample k alone.
type Strided struct {
	data   []float64
	stride int
}

func NewStrided(data []float64, stride int) Strided {
	if stride < 1 || len(data)%stride != 0 {
		panic(fmt.Sprintf("engine: buffer of %d values is not a multiple of stride %d", len(data), stride))
	}
	return Strided{data: data, stride: stride}
}

func (s Strided) Len() int {
	if s.stride == 0 {
		return 0
	}
	return len(s.data) / s.stride
}

func (s Strided) Stride() int { return s.stride }

// Row returns row k with its capacity clamped, so appending to it can never
// spill into row k+1.
func (s Strided) Row(k int) []float64 {
	if k < 0 || k >= s.Len() {
		panic(fmt.Sprintf("engine: row %d out of range [0,%d)", k, s.Len()))
	}
	lo, hi := k*s.stride, (k+1)*s.stride
	return s.data[lo:hi:hi]
}

// Nil reports whether the view has no backing buffer.
func (s Strided) Nil() bool { return s.data == nil }
