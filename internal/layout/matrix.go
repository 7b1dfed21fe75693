package layout

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Order is the storage order of a Matrix.
type Order int

const (
	RowMajor Order = iota
	ColMajor
)

func (o Order) String() string {
	switch o {
	case RowMajor:
		return "row-major"
	case ColMajor:
		return "col-major"
	default:
		return fmt.Sprintf("Order(%d)", int(o))
	}
}

var ErrShape = errors.New("layout: data length does not match dimensions")

// Matrix is a dense two-dimensional view over a flat buffer.
type Matrix struct {
	Rows  int
	Cols  int
	Order Order
	Data  []float64
}

// NewMatrix allocates a zeroed rows×cols matrix.
func NewMatrix(rows, cols int, order Order) Matrix {
	return Matrix{Rows: rows, Cols: cols, Order: order, Data: make([]float64, rows*cols)}
}

// FromRows builds a row-major matrix from a slice of equal-length rows.
func FromRows(rows [][]float64) (Matrix, error) {
	if len(rows) == 0 {
		return Matrix{}, nil
	}
	cols := len(rows[0])
	m := NewMatrix(len(rows), cols, RowMajor)
	for r, row := range rows {
		if len(row) != cols {
			return Matrix{}, fmt.Errorf("%w: row %d has %d values, want %d", ErrShape, r, len(row), cols)
		}
		copy(m.Data[r*cols:], row)
	}
	return m, nil
}

func (m Matrix) Validate() error {
	if m.Rows < 0 || m.Cols < 0 {
		return fmt.Errorf("%w: negative dimension %dx%d", ErrShape, m.Rows, m.Cols)
	}
	if len(m.Data) != m.Rows*m.Cols {
		return fmt.Errorf("%w: %dx%d needs %d values, got %d", ErrShape, m.Rows, m.Cols, m.Rows*m.Cols, len(m.Data))
	}
	return nil
}

func (m Matrix) index(r, c int) int {
	if r < 0 || r >= m.Rows || c < 0 || c >= m.Cols {
		panic(fmt.Sprintf("layout: index (%d,%d) out of range for %dx%d", r, c, m.Rows, m.Cols))
	}
	if m.Order == ColMajor {
		return c*m.Rows + r
	}
	return r*m.Cols + c
}

func (m Matrix) At(r, c int) float64 { return m.Data[m.index(r, c)] }

func (m Matrix) Set(r, c int, v float64) { m.Data[m.index(r, c)] = v }

// Row copies row r into a new slice regardless of storage order.
func (m Matrix) Row(r int) []float64 {
	out := make([]float64, m.Cols)
	for c := range out {
		out[c] = m.At(r, c)
	}
	return out
}

// Transpose returns a new matrix with swapped dimensions such that
// dst.At(r, c) == src.At(c, r). The storage order is preserved and the
// result never aliases src.
func Transpose(src Matrix) Matrix {
	dst := Matrix{Rows: src.Cols, Cols: src.Rows, Order: src.Order}
	if src.Rows == 0 || src.Cols == 0 {
		dst.Data = []float64{}
		return dst
	}

	// Interpret the buffer as row-major so gonum can walk it.
	r, c := src.Rows, src.Cols
	if src.Order == ColMajor {
		r, c = c, r
	}
	view := mat.NewDense(r, c, src.Data)
	out := mat.NewDense(c, r, nil)
	out.Copy(view.T())

	dst.Data = out.RawMatrix().Data
	return dst
}

// SampleMajor returns a flat buffer holding row k of m at
// [k*m.Cols, (k+1)*m.Cols). Row-major input is copied, column-major input is
// transposed.
func SampleMajor(m Matrix) []float64 {
	if m.Order == RowMajor {
		out := make([]float64, len(m.Data))
		copy(out, m.Data)
		return out
	}
	// Transposing a col-major R×C matrix yields a col-major C×R matrix whose
	// memory image is the row-major R×C matrix.
	return Transpose(m).Data
}

// FromSampleMajor wraps a per-sample contiguous buffer (samples×width,
// row-major) into a matrix stored in the requested order.
func FromSampleMajor(data []float64, samples, width int, order Order) Matrix {
	rm := Matrix{Rows: samples, Cols: width, Order: RowMajor, Data: data}
	if order == RowMajor {
		out := make([]float64, len(data))
		copy(out, data)
		rm.Data = out
		return rm
	}
	t := Transpose(rm)
	return Matrix{Rows: samples, Cols: width, Order: ColMajor, Data: t.Data}
}
