package sampling

import (
	"fmt"
	"math"

	"github.com/san-kum/odesweep/internal/layout"
)

// Grid returns the full-factorial product of the per-coordinate values as
// a row-major matrix. The last coordinate varies fastest.
func Grid(axes [][]float64) layout.Matrix {
	if len(axes) == 0 {
		return layout.Matrix{}
	}
	rows := 1
	for _, a := range axes {
		rows *= len(a)
	}
	m := layout.NewMatrix(rows, len(axes), layout.RowMajor)
	if rows == 0 {
		return m
	}

	current := make([]float64, len(axes))
	k := 0
	var walk func(depth int)
	walk = func(depth int) {
		if depth == len(axes) {
			copy(m.Data[k*len(axes):], current)
			k++
			return
		}
		for _, v := range axes[depth] {
			current[depth] = v
			walk(depth + 1)
		}
	}
	walk(0)
	return m
}

// Linspace returns n evenly spaced points from lo to hi inclusive.
func Linspace(lo, hi float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{lo}
	}
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	out[n-1] = hi
	return out
}

// Logspace returns n points from lo to hi inclusive, evenly spaced in log.
func Logspace(lo, hi float64, n int) ([]float64, error) {
	if lo <= 0 || hi <= 0 {
		return nil, fmt.Errorf("%w: logspace bounds must be positive, got [%g, %g]", ErrRange, lo, hi)
	}
	exps := Linspace(math.Log(lo), math.Log(hi), n)
	for i, e := range exps {
		exps[i] = math.Exp(e)
	}
	if n > 1 {
		exps[0], exps[n-1] = lo, hi
	}
	return exps, nil
}

// Axes turns ranges into grid axes of points each.
func Axes(ranges []Range, points int, dist Distribution) ([][]float64, error) {
	axes := make([][]float64, len(ranges))
	for i, r := range ranges {
		if err := r.Validate(dist); err != nil {
			return nil, fmt.Errorf("range %d: %w", i, err)
		}
		if dist == LogUniform {
			a, err := Logspace(r.Lower, r.Upper, points)
			if err != nil {
				return nil, err
			}
			axes[i] = a
			continue
		}
		axes[i] = Linspace(r.Lower, r.Upper, points)
	}
	return axes, nil
}
