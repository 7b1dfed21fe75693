// Package layout converts matrices between the caller's storage order and
// the engine's per-sample contiguous convention.
//
// Callers hand in sample matrices with samples as rows. Depending on where
// the data came from, that matrix is stored row-major (Go, C, NumPy
// default) or column-major (MATLAB, Fortran). The engine wants the values
// of one sample next to each other in memory, which is exactly the
// row-major storage of a samples×width matrix.
//
// A column-major R×C matrix has the same memory image as a row-major C×R
// matrix, so [Transpose] doubles as the order converter:
//
//	in := layout.Matrix{Rows: 100, Cols: 3, Order: layout.ColMajor, Data: raw}
//	flat := layout.SampleMajor(in) // sample k is flat[k*3 : k*3+3]
package layout
