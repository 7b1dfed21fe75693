// Package sampling builds the per-sample input matrices of a batch:
// random draws over parameter ranges, full-factorial grids and replicated
// fixed vectors. Sampling is never adaptive; a batch is decided up front.
package sampling
