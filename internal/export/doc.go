// Package export writes batch results to a directory as CSV and JSON and
// reads them back for plotting. It also reads CSV input matrices.
package export
