package tui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/odesweep/internal/engine"
	"github.com/san-kum/odesweep/internal/solver"
)

func TestProgressCounts(t *testing.T) {
	var m tea.Model = NewProgress("conversion", 4)

	m, _ = m.Update(sampleMsg(engine.SampleReport{Status: solver.Success, Attempts: 1, Elapsed: time.Millisecond}))
	m, _ = m.Update(sampleMsg(engine.SampleReport{Status: solver.TooMuchWork, Attempts: 3, Elapsed: 2 * time.Millisecond}))
	m, _ = m.Update(sampleMsg(engine.SampleReport{Status: solver.Success, Attempts: 2}))

	p := m.(Progress)
	assert.Equal(t, 3, p.done)
	assert.Equal(t, 1, p.failed)
	assert.Equal(t, 3, p.retries)
	assert.Contains(t, p.View(), "3/4")

	m, cmd := m.Update(doneMsg{})
	require.NotNil(t, cmd)
	assert.True(t, m.(Progress).finished)
}

func TestProgressQuit(t *testing.T) {
	m, cmd := NewProgress("conversion", 1).Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.True(t, m.(Progress).quit)
}

func TestSummary(t *testing.T) {
	res := &engine.Result{
		Samples:      3,
		Species:      2,
		TimePoints:   3,
		SteadyStates: []float64{0.1, 0.9, 0.2, 0.8, 1, 0},
		Status:       []solver.Flag{solver.Success, solver.Success, solver.ConvFailure},
		Attempts:     []int{1, 2, 3},
		Errors:       []error{nil, nil, solver.AsError(solver.ConvFailure, 1.5)},
		Elapsed:      time.Second,
	}
	out := Summary("conversion", []string{"A", "B"}, res)
	for _, want := range []string{"conversion", "success", "conv_failure", "retries", "A", "B"} {
		assert.Contains(t, out, want)
	}
	assert.Contains(t, out, "sample 2")
	assert.Contains(t, out, "conv_failure at t=1.5")
}

func TestSparklineAndHistogram(t *testing.T) {
	assert.Equal(t, "", sparkline(nil, 10))
	assert.Equal(t, "▁█", sparkline([]float64{0, 1}, 10))
	assert.Equal(t, []float64{2, 0, 1}, histogram([]float64{0, 0.1, 3}, 3))
	assert.Equal(t, []float64{3, 0}, histogram([]float64{5, 5, 5}, 2))
}
