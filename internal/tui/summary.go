package tui

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/san-kum/odesweep/internal/engine"
	"github.com/san-kum/odesweep/internal/solver"
)

const maxFailuresShown = 3

// Summary renders a one-screen report of a finished batch: status counts,
// throughput and the spread of each species' steady state over the
// successful samples.
func Summary(model string, species []string, res *engine.Result) string {
	var b strings.Builder

	b.WriteString(cyan.Render(model) + "  " + dim.Render(fmt.Sprintf("%d samples × %d timepoints", res.Samples, res.TimePoints)) + "\n")
	b.WriteString(dimmer.Render(strings.Repeat("─", 44)) + "\n")

	counts := make(map[solver.Flag]int)
	for _, f := range res.Status {
		counts[f]++
	}
	flags := make([]solver.Flag, 0, len(counts))
	for f := range counts {
		flags = append(flags, f)
	}
	sort.Slice(flags, func(i, j int) bool { return flags[i] > flags[j] })
	for _, f := range flags {
		style := red
		switch {
		case f == solver.Success:
			style = green
		case f == solver.Canceled:
			style = yellow
		}
		b.WriteString(fmt.Sprintf("  %s %s\n", dim.Render(fmt.Sprintf("%-18s", f)), style.Render(fmt.Sprintf("%d", counts[f]))))
	}

	retries := 0
	for _, a := range res.Attempts {
		if a > 1 {
			retries += a - 1
		}
	}
	b.WriteString(fmt.Sprintf("  %s %s\n", dim.Render(fmt.Sprintf("%-18s", "retries")), white.Render(fmt.Sprintf("%d", retries))))

	shown := 0
	for _, k := range res.Failed() {
		err := res.Err(k)
		if err == nil {
			continue
		}
		if shown == maxFailuresShown {
			b.WriteString("  " + dimmer.Render("…") + "\n")
			break
		}
		b.WriteString(fmt.Sprintf("  %s %s\n", dim.Render(fmt.Sprintf("%-18s", fmt.Sprintf("sample %d", k))), red.Render(err.Error())))
		shown++
	}

	rate := 0.0
	if s := res.Elapsed.Seconds(); s > 0 {
		rate = float64(res.Samples) / s
	}
	b.WriteString(fmt.Sprintf("  %s %s\n", dim.Render(fmt.Sprintf("%-18s", "elapsed")),
		white.Render(fmt.Sprintf("%v  (%.0f samples/s)", res.Elapsed.Round(1e6), rate))))
	if res.Seed != 0 {
		b.WriteString(fmt.Sprintf("  %s %s\n", dim.Render(fmt.Sprintf("%-18s", "noise seed")), magenta.Render(fmt.Sprintf("%d", res.Seed))))
	}

	ok := make([]int, 0, res.Samples)
	for k, f := range res.Status {
		if f == solver.Success {
			ok = append(ok, k)
		}
	}
	if len(ok) > 0 {
		b.WriteString("\n" + dim.Render("  steady state         mean        min        max") + "\n")
		values := make([]float64, len(ok))
		for j := 0; j < res.Species && j < len(species); j++ {
			sum, lo, hi := 0.0, math.Inf(1), math.Inf(-1)
			for i, k := range ok {
				v := res.SteadyState(k)[j]
				values[i] = v
				sum += v
				lo = math.Min(lo, v)
				hi = math.Max(hi, v)
			}
			b.WriteString(fmt.Sprintf("  %-10s %s %s\n",
				white.Render(species[j]),
				cyan.Render(fmt.Sprintf("%10.4g %10.4g %10.4g", sum/float64(len(ok)), lo, hi)),
				dim.Render(sparkline(histogram(values, 16), 16))))
		}
	}

	return panel.Render(strings.TrimRight(b.String(), "\n"))
}
