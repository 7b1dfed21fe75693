package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/odesweep/internal/engine"
	"github.com/san-kum/odesweep/internal/solver"
)

type sampleMsg engine.SampleReport

type doneMsg struct{ err error }

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Progress is the live view of a running batch.
type Progress struct {
	model     string
	total     int
	done      int
	failed    int
	retries   int
	durations []float64
	start     time.Time
	now       time.Time
	finished  bool
	quit      bool
	err       error
	width     int
}

func NewProgress(model string, total int) Progress {
	now := time.Now()
	return Progress{
		model:     model,
		total:     total,
		durations: make([]float64, 0, 64),
		start:     now,
		now:       now,
		width:     80,
	}
}

func (m Progress) Init() tea.Cmd { return tick() }

func (m Progress) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quit = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case sampleMsg:
		m.done++
		if msg.Status != solver.Success {
			m.failed++
		}
		if msg.Attempts > 1 {
			m.retries += msg.Attempts - 1
		}
		m.durations = append(m.durations, msg.Elapsed.Seconds())
		if len(m.durations) > 256 {
			m.durations = m.durations[len(m.durations)-256:]
		}
	case doneMsg:
		m.finished = true
		m.err = msg.err
		return m, tea.Quit
	case tickMsg:
		m.now = time.Time(msg)
		if !m.finished {
			return m, tick()
		}
	}
	return m, nil
}

func (m Progress) View() string {
	var b strings.Builder

	b.WriteString("\n  " + cyan.Render("o d e s w e e p") + "  " + dim.Render(m.model) + "\n\n")

	frac := 0.0
	if m.total > 0 {
		frac = float64(m.done) / float64(m.total)
	}
	w := m.width - 30
	if w < 20 {
		w = 20
	}
	if w > 60 {
		w = 60
	}
	b.WriteString(fmt.Sprintf("  %s %s\n", bar(frac, w), white.Render(fmt.Sprintf("%d/%d", m.done, m.total))))

	elapsed := m.now.Sub(m.start)
	rate := 0.0
	if s := elapsed.Seconds(); s > 0 {
		rate = float64(m.done) / s
	}
	failed := green.Render("0")
	if m.failed > 0 {
		failed = red.Render(fmt.Sprintf("%d", m.failed))
	}
	b.WriteString(fmt.Sprintf("\n  %s %s   %s %s   %s %s\n",
		dim.Render("failed"), failed,
		dim.Render("retries"), yellow.Render(fmt.Sprintf("%d", m.retries)),
		dim.Render("rate"), white.Render(fmt.Sprintf("%.0f/s", rate))))

	if len(m.durations) > 1 {
		b.WriteString(fmt.Sprintf("  %s %s\n", dim.Render("sample time"), cyan.Render(sparkline(m.durations, 40))))
	}

	b.WriteString("\n" + dim.Render("  q cancel") + "\n")
	return b.String()
}

// Live drives a Progress program from engine callbacks. It implements
// engine.Observer.
type Live struct {
	program *tea.Program
}

func NewLive(model string, total int, opts ...tea.ProgramOption) *Live {
	return &Live{program: tea.NewProgram(NewProgress(model, total), opts...)}
}

func (l *Live) OnSampleDone(r engine.SampleReport) {
	l.program.Send(sampleMsg(r))
}

// Run shows the view while work runs. Quitting the view calls cancel; Run
// still waits for work to return and reports its error.
func (l *Live) Run(cancel context.CancelFunc, work func() error) error {
	errc := make(chan error, 1)
	go func() {
		err := work()
		errc <- err
		l.program.Send(doneMsg{err: err})
	}()

	final, err := l.program.Run()
	if p, ok := final.(Progress); ok && p.quit {
		cancel()
	}
	if err != nil {
		cancel()
	}
	return <-errc
}
