package tui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/tdilauro/dm-utils/pkg/supertree/logging"
	"github.com/tdilauro/dm-utils/pkg/supertree/pipeline"
)

// refreshInterval is how often the view redraws and how often progress
// updates are forwarded to it.
const refreshInterval = 100 * time.Millisecond

// ProgressMsg is sent when the pipeline emits rows.
type ProgressMsg pipeline.Progress

// TotalMsg carries the pre-counted number of entries.
type TotalMsg int64

// DoneMsg ends the view.
type DoneMsg struct {
	Err error
}

type tickMsg time.Time

// ProgressModel is the progress view for one manifest run.
type ProgressModel struct {
	title    string
	output   string
	spinner  spinner.Model
	bar      progress.Model
	recent   *logging.LogBuffer
	progress pipeline.Progress
	total    int64
	warning  string
	start    time.Time
	width    int
	done     bool
	err      error
}

// NewProgressModel creates the view for a manifest written to output.
// Warnings are read from recent, which may be nil.
func NewProgressModel(output string, recent *logging.LogBuffer) ProgressModel {
	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = lipgloss.NewStyle().Foreground(primaryColor)

	return ProgressModel{
		title:   "supertree",
		output:  output,
		spinner: s,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		recent:  recent,
		start:   time.Now(),
		width:   80,
	}
}

// Init starts the spinner and the refresh tick.
func (m ProgressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tick())
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages for the progress model.
func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case ProgressMsg:
		m.progress = pipeline.Progress(msg)
		return m, nil

	case TotalMsg:
		m.total = int64(msg)
		return m, nil

	case DoneMsg:
		m.done = true
		m.err = msg.Err
		return m, tea.Quit

	case tickMsg:
		if m.done {
			return m, nil
		}
		m.refreshWarning()
		return m, tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *ProgressModel) refreshWarning() {
	if m.recent == nil {
		return
	}
	if e, ok := m.recent.Latest(logging.LevelWarn); ok {
		m.warning = formatWarning(e)
	}
}

// formatWarning renders a log record as "message: path" when it carries a
// path field.
func formatWarning(e logging.Entry) string {
	msg := e.Message
	for i := 0; i+1 < len(e.Fields); i += 2 {
		if key, ok := e.Fields[i].(string); ok && key == "path" {
			return fmt.Sprintf("%s: %v", msg, e.Fields[i+1])
		}
	}
	return msg
}

// View renders the progress model. Once done it renders nothing, so the
// summary printed afterwards is the only thing left on the terminal.
func (m ProgressModel) View() string {
	if m.done {
		return ""
	}

	contentWidth := max(m.width-4, 40)

	var b strings.Builder
	b.WriteString(m.renderHeader(contentWidth))
	b.WriteString("\n")
	b.WriteString(renderDivider(contentWidth))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "  %s Hashing: %s\n\n",
		m.spinner.View(),
		pathTextStyle.Render(truncatePath(m.progress.Path, contentWidth-14)))

	b.WriteString(m.renderProgressBar(contentWidth))
	b.WriteString("\n\n")

	b.WriteString(m.renderStats(contentWidth))
	b.WriteString("\n")

	if m.warning != "" {
		b.WriteString(warningTextStyle.Render("  ! " + truncatePath(m.warning, contentWidth-6)))
		b.WriteString("\n")
	}

	return outerBoxStyle.Width(m.width - 2).Render(b.String())
}

func (m ProgressModel) renderHeader(width int) string {
	title := titleStyle.Render("  " + m.title)
	hint := mutedTextStyle.Render("→ " + m.output)

	spacing := max(width-lipgloss.Width(title)-lipgloss.Width(hint), 1)
	return title + strings.Repeat(" ", spacing) + hint
}

// renderProgressBar shows the fraction of counted entries written. Without
// a count it shows the entry count alone.
func (m ProgressModel) renderProgressBar(width int) string {
	if m.total <= 0 {
		return mutedTextStyle.Render(fmt.Sprintf("  %s entries written", humanize.Comma(m.progress.Entries)))
	}

	percent := min(float64(m.progress.Entries)/float64(m.total), 1)
	m.bar.Width = max(width-12, 10)
	return fmt.Sprintf("  %s %3.0f%%", m.bar.ViewAs(percent), percent*100)
}

func (m ProgressModel) renderStats(totalWidth int) string {
	boxWidth := max((totalWidth-8)/3, 10)

	entries := humanize.Comma(m.progress.Entries)
	if m.total > 0 {
		entries += " / " + humanize.Comma(m.total)
	}

	entriesBox := renderStatBox("Entries", entries, boxWidth)
	bytesBox := renderStatBox("Hashed", humanize.IBytes(uint64(max(m.progress.Bytes, 0))), boxWidth)
	elapsedBox := renderStatBox("Time", formatDuration(time.Since(m.start)), boxWidth)

	return lipgloss.JoinHorizontal(lipgloss.Top,
		"  ", entriesBox, " ", bytesBox, " ", elapsedBox)
}

func renderStatBox(label, value string, width int) string {
	content := lipgloss.JoinVertical(lipgloss.Center,
		center(statsLabelStyle.Render(label), width-4),
		center(statsValueStyle.Render(value), width-4))

	return statsBoxStyle.Width(width).Render(content)
}

// formatDuration formats a duration as M:SS.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	m := d / time.Minute
	s := (d % time.Minute) / time.Second
	return fmt.Sprintf("%d:%02d", m, s)
}

// Err returns the error the run ended with.
func (m ProgressModel) Err() error {
	return m.err
}

// Progress runs a ProgressModel on a terminal while the pipeline works.
// Updates are throttled; Update must be called from a single goroutine.
type Progress struct {
	program *tea.Program
	done    chan struct{}
	last    pipeline.Progress
	sent    time.Time
}

// StartProgress starts the view on w. It reads no input and leaves signal
// handling to the caller, so an interrupt reaches the run's context.
func StartProgress(w io.Writer, output string) *Progress {
	model := NewProgressModel(output, logging.Recent())
	p := &Progress{
		program: tea.NewProgram(model,
			tea.WithOutput(w),
			tea.WithInput(nil),
			tea.WithoutSignalHandler(),
		),
		done: make(chan struct{}),
	}

	go func() {
		defer close(p.done)
		if _, err := p.program.Run(); err != nil {
			logging.Get("pipeline").Debug("progress view stopped", "error", err)
		}
	}()
	return p
}

// SetTotal reports the number of entries expected.
func (p *Progress) SetTotal(n int64) {
	p.program.Send(TotalMsg(n))
}

// Update records pipeline progress and forwards it at most once per
// refresh interval.
func (p *Progress) Update(u pipeline.Progress) {
	p.last = u
	if now := time.Now(); now.Sub(p.sent) >= refreshInterval {
		p.sent = now
		p.program.Send(ProgressMsg(u))
	}
}

// Finish clears the view and waits for it to exit.
func (p *Progress) Finish(err error) {
	p.program.Send(ProgressMsg(p.last))
	p.program.Send(DoneMsg{Err: err})
	<-p.done
}
