package tui

import (
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/trainlab/internal/event"
)

var (
	cyan    = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	white   = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	dim     = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	dimmer  = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	green   = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	yellow  = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	magenta = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))
	red     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

type eventMsg struct{ e event.Event }

type doneMsg struct{}

// model is the live training monitor. It consumes the run's event
// stream and redraws on every event; it never drives the run itself.
type model struct {
	events <-chan event.Event

	name      string
	numEpochs int
	epoch     int
	lr        float64

	source     string
	batch      int
	numBatches int
	lastLoss   float64
	hasLoss    bool

	metrics map[string]float64
	history []float64

	warnings    []string
	divergences []string

	finished   bool
	terminated bool

	width  int
	height int
}

func NewLiveMonitor(events <-chan event.Event) *model {
	return &model{
		events:  events,
		metrics: make(map[string]float64),
		history: make([]float64, 0, 64),
		width:   80,
		height:  24,
	}
}

func (m model) Init() tea.Cmd { return waitForEvent(m.events) }

func waitForEvent(events <-chan event.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-events
		if !ok {
			return doneMsg{}
		}
		return eventMsg{e}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "escape":
			return m, tea.Quit
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case doneMsg:
		m.finished = true
		return m, nil
	case eventMsg:
		m.apply(msg.e)
		return m, waitForEvent(m.events)
	}
	return m, nil
}

func (m *model) apply(e event.Event) {
	switch e := e.(type) {
	case event.TrainingStart:
		m.name = e.Model
		m.numEpochs = e.NumEpochs
		m.finished = false
	case event.EpochStart:
		m.epoch = e.Epoch
		m.lr = e.LR
	case event.BatchProgress:
		m.source = e.Source
		m.batch = e.Batch
		m.numBatches = e.NumBatches
		if loss, ok := e.Feedback["Loss"]; ok {
			m.lastLoss = loss
			m.hasLoss = true
		}
	case event.Metrics:
		for name, value := range e.Values {
			m.metrics[e.Source+"/"+name] = value
		}
		if e.Source == "train" {
			if loss, ok := e.Values["Criterion"]; ok {
				m.history = append(m.history, loss)
				if len(m.history) > 64 {
					m.history = m.history[1:]
				}
			}
		}
	case event.Divergence:
		m.divergences = append(m.divergences,
			fmt.Sprintf("epoch %d batch %d: criterion %v", e.Epoch, e.Batch, e.Value))
	case event.Warning:
		m.warnings = append(m.warnings, e.Message)
		if len(m.warnings) > 5 {
			m.warnings = m.warnings[1:]
		}
	case event.Terminated:
		m.terminated = true
	case event.TrainingEnd:
		m.epoch = e.Epoch
		m.finished = true
	}
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(dimmer.Render("    ╺━━━━━━━━━━━━━━━━━━━━━━━━╸") + "\n")
	b.WriteString("         " + cyan.Render("t r a i n l a b") + "\n")
	b.WriteString(dimmer.Render("    ╺━━━━━━━━━━━━━━━━━━━━━━━━╸") + "\n\n")

	statusIcon := green.Render("●")
	statusText := green.Render("training")
	switch {
	case m.terminated:
		statusIcon = red.Render("○")
		statusText = red.Render("terminated")
	case m.finished:
		statusIcon = yellow.Render("○")
		statusText = yellow.Render("finished")
	}
	name := m.name
	if name == "" {
		name = "waiting for run"
	}
	b.WriteString(fmt.Sprintf("   %s %s  %s\n\n", statusIcon, cyan.Render(name), statusText))

	if m.numEpochs > 0 {
		progress := float64(m.epoch) / float64(m.numEpochs)
		if progress > 1 {
			progress = 1
		}
		barWidth := 36
		filled := int(progress * float64(barWidth))
		bar := cyan.Render(strings.Repeat("━", filled)) + dimmer.Render(strings.Repeat("─", barWidth-filled))
		b.WriteString(fmt.Sprintf("   %s %s  %s\n",
			bar,
			dim.Render(fmt.Sprintf("epoch %d/%d", m.epoch, m.numEpochs)),
			dim.Render(fmt.Sprintf("lr %.2e", m.lr))))
	}

	if m.numBatches > 0 && !m.finished {
		line := fmt.Sprintf("   %s batch %d/%d", m.source, m.batch, m.numBatches)
		if m.hasLoss {
			line += "  loss " + magenta.Render(fmt.Sprintf("%.4f", m.lastLoss))
		}
		b.WriteString(dim.Render(line) + "\n")
	}
	b.WriteString("\n")

	if len(m.metrics) > 0 {
		keys := make([]string, 0, len(m.metrics))
		for k := range m.metrics {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteString("   " + dim.Render(fmt.Sprintf("%-20s", k)) +
				white.Render(fmt.Sprintf("%12.6f", m.metrics[k])) + "\n")
		}
		b.WriteString("\n")
	}

	if len(m.history) > 1 {
		b.WriteString(fmt.Sprintf("   %s %s\n\n",
			dim.Render("loss"), cyan.Render(sparkline(m.history, 40))))
	}

	for _, d := range m.divergences {
		b.WriteString("   " + red.Render("✗ diverged "+d) + "\n")
	}
	for _, w := range m.warnings {
		b.WriteString("   " + yellow.Render("! "+w) + "\n")
	}

	b.WriteString("\n" + dim.Render("   q quit") + "\n")
	return b.String()
}

func sparkline(data []float64, width int) string {
	if len(data) == 0 {
		return ""
	}
	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}
	minVal, maxVal := data[0], data[0]
	for _, v := range data {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	rang := maxVal - minVal
	if rang == 0 {
		rang = 1
	}
	step := len(data) / width
	if step < 1 {
		step = 1
	}
	var sb strings.Builder
	for i := 0; i < width && i*step < len(data); i++ {
		v := data[i*step]
		idx := int((v - minVal) / rang * 7)
		if idx > 7 {
			idx = 7
		}
		if idx < 0 {
			idx = 0
		}
		sb.WriteRune(chars[idx])
	}
	return sb.String()
}

// RunLive drives the monitor until the event channel closes and the
// user quits.
func RunLive(events <-chan event.Event) error {
	p := tea.NewProgram(NewLiveMonitor(events), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
