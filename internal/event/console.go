package event

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
)

var (
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	epochStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	valueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	graphCaption = lipgloss.NewStyle().Foreground(lipgloss.Color("49"))
)

// Console renders events as styled terminal lines and, at the end of a
// training session, plots the per-epoch criterion curve.
type Console struct {
	out          io.Writer
	showProgress bool
	curve        []float64
}

func NewConsole(out io.Writer, showProgress bool) *Console {
	return &Console{out: out, showProgress: showProgress}
}

func (c *Console) Publish(e Event) {
	switch ev := e.(type) {
	case TrainingStart:
		fmt.Fprintln(c.out, headerStyle.Render(
			fmt.Sprintf("training %s for %d epochs", ev.Model, ev.NumEpochs)))

	case EpochStart:
		fmt.Fprintln(c.out, epochStyle.Render(
			fmt.Sprintf("====> epoch %4d", ev.Epoch))+
			labelStyle.Render(fmt.Sprintf("  lr=%.3e", ev.LR)))

	case BatchProgress:
		if !c.showProgress {
			return
		}
		line := fmt.Sprintf("  [%s] batch %d/%d",
			ev.Source, ev.Batch, ev.NumBatches)
		for _, key := range sortedKeys(ev.Feedback) {
			line += fmt.Sprintf("  %s=%.4f", key, ev.Feedback[key])
		}
		end := "\r"
		if ev.Batch == ev.NumBatches {
			end = "\n"
		}
		fmt.Fprint(c.out, labelStyle.Render(line)+end)

	case Metrics:
		parts := make([]string, 0, len(ev.Values))
		for _, key := range sortedKeys(ev.Values) {
			parts = append(parts, fmt.Sprintf("%s: %.4e", key, ev.Values[key]))
		}
		fmt.Fprintln(c.out, labelStyle.Render(
			fmt.Sprintf("average %s metric(s): ", ev.Source))+
			valueStyle.Render(strings.Join(parts, "  ")))
		if criterion, ok := ev.Values["Criterion"]; ok && ev.Source == "train" {
			c.curve = append(c.curve, criterion)
		}

	case EvalStart:
		fmt.Fprintln(c.out, headerStyle.Render(
			fmt.Sprintf("evaluating %s on %s", ev.Model, ev.Source)))

	case EvalEnd:
		fmt.Fprintln(c.out, labelStyle.Render(
			fmt.Sprintf("finished %s evaluation", ev.Source)))

	case Divergence:
		fmt.Fprintln(c.out, errorStyle.Render(
			fmt.Sprintf("diverged at epoch %d batch %d (criterion=%v); epoch aborted",
				ev.Epoch, ev.Batch, ev.Value)))

	case Warning:
		fmt.Fprintln(c.out, warnStyle.Render(
			fmt.Sprintf("warning [%s]: %s", ev.Source, ev.Message)))

	case Terminated:
		fmt.Fprintln(c.out, labelStyle.Render(
			fmt.Sprintf("released binding for %s", ev.Model)))

	case TrainingEnd:
		fmt.Fprintln(c.out, headerStyle.Render(
			fmt.Sprintf("end of training %s (epoch %d)", ev.Model, ev.Epoch)))
		if len(c.curve) > 1 {
			graph := asciigraph.Plot(c.curve,
				asciigraph.Height(8),
				asciigraph.Width(60),
				asciigraph.Caption("criterion per epoch"),
			)
			fmt.Fprintln(c.out, graphCaption.Render(graph))
		}
	}
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
