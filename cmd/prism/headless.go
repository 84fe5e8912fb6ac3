package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/phanxgames/prism"
)

// frameCounter is a FrameSink counting delivered frames per screen.
type frameCounter struct {
	mu     sync.Mutex
	counts map[prism.ScreenID]int
}

func (c *frameCounter) DeliverScreen(id prism.ScreenID, _ *prism.Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = make(map[prism.ScreenID]int)
	}
	c.counts[id]++
}

func (c *frameCounter) count(id prism.ScreenID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[id]
}

// eventLog records engine events for the report.
type eventLog struct {
	mu     sync.Mutex
	counts map[prism.EventKind]int
}

func (l *eventLog) HandleEvent(e prism.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.counts == nil {
		l.counts = make(map[prism.EventKind]int)
	}
	l.counts[e.Kind]++
}

func runHeadless(ctx context.Context, cli *cliConfig, cfg prism.Config) error {
	sink := &frameCounter{}
	events := &eventLog{}
	eng, err := prism.NewEngine(cfg, prism.Options{Sink: sink, Events: events})
	if err != nil {
		return err
	}
	defer eng.Close()
	eng.SetDebugMode(cli.debug)

	if err := buildScene(ctx, eng, cli); err != nil {
		return err
	}

	start := time.Now()
	var tickErrs int
	for i := 0; i < cli.frames; i++ {
		if ctx.Err() != nil {
			break
		}
		if err := eng.Tick(ctx); err != nil {
			tickErrs++
			prism.Logger().WithError(err).Warn("tick failed")
		}
	}
	if err := eng.Flush(ctx); err != nil {
		return err
	}
	elapsed := time.Since(start)

	model := eng.Model()
	var shots []string
	if cli.outDir != "" {
		for _, sc := range model.Outputs.Screens {
			path, err := eng.Screenshot(sc.ID, cli.outDir, sc.Name)
			if err != nil {
				prism.Logger().WithError(err).WithField("screen", sc.ID).Warn("screenshot failed")
				continue
			}
			shots = append(shots, path)
		}
	}

	fmt.Println(renderReport(eng, model, sink, events, elapsed, tickErrs, shots))
	return saveSnapshot(eng, cli.savePath)
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("243")).Width(18)
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	offStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)
)

func row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), valueStyle.Render(value))
}

// renderReport formats the run summary: engine, layers, screens and events.
func renderReport(eng *prism.Engine, model *prism.Model, sink *frameCounter, events *eventLog,
	elapsed time.Duration, tickErrs int, shots []string) string {
	cfg := eng.Config()
	ticks := eng.Ticks()
	fps := 0.0
	if elapsed > 0 {
		fps = float64(ticks) / elapsed.Seconds()
	}

	engine := []string{
		titleStyle.Render("Engine"),
		row("backend", eng.Backend().Name()),
		row("canvas", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height)),
		row("ticks", fmt.Sprintf("%d (%.1f/s)", ticks, fps)),
		row("tempo", fmt.Sprintf("%.1f BPM, beat %.2f", eng.Clock().Tempo, eng.Clock().Beat)),
		row("tick errors", fmt.Sprint(tickErrs)),
	}

	layers := []string{titleStyle.Render("Layers")}
	for _, l := range model.Environment.Layers {
		layers = append(layers, row(l.Name, fmt.Sprintf("%s  opacity %.2f  %s  %d effects",
			l.Playback.State, l.Opacity, l.Blend, len(l.Effects.Instances))))
	}

	screens := []string{titleStyle.Render("Screens")}
	for _, sc := range model.Outputs.Screens {
		state := fmt.Sprintf("%dx%d  %d slices  %d frames", sc.Width, sc.Height, len(sc.Slices), sink.count(sc.ID))
		if !sc.Enabled {
			state = offStyle.Render("disabled")
		}
		screens = append(screens, row(sc.Name, state))
	}

	evs := []string{titleStyle.Render("Events")}
	events.mu.Lock()
	for k := prism.EventClipStarted; k <= prism.EventCommandRejected; k++ {
		evs = append(evs, row(k.String(), fmt.Sprint(events.counts[k])))
	}
	events.mu.Unlock()

	sections := []string{
		boxStyle.Render(strings.Join(engine, "\n")),
		boxStyle.Render(strings.Join(layers, "\n")),
		boxStyle.Render(strings.Join(screens, "\n")),
		boxStyle.Render(strings.Join(evs, "\n")),
	}
	if len(shots) > 0 {
		out := []string{titleStyle.Render("Screenshots")}
		out = append(out, shots...)
		sections = append(sections, boxStyle.Render(strings.Join(out, "\n")))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}
