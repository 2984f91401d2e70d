package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// UI provides user-friendly output utilities.
type UI struct {
	out      io.Writer
	errOut   io.Writer
	progress *mpb.Progress
	noColor  bool
	jsonMode bool
	terminal bool
}

// NewUI creates a UI writing to stdout and stderr.
func NewUI(jsonMode, noColor bool) *UI {
	return newUI(os.Stdout, os.Stderr, jsonMode, noColor, IsTerminal())
}

func newUI(out, errOut io.Writer, jsonMode, noColor, terminal bool) *UI {
	if noColor {
		color.NoColor = true
	}
	return &UI{
		out:      out,
		errOut:   errOut,
		noColor:  noColor,
		jsonMode: jsonMode,
		terminal: terminal,
	}
}

// Close waits for any progress bars to render. Bars added afterwards go to a
// new container.
func (ui *UI) Close() {
	if ui.progress == nil {
		return
	}
	// Wait() may hang when output is piped, since bars never render.
	if ui.terminal {
		ui.progress.Wait()
	} else {
		ui.progress.Shutdown()
	}
	ui.progress = nil
}

func (ui *UI) say(w io.Writer, attr color.Attribute, symbol, format string, args ...interface{}) {
	if ui.jsonMode {
		return
	}
	line := fmt.Sprintf("%s %s\n", symbol, fmt.Sprintf(format, args...))
	if ui.noColor {
		fmt.Fprint(w, line)
		return
	}
	color.New(attr).Fprint(w, line)
}

// Success prints a success message.
func (ui *UI) Success(format string, args ...interface{}) {
	ui.say(ui.out, color.FgGreen, "✓", format, args...)
}

// Error prints an error message.
func (ui *UI) Error(format string, args ...interface{}) {
	ui.say(ui.errOut, color.FgRed, "✗", format, args...)
}

// Warning prints a warning message.
func (ui *UI) Warning(format string, args ...interface{}) {
	ui.say(ui.out, color.FgYellow, "⚠", format, args...)
}

// Info prints an info message.
func (ui *UI) Info(format string, args ...interface{}) {
	ui.say(ui.out, color.FgCyan, "ℹ", format, args...)
}

// Step prints a step message.
func (ui *UI) Step(format string, args ...interface{}) {
	ui.say(ui.out, color.FgBlue, "→", format, args...)
}

// Section prints a section header.
func (ui *UI) Section(title string) {
	if ui.jsonMode {
		return
	}
	fmt.Fprintln(ui.out)
	header := fmt.Sprintf("━━━ %s ━━━\n", strings.ToUpper(title))
	if ui.noColor {
		fmt.Fprint(ui.out, header)
	} else {
		color.New(color.FgMagenta, color.Bold).Fprint(ui.out, header)
	}
	fmt.Fprintln(ui.out)
}

// KeyValue prints a key-value pair.
func (ui *UI) KeyValue(key string, value interface{}) {
	if ui.jsonMode {
		return
	}
	if ui.noColor {
		fmt.Fprintf(ui.out, "  %s: %v\n", key, value)
		return
	}
	color.New(color.FgYellow).Fprintf(ui.out, "  %s: ", key)
	fmt.Fprintf(ui.out, "%v\n", value)
}

// Newline prints a newline.
func (ui *UI) Newline() {
	if !ui.jsonMode {
		fmt.Fprintln(ui.out)
	}
}

type borders struct {
	h, v                   string
	tl, tm, tr, ml, mm, mr string
	bl, bm, br             string
}

var (
	boxBorders   = borders{"─", "│", "┌", "┬", "┐", "├", "┼", "┤", "└", "┴", "┘"}
	asciiBorders = borders{"-", "|", "+", "+", "+", "+", "+", "+", "+", "+", "+"}
)

// Table prints a formatted table. Widths are measured in runes.
func (ui *UI) Table(headers []string, rows [][]string) {
	if ui.jsonMode || len(headers) == 0 {
		return
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len([]rune(h))
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len([]rune(cell)) > widths[i] {
				widths[i] = len([]rune(cell))
			}
		}
	}

	b := boxBorders
	frame := color.New(color.FgCyan, color.Bold)
	if ui.noColor {
		b = asciiBorders
	}
	paint := func(s string) string {
		if ui.noColor {
			return s
		}
		return frame.Sprint(s)
	}

	rule := func(left, mid, right string) {
		var sb strings.Builder
		sb.WriteString(paint(left))
		for i, w := range widths {
			sb.WriteString(strings.Repeat(b.h, w+2))
			if i < len(widths)-1 {
				sb.WriteString(paint(mid))
			}
		}
		sb.WriteString(paint(right))
		fmt.Fprintln(ui.out, sb.String())
	}
	line := func(cells []string, sep string) {
		var sb strings.Builder
		sb.WriteString(sep)
		for i, w := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			sb.WriteString(" " + cell + strings.Repeat(" ", w-len([]rune(cell))) + " ")
			sb.WriteString(sep)
		}
		fmt.Fprintln(ui.out, sb.String())
	}

	rule(b.tl, b.tm, b.tr)
	line(headers, paint(b.v))
	rule(b.ml, b.mm, b.mr)
	for _, row := range rows {
		line(row, b.v)
	}
	rule(b.bl, b.bm, b.br)
}

func (ui *UI) bars() *mpb.Progress {
	if ui.progress == nil {
		ui.progress = mpb.New(mpb.WithWidth(64), mpb.WithOutput(ui.errOut))
	}
	return ui.progress
}

// ProgressBar adds a counted bar to the shared progress container. Returns nil
// in JSON mode.
func (ui *UI) ProgressBar(name string, total int64) *mpb.Bar {
	if ui.jsonMode {
		return nil
	}
	return ui.bars().AddBar(total,
		mpb.PrependDecorators(
			decor.Name(name, decor.WC{W: len(name) + 1, C: decor.DSyncSpaceR}),
			decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.Percentage(decor.WC{W: 5}),
			decor.Elapsed(decor.ET_STYLE_GO, decor.WC{W: 12}),
		),
	)
}

// TaskBar adds an indeterminate bar for one concurrent task. Returns nil in
// JSON mode.
func (ui *UI) TaskBar(name string) *mpb.Bar {
	if ui.jsonMode {
		return nil
	}
	return ui.bars().AddBar(1,
		mpb.BarFillerOnComplete("✓"),
		mpb.PrependDecorators(
			decor.Name(name, decor.WC{W: len(name) + 1, C: decor.DSyncSpaceR}),
			decor.Spinner([]string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}, decor.WC{W: 1}),
		),
		mpb.AppendDecorators(
			decor.Elapsed(decor.ET_STYLE_GO, decor.WC{W: 12}),
		),
	)
}

// finishBar completes bar, or aborts it when ok is false. Nil bars are ignored.
func finishBar(bar *mpb.Bar, ok bool) {
	if bar == nil {
		return
	}
	if ok {
		bar.SetTotal(-1, true)
		return
	}
	bar.Abort(false)
}

// Spinner starts a spinner for a single blocking call and returns its stop
// function. Nothing is drawn in JSON mode or when stderr is not a terminal.
func (ui *UI) Spinner(message string) func() {
	if ui.jsonMode || !ui.terminal {
		return func() {}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + message
	s.Writer = ui.errOut
	s.Start()
	return s.Stop
}

// ImportBar creates a bar for deterministic item counts.
func (ui *UI) ImportBar(total int, description string) *progressbar.ProgressBar {
	w := ui.errOut
	if ui.jsonMode {
		w = io.Discard
	}
	return progressbar.NewOptions(
		total,
		progressbar.OptionSetWidth(50),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("items"),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(w, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// FormatDuration formats a duration in a human-readable way.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%.1fm", d.Minutes())
}

// FormatMoney renders a dollar amount.
func FormatMoney(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}

// IsTerminal checks if stdout is a terminal.
func IsTerminal() bool {
	fileInfo, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}
