package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"golang.org/x/term"

	"ragdesk/internal/history"
	"ragdesk/internal/notify"
	"ragdesk/internal/textutil"
)

// EnhancedDisplay renders the chat transcript and resource views
type EnhancedDisplay struct {
	out      io.Writer
	width    int
	renderer *glamour.TermRenderer

	gray    *color.Color
	bold    *color.Color
	cyan    *color.Color
	green   *color.Color
	yellow  *color.Color
	red     *color.Color
	magenta *color.Color
}

// NewEnhancedDisplay creates a display writing to out
func NewEnhancedDisplay(out io.Writer) *EnhancedDisplay {
	width := getTerminalWidth()

	// Markdown renderer; a nil renderer falls back to raw text
	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width-10),
	)

	return &EnhancedDisplay{
		out:      out,
		width:    width,
		renderer: renderer,
		gray:     color.New(color.FgHiBlack),
		bold:     color.New(color.Bold),
		cyan:     color.New(color.FgCyan),
		green:    color.New(color.FgGreen),
		yellow:   color.New(color.FgYellow),
		red:      color.New(color.FgRed),
		magenta:  color.New(color.FgMagenta),
	}
}

// PrintWelcome displays the banner
func (d *EnhancedDisplay) PrintWelcome(userName, apiURL string) {
	banner := color.New(color.FgCyan, color.Bold)
	banner.Fprintln(d.out, "╔══════════════════════════════════════════════╗")
	banner.Fprintln(d.out, "║        ragdesk · multi-agent RAG chat        ║")
	banner.Fprintln(d.out, "╚══════════════════════════════════════════════╝")
	fmt.Fprintf(d.out, "\n%s %s\n", d.gray.Sprint("Signed in as:"), userName)
	fmt.Fprintf(d.out, "%s %s\n", d.gray.Sprint("Backend:"), apiURL)
	fmt.Fprintf(d.out, "%s /help for commands, /exit to quit\n\n", d.gray.Sprint("Commands:"))
}

// PrintSeparator prints a horizontal rule
func (d *EnhancedDisplay) PrintSeparator() {
	d.gray.Fprintln(d.out, strings.Repeat("─", min(d.width, 80)))
}

// Prompt returns the input prompt showing the active mode
func (d *EnhancedDisplay) Prompt(mode string) string {
	return "\n" + d.gray.Sprintf("[%s]", mode) + " " + d.bold.Sprint(d.green.Sprint("❯")) + " "
}

// PrintMessage displays one transcript entry
func (d *EnhancedDisplay) PrintMessage(msg history.Message) {
	if msg.Role == history.RoleUser {
		fmt.Fprintf(d.out, "\n%s\n", d.gray.Sprintf("┌─ You · %s", msg.CreatedAt.Format("15:04:05")))
		fmt.Fprintf(d.out, "%s %s\n", d.gray.Sprint("│"), msg.Content)
		d.gray.Fprintln(d.out, "└")
		return
	}

	header := "┌─ Assistant"
	if msg.Agent != "" {
		header += " · " + msg.Agent
	}
	header += " · " + msg.CreatedAt.Format("15:04:05")
	fmt.Fprintf(d.out, "\n%s\n", d.gray.Sprint(header))

	for _, line := range d.renderLines(msg.Content) {
		fmt.Fprintf(d.out, "%s %s\n", d.gray.Sprint("│"), line)
	}

	if msg.Routing != nil {
		d.gray.Fprintln(d.out, "│")
		fmt.Fprintf(d.out, "%s %s\n", d.gray.Sprint("│"),
			d.magenta.Sprintf("↳ routed to %s (%.0f%%): %s",
				msg.Routing.SelectedAgent, msg.Routing.Confidence*100, msg.Routing.Reason))
	}

	if len(msg.Sources) > 0 {
		d.gray.Fprintln(d.out, "│")
		d.gray.Fprintln(d.out, "│ Sources:")
		for i, src := range msg.Sources {
			name := src.DocumentName
			if name == "" {
				name = src.DocumentID
			}
			d.gray.Fprintf(d.out, "│   [%d] %s (%.2f) %s\n",
				i+1, name, src.SimilarityScore, textutil.Snippet(src.Content, 16))
		}
	}

	if msg.Elapsed != nil {
		d.gray.Fprintln(d.out, "│")
		d.gray.Fprintf(d.out, "│ ⏱  %s\n", formatDuration(*msg.Elapsed))
	}
	d.gray.Fprintln(d.out, "└")
}

// PrintTranscript displays every message in order
func (d *EnhancedDisplay) PrintTranscript(msgs []history.Message) {
	if len(msgs) == 0 {
		d.PrintInfo("No messages yet. Ask a question to start.")
		return
	}
	for _, m := range msgs {
		d.PrintMessage(m)
	}
}

// RenderMarkdown renders text for display, falling back to the raw text.
func (d *EnhancedDisplay) RenderMarkdown(text string) string {
	if d.renderer == nil {
		return text
	}
	rendered, err := d.renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(rendered, "\n")
}

func (d *EnhancedDisplay) renderLines(text string) []string {
	return strings.Split(strings.Trim(d.RenderMarkdown(text), "\n"), "\n")
}

// PrintToast displays a notification
func (d *EnhancedDisplay) PrintToast(t notify.Toast) {
	switch t.Level {
	case notify.LevelSuccess:
		d.PrintSuccess(t.Text)
	case notify.LevelError:
		d.red.Fprintf(d.out, "✗ %s\n", t.Text)
	default:
		d.PrintInfo(t.Text)
	}
}

// PrintInfo displays an info message
func (d *EnhancedDisplay) PrintInfo(msg string) {
	d.cyan.Fprintf(d.out, "ℹ %s\n", msg)
}

// PrintWarning displays a warning message
func (d *EnhancedDisplay) PrintWarning(msg string) {
	d.yellow.Fprintf(d.out, "⚠ %s\n", msg)
}

// PrintError displays an error
func (d *EnhancedDisplay) PrintError(err error) {
	d.red.Fprintf(d.out, "✗ Error: %v\n", err)
}

// PrintSuccess displays a success message
func (d *EnhancedDisplay) PrintSuccess(msg string) {
	d.green.Fprintf(d.out, "✓ %s\n", msg)
}

// PrintGoodbye displays the farewell
func (d *EnhancedDisplay) PrintGoodbye() {
	d.cyan.Fprintln(d.out, "\nGoodbye!")
}

// Writer returns the output the display writes to.
func (d *EnhancedDisplay) Writer() io.Writer {
	return d.out
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func getTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 20 {
		return 80
	}
	return width
}
