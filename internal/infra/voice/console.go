package voice

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"vocalights/internal/application"
	"vocalights/internal/domain"
)

// Console reads phrases line by line and prints responses and result sets.
// The prompt is only shown when attached to a terminal.
type Console struct {
	in          io.Reader
	out         io.Writer
	interactive bool
	styles      consoleStyles

	mu        sync.Mutex
	lines     chan string
	startOnce sync.Once
}

type consoleStyles struct {
	prompt  lipgloss.Style
	speech  lipgloss.Style
	device  lipgloss.Style
	success lipgloss.Style
	info    lipgloss.Style
	failure lipgloss.Style
	muted   lipgloss.Style
}

func NewConsole(in io.Reader, out io.Writer) *Console {
	renderer := lipgloss.NewRenderer(out)
	return &Console{
		in:          in,
		out:         out,
		interactive: isTerminal(in) && isTerminal(out),
		lines:       make(chan string),
		styles: consoleStyles{
			prompt:  renderer.NewStyle().Foreground(lipgloss.Color("12")).Bold(true),
			speech:  renderer.NewStyle().Foreground(lipgloss.Color("14")),
			device:  renderer.NewStyle().Bold(true),
			success: renderer.NewStyle().Foreground(lipgloss.Color("10")),
			info:    renderer.NewStyle().Foreground(lipgloss.Color("11")),
			failure: renderer.NewStyle().Foreground(lipgloss.Color("9")),
			muted:   renderer.NewStyle().Foreground(lipgloss.Color("240")),
		},
	}
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (c *Console) Name() string {
	return "console"
}

func (c *Console) Start(_ context.Context) error {
	c.startOnce.Do(func() {
		go c.scan()
	})
	return nil
}

// Stop is a no-op: a blocked read on stdin cannot be interrupted.
func (c *Console) Stop() error {
	return nil
}

func (c *Console) scan() {
	defer close(c.lines)
	scanner := bufio.NewScanner(c.in)
	for scanner.Scan() {
		c.lines <- scanner.Text()
	}
}

func (c *Console) Next(ctx context.Context) (application.Utterance, error) {
	c.prompt()
	select {
	case <-ctx.Done():
		return application.Utterance{}, ctx.Err()
	case line, ok := <-c.lines:
		if !ok {
			return application.Utterance{}, io.EOF
		}
		return application.Utterance{Text: strings.TrimSpace(line)}, nil
	}
}

func (c *Console) prompt() {
	if !c.interactive {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprint(c.out, c.styles.prompt.Render("Say something!")+" ")
}

func (c *Console) Speak(_ context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintln(c.out, c.styles.speech.Render("» "+text))
	return err
}

// Report prints one line per device result.
func (c *Console) Report(phrase string, results []domain.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintln(c.out, c.styles.muted.Render(fmt.Sprintf("%q → %d result(s)", phrase, len(results))))
	for _, r := range results {
		fmt.Fprintln(c.out, c.RenderResult(r))
	}
}

func (c *Console) RenderResult(r domain.Result) string {
	var status lipgloss.Style
	switch r.Kind {
	case domain.ResultSuccess:
		status = c.styles.success
	case domain.ResultInfo:
		status = c.styles.info
	default:
		status = c.styles.failure
	}

	line := fmt.Sprintf("  %s %s %s",
		status.Render(fmt.Sprintf("%-7s", r.Kind.String())),
		c.styles.device.Render(r.Device),
		r.Summary(),
	)
	if len(r.Targets) > 0 {
		line += " " + c.styles.muted.Render("["+strings.Join(r.Targets, ", ")+"]")
	}
	return line
}
