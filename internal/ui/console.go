// Package ui owns everything the user sees on the terminal: progress lines,
// confirmation prompts, and the rendered analysis output. Diagnostic logging
// does not belong here; that goes through zap to stderr.
package ui

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// ErrNoTerminal reports that a confirmation was required but standard input
// is not a terminal, so nobody can answer.
var ErrNoTerminal = errors.New("ui: stdin is not a terminal")

var (
	cyan   = color.New(color.FgCyan)
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed)
	bold   = color.New(color.Bold)
	faint  = color.New(color.Faint)
)

// ConsoleConfig configures a Console. The zero value talks to the real
// terminal.
type ConsoleConfig struct {
	// Out receives progress lines and prompts. Defaults to os.Stdout.
	Out io.Writer
	// In supplies prompt answers. Defaults to os.Stdin.
	In io.Reader
	// Color is one of auto, always, never. Auto leaves the decision to the
	// color library, which checks the terminal and NO_COLOR.
	Color string
	// ForceTTY treats In as interactive without probing it. Tests use this
	// to script answers through a plain reader.
	ForceTTY bool
}

// Console prints progress lines and asks for confirmations. It satisfies the
// recovery engine's Notifier and Prompter seams.
type Console struct {
	out         io.Writer
	in          *bufio.Reader
	interactive bool
}

// NewConsole builds a console from cfg; nil means terminal defaults.
func NewConsole(cfg *ConsoleConfig) *Console {
	if cfg == nil {
		cfg = &ConsoleConfig{}
	}
	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}
	in := cfg.In
	if in == nil {
		in = os.Stdin
	}
	applyColorMode(cfg.Color)

	interactive := cfg.ForceTTY
	if !interactive {
		if f, ok := in.(*os.File); ok {
			fd := f.Fd()
			interactive = isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
		}
	}
	return &Console{out: out, in: bufio.NewReader(in), interactive: interactive}
}

// applyColorMode forces color on or off process-wide. "auto" (and anything
// unrecognized, which config validation already rejected) keeps the
// library's own terminal detection.
func applyColorMode(mode string) {
	switch mode {
	case "always":
		color.NoColor = false
	case "never":
		color.NoColor = true
	}
}

// Stepf announces an action about to run.
func (c *Console) Stepf(format string, args ...any) {
	fmt.Fprintf(c.out, "🔧 %s\n", cyan.Sprintf(format, args...))
}

// Reportf reports an outcome or follow-up guidance.
func (c *Console) Reportf(format string, args ...any) {
	fmt.Fprintf(c.out, "   %s\n", fmt.Sprintf(format, args...))
}

// Confirm asks a yes/no question, defaulting to no. Anything but y/yes
// (case-insensitive) declines.
func (c *Console) Confirm(prompt string) (bool, error) {
	if !c.interactive {
		return false, ErrNoTerminal
	}
	fmt.Fprintf(c.out, "%s [y/N] ", bold.Sprint(prompt))
	answer, err := c.readLine()
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

// ConfirmStrong asks the user to type token exactly. Used for operations
// where a reflexive "y" is not enough consent.
func (c *Console) ConfirmStrong(prompt, token string) (bool, error) {
	if !c.interactive {
		return false, ErrNoTerminal
	}
	fmt.Fprintf(c.out, "%s\n", bold.Sprint(prompt))
	fmt.Fprintf(c.out, "%s ", yellow.Sprintf("Type %s to proceed:", token))
	answer, err := c.readLine()
	if err != nil {
		return false, err
	}
	return answer == token, nil
}

func (c *Console) readLine() (string, error) {
	line, err := c.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("ui: reading answer: %w", err)
	}
	return strings.TrimSpace(line), nil
}
