package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

var (
	// errBack is returned by prompts when the patient types "b" or "back".
	errBack = errors.New("back")
	// errUsage means the flags were wrong and the flag set already said so.
	errUsage = errors.New("usage")
	// errReported wraps failures the patient has already been told about.
	errReported = errors.New("reported")
)

type option struct {
	ID    string
	Label string
}

// prompter reads answers from the terminal one line at a time.
type prompter struct {
	in  *bufio.Scanner
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: bufio.NewScanner(in), out: out}
}

func (p *prompter) line(label string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", label)
	if !p.in.Scan() {
		if err := p.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(p.in.Text()), nil
}

// ask is line with back navigation.
func (p *prompter) ask(label string) (string, error) {
	text, err := p.line(label + " [b=back]")
	if err != nil {
		return "", err
	}
	if isBack(text) {
		return "", errBack
	}
	return text, nil
}

// choose lists opts and accepts either a position or an ID.
func (p *prompter) choose(label string, opts []option) (option, error) {
	if len(opts) == 0 {
		return option{}, fmt.Errorf("no %s available", label)
	}
	for i, o := range opts {
		fmt.Fprintf(p.out, "  %d. %s\n", i+1, o.Label)
	}
	for {
		text, err := p.ask(fmt.Sprintf("Choose a %s (1-%d)", label, len(opts)))
		if err != nil {
			return option{}, err
		}
		if n, err := strconv.Atoi(text); err == nil && n >= 1 && n <= len(opts) {
			return opts[n-1], nil
		}
		for _, o := range opts {
			if strings.EqualFold(o.ID, text) {
				return o, nil
			}
		}
		fmt.Fprintln(p.out, "That is not one of the choices.")
	}
}

func isBack(text string) bool {
	switch strings.ToLower(text) {
	case "b", "back":
		return true
	}
	return false
}

// terminalNotifier prints toast messages inline.
type terminalNotifier struct {
	mu  sync.Mutex
	out io.Writer
}

func (n *terminalNotifier) Success(msg string) { n.print("✓", msg) }
func (n *terminalNotifier) Error(msg string)   { n.print("✗", msg) }

func (n *terminalNotifier) print(mark, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintf(n.out, "%s %s\n", mark, msg)
}

// terminalNavigator cannot open a browser, so a redirect prints the link.
type terminalNavigator struct {
	out     io.Writer
	history func(ctx context.Context) error
}

func (n *terminalNavigator) Redirect(_ context.Context, target string) error {
	fmt.Fprintf(n.out, "Open this page to pay:\n  %s\n", target)
	return nil
}

func (n *terminalNavigator) ShowBookingHistory(ctx context.Context) error {
	return n.history(ctx)
}

func shiftLabel(code int) string {
	switch code {
	case 1:
		return "morning"
	case 2:
		return "afternoon"
	default:
		return "-"
	}
}

func paymentLabel(code int) string {
	switch code {
	case 1:
		return "cash"
	case 2:
		return "online"
	default:
		return "-"
	}
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
