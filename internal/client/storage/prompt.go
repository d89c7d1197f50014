package storage

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/atinyakov/todolist/internal/client/api"
)

// dateLayout is the format accepted for task dates.
const dateLayout = "2006-01-02"

// Prompter reads answers line by line from an input stream.
type Prompter struct {
	in  *bufio.Scanner
	out io.Writer
	// readPassword is set when input is a terminal, so echo can be turned off.
	readPassword func() ([]byte, error)
}

// NewPrompter returns a Prompter reading from in and printing prompts to out.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	p := &Prompter{in: bufio.NewScanner(in), out: out}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd := int(f.Fd())
		p.readPassword = func() ([]byte, error) { return term.ReadPassword(fd) }
	}
	return p
}

// Line prints label and returns the next input line, trimmed.
// io.EOF is returned once input is exhausted.
func (p *Prompter) Line(label string) (string, error) {
	fmt.Fprint(p.out, label)
	if !p.in.Scan() {
		if err := p.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(p.in.Text()), nil
}

// Password reads a secret without echoing it when possible.
func (p *Prompter) Password(label string) (string, error) {
	if p.readPassword == nil {
		return p.Line(label)
	}
	fmt.Fprint(p.out, label)
	b, err := p.readPassword()
	fmt.Fprintln(p.out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Task asks for task fields. Blank answers leave a field unset; on add the
// title is required.
func (p *Prompter) Task(editing bool) (api.TaskInput, error) {
	var in api.TaskInput

	hint := ""
	if editing {
		hint = " (blank to keep)"
	}

	title, err := p.Line("Title" + hint + ": ")
	if err != nil {
		return in, err
	}
	if title == "" && !editing {
		return in, errors.New("title is required")
	}
	if title != "" {
		in.Title = &title
	}

	if in.Progress, err = p.optionalInt("Progress 0-100" + hint + ": "); err != nil {
		return in, err
	}
	if in.Priority, err = p.optionalInt("Priority 1-3" + hint + ": "); err != nil {
		return in, err
	}

	date, err := p.Line("Date YYYY-MM-DD" + hint + ": ")
	if err != nil {
		return in, err
	}
	if date != "" {
		d, err := time.Parse(dateLayout, date)
		if err != nil {
			return in, fmt.Errorf("invalid date %q", date)
		}
		in.Date = &d
	}
	return in, nil
}

func (p *Prompter) optionalInt(label string) (*int, error) {
	s, err := p.Line(label)
	if err != nil || s == "" {
		return nil, err
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, fmt.Errorf("%q is not a number", s)
	}
	return &n, nil
}
