// Package display defines the character-display capability the renderers write to.
package display

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/mattn/go-runewidth"
)

// Rows is the number of text rows every sink exposes.
const Rows = 2

// ErrRowOutOfRange is returned by WriteLine for rows outside [0, Rows).
var ErrRowOutOfRange = errors.New("row out of range")

// Sink is a two-row fixed-width character display. Callers hand WriteLine text that
// is already exactly Columns() cells wide; sinks never pad or cut themselves.
type Sink interface {
	Clear() error
	WriteLine(row int, text string) error
	Columns() int
}

// Fit left-justifies text in exactly width display cells, cutting or space-padding
// as needed. No ellipsis is added.
func Fit(text string, width int) string {
	if width <= 0 {
		return ""
	}
	return runewidth.FillRight(runewidth.Truncate(text, width, ""), width)
}

func checkRow(row int) error {
	if row < 0 || row >= Rows {
		return fmt.Errorf("%w: %d", ErrRowOutOfRange, row)
	}
	return nil
}

// Terminal writes every row update to w. Used on hosts without an attached LCD.
type Terminal struct {
	mu      sync.Mutex
	name    string
	columns int
	w       io.Writer
}

func NewTerminal(name string, columns int, w io.Writer) *Terminal {
	return &Terminal{name: name, columns: columns, w: w}
}

func (t *Terminal) Columns() int { return t.columns }

func (t *Terminal) Clear() error {
	return nil
}

func (t *Terminal) WriteLine(row int, text string) error {
	if err := checkRow(row); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := fmt.Fprintf(t.w, "%-8s %d |%s|\n", t.name, row, text)
	return err
}

// Recorder keeps the last text written to each row. Safe for concurrent readers.
type Recorder struct {
	mu      sync.RWMutex
	columns int
	lines   [Rows]string
	writes  int
	clears  int
}

func NewRecorder(columns int) *Recorder {
	r := &Recorder{columns: columns}
	r.blank()
	return r
}

func (r *Recorder) blank() {
	for i := range r.lines {
		r.lines[i] = strings.Repeat(" ", r.columns)
	}
}

func (r *Recorder) Columns() int { return r.columns }

func (r *Recorder) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blank()
	r.clears++
	return nil
}

func (r *Recorder) WriteLine(row int, text string) error {
	if err := checkRow(row); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines[row] = text
	r.writes++
	return nil
}

// Lines returns a copy of the current rows.
func (r *Recorder) Lines() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, Rows)
	copy(out, r.lines[:])
	return out
}

// Writes returns the number of WriteLine calls so far.
func (r *Recorder) Writes() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.writes
}

// Tee fans every call out to all sinks. Columns reports the first sink's width.
type Tee []Sink

func (t Tee) Columns() int {
	if len(t) == 0 {
		return 0
	}
	return t[0].Columns()
}

func (t Tee) Clear() error {
	var errs []error
	for _, s := range t {
		errs = append(errs, s.Clear())
	}
	return errors.Join(errs...)
}

func (t Tee) WriteLine(row int, text string) error {
	var errs []error
	for _, s := range t {
		errs = append(errs, s.WriteLine(row, text))
	}
	return errors.Join(errs...)
}
