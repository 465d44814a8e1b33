package session

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"wbreports/internal/cabinet"
	"wbreports/internal/config"
)

// Outcome is what happened to one cabinet.
type Outcome struct {
	Cabinet config.Cabinet
	Result  *cabinet.Result
	Err     error
	// Step is the failed step, empty on success.
	Step     cabinet.Step
	Duration time.Duration
	// PublishErr records a failed optional upload; it does not fail the cabinet.
	PublishErr error
}

// OK reports whether the cabinet was archived.
func (o Outcome) OK() bool { return o.Err == nil }

// Summary describes a whole run.
type Summary struct {
	RunID    string
	Date     time.Time
	Started  time.Time
	Duration time.Duration
	Outcomes []Outcome
}

// Succeeded returns the archived cabinets.
func (s *Summary) Succeeded() []Outcome {
	var out []Outcome
	for _, o := range s.Outcomes {
		if o.OK() {
			out = append(out, o)
		}
	}
	return out
}

// Failed returns the cabinets that were not archived.
func (s *Summary) Failed() []Outcome {
	var out []Outcome
	for _, o := range s.Outcomes {
		if !o.OK() {
			out = append(out, o)
		}
	}
	return out
}

// Err is non-nil when at least one cabinet failed.
func (s *Summary) Err() error {
	failed := s.Failed()
	if len(failed) == 0 {
		return nil
	}
	errs := make([]error, 0, len(failed))
	for _, o := range failed {
		errs = append(errs, o.Err)
	}
	return fmt.Errorf("%d of %d cabinets failed: %w", len(failed), len(s.Outcomes), errors.Join(errs...))
}

// Render writes a table of the outcomes to w.
func (s *Summary) Render(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(fmt.Sprintf("Sales reports for %s", s.Date.Format(config.DateLayout)))
	t.AppendHeader(table.Row{"Cabinet", "Status", "Step", "File", "Duration"})

	for _, o := range s.Outcomes {
		status, file := "ok", ""
		if o.Result != nil {
			file = o.Result.ArchiveFile
		}
		if !o.OK() {
			status = "failed"
			file = o.Err.Error()
		} else if o.PublishErr != nil {
			status = "ok, upload failed"
		}
		t.AppendRow(table.Row{o.Cabinet.Name, status, string(o.Step), file, o.Duration.Round(time.Millisecond)})
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d/%d ok", len(s.Succeeded()), len(s.Outcomes)), "", "", s.Duration.Round(time.Millisecond)})

	t.SetStyle(table.StyleRounded)
	t.Style().Format.Footer = text.FormatDefault
	t.Render()
}
