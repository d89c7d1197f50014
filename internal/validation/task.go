package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/atinyakov/todolist/internal/models"
)

// TaskInput holds raw, decoded task fields. A nil field was not supplied
// (or was null).
type TaskInput struct {
	Title     any
	Progress  any
	Priority  any
	Completed any
	Date      any
}

// ParseTask validates every supplied field of in and returns them as a
// patch. Unrecognised booleans are treated as not supplied so the caller's
// default applies.
func ParseTask(in TaskInput) (models.TaskPatch, error) {
	var p models.TaskPatch

	if in.Title != nil {
		s, ok := in.Title.(string)
		if !ok {
			return p, invalid("title", "Title must be a string")
		}
		title, err := SanitizeTitle(s)
		if err != nil {
			return p, err
		}
		p.Title = &title
	}
	if in.Progress != nil {
		n, err := ParseProgress(in.Progress)
		if err != nil {
			return p, err
		}
		p.Progress = &n
	}
	if in.Priority != nil {
		prio, err := ParsePriority(in.Priority)
		if err != nil {
			return p, err
		}
		p.Priority = &prio
	}
	if in.Completed != nil {
		if b, ok := CoerceBool(in.Completed); ok {
			p.Completed = &b
		}
	}
	if in.Date != nil {
		d, err := ParseDate(in.Date)
		if err != nil {
			return p, err
		}
		p.Date = &d
	}
	return p, nil
}

// CheckTask re-validates a complete task after defaults or a merge have
// been applied.
func CheckTask(t models.Task) error {
	if strings.TrimSpace(t.Title) == "" {
		return invalid("title", "Title is required")
	}
	if utf8.RuneCountInString(t.Title) > MaxTitleLength {
		return invalid("title", fmt.Sprintf("Title must be at most %d characters", MaxTitleLength))
	}
	if t.Progress < 0 || t.Progress > 100 {
		return invalid("progress", "Progress must be between 0 and 100")
	}
	if t.Priority < models.PriorityLow || t.Priority > models.PriorityHigh {
		return invalid("priority", "Priority must be low, medium or high")
	}
	if t.Date.IsZero() {
		return invalid("date", "Invalid date")
	}
	if _, err := CheckDate(t.Date); err != nil {
		return err
	}
	return nil
}
