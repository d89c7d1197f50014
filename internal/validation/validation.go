// Package validation normalizes and bounds-checks inbound fields before they
// reach the services. All functions are pure; rejections are returned as
// *Error values whose message is safe to show to the client.
package validation

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/atinyakov/todolist/internal/models"
)

const (
	// MaxEmailLength is the longest accepted email address.
	MaxEmailLength = 254
	// MinPasswordLength and MaxPasswordLength bound accepted passwords.
	MinPasswordLength = 6
	MaxPasswordLength = 128
	// MaxTitleLength is the longest accepted task title, in characters.
	MaxTitleLength = 120
)

var (
	emailRe  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]{2,}$`)
	tagRe    = regexp.MustCompile(`<[^<>]*>`)
	entityRe = regexp.MustCompile(`&#?[a-zA-Z0-9]+;`)
)

// Error describes why an input field was rejected.
type Error struct {
	// Field is the name of the offending input field.
	Field string
	// Reason is the client-facing description.
	Reason string
}

func (e *Error) Error() string { return e.Reason }

func invalid(field, reason string) *Error {
	return &Error{Field: field, Reason: reason}
}

// NormalizeEmail trims and lower-cases s and checks it against a
// conservative email shape.
func NormalizeEmail(s string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(s))
	if email == "" || len(email) > MaxEmailLength || !emailRe.MatchString(email) {
		return "", invalid("email", "Invalid email")
	}
	return email, nil
}

// CheckPassword enforces the password length policy.
func CheckPassword(pw string) error {
	n := utf8.RuneCountInString(pw)
	if n < MinPasswordLength {
		return invalid("password", fmt.Sprintf("Password must be at least %d characters", MinPasswordLength))
	}
	if n > MaxPasswordLength {
		return invalid("password", fmt.Sprintf("Password must be at most %d characters", MaxPasswordLength))
	}
	return nil
}

// SanitizeTitle strips markup, entities and control characters, collapses
// whitespace and enforces the title length bounds.
func SanitizeTitle(s string) (string, error) {
	s = tagRe.ReplaceAllString(s, "")
	s = entityRe.ReplaceAllString(s, "")
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			// tabs and newlines become separators, the rest vanish
			if unicode.IsSpace(r) {
				return ' '
			}
			return -1
		}
		return r
	}, s)
	s = strings.Join(strings.Fields(s), " ")

	if s == "" {
		return "", invalid("title", "Title is required")
	}
	if utf8.RuneCountInString(s) > MaxTitleLength {
		return "", invalid("title", fmt.Sprintf("Title must be at most %d characters", MaxTitleLength))
	}
	return s, nil
}

// ParseProgress accepts an integral number (or numeric string) in [0,100].
func ParseProgress(v any) (int, error) {
	n, ok := toNumber(v)
	if !ok || n != math.Trunc(n) {
		return 0, invalid("progress", "Progress must be an integer")
	}
	if n < 0 || n > 100 {
		return 0, invalid("progress", "Progress must be between 0 and 100")
	}
	return int(n), nil
}

// ParsePriority maps "low"/"medium"/"high" or a number onto 1..3,
// clamping out-of-range numbers.
func ParsePriority(v any) (models.Priority, error) {
	if s, ok := v.(string); ok {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "low":
			return models.PriorityLow, nil
		case "medium":
			return models.PriorityMedium, nil
		case "high":
			return models.PriorityHigh, nil
		}
	}
	n, ok := toNumber(v)
	if !ok {
		return 0, invalid("priority", "Priority must be low, medium or high")
	}
	n = math.Round(n)
	switch {
	case n < float64(models.PriorityLow):
		return models.PriorityLow, nil
	case n > float64(models.PriorityHigh):
		return models.PriorityHigh, nil
	}
	return models.Priority(n), nil
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Dates are stored at microsecond precision and must encode as RFC 3339,
// which limits them to years 0..9999.
var (
	minDate = time.Date(0, 1, 1, 0, 0, 0, 0, time.UTC)
	maxDate = time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC).Add(-time.Microsecond)
)

// ParseDate accepts an ISO-8601 string or Unix epoch milliseconds and
// returns the instant in UTC, truncated to microseconds.
func ParseDate(v any) (time.Time, error) {
	var (
		t  time.Time
		ok bool
	)
	switch d := v.(type) {
	case time.Time:
		t, ok = d, !d.IsZero()
	case string:
		s := strings.TrimSpace(d)
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				t, ok = parsed, true
				break
			}
		}
	default:
		ms, isNum := toNumber(v)
		if isNum && ms == math.Trunc(ms) &&
			ms >= float64(minDate.UnixMilli()) && ms <= float64(maxDate.UnixMilli()) {
			t, ok = time.UnixMilli(int64(ms)), true
		}
	}
	if !ok {
		return time.Time{}, invalid("date", "Invalid date")
	}
	return CheckDate(t)
}

// CheckDate rejects instants outside years 0..9999 and returns t in UTC,
// truncated to microseconds.
func CheckDate(t time.Time) (time.Time, error) {
	t = t.UTC().Truncate(time.Microsecond)
	if t.Before(minDate) || t.After(maxDate) {
		return time.Time{}, invalid("date", "Invalid date")
	}
	return t, nil
}

// CoerceBool reports the boolean value of v and whether v was recognised.
func CoerceBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "1":
			return true, true
		case "false", "0":
			return false, true
		}
	case json.Number, float64, int:
		n, _ := toNumber(b)
		switch n {
		case 1:
			return true, true
		case 0:
			return false, true
		}
	}
	return false, false
}

// ParseBool returns the boolean value of v, or def when v is not a
// recognised boolean.
func ParseBool(v any, def bool) bool {
	if b, ok := CoerceBool(v); ok {
		return b
	}
	return def
}

func toNumber(v any) (float64, bool) {
	var n float64
	switch x := v.(type) {
	case float64:
		n = x
	case int:
		n = float64(x)
	case int64:
		n = float64(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, false
		}
		n = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		n = f
	default:
		return 0, false
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}
