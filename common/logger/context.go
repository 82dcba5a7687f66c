package logger

import (
	"context"
	"unicode/utf8"
)

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields are attached to every record logged with the carrying context,
// so a cycle's log lines can be grouped by job, cycle and snapshot.
type LogFields struct {
	JobID      *string
	CycleID    *string
	SnapshotID *string
	ActionType *string // action being governed or executed
	Component  string  // e.g. "storepilot.engine"
}

// WithLogFields layers fields over those already in ctx. Set fields win;
// nil pointers and an empty Component keep the outer value.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	return context.WithValue(ctx, logFieldsKey, GetLogFields(ctx).merge(fields))
}

func GetLogFields(ctx context.Context) LogFields {
	fields, _ := ctx.Value(logFieldsKey).(LogFields)
	return fields
}

func (f LogFields) merge(over LogFields) LogFields {
	f.JobID = pick(over.JobID, f.JobID)
	f.CycleID = pick(over.CycleID, f.CycleID)
	f.SnapshotID = pick(over.SnapshotID, f.SnapshotID)
	f.ActionType = pick(over.ActionType, f.ActionType)
	if over.Component != "" {
		f.Component = over.Component
	}
	return f
}

func pick(over, base *string) *string {
	if over != nil {
		return over
	}
	return base
}

func Ptr[T any](v T) *T {
	return &v
}

// Truncate shortens s to at most maxLen runes, marking the cut with "...".
func Truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen]) + "..."
}
