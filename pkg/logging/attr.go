package logging

import (
	"log/slog"
	"strconv"
)

// Group creates a slog group attribute from the provided attributes.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Errors groups multiple non-nil errors under the key "errors".
// If all errors are nil, it returns an empty Attr.
func Errors(errs ...error) slog.Attr {
	as := make([]slog.Attr, 0, len(errs))
	for i, err := range errs {
		if err != nil {
			as = append(as, slog.Any(strconv.Itoa(i), err))
		}
	}
	if len(as) == 0 {
		return slog.Attr{}
	}
	return slog.Attr{Key: "errors", Value: slog.GroupValue(as...)}
}

// DistinctID records the analytics identity under the key "distinct_id".
func DistinctID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("distinct_id", id)
}

// FlagName records a feature flag name under the key "flag".
func FlagName(name string) slog.Attr {
	if name == "" {
		return slog.Attr{}
	}
	return slog.String("flag", name)
}

// GroupType records a cohort group type under the key "group_type".
func GroupType(groupType string) slog.Attr {
	if groupType == "" {
		return slog.Attr{}
	}
	return slog.String("group_type", groupType)
}

// EventName records an analytics event name under the key "event".
func EventName(name string) slog.Attr {
	if name == "" {
		return slog.Attr{}
	}
	return slog.String("event", name)
}

// Component records which engine component produced the record.
func Component(name string) slog.Attr {
	if name == "" {
		return slog.Attr{}
	}
	return slog.String("component", name)
}
