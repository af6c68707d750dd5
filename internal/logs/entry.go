package logs

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"mixlingo/internal/logging"
)

// Entry is one decoded JSON log record.
type Entry struct {
	Time         time.Time
	Level        slog.Level
	Message      string
	Component    string
	ConnectionID string
	Event        string
	Fields       map[string]any
}

var reservedKeys = map[string]bool{
	"ts":                      true,
	"level":                   true,
	"msg":                     true,
	logging.FieldComponent:    true,
	logging.FieldConnectionID: true,
	logging.FieldEvent:        true,
}

// Parse decodes a record written by the JSON log handler. Lines that are not
// JSON objects report false.
func Parse(line string) (Entry, bool) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return Entry{}, false
	}
	entry := Entry{Fields: map[string]any{}}
	for key, value := range raw {
		if !reservedKeys[key] {
			entry.Fields[key] = value
		}
	}
	if ts, ok := raw["ts"].(string); ok {
		entry.Time, _ = time.Parse(time.RFC3339Nano, ts)
	}
	if level, ok := raw["level"].(string); ok {
		_ = entry.Level.UnmarshalText([]byte(level))
	}
	entry.Message, _ = raw["msg"].(string)
	entry.Component, _ = raw[logging.FieldComponent].(string)
	entry.ConnectionID, _ = raw[logging.FieldConnectionID].(string)
	entry.Event, _ = raw[logging.FieldEvent].(string)
	return entry, true
}

// Filter selects records by minimum level and relay connection.
type Filter struct {
	MinLevel     slog.Level
	ConnectionID string
}

// Match reports whether e passes the filter. A connection filter matches on
// prefix so shortened IDs work.
func (f Filter) Match(e Entry) bool {
	if e.Level < f.MinLevel {
		return false
	}
	if f.ConnectionID != "" && !strings.HasPrefix(e.ConnectionID, f.ConnectionID) {
		return false
	}
	return true
}

// Format renders e as a single console line.
func (e Entry) Format() string {
	var b strings.Builder
	if !e.Time.IsZero() {
		b.WriteString(e.Time.Local().Format("2006-01-02 15:04:05"))
		b.WriteByte(' ')
	}
	fmt.Fprintf(&b, "%-5s", e.Level.String())
	if e.Component != "" {
		fmt.Fprintf(&b, " [%s]", e.Component)
	}
	if e.ConnectionID != "" {
		id := e.ConnectionID
		if len(id) > 8 {
			id = id[:8]
		}
		b.WriteString(" " + id)
		if e.Event != "" {
			b.WriteString("/" + e.Event)
		}
	}
	b.WriteString(" " + e.Message)

	keys := make([]string, 0, len(e.Fields))
	for key := range e.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(&b, " %s=%v", key, e.Fields[key])
	}
	return b.String()
}
