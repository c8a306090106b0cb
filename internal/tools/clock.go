package tools

import (
	"context"
	"fmt"
	"time"
)

// ClockTool reports the current date and time.
type ClockTool struct {
	// now is swappable for tests.
	now func() time.Time
}

// NewClockTool creates a clock tool.
func NewClockTool() *ClockTool {
	return &ClockTool{now: time.Now}
}

func (t *ClockTool) Name() string {
	return "current_time"
}

func (t *ClockTool) Description() string {
	return "Get the current date and time, optionally in a specific IANA timezone."
}

func (t *ClockTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"timezone": map[string]any{
				"type":        "string",
				"description": "IANA timezone name, e.g. \"Europe/Berlin\". Defaults to UTC.",
			},
		},
	}
}

func (t *ClockTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	loc := time.UTC
	if tz := GetString(params, "timezone", ""); tz != "" {
		parsed, err := time.LoadLocation(tz)
		if err != nil {
			return "", fmt.Errorf("unknown timezone %q", tz)
		}
		loc = parsed
	}
	now := t.now().In(loc)
	return fmt.Sprintf(`{"time":"%s","weekday":"%s"}`, now.Format(time.RFC3339), now.Weekday()), nil
}
