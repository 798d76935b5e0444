package main

import (
	"strings"
	"testing"
)

func TestReadEvents(t *testing.T) {
	input := `
# comment
{"event_type": "page_load", "data": {"viewport": {"width": 1280, "height": 720}}}

{"event_type": "scroll_25"}
`
	events, err := readEvents(strings.NewReader(input))
	if err != nil {
		t.Fatalf("readEvents() error = %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if events[0].Type != "page_load" || events[1].Type != "scroll_25" {
		t.Errorf("types = %q, %q", events[0].Type, events[1].Type)
	}
	if events[1].Data != nil {
		t.Errorf("Data = %v, want nil", events[1].Data)
	}
}

func TestReadEvents_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "invalid json", input: "{not json}\n", want: "line 1"},
		{name: "missing type", input: `{"event_type": "a"}` + "\n" + `{"data": 1}`, want: "line 2: missing event_type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readEvents(strings.NewReader(tt.input))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("readEvents() error = %v, want %q", err, tt.want)
			}
		})
	}
}
