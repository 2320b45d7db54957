package live

import (
	"encoding/json"
	"fmt"
)

// Event types reported by the page script.
const (
	EventClick     = "click"
	EventTouch     = "touch"
	EventSelection = "selection"
	EventMutation  = "mutation"
)

// TextPoint locates a selection edge in the page: the element key, the
// index of the text node among the element's text children (-1 for the
// element itself) and a UTF-16 offset.
type TextPoint struct {
	Key    string `json:"k"`
	Text   int    `json:"t"`
	Offset int    `json:"o"`
}

// Added is one node inserted in the page, serialised with keys stamped.
type Added struct {
	Parent string `json:"parent"`
	Before string `json:"before,omitempty"`
	HTML   string `json:"html"`
}

// Event is one report from the page script.
type Event struct {
	Type    string     `json:"type"`
	Key     string     `json:"key,omitempty"`
	Phase   string     `json:"phase,omitempty"`
	Anchor  *TextPoint `json:"anchor,omitempty"`
	Focus   *TextPoint `json:"focus,omitempty"`
	Added   []Added    `json:"added,omitempty"`
	Removed []string   `json:"removed,omitempty"`
}

// ParseEvent decodes a binding payload.
func ParseEvent(payload string) (Event, error) {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return Event{}, fmt.Errorf("live: parse event: %w", err)
	}
	switch ev.Type {
	case EventClick, EventTouch:
		if ev.Key == "" {
			return Event{}, fmt.Errorf("live: %s event without key", ev.Type)
		}
	case EventSelection, EventMutation:
	default:
		return Event{}, fmt.Errorf("live: unknown event type %q", ev.Type)
	}
	return ev, nil
}

// Patch carries the class and style attributes of one page element.
type Patch struct {
	Key   string `json:"k"`
	Class string `json:"c"`
	Style string `json:"s"`
}

// SelectionPatch moves the page selection.
type SelectionPatch struct {
	Anchor TextPoint `json:"anchor"`
	Focus  TextPoint `json:"focus"`
}
