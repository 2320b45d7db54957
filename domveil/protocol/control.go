package protocol

// TouchPhase names the touch events forwarded by a host.
type TouchPhase string

const (
	TouchStart  TouchPhase = "start"
	TouchEnd    TouchPhase = "end"
	TouchLeave  TouchPhase = "leave"
	TouchCancel TouchPhase = "cancel"
)

// Valid reports whether p is a known phase.
func (p TouchPhase) Valid() bool {
	switch p {
	case TouchStart, TouchEnd, TouchLeave, TouchCancel:
		return true
	}
	return false
}

// SelectRequest places a selection by element id and offset into each
// element's rendered text. Offsets are byte offsets unless UTF16 is set.
// An empty AnchorID clears the selection.
type SelectRequest struct {
	AnchorID     string `json:"anchor_id"`
	AnchorOffset int    `json:"anchor_offset"`
	FocusID      string `json:"focus_id"`
	FocusOffset  int    `json:"focus_offset"`
	UTF16        bool   `json:"utf16,omitempty"`
}

// MutateRequest inserts markup as the last children of ParentID (the body
// when empty) or removes RemoveID.
type MutateRequest struct {
	ParentID string `json:"parent_id,omitempty"`
	HTML     string `json:"html,omitempty"`
	RemoveID string `json:"remove_id,omitempty"`
}

// ElementInfo describes one identified element.
type ElementInfo struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	State string `json:"state"`
	Tag   string `json:"tag"`
}
