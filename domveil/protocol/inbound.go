package protocol

import (
	"encoding/json"
	"fmt"
)

// Inbound action names.
const (
	ActionHide                        = "hide"
	ActionHideSelectionForNewCategory = "hideSelectionForNewCategory"
	ActionSelectionFlagged            = "selectionFlagged"
	ActionSelectionUnflagged          = "selectionUnflagged"
	ActionUnflagIgnored               = "unflagIgnored"
)

// Inbound is a controller command. The set of implementations is closed.
type Inbound interface {
	Action() string
	inbound()
}

// Hide asks for the element with the given id to be hidden.
type Hide struct {
	ClassName string `json:"className"`
}

// HideSelectionForNewCategory hides the current selection and reports its text.
type HideSelectionForNewCategory struct{}

// SelectionFlagged hides the current selection and labels its text.
type SelectionFlagged struct {
	Category string `json:"category"`
}

// SelectionUnflagged sends the last revealed element back for
// re-classification under the default category.
type SelectionUnflagged struct{}

// UnflagIgnored re-hides the last revealed element.
type UnflagIgnored struct{}

// Unknown carries an action name the session does not handle. It is ignored.
type Unknown struct {
	Name string
}

func (Hide) Action() string                        { return ActionHide }
func (HideSelectionForNewCategory) Action() string { return ActionHideSelectionForNewCategory }
func (SelectionFlagged) Action() string            { return ActionSelectionFlagged }
func (SelectionUnflagged) Action() string          { return ActionSelectionUnflagged }
func (UnflagIgnored) Action() string               { return ActionUnflagIgnored }
func (u Unknown) Action() string                   { return u.Name }

func (Hide) inbound()                        {}
func (HideSelectionForNewCategory) inbound() {}
func (SelectionFlagged) inbound()            {}
func (SelectionUnflagged) inbound()          {}
func (UnflagIgnored) inbound()               {}
func (Unknown) inbound()                     {}

// UnmarshalInbound decodes a flat controller command. Unrecognised names
// decode to Unknown rather than failing.
func UnmarshalInbound(data []byte) (Inbound, error) {
	var head struct {
		Name      string `json:"name"`
		ClassName string `json:"className"`
		Category  string `json:"category"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("protocol: inbound: %w", err)
	}

	switch head.Name {
	case ActionHide:
		return Hide{ClassName: head.ClassName}, nil
	case ActionHideSelectionForNewCategory:
		return HideSelectionForNewCategory{}, nil
	case ActionSelectionFlagged:
		return SelectionFlagged{Category: head.Category}, nil
	case ActionSelectionUnflagged:
		return SelectionUnflagged{}, nil
	case ActionUnflagIgnored:
		return UnflagIgnored{}, nil
	default:
		return Unknown{Name: head.Name}, nil
	}
}

// MarshalInbound serialises a command to flat JSON, as a controller sends it.
func MarshalInbound(m Inbound) ([]byte, error) {
	out := map[string]string{"name": m.Action()}
	switch v := m.(type) {
	case Hide:
		out["className"] = v.ClassName
	case SelectionFlagged:
		out["category"] = v.Category
	}
	return json.Marshal(out)
}
