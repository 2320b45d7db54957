// Package protocol defines the messages exchanged between a veil session and
// its controller. These are the public wire contract: every message is a flat
// JSON object, outbound ones tagged by "messageType" and inbound ones by
// "name". There is no schema versioning.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Outbound message kinds.
const (
	KindPredict          = "predict"
	KindTextHidden       = "textHidden"
	KindAddTextToAPI     = "addTextToAPI"
	KindElementRevealed  = "elementRevealed"
	KindSelectionChanged = "selectionChanged"
	KindSelectionEnded   = "selectionEnded"
)

// Outbound is a message sent to the controller. The set of implementations
// is closed.
type Outbound interface {
	Kind() string
	outbound()
}

// Emitter accepts outbound messages. Emission is fire-and-forget.
type Emitter interface {
	Emit(msg Outbound)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(Outbound)

func (f EmitterFunc) Emit(msg Outbound) { f(msg) }

// Predict is a classification request mapping element ids to their text.
type Predict struct {
	Content map[string]string `json:"content"`
}

// TextHidden reports the selected text hidden for a new category.
type TextHidden struct {
	Text string `json:"text"`
}

// AddTextToAPI reports text the user labelled with a category.
type AddTextToAPI struct {
	Text     string `json:"text"`
	Category string `json:"category"`
}

// ElementRevealed notes that a hidden element was tapped open.
type ElementRevealed struct{}

// SelectionChanged reports a non-empty user selection.
type SelectionChanged struct {
	Content         string `json:"content"`
	IsHiddenElement bool   `json:"isHiddenElement"`
}

// SelectionEnded notes that the selection was cleared.
type SelectionEnded struct{}

func (Predict) Kind() string          { return KindPredict }
func (TextHidden) Kind() string       { return KindTextHidden }
func (AddTextToAPI) Kind() string     { return KindAddTextToAPI }
func (ElementRevealed) Kind() string  { return KindElementRevealed }
func (SelectionChanged) Kind() string { return KindSelectionChanged }
func (SelectionEnded) Kind() string   { return KindSelectionEnded }

func (Predict) outbound()          {}
func (TextHidden) outbound()       {}
func (AddTextToAPI) outbound()     {}
func (ElementRevealed) outbound()  {}
func (SelectionChanged) outbound() {}
func (SelectionEnded) outbound()   {}

// MarshalJSON flattens the message type tag into the payload.
func (m Predict) MarshalJSON() ([]byte, error) {
	type fields Predict
	if m.Content == nil {
		m.Content = map[string]string{}
	}
	return json.Marshal(struct {
		MessageType string `json:"messageType"`
		fields
	}{KindPredict, fields(m)})
}

func (m TextHidden) MarshalJSON() ([]byte, error) {
	type fields TextHidden
	return json.Marshal(struct {
		MessageType string `json:"messageType"`
		fields
	}{KindTextHidden, fields(m)})
}

func (m AddTextToAPI) MarshalJSON() ([]byte, error) {
	type fields AddTextToAPI
	return json.Marshal(struct {
		MessageType string `json:"messageType"`
		fields
	}{KindAddTextToAPI, fields(m)})
}

func (m SelectionChanged) MarshalJSON() ([]byte, error) {
	type fields SelectionChanged
	return json.Marshal(struct {
		MessageType string `json:"messageType"`
		fields
	}{KindSelectionChanged, fields(m)})
}

func (ElementRevealed) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		MessageType string `json:"messageType"`
	}{KindElementRevealed})
}

func (SelectionEnded) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		MessageType string `json:"messageType"`
	}{KindSelectionEnded})
}

// MarshalOutbound serialises an outbound message to flat JSON.
func MarshalOutbound(m Outbound) ([]byte, error) {
	return json.Marshal(m)
}

// UnmarshalOutbound decodes a flat outbound message.
func UnmarshalOutbound(data []byte) (Outbound, error) {
	var head struct {
		MessageType string `json:"messageType"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("protocol: outbound: %w", err)
	}

	var (
		m   Outbound
		err error
	)
	switch head.MessageType {
	case KindPredict:
		var v Predict
		err = json.Unmarshal(data, &v)
		m = v
	case KindTextHidden:
		var v TextHidden
		err = json.Unmarshal(data, &v)
		m = v
	case KindAddTextToAPI:
		var v AddTextToAPI
		err = json.Unmarshal(data, &v)
		m = v
	case KindSelectionChanged:
		var v SelectionChanged
		err = json.Unmarshal(data, &v)
		m = v
	case KindElementRevealed:
		m = ElementRevealed{}
	case KindSelectionEnded:
		m = SelectionEnded{}
	default:
		return nil, fmt.Errorf("protocol: unknown messageType %q", head.MessageType)
	}
	if err != nil {
		return nil, fmt.Errorf("protocol: %s: %w", head.MessageType, err)
	}
	return m, nil
}
