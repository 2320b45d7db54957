// Package visibility owns the Normal/Hidden/Revealed lifecycle of identified
// elements: hide commands, click and long-press reveals, and the recursive
// propagation rules between nested elements.
package visibility

import (
	"log/slog"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/veil/domveil/internal/dom"
	"github.com/hazyhaar/veil/domveil/internal/element"
	"github.com/hazyhaar/veil/domveil/internal/schedule"
	"github.com/hazyhaar/veil/domveil/protocol"
)

const (
	// DefaultLongPress is how long a touch must be held to reveal.
	DefaultLongPress = 500 * time.Millisecond
	// DefaultCategory labels text sent back by selectionUnflagged.
	DefaultCategory = "harmless"
)

// Inline declarations written while an element is hidden. text-shadow is
// handled separately through the identification guard.
var hiddenStyle = []struct {
	prop, val string
	important bool
}{
	{"color", "transparent", true},
	{"-webkit-user-select", "none", false},
	{"user-select", "none", false},
}

const hiddenShadow = "0 0 20px black"

type savedDecl struct {
	prop, val string
	important bool
	present   bool
}

// Machine applies visibility transitions. It is not safe for concurrent use;
// the session event loop is its only caller.
type Machine struct {
	reg       *element.Registry
	doc       *dom.Document
	emit      protocol.Emitter
	sched     schedule.Scheduler
	longPress time.Duration
	category  string
	logger    *slog.Logger

	// last is the most recently revealed element; nil until a reveal happens.
	last *element.Element

	presses map[*element.Element]schedule.Timer
	saved   map[*element.Element][]savedDecl
}

// Option configures a Machine.
type Option func(*Machine)

// WithLongPress sets the long-press threshold. Default: 500ms.
func WithLongPress(d time.Duration) Option {
	return func(m *Machine) {
		if d > 0 {
			m.longPress = d
		}
	}
}

// WithDefaultCategory sets the category used by SelectionUnflagged.
func WithDefaultCategory(c string) Option {
	return func(m *Machine) {
		if c != "" {
			m.category = c
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.logger = l
		}
	}
}

// New creates a Machine over reg. Records dropped from reg release their
// pending timers and saved styles.
func New(reg *element.Registry, emit protocol.Emitter, sched schedule.Scheduler, opts ...Option) *Machine {
	m := &Machine{
		reg:       reg,
		doc:       reg.Doc(),
		emit:      emit,
		sched:     sched,
		longPress: DefaultLongPress,
		category:  DefaultCategory,
		logger:    slog.Default(),
		presses:   make(map[*element.Element]schedule.Timer),
		saved:     make(map[*element.Element][]savedDecl),
	}
	for _, o := range opts {
		o(m)
	}
	reg.OnForget(m.forget)
	return m
}

// LastRevealed returns the most recently revealed element, or nil.
func (m *Machine) LastRevealed() *element.Element { return m.last }

// HideCommand handles an explicit hide naming an element id. Unknown ids and
// elements already Hidden or Revealed are left alone.
func (m *Machine) HideCommand(id string) bool {
	el := m.reg.Lookup(id)
	if el == nil {
		m.logger.Debug("visibility: hide for unknown id", "id", id)
		return false
	}
	if el.State != element.Normal {
		return false
	}
	m.Hide(el)
	return true
}

// Hide masks el and every Revealed element beneath it.
func (m *Machine) Hide(el *element.Element) {
	m.hideOne(el)
	// Descendants are collected first so re-hiding cannot affect the walk.
	var revealed []*element.Element
	for _, d := range m.reg.Within(el.Node) {
		if d.State == element.Revealed {
			revealed = append(revealed, d)
		}
	}
	for _, d := range revealed {
		m.hideOne(d)
	}
}

func (m *Machine) hideOne(el *element.Element) {
	if el.State != element.Hidden {
		m.save(el)
	}
	for _, d := range hiddenStyle {
		m.doc.SetStyle(el.Node, d.prop, d.val, d.important)
	}
	m.doc.SetStyle(el.Node, "text-shadow", hiddenShadow, false)
	m.reg.SetState(el, element.Hidden)
	el.Bound = true
}

// save records the inline values the hidden style is about to overwrite.
func (m *Machine) save(el *element.Element) {
	decls := dom.Declarations(el.Node)
	saved := make([]savedDecl, 0, len(hiddenStyle))
	for _, h := range hiddenStyle {
		s := savedDecl{prop: h.prop}
		for _, d := range decls {
			if d.Property == h.prop {
				s.val, s.important, s.present = d.Value, d.Important, true
			}
		}
		saved = append(saved, s)
	}
	m.saved[el] = saved
}

// Reveal unmasks el, then keeps revealing upward while the immediate parent
// is an identified Hidden element. The topmost element revealed becomes the
// last revealed reference.
func (m *Machine) Reveal(el *element.Element) {
	visited := make(map[*element.Element]bool)
	for cur := el; cur != nil && !visited[cur]; {
		visited[cur] = true
		m.revealOne(cur)

		parent := m.reg.ByNode(cur.Node.Parent)
		if parent == nil || parent.State != element.Hidden {
			break
		}
		cur = parent
	}
}

func (m *Machine) revealOne(el *element.Element) {
	saved, ok := m.saved[el]
	if !ok {
		for _, h := range hiddenStyle {
			saved = append(saved, savedDecl{prop: h.prop})
		}
	}
	for _, s := range saved {
		if s.present {
			m.doc.SetStyle(el.Node, s.prop, s.val, s.important)
		} else {
			m.doc.RemoveStyle(el.Node, s.prop)
		}
	}
	delete(m.saved, el)
	m.doc.SetStyle(el.Node, "text-shadow", el.Guard, false)
	m.reg.SetState(el, element.Revealed)
	m.last = el
}

// Click handles a tap on target. The event bubbles from target to the root;
// every bound element that is Hidden when reached is announced and revealed.
// It reports whether the default action must be suppressed.
func (m *Machine) Click(target *html.Node) bool {
	prevent := false
	for n := target; n != nil; n = n.Parent {
		el := m.reg.ByNode(n)
		if el == nil || !el.Bound || el.State != element.Hidden {
			continue
		}
		prevent = true
		m.emit.Emit(protocol.ElementRevealed{})
		m.Reveal(el)
	}
	return prevent
}

// TouchStart arms a long-press timer on every bound element on the path from
// target to the root. A press already pending on an element is restarted.
func (m *Machine) TouchStart(target *html.Node) {
	for n := target; n != nil; n = n.Parent {
		el := m.reg.ByNode(n)
		if el == nil || !el.Bound {
			continue
		}
		m.cancel(el)
		m.presses[el] = m.sched.AfterFunc(m.longPress, func() {
			delete(m.presses, el)
			if el.State == element.Hidden && m.reg.Lookup(el.ID) == el {
				m.logger.Debug("visibility: long press reveal", "id", el.ID)
				m.Reveal(el)
			}
		})
	}
}

// TouchEnd cancels pending long presses on the path from target.
func (m *Machine) TouchEnd(target *html.Node) { m.cancelPath(target) }

// TouchLeave cancels pending long presses on the path from target.
func (m *Machine) TouchLeave(target *html.Node) { m.cancelPath(target) }

// TouchCancel cancels pending long presses on the path from target.
func (m *Machine) TouchCancel(target *html.Node) { m.cancelPath(target) }

func (m *Machine) cancelPath(target *html.Node) {
	for n := target; n != nil; n = n.Parent {
		if el := m.reg.ByNode(n); el != nil {
			m.cancel(el)
		}
	}
}

func (m *Machine) cancel(el *element.Element) {
	if t, ok := m.presses[el]; ok {
		t.Stop()
		delete(m.presses, el)
	}
}

// PendingPresses returns the number of armed long-press timers.
func (m *Machine) PendingPresses() int { return len(m.presses) }

// UnflagIgnored re-hides the last revealed element and the first identified
// image inside it, then clears the reference. It is a no-op when nothing
// was revealed.
func (m *Machine) UnflagIgnored() bool {
	el := m.last
	if el == nil {
		return false
	}
	m.Hide(el)
	if img := dom.FindFirst(el.Node, atom.Img); img != nil && img != el.Node {
		if imgEl := m.reg.ByNode(img); imgEl != nil {
			m.Hide(imgEl)
		}
	}
	m.last = nil
	return true
}

// SelectionUnflagged returns the last revealed element to Hidden and sends
// its current text back under the default category. It is a no-op when
// nothing was revealed.
func (m *Machine) SelectionUnflagged() bool {
	el := m.last
	if el == nil {
		return false
	}
	m.Hide(el)
	m.emit.Emit(protocol.AddTextToAPI{Text: el.CurrentText(), Category: m.category})
	m.last = nil
	return true
}

func (m *Machine) forget(el *element.Element) {
	m.cancel(el)
	delete(m.saved, el)
	if m.last == el {
		m.last = nil
	}
}
