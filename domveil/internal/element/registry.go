package element

import (
	"log/slog"
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/veil/domveil/internal/dom"
	"github.com/hazyhaar/veil/idgen"
)

// Markers names the classes written onto identified nodes.
type Markers struct {
	// IDPrefix prefixes every element id; the id is also added as a class.
	IDPrefix string
	// Group is the class shared by every identified node.
	Group    string
	Hidden   string
	Revealed string
}

// DefaultMarkers returns the stock marker classes.
func DefaultMarkers() Markers {
	return Markers{
		IDPrefix: "VeilElement",
		Group:    "VeilElement",
		Hidden:   "VeilHidden",
		Revealed: "VeilRevealed",
	}
}

// Registry is the side table of identified elements for one document.
// It is not safe for concurrent use.
type Registry struct {
	doc     *dom.Document
	markers Markers
	nextID  idgen.Generator
	logger  *slog.Logger

	byID   map[string]*Element
	byNode map[*html.Node]*Element
	// used holds every id ever issued or adopted; moving holds ids forgotten
	// since the last Settle, which a re-created node may still claim.
	used   map[string]struct{}
	moving map[string]struct{}

	onForget []func(*Element)
}

// Option configures a Registry.
type Option func(*Registry)

// WithMarkers overrides the marker classes.
func WithMarkers(m Markers) Option {
	return func(r *Registry) { r.markers = m }
}

// WithGenerator replaces the id generator. The default is a fresh
// idgen.Sequence over the id prefix, so ids count from zero per registry.
func WithGenerator(g idgen.Generator) Option {
	return func(r *Registry) { r.nextID = g }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry creates an empty registry over doc.
func NewRegistry(doc *dom.Document, opts ...Option) *Registry {
	r := &Registry{
		doc:     doc,
		markers: DefaultMarkers(),
		logger:  slog.Default(),
		byID:    make(map[string]*Element),
		byNode:  make(map[*html.Node]*Element),
		used:    make(map[string]struct{}),
		moving:  make(map[string]struct{}),
	}
	for _, o := range opts {
		o(r)
	}
	if r.nextID == nil {
		r.nextID = idgen.Sequence(r.markers.IDPrefix)
	}
	return r
}

// Doc returns the document the registry writes markers to.
func (r *Registry) Doc() *dom.Document { return r.doc }

// Markers returns the marker classes in use.
func (r *Registry) Markers() Markers { return r.markers }

// Len returns the number of tracked elements.
func (r *Registry) Len() int { return len(r.byID) }

// Identify returns the record for n, creating it if n qualifies and has not
// been identified yet. created is false for an existing record and for a node
// that does not qualify (el is nil in that case).
func (r *Registry) Identify(n *html.Node) (el *Element, created bool) {
	if el := r.byNode[n]; el != nil {
		return el, false
	}
	if !Qualifies(n) {
		return nil, false
	}

	id, adopted := r.adoptID(n)
	if !adopted {
		id = r.nextID()
		// Adopted ids may sit ahead of the generator.
		for r.isUsed(id) {
			id = r.nextID()
		}
	}
	r.used[id] = struct{}{}
	delete(r.moving, id)

	guard, ok := dom.Style(n, "text-shadow")
	if !ok || guard == "" {
		guard = "none"
		r.doc.SetStyle(n, "text-shadow", guard, false)
	}

	el = &Element{
		ID:    id,
		Node:  n,
		Text:  classifiableText(n),
		Guard: guard,
	}
	r.doc.AddClass(n, id)
	r.doc.AddClass(n, r.markers.Group)

	r.byID[id] = el
	r.byNode[n] = el
	return el, true
}

// adoptID recovers an id already written on n. A fresh id from markup
// saved by an earlier pass is adopted, as is an id forgotten in the current
// delivery (a node re-created by a move). Any other id class on n is stale
// and stripped: ids are never shared or reissued.
func (r *Registry) adoptID(n *html.Node) (string, bool) {
	if !dom.HasClass(n, r.markers.Group) {
		return "", false
	}
	var id string
	var stale []string
	for _, c := range dom.Classes(n) {
		if !r.isIDClass(c) {
			continue
		}
		if id == "" && r.adoptable(c) {
			id = c
			continue
		}
		stale = append(stale, c)
	}
	for _, c := range stale {
		r.doc.RemoveClass(n, c)
	}
	if len(stale) > 0 {
		r.logger.Debug("element: dropped stale id classes", "classes", stale)
	}
	return id, id != ""
}

func (r *Registry) isIDClass(c string) bool {
	m := r.markers
	if c == m.Group || c == m.Hidden || c == m.Revealed {
		return false
	}
	return len(c) > len(m.IDPrefix) && strings.HasPrefix(c, m.IDPrefix)
}

func (r *Registry) adoptable(id string) bool {
	if _, taken := r.byID[id]; taken {
		return false
	}
	if _, ok := r.moving[id]; ok {
		return true
	}
	return !r.isUsed(id)
}

func (r *Registry) isUsed(id string) bool {
	_, ok := r.used[id]
	return ok
}

// Settle retires the ids forgotten since the last call. Call it once a
// mutation delivery has been processed.
func (r *Registry) Settle() {
	if len(r.moving) > 0 {
		r.moving = make(map[string]struct{})
	}
}

// Lookup returns the element with the given id, or nil.
func (r *Registry) Lookup(id string) *Element { return r.byID[id] }

// ByNode returns the record of n, or nil.
func (r *Registry) ByNode(n *html.Node) *Element {
	if n == nil {
		return nil
	}
	return r.byNode[n]
}

// Nearest returns the record of n or of its closest identified ancestor.
func (r *Registry) Nearest(n *html.Node) *Element {
	for p := n; p != nil; p = p.Parent {
		if el := r.byNode[p]; el != nil {
			return el
		}
	}
	return nil
}

// Within returns the identified descendants of root in document order. root
// itself is not included.
func (r *Registry) Within(root *html.Node) []*Element {
	var out []*Element
	dom.Walk(root, func(n *html.Node) bool {
		if n == root {
			return true
		}
		if el := r.byNode[n]; el != nil {
			out = append(out, el)
		}
		return true
	})
	return out
}

// SetState records a new state and echoes it as marker classes.
func (r *Registry) SetState(el *Element, s State) {
	el.State = s
	switch s {
	case Hidden:
		r.doc.RemoveClass(el.Node, r.markers.Revealed)
		r.doc.AddClass(el.Node, r.markers.Hidden)
	case Revealed:
		r.doc.RemoveClass(el.Node, r.markers.Hidden)
		r.doc.AddClass(el.Node, r.markers.Revealed)
	default:
		r.doc.RemoveClass(el.Node, r.markers.Hidden)
		r.doc.RemoveClass(el.Node, r.markers.Revealed)
	}
}

// OnForget registers fn to run for every record dropped by Forget.
func (r *Registry) OnForget(fn func(*Element)) {
	r.onForget = append(r.onForget, fn)
}

// Forget drops the records of n and its descendants, returning how many were
// dropped. Their ids stay claimable by a re-created node until Settle, then
// are retired for good.
func (r *Registry) Forget(n *html.Node) int {
	dropped := 0
	dom.Walk(n, func(c *html.Node) bool {
		el := r.byNode[c]
		if el == nil {
			return true
		}
		delete(r.byNode, c)
		if r.byID[el.ID] == el {
			delete(r.byID, el.ID)
			r.moving[el.ID] = struct{}{}
		}
		for _, fn := range r.onForget {
			fn(el)
		}
		dropped++
		return true
	})
	if dropped > 0 {
		r.logger.Debug("element: forgot removed nodes", "count", dropped)
	}
	return dropped
}
