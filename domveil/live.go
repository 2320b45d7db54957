package domveil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/net/html"

	"github.com/hazyhaar/veil/domveil/internal/browser"
	"github.com/hazyhaar/veil/domveil/internal/dom"
	"github.com/hazyhaar/veil/domveil/internal/live"
	"github.com/hazyhaar/veil/domveil/internal/selection"
	"github.com/hazyhaar/veil/domveil/protocol"
)

// livePushTimeout bounds one CDP round trip that writes back to the page.
const livePushTimeout = 10 * time.Second

type livePush struct {
	patches []live.Patch
	sel     *live.SelectionPatch
}

// Live masks a page open in Chrome. The page is mirrored into a Session:
// gestures, selections and child-list mutations flow from the page to the
// session, class and style changes and snapped selections flow back.
type Live struct {
	s    *Session
	mgr  *browser.Manager
	tab  *browser.Tab
	host *live.Host
	keys *live.Keys

	push    chan livePush
	done    <-chan struct{}
	lastSel selection.Selection
}

// OpenLive launches (or connects to) Chrome as configured in cfg.Browser,
// opens pageURL in a stealth tab and mirrors it into a new Session.
func OpenLive(ctx context.Context, cfg *Config, pageURL string, opts ...Option) (*Live, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	o := options{}
	for _, fn := range opts {
		fn(&o)
	}

	mgr := browser.NewManager(browser.Config{
		RemoteURL:        cfg.Browser.Remote,
		ResourceBlocking: cfg.Browser.ResourceBlocking,
		Mode:             browser.ParseMode(cfg.Browser.Stealth),
		Logger:           o.logger,
	})
	if _, err := mgr.Start(ctx); err != nil {
		return nil, err
	}
	tab, err := browser.OpenTab(ctx, mgr, pageURL)
	if err != nil {
		mgr.Close()
		return nil, err
	}
	host := live.NewHost(tab.Page, live.ScriptOptions{
		IDPrefix: cfg.Markers.IDPrefix,
		Group:    cfg.Markers.Group,
		Hidden:   cfg.Markers.Hidden,
	}, o.logger)
	markup, err := host.Inject(ctx)
	if err != nil {
		tab.Close()
		mgr.Close()
		return nil, err
	}

	s, err := NewFromString(cfg, markup, opts...)
	if err != nil {
		tab.Close()
		mgr.Close()
		return nil, err
	}
	l := &Live{
		s:    s,
		mgr:  mgr,
		tab:  tab,
		host: host,
		keys: live.NewKeys(s.doc.Root()),
		push: make(chan livePush, 64),
	}
	s.onAfterEvent(l.collect)
	s.logger.Info("domveil: live page mirrored", "url", pageURL, "keys", l.keys.Len())
	return l, nil
}

// Session returns the mirrored session.
func (l *Live) Session() *Session { return l.s }

// Run processes page events and session events until ctx is done or the
// session is closed.
func (l *Live) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	l.done = ctx.Done()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		l.pushLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		l.host.Listen(ctx, func(ev live.Event) {
			l.s.post(func() { l.handle(ev) })
		})
	}()

	err := l.s.Run(ctx)
	cancel()
	wg.Wait()
	return err
}

// Close stops the session, closes the tab and shuts Chrome down.
func (l *Live) Close() error {
	err := l.s.Close()
	if cerr := l.tab.Close(); cerr != nil {
		l.s.logger.Debug("domveil: close tab", "error", cerr)
	}
	l.mgr.Close()
	return err
}

// handle applies one page event. Runs on the loop.
func (l *Live) handle(ev live.Event) {
	s := l.s
	switch ev.Type {
	case live.EventClick:
		if n := l.keys.Node(ev.Key); n != nil {
			s.vis.Click(n)
		}
	case live.EventTouch:
		phase := protocol.TouchPhase(ev.Phase)
		if n := l.keys.Node(ev.Key); n != nil && phase.Valid() {
			s.touch(n, phase)
		}
	case live.EventSelection:
		sel := selection.Selection{}
		if ev.Anchor != nil && ev.Focus != nil {
			a, okA := l.point(ev.Anchor)
			f, okF := l.point(ev.Focus)
			if okA && okF {
				sel = selection.Selection{Anchor: a, Focus: f}
			}
		}
		s.sel.Changed(sel)
		l.lastSel = s.sel.Current()
	case live.EventMutation:
		l.mutate(ev)
	}
}

func (l *Live) mutate(ev live.Event) {
	s := l.s
	for _, key := range ev.Removed {
		n := l.keys.Node(key)
		if n == nil {
			continue
		}
		l.keys.Remove(n)
		s.doc.RemoveChild(n)
	}
	for _, a := range ev.Added {
		parent := l.keys.Node(a.Parent)
		if parent == nil {
			s.logger.Debug("domveil: live insert under unknown parent", "parent", a.Parent)
			continue
		}
		nodes, err := dom.ParseFragment(a.HTML, parent)
		if err != nil {
			s.logger.Warn("domveil: live insert", "error", err)
			continue
		}
		before := l.keys.Node(a.Before)
		for _, n := range nodes {
			s.doc.InsertBefore(parent, n, before)
			l.keys.Add(n)
		}
	}
}

func (l *Live) point(tp *live.TextPoint) (selection.Point, bool) {
	n := l.keys.Node(tp.Key)
	if n == nil {
		return selection.Point{}, false
	}
	if tp.Text < 0 {
		return selection.Point{Node: n, Offset: tp.Offset}, true
	}
	t := live.TextChild(n, tp.Text)
	if t == nil {
		return selection.Point{Node: n, Offset: 0}, true
	}
	return selection.Point{Node: t, Offset: selection.UTF16ToByte(t.Data, tp.Offset)}, true
}

func pagePoint(p selection.Point) (live.TextPoint, bool) {
	if p.Node == nil {
		return live.TextPoint{}, false
	}
	if p.Node.Type == html.TextNode {
		if p.Node.Parent == nil {
			return live.TextPoint{}, false
		}
		key := dom.Attr(p.Node.Parent, live.KeyAttr)
		return live.TextPoint{
			Key:    key,
			Text:   live.TextIndex(p.Node),
			Offset: selection.ByteToUTF16(p.Node.Data, p.Offset),
		}, key != ""
	}
	key := dom.Attr(p.Node, live.KeyAttr)
	return live.TextPoint{Key: key, Text: -1, Offset: p.Offset}, key != ""
}

// collect queues the attribute changes and selection moves of the last
// event for the page. Runs on the loop after every event.
func (l *Live) collect() {
	var item livePush
	item.patches = live.Patches(l.s.doc.TakeDirty())
	if cur := l.s.sel.Current(); cur != l.lastSel {
		l.lastSel = cur
		a, okA := pagePoint(cur.Anchor)
		f, okF := pagePoint(cur.Focus)
		if okA && okF {
			item.sel = &live.SelectionPatch{Anchor: a, Focus: f}
		}
	}
	if len(item.patches) == 0 && item.sel == nil {
		return
	}
	select {
	case l.push <- item:
	case <-l.done:
	}
}

func (l *Live) pushLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-l.push:
			pctx, cancel := context.WithTimeout(ctx, livePushTimeout)
			if err := l.host.Apply(pctx, item.patches); err != nil {
				l.s.logger.Warn("domveil: live push", "error", err)
			}
			if item.sel != nil {
				if err := l.host.Select(pctx, *item.sel); err != nil {
					l.s.logger.Warn("domveil: live select", "error", err)
				}
			}
			cancel()
		}
	}
}

// String identifies the live page in logs.
func (l *Live) String() string {
	return fmt.Sprintf("live(%s %s)", l.s.id, l.tab.PageURL)
}
