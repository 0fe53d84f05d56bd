// ABOUTME: Hand-written fakes of the cast collaborator interfaces
// ABOUTME: Shared by the engine tests
package cast

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"
)

type fakeDiscovery struct {
	mu        sync.Mutex
	routes    []RouteInfo
	subs      map[SubscriptionID]func()
	nextID    SubscriptionID
	maxActive int
	invalid   map[string]bool
	selected  []string
	selectErr error
	onSelect  func(routeID string)
}

func newFakeDiscovery(routes ...RouteInfo) *fakeDiscovery {
	return &fakeDiscovery{
		routes:  routes,
		subs:    make(map[SubscriptionID]func()),
		invalid: make(map[string]bool),
	}
}

func (d *fakeDiscovery) Routes() []RouteInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]RouteInfo(nil), d.routes...)
}

func (d *fakeDiscovery) Subscribe(appID string, onChange func()) (SubscriptionID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.invalid[appID] {
		return 0, errors.New("invalid app id")
	}
	d.nextID++
	d.subs[d.nextID] = onChange
	if len(d.subs) > d.maxActive {
		d.maxActive = len(d.subs)
	}
	return d.nextID, nil
}

func (d *fakeDiscovery) Unsubscribe(id SubscriptionID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.subs, id)
}

func (d *fakeDiscovery) Select(routeID string) error {
	d.mu.Lock()
	d.selected = append(d.selected, routeID)
	err := d.selectErr
	hook := d.onSelect
	d.mu.Unlock()

	if err != nil {
		return err
	}
	if hook != nil {
		hook(routeID)
	}
	return nil
}

func (d *fakeDiscovery) setRoutes(routes ...RouteInfo) {
	d.mu.Lock()
	d.routes = routes
	subs := make([]func(), 0, len(d.subs))
	for _, fn := range d.subs {
		subs = append(subs, fn)
	}
	d.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
}

func (d *fakeDiscovery) active() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.subs)
}

func (d *fakeDiscovery) selectCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.selected)
}

type watchers[T any] struct {
	mu   sync.Mutex
	fns  map[int]func(T)
	next int
}

func (w *watchers[T]) add(fn func(T)) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fns == nil {
		w.fns = make(map[int]func(T))
	}
	w.next++
	id := w.next
	w.fns[id] = fn
	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.fns, id)
	}
}

func (w *watchers[T]) fire(v T) {
	w.mu.Lock()
	fns := make([]func(T), 0, len(w.fns))
	for _, fn := range w.fns {
		fns = append(fns, fn)
	}
	w.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

func (w *watchers[T]) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.fns)
}

type fakeTransport struct {
	mu       sync.Mutex
	current  *fakeConn
	events   watchers[SessionEvent]
	endCalls []bool
	holdEnd  bool // EndSession never confirms
}

func (t *fakeTransport) CurrentSession() Conn {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return nil
	}
	return t.current
}

func (t *fakeTransport) setCurrent(c *fakeConn) {
	t.mu.Lock()
	t.current = c
	t.mu.Unlock()
}

func (t *fakeTransport) Watch(fn func(SessionEvent)) func() {
	return t.events.add(fn)
}

func (t *fakeTransport) EndSession(stopApp bool) {
	t.mu.Lock()
	t.endCalls = append(t.endCalls, stopApp)
	t.current = nil
	hold := t.holdEnd
	t.mu.Unlock()
	if hold {
		return
	}
	t.events.fire(SessionEvent{Kind: SessionEnded})
}

// start makes c the current session and announces it.
func (t *fakeTransport) start(c *fakeConn) {
	t.setCurrent(c)
	t.events.fire(SessionEvent{Kind: SessionStarted, Conn: c})
}

type fakeConn struct {
	mu        sync.Mutex
	session   Session
	media     *fakeMedia
	volumeErr error
	volumes   []float64
	sent      [][2]string
	handlers  map[string]func(string, string)
	events    watchers[ConnEventKind]
}

func newFakeConn(id string, media *fakeMedia) *fakeConn {
	return &fakeConn{
		session: Session{
			SessionID: id,
			AppID:     DefaultReceiverAppID,
			Receiver:  Receiver{FriendlyName: "Living Room", Volume: Volume{Level: 0.5}},
		},
		media:    media,
		handlers: make(map[string]func(string, string)),
	}
}

func (c *fakeConn) Session() Session { return c.session }
func (c *fakeConn) Connected() bool  { return true }

func (c *fakeConn) Media() MediaClient {
	if c.media == nil {
		return nil
	}
	return c.media
}

func (c *fakeConn) SetVolume(_ context.Context, level float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.volumeErr != nil {
		return c.volumeErr
	}
	c.volumes = append(c.volumes, level)
	return nil
}

func (c *fakeConn) SetMute(_ context.Context, _ bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.volumeErr
}

func (c *fakeConn) SendMessage(_ context.Context, namespace, message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, [2]string{namespace, message})
	return nil
}

func (c *fakeConn) SetMessageHandler(namespace string, fn func(string, string)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[namespace] = fn
	return nil
}

func (c *fakeConn) Watch(fn func(ConnEventKind)) func() {
	return c.events.add(fn)
}

func (c *fakeConn) deliver(namespace, message string) {
	c.mu.Lock()
	fn := c.handlers[namespace]
	c.mu.Unlock()
	if fn != nil {
		fn(namespace, message)
	}
}

type fakeMedia struct {
	mu      sync.Mutex
	status  *MediaStatus
	queue   *fakeQueue
	events  watchers[MediaEventKind]
	calls   []string
	failing map[string]error
	jumped  []int
}

func newFakeMedia() *fakeMedia {
	return &fakeMedia{queue: newFakeQueue(), failing: make(map[string]error)}
}

func (m *fakeMedia) Status() *MediaStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == nil {
		return nil
	}
	s := *m.status
	return &s
}

func (m *fakeMedia) setStatus(s MediaStatus) {
	m.mu.Lock()
	m.status = &s
	m.mu.Unlock()
}

func (m *fakeMedia) Queue() Queue { return m.queue }

func (m *fakeMedia) Watch(fn func(MediaEventKind)) func() {
	return m.events.add(fn)
}

func (m *fakeMedia) record(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, name)
	return m.failing[name]
}

func (m *fakeMedia) Load(context.Context, LoadRequest) error { return m.record("load") }
func (m *fakeMedia) Play(context.Context) error              { return m.record("play") }
func (m *fakeMedia) Pause(context.Context) error             { return m.record("pause") }
func (m *fakeMedia) Stop(context.Context) error              { return m.record("stop") }
func (m *fakeMedia) Seek(context.Context, SeekRequest) error { return m.record("seek") }
func (m *fakeMedia) SetStreamVolume(context.Context, float64) error {
	return m.record("stream_volume")
}
func (m *fakeMedia) SetStreamMute(context.Context, bool) error { return m.record("stream_mute") }
func (m *fakeMedia) SetActiveTracks(context.Context, []int64) error {
	return m.record("active_tracks")
}
func (m *fakeMedia) SetTextTrackStyle(context.Context, TextTrackStyle) error {
	return m.record("text_track_style")
}
func (m *fakeMedia) QueueLoad(context.Context, QueueLoadRequest) error {
	return m.record("queue_load")
}

func (m *fakeMedia) QueueJumpToItem(_ context.Context, itemID int) error {
	m.mu.Lock()
	m.jumped = append(m.jumped, itemID)
	m.mu.Unlock()
	return m.record("jump")
}

func (m *fakeMedia) callCount(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == name {
			n++
		}
	}
	return n
}

type fakeQueue struct {
	mu       sync.Mutex
	ids      []int
	resident map[int]bool
	fetched  []int
	events   watchers[QueueMutation]
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{resident: make(map[int]bool)}
}

// setItems replaces the queue. Items listed in resident are cached.
func (q *fakeQueue) setItems(ids []int, resident ...int) {
	q.mu.Lock()
	q.ids = ids
	q.resident = make(map[int]bool)
	for _, i := range resident {
		q.resident[i] = true
	}
	q.mu.Unlock()
}

func (q *fakeQueue) ItemCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ids)
}

func (q *fakeQueue) IndexOfItemID(itemID int) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, id := range q.ids {
		if id == itemID {
			return i
		}
	}
	return -1
}

func (q *fakeQueue) ItemAt(index int, fetch bool) *QueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	if index < 0 || index >= len(q.ids) {
		return nil
	}
	if !q.resident[index] {
		if fetch {
			q.fetched = append(q.fetched, index)
		}
		return nil
	}
	return &QueueItem{
		ItemID: q.ids[index],
		Media:  &MediaInfo{ContentID: "item-" + strconv.Itoa(q.ids[index])},
	}
}

func (q *fakeQueue) Watch(fn func(QueueMutation)) func() {
	return q.events.add(fn)
}

// fill makes index resident and reports it as an update.
func (q *fakeQueue) fill(indices ...int) {
	q.mu.Lock()
	for _, i := range indices {
		q.resident[i] = true
	}
	q.mu.Unlock()
	q.events.fire(QueueMutation{Kind: MutationUpdate, Indices: indices})
}

// jsonSerializer renders payloads as flat JSON objects.
type jsonSerializer struct{}

func (jsonSerializer) Session(s Session, status string) (json.RawMessage, error) {
	return json.Marshal(map[string]any{
		"sessionId": s.SessionID,
		"appId":     s.AppID,
		"status":    status,
	})
}

func (jsonSerializer) Media(sessionID string, st *MediaStatus, items []json.RawMessage) (json.RawMessage, error) {
	if items == nil {
		items = []json.RawMessage{}
	}
	return json.Marshal(map[string]any{
		"sessionId":     sessionID,
		"playerState":   st.PlayerState,
		"idleReason":    st.IdleReason,
		"currentItemId": st.CurrentItemID,
		"items":         items,
	})
}

func (jsonSerializer) QueueItem(item QueueItem) (json.RawMessage, error) {
	return json.Marshal(map[string]any{"itemId": item.ItemID, "orderId": item.OrderID})
}

func (jsonSerializer) Routes(routes []Route) (json.RawMessage, error) {
	return json.Marshal(routes)
}

type fakeStore struct {
	mu    sync.Mutex
	appID string
}

func (s *fakeStore) AppID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appID, nil
}

func (s *fakeStore) SetAppID(appID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appID = appID
	return nil
}

type fakeChooser struct {
	pick   chan string // route id to pick, "" dismisses
	stop   chan bool
	seen   chan []Route
	appIDs chan string
}

func newFakeChooser() *fakeChooser {
	return &fakeChooser{
		pick:   make(chan string, 1),
		stop:   make(chan bool, 1),
		seen:   make(chan []Route, 16),
		appIDs: make(chan string, 1),
	}
}

func (f *fakeChooser) PickRoute(ctx context.Context, appID string, routes <-chan []Route) (string, error) {
	f.appIDs <- appID
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case r := <-routes:
			select {
			case f.seen <- r:
			default:
			}
		case id := <-f.pick:
			return id, nil
		}
	}
}

func (f *fakeChooser) ManageSession(ctx context.Context, _ Session) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case stop := <-f.stop:
		return stop, nil
	}
}

func remoteRoute(id string) RouteInfo {
	return RouteInfo{
		Route:        Route{ID: id, DisplayName: "Device " + id},
		PlaybackType: PlaybackRemote,
	}
}

type harness struct {
	caster    *Caster
	discovery *fakeDiscovery
	transport *fakeTransport
	store     *fakeStore
}

func newHarness(t *testing.T, mutate func(*Config), routes ...RouteInfo) *harness {
	t.Helper()
	h := &harness{
		discovery: newFakeDiscovery(routes...),
		transport: &fakeTransport{},
		store:     &fakeStore{},
	}
	config := Config{
		Discovery:        h.discovery,
		Transport:        h.transport,
		Serializer:       jsonSerializer{},
		Store:            h.store,
		JoinTimeout:      2 * time.Second,
		InitScanTimeout:  time.Second,
		MediaLoadTimeout: time.Second,
		CallTimeout:      time.Second,
	}
	if mutate != nil {
		mutate(&config)
	}
	c, err := New(config)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	h.caster = c
	t.Cleanup(func() { c.Close() })
	return h
}

// flush waits until every task posted so far has run.
func (h *harness) flush(t *testing.T) {
	t.Helper()
	if !h.caster.loop.call(func() {}) {
		t.Fatal("loop stopped")
	}
}

// bind attaches conn as the current session of the media layer.
func (h *harness) bind(t *testing.T, conn *fakeConn) {
	t.Helper()
	h.transport.setCurrent(conn)
	h.caster.loop.call(func() { h.caster.media.setSession(conn) })
}

func (h *harness) nextEvent(t *testing.T, want EventType) Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-h.caster.Events():
			if ev.Type == want {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s event", want)
			return Event{}
		}
	}
}

func (h *harness) noEvent(t *testing.T, unwanted EventType, wait time.Duration) {
	t.Helper()
	timeout := time.After(wait)
	for {
		select {
		case ev := <-h.caster.Events():
			if ev.Type == unwanted {
				t.Fatalf("unexpected %s event: %s", unwanted, ev.Args)
			}
		case <-timeout:
			return
		}
	}
}

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for result")
		var zero T
		return zero
	}
}

func errorCode(err error) string {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}
