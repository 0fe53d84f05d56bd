// ABOUTME: Caster is the single entry point the host talks to
// ABOUTME: Composes scanning, negotiation and the media session on one loop
package cast

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// Config holds caster configuration
type Config struct {
	// AppID is the receiver application used when the store has none
	// (default: DefaultReceiverAppID)
	AppID string

	// Discovery, Transport and Serializer are required
	Discovery  Discovery
	Transport  Transport
	Serializer Serializer

	// Chooser presents the interactive dialogs of RequestSession
	Chooser Chooser

	// Store persists the receiver application id
	Store Store

	// JoinTimeout bounds SelectRoute and a picked RequestSession (default: 15s)
	JoinTimeout time.Duration

	// JoinRetries is the number of premature session ends tolerated while
	// joining (default: 10)
	JoinRetries int

	// InitScanTimeout bounds the receiver availability scan of Initialize
	// (default: 5s)
	InitScanTimeout time.Duration

	// MediaLoadTimeout bounds LoadMedia and QueueLoad (default: 15s)
	MediaLoadTimeout time.Duration

	// CallTimeout bounds each call into the transport (default: 10s)
	CallTimeout time.Duration

	// EventBuffer is the capacity of the events channel (default: 64).
	// While it is full MEDIA_UPDATE frames are dropped; other events are
	// held and delivered in order.
	EventBuffer int
}

// Caster keeps a sender connected to, and synchronized with, a receiver.
type Caster struct {
	config     Config
	ctx        context.Context
	cancel     context.CancelFunc
	loop       *loop
	events     chan Event
	serializer Serializer

	scanner    *routeScanner
	negotiator *negotiator
	media      *mediaSession

	// Client scan slot, owned by the loop.
	clientScan   *scanSubscription
	scanCallback func(ScanResult)
	inCallback   atomic.Bool

	// Events waiting for room in the events channel.
	backlogMu sync.Mutex
	backlog   []Event
	pumping   bool
	pumpWG    sync.WaitGroup

	closeOnce sync.Once
}

// New creates a caster
func New(config Config) (*Caster, error) {
	if config.Discovery == nil || config.Transport == nil || config.Serializer == nil {
		return nil, newError(CodeAPINotInitialized, "discovery, transport and serializer are required")
	}

	// Set defaults
	if config.AppID == "" {
		config.AppID = DefaultReceiverAppID
	}
	if config.JoinTimeout <= 0 {
		config.JoinTimeout = 15 * time.Second
	}
	if config.JoinRetries <= 0 {
		config.JoinRetries = 10
	}
	if config.InitScanTimeout <= 0 {
		config.InitScanTimeout = 5 * time.Second
	}
	if config.MediaLoadTimeout <= 0 {
		config.MediaLoadTimeout = 15 * time.Second
	}
	if config.CallTimeout <= 0 {
		config.CallTimeout = 10 * time.Second
	}
	if config.EventBuffer <= 0 {
		config.EventBuffer = 64
	}

	appID := config.AppID
	if config.Store != nil {
		stored, err := config.Store.AppID()
		if err != nil {
			log.Printf("cast: failed to read stored app id: %v", err)
		} else if stored != "" {
			appID = stored
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	c := &Caster{
		config:     config,
		ctx:        ctx,
		cancel:     cancel,
		loop:       newLoop(),
		events:     make(chan Event, config.EventBuffer),
		serializer: config.Serializer,
	}

	c.media = &mediaSession{
		ctx:         ctx,
		loop:        c.loop,
		serializer:  config.Serializer,
		emit:        c.emit,
		callTimeout: config.CallTimeout,
		loadTimeout: config.MediaLoadTimeout,
	}

	c.negotiator = &negotiator{
		ctx:             ctx,
		loop:            c.loop,
		discovery:       config.Discovery,
		transport:       config.Transport,
		media:           c.media,
		serializer:      config.Serializer,
		chooser:         config.Chooser,
		store:           config.Store,
		emit:            c.emit,
		joinTimeout:     config.JoinTimeout,
		initScanTimeout: config.InitScanTimeout,
		endTimeout:      config.CallTimeout,
		joinRetries:     config.JoinRetries,
		appID:           appID,
	}

	c.scanner = &routeScanner{
		loop:      c.loop,
		discovery: config.Discovery,
		appID:     func() string { return c.negotiator.appID },
	}
	c.negotiator.scanner = c.scanner

	return c, nil
}

// Events returns the channel of receiver-originated events. It is closed
// by Close. A host that falls behind loses MEDIA_UPDATE frames only.
func (c *Caster) Events() <-chan Event {
	return c.events
}

// emit delivers an event without blocking the loop.
func (c *Caster) emit(t EventType, args ...json.RawMessage) {
	ev := Event{Type: t, Args: args}

	c.backlogMu.Lock()
	defer c.backlogMu.Unlock()
	if len(c.backlog) == 0 {
		select {
		case c.events <- ev:
			return
		default:
		}
	}
	if t == EventMediaUpdate {
		log.Printf("cast: event channel full, dropping %s", t)
		return
	}
	c.backlog = append(c.backlog, ev)
	if !c.pumping {
		c.pumping = true
		c.pumpWG.Add(1)
		go c.pump()
	}
}

// pump drains the backlog in order until it is empty or the caster closes.
func (c *Caster) pump() {
	defer c.pumpWG.Done()
	for {
		c.backlogMu.Lock()
		if len(c.backlog) == 0 {
			c.pumping = false
			c.backlogMu.Unlock()
			return
		}
		ev := c.backlog[0]
		c.backlogMu.Unlock()

		select {
		case c.events <- ev:
		case <-c.ctx.Done():
			c.backlogMu.Lock()
			c.backlog = nil
			c.pumping = false
			c.backlogMu.Unlock()
			return
		}

		c.backlogMu.Lock()
		c.backlog = c.backlog[1:]
		c.backlogMu.Unlock()
	}
}

// notifyScan runs a host scan callback on the loop.
func (c *Caster) notifyScan(fn func(ScanResult), res ScanResult) {
	c.inCallback.Store(true)
	defer c.inCallback.Store(false)
	fn(res)
}

var errClosed = newError(CodeAPINotInitialized, "caster closed")

// submit runs fn on the loop, or fails when the caster is closed.
func (c *Caster) submit(fail func(error), fn func()) {
	if !c.loop.post(fn) {
		fail(errClosed)
	}
}

func (c *Caster) errOp(fn func(*promise[error])) <-chan error {
	p := newPromise[error]()
	c.submit(p.resolve, func() { fn(p) })
	return p.ch
}

func (c *Caster) joinOp(fn func(*promise[JoinResult])) <-chan JoinResult {
	p := newPromise[JoinResult]()
	c.submit(func(err error) { p.resolve(failedJoin(err)) }, func() { fn(p) })
	return p.ch
}

func (c *Caster) mediaOp(fn func(*promise[MediaResult])) <-chan MediaResult {
	p := newPromise[MediaResult]()
	c.submit(func(err error) { p.resolve(failedMedia(err)) }, func() { fn(p) })
	return p.ch
}

// AppID returns the configured receiver application id.
func (c *Caster) AppID() string {
	var appID string
	if !c.loop.call(func() { appID = c.negotiator.appID }) {
		return ""
	}
	return appID
}

// Setup stops any client route scan and emits a SETUP event.
func (c *Caster) Setup() <-chan error {
	return c.errOp(func(p *promise[error]) {
		c.stopClientScan("Scan stopped because setup triggered.")
		c.emit(EventSetup)
		p.resolve(nil)
	})
}

// Initialize sets the receiver application id and reports receiver
// availability through RECEIVER_LISTENER.
func (c *Caster) Initialize(appID string) <-chan error {
	return c.errOp(func(p *promise[error]) {
		c.negotiator.initialize(appID, p)
	})
}

// RequestSession lets the user pick a receiver, or manage the current
// session when one exists.
func (c *Caster) RequestSession() <-chan JoinResult {
	return c.joinOp(c.negotiator.requestSession)
}

// SelectRoute joins the route with routeID without user interaction.
func (c *Caster) SelectRoute(routeID string) <-chan JoinResult {
	return c.joinOp(func(p *promise[JoinResult]) {
		c.negotiator.selectRoute(routeID, p)
	})
}

// EndSession ends the current session, optionally stopping the receiver
// application.
func (c *Caster) EndSession(stopApp bool) <-chan error {
	return c.errOp(func(p *promise[error]) {
		c.negotiator.endSession(stopApp, p)
	})
}

// SessionStop ends the session and stops the receiver application.
func (c *Caster) SessionStop() <-chan error { return c.EndSession(true) }

// SessionLeave disconnects and leaves the receiver application running.
func (c *Caster) SessionLeave() <-chan error { return c.EndSession(false) }

// StartRouteScan scans until StopRouteScan, calling fn with every route
// update. A newer scan or Setup ends the previous one with ErrCancel. fn
// runs on the engine loop and must not block.
func (c *Caster) StartRouteScan(fn func(ScanResult)) {
	c.submit(func(err error) { fn(ScanResult{Err: err}) }, func() {
		if c.scanCallback != nil {
			c.notifyScan(c.scanCallback, ScanResult{Err: newError(CodeCancel, "Started a new route scan before stopping previous one.")})
		}
		c.scanCallback = fn

		// Only one client scan may hold a discovery registration.
		c.scanner.stop(c.clientScan, func() {
			c.clientScan = c.scanner.start(ScanForever, c.onClientRoutes, nil)
		})
	})
}

func (c *Caster) onClientRoutes(sub *scanSubscription, routes []Route) {
	if c.scanCallback == nil {
		c.scanner.stop(sub, nil)
		return
	}
	raw, err := c.serializer.Routes(routes)
	if err != nil {
		log.Printf("cast: failed to serialize routes: %v", err)
	}
	c.notifyScan(c.scanCallback, ScanResult{Routes: routes, Payload: raw})
}

// StopRouteScan stops the client route scan.
func (c *Caster) StopRouteScan() <-chan error {
	return c.errOp(func(p *promise[error]) {
		c.stopClientScan("Scan stopped.")
		p.resolve(nil)
	})
}

func (c *Caster) stopClientScan(reason string) {
	c.scanner.stop(c.clientScan, func() {
		c.clientScan = nil
		if c.scanCallback != nil {
			cb := c.scanCallback
			c.scanCallback = nil
			c.notifyScan(cb, ScanResult{Err: newError(CodeCancel, "%s", reason)})
		}
	})
}

// SetReceiverVolumeLevel sets the device volume.
func (c *Caster) SetReceiverVolumeLevel(level float64) <-chan error {
	return c.errOp(func(p *promise[error]) { c.media.setReceiverVolume(level, p) })
}

// SetReceiverMuted mutes or unmutes the device.
func (c *Caster) SetReceiverMuted(muted bool) <-chan error {
	return c.errOp(func(p *promise[error]) { c.media.setReceiverMuted(muted, p) })
}

// SendMessage sends message on a custom namespace.
func (c *Caster) SendMessage(namespace, message string) <-chan error {
	return c.errOp(func(p *promise[error]) { c.media.sendMessage(namespace, message, p) })
}

// AddMessageListener forwards receiver messages on namespace as
// RECEIVER_MESSAGE events.
func (c *Caster) AddMessageListener(namespace string) <-chan error {
	return c.errOp(func(p *promise[error]) {
		c.media.addMessageListener(namespace)
		p.resolve(nil)
	})
}

// LoadMedia loads a single media item.
func (c *Caster) LoadMedia(req LoadRequest) <-chan MediaResult {
	return c.mediaOp(func(p *promise[MediaResult]) { c.media.loadMedia(req, p) })
}

// MediaPlay resumes playback.
func (c *Caster) MediaPlay() <-chan error {
	return c.errOp(c.media.play)
}

// MediaPause pauses playback.
func (c *Caster) MediaPause() <-chan error {
	return c.errOp(c.media.pause)
}

// MediaStop stops and unloads the current media.
func (c *Caster) MediaStop() <-chan error {
	return c.errOp(c.media.stop)
}

// MediaSeek moves the playhead.
func (c *Caster) MediaSeek(req SeekRequest) <-chan error {
	return c.errOp(func(p *promise[error]) { c.media.seek(req, p) })
}

// SetMediaVolume sets the stream volume and/or mute state. Nil values are
// left unchanged.
func (c *Caster) SetMediaVolume(level *float64, muted *bool) <-chan error {
	return c.errOp(func(p *promise[error]) { c.media.setStreamVolume(level, muted, p) })
}

// MediaEditTracksInfo sets the active tracks and the text track style.
func (c *Caster) MediaEditTracksInfo(trackIDs []int64, style *TextTrackStyle) <-chan error {
	return c.errOp(func(p *promise[error]) { c.media.editTracks(trackIDs, style, p) })
}

// QueueLoad replaces the receiver queue.
func (c *Caster) QueueLoad(req QueueLoadRequest) <-chan MediaResult {
	return c.mediaOp(func(p *promise[MediaResult]) { c.media.queueLoad(req, p) })
}

// QueueJumpToItem plays the queue item with itemID.
func (c *Caster) QueueJumpToItem(itemID int) <-chan error {
	return c.errOp(func(p *promise[error]) { c.media.jumpToItem(itemID, p) })
}

// Close stops scanning, ends the session and releases every subscription.
// Operations issued afterwards fail with ErrAPINotInitialized. Called from
// a route scan callback, Close returns at once and finishes after the
// callback returns.
func (c *Caster) Close() error {
	if c.inCallback.Load() {
		go c.close()
		return nil
	}
	c.close()
	return nil
}

func (c *Caster) close() {
	c.closeOnce.Do(func() {
		c.loop.call(func() {
			c.stopClientScan("Caster closed.")
			c.negotiator.shutdown()
			if c.config.Transport.CurrentSession() != nil {
				c.config.Transport.EndSession(true)
			}
			c.media.setSession(nil)
		})
		c.cancel()
		c.loop.stop()
		c.pumpWG.Wait()
		close(c.events)
	})
}
