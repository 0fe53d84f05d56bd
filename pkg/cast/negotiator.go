// ABOUTME: Session negotiation: joining routes, interactive pick and session teardown
// ABOUTME: Retries transient start failures within a bounded budget and a hard timeout
package cast

import (
	"context"
	"encoding/json"
	"log"
	"time"
)

// startListener reacts to session lifecycle notifications while a session
// is being started. The failure callbacks report whether to stop listening.
type startListener struct {
	onJoin             func(Conn)
	onStartFailed      func(code int) bool
	onEndedBeforeStart func(code int) bool
	cancel             func()
}

// joinAttempt is the state of one RequestSession or SelectRoute call.
type joinAttempt struct {
	routeID           string
	attemptsRemaining int
	foundRoute        bool
	resultSent        bool
	scan              *scanSubscription
	timer             *deferred
	listener          *startListener
	closeDialog       context.CancelFunc
	result            *promise[JoinResult]
}

type negotiator struct {
	ctx        context.Context
	loop       *loop
	discovery  Discovery
	transport  Transport
	scanner    *routeScanner
	media      *mediaSession
	serializer Serializer
	chooser    Chooser
	store      Store
	emit       func(EventType, ...json.RawMessage)

	joinTimeout     time.Duration
	initScanTimeout time.Duration
	endTimeout      time.Duration
	joinRetries     int

	appID    string
	listener *startListener
	join     *joinAttempt
	initScan *scanSubscription
	ends     map[*endWait]struct{}
}

// isTransient reports whether a start failure is worth retrying without
// consuming the retry budget.
func isTransient(code int) bool {
	return code == StatusNetworkError || code == StatusTimeout
}

// listenForConnection installs l as the only start listener.
func (n *negotiator) listenForConnection(l *startListener) {
	n.stopListening()
	n.listener = l
	l.cancel = n.transport.Watch(func(ev SessionEvent) {
		n.loop.post(func() { n.onSessionEvent(l, ev) })
	})
}

func (n *negotiator) stopListening() {
	if n.listener == nil {
		return
	}
	n.listener.cancel()
	n.listener = nil
}

func (n *negotiator) onSessionEvent(l *startListener, ev SessionEvent) {
	if n.listener != l {
		return
	}
	switch ev.Kind {
	case SessionStarted:
		n.stopListening()
		n.media.setSession(ev.Conn)
		l.onJoin(ev.Conn)
	case SessionStartFailed:
		if l.onStartFailed(ev.Code) && n.listener == l {
			n.stopListening()
		}
	case SessionEnded:
		if l.onEndedBeforeStart(ev.Code) && n.listener == l {
			n.stopListening()
		}
	}
}

func (n *negotiator) connected() Conn {
	conn := n.transport.CurrentSession()
	if conn == nil || !conn.Connected() {
		return nil
	}
	return conn
}

// begin registers a new join attempt, cancelling any unfinished one.
func (n *negotiator) begin(j *joinAttempt) {
	if n.join != nil {
		n.finish(n.join, failedJoin(newError(CodeCancel, "superseded by a newer session request")))
	}
	n.join = j
}

// finish delivers the attempt's only result and releases its resources.
func (n *negotiator) finish(j *joinAttempt, res JoinResult) {
	if j.resultSent {
		return
	}
	j.resultSent = true
	if j.listener != nil && n.listener == j.listener {
		n.stopListening()
	}
	n.scanner.stop(j.scan, nil)
	j.scan = nil
	j.timer.cancel()
	if j.closeDialog != nil {
		j.closeDialog()
	}
	if n.join == j {
		n.join = nil
	}
	j.result.resolve(res)
}

func (n *negotiator) joined(j *joinAttempt, conn Conn) {
	session := conn.Session()
	raw, err := n.serializer.Session(session, "")
	if err != nil {
		log.Printf("cast: failed to serialize session: %v", err)
	}
	n.finish(j, JoinResult{Session: &session, Payload: raw})
}

// selectRoute joins routeID once it shows up in a scan.
func (n *negotiator) selectRoute(routeID string, p *promise[JoinResult]) {
	if n.connected() != nil {
		p.resolve(failedJoin(newError(CodeSessionError, "Leave or stop current session before attempting to join new session.")))
		return
	}

	j := &joinAttempt{
		routeID:           routeID,
		attemptsRemaining: n.joinRetries,
		result:            p,
	}
	n.begin(j)

	j.listener = &startListener{
		onJoin: func(conn Conn) {
			n.joined(j, conn)
		},
		onStartFailed: func(code int) bool {
			if j.resultSent {
				return true
			}
			if isTransient(code) {
				n.retry(j)
				return false
			}
			n.finish(j, failedJoin(newError(CodeSessionError, "Failed to start session with error code: %d", code)))
			return true
		},
		onEndedBeforeStart: func(code int) bool {
			if j.resultSent {
				return true
			}
			if j.attemptsRemaining > 0 {
				j.attemptsRemaining--
				n.retry(j)
				return false
			}
			n.finish(j, failedJoin(newError(CodeSessionError,
				"Failed to join existing route (%s) %d times before giving up.", routeID, n.joinRetries+1)))
			return true
		},
	}
	n.listenForConnection(j.listener)

	j.scan = n.scanner.start(n.joinTimeout, func(_ *scanSubscription, routes []Route) {
		n.tryJoin(j, routes)
	}, func() {
		n.finish(j, failedJoin(newError(CodeTimeout,
			"Failed to join route (%s) after %s and %d tries.", routeID, n.joinTimeout, n.joinRetries-j.attemptsRemaining+1)))
	})
}

// retry feeds the current routes straight back into the join.
func (n *negotiator) retry(j *joinAttempt) {
	j.foundRoute = false
	n.tryJoin(j, n.scanner.routes())
}

func (n *negotiator) tryJoin(j *joinAttempt, routes []Route) {
	if j.resultSent || j.foundRoute {
		return
	}
	for _, r := range routes {
		if r.ID != j.routeID {
			continue
		}
		j.foundRoute = true
		if err := n.discovery.Select(r.ID); err != nil {
			// The route vanished between the scan and the select; the next
			// update tries again.
			log.Printf("cast: select route %s failed: %v", r.ID, err)
			j.foundRoute = false
		}
		return
	}
}

// requestSession shows the device chooser when no session exists and the
// manage dialog otherwise.
func (n *negotiator) requestSession(p *promise[JoinResult]) {
	if n.chooser == nil {
		p.resolve(failedJoin(newError(CodeSessionError, "no device chooser configured")))
		return
	}

	j := &joinAttempt{result: p}
	n.begin(j)

	if conn := n.connected(); conn != nil {
		n.manageSession(j, conn)
		return
	}

	j.listener = &startListener{
		onJoin: func(conn Conn) {
			n.joined(j, conn)
		},
		onStartFailed: func(code int) bool {
			n.finish(j, failedJoin(newError(CodeSessionError, "Failed to start session with error code: %d", code)))
			return true
		},
		onEndedBeforeStart: func(code int) bool {
			n.finish(j, failedJoin(newError(CodeSessionError, "Session ended before it started (code %d)", code)))
			return true
		},
	}
	n.listenForConnection(j.listener)

	// The chooser always sees the latest route list.
	routes := make(chan []Route, 1)
	j.scan = n.scanner.start(ScanForever, func(_ *scanSubscription, update []Route) {
		select {
		case <-routes:
		default:
		}
		routes <- update
	}, nil)

	appID := n.appID
	ctx, cancel := context.WithCancel(n.ctx)
	j.closeDialog = cancel
	go func() {
		routeID, err := n.chooser.PickRoute(ctx, appID, routes)
		n.loop.post(func() {
			n.scanner.stop(j.scan, nil)
			j.scan = nil
			if j.resultSent {
				return
			}
			if err != nil {
				log.Printf("cast: device chooser failed: %v", err)
			}
			if err != nil || routeID == "" {
				n.finish(j, failedJoin(newError(CodeCancel, "device chooser dismissed")))
				return
			}
			j.routeID = routeID
			j.timer = n.loop.after(n.joinTimeout, func() {
				n.finish(j, failedJoin(newError(CodeTimeout, "Failed to join route (%s) after %s.", routeID, n.joinTimeout)))
			})
			if err := n.discovery.Select(routeID); err != nil {
				n.finish(j, failedJoin(newError(CodeSessionError, "select route %s: %v", routeID, err)))
			}
		})
	}()
}

// manageSession offers to stop casting. Any outcome resolves cancel.
func (n *negotiator) manageSession(j *joinAttempt, conn Conn) {
	session := conn.Session()
	ctx, cancel := context.WithCancel(n.ctx)
	j.closeDialog = cancel
	go func() {
		stop, err := n.chooser.ManageSession(ctx, session)
		n.loop.post(func() {
			if err != nil {
				log.Printf("cast: manage session dialog failed: %v", err)
			}
			if stop && err == nil && !j.resultSent {
				n.endSession(true, newPromise[error]())
			}
			n.finish(j, failedJoin(newError(CodeCancel, "session dialog dismissed")))
		})
	}()
}

// initialize configures the receiver application id and looks for
// available receivers.
func (n *negotiator) initialize(appID string, p *promise[error]) {
	if appID != n.appID {
		if n.validAppID(appID) {
			n.appID = appID
			if n.store != nil {
				if err := n.store.SetAppID(appID); err != nil {
					log.Printf("cast: failed to persist app id: %v", err)
				}
			}
		} else {
			log.Printf("cast: ignoring invalid app id %q", appID)
		}
	}
	p.resolve(nil)

	n.scanner.stop(n.initScan, nil)
	n.initScan = n.scanner.start(n.initScanTimeout, func(sub *scanSubscription, routes []Route) {
		if len(routes) == 0 {
			return
		}
		n.scanner.stop(sub, nil)
		n.emit(EventReceiverListener, rawBool(true))

		conn := n.connected()
		if conn == nil {
			return
		}
		n.media.setSession(conn)
		raw, err := n.serializer.Session(conn.Session(), "")
		if err != nil {
			log.Printf("cast: failed to serialize session: %v", err)
			return
		}
		n.emit(EventSessionListener, raw)
	}, nil)
}

// validAppID checks appID by registering and immediately dropping a scan.
func (n *negotiator) validAppID(appID string) bool {
	id, err := n.discovery.Subscribe(appID, func() {})
	if err != nil {
		log.Printf("cast: app id %q rejected: %v", appID, err)
		return false
	}
	n.discovery.Unsubscribe(id)
	return true
}

// endWait is one EndSession call waiting for the transport to confirm.
type endWait struct {
	done   bool
	cancel func()
	timer  *deferred
	result *promise[error]
}

// endSession ends the current session and reports it as stopped or
// disconnected once the transport confirms.
func (n *negotiator) endSession(stopApp bool, p *promise[error]) {
	conn := n.transport.CurrentSession()
	if conn == nil {
		p.resolve(newError(CodeSessionError, "no session to end"))
		return
	}
	session := conn.Session()
	tag := sessionDisconnected
	if stopApp {
		tag = sessionStopped
	}

	w := &endWait{result: p}
	if n.ends == nil {
		n.ends = make(map[*endWait]struct{})
	}
	n.ends[w] = struct{}{}

	w.cancel = n.transport.Watch(func(ev SessionEvent) {
		if ev.Kind != SessionEnded {
			return
		}
		n.loop.post(func() {
			if !n.finishEnd(w, nil) {
				return
			}
			n.media.setSession(nil)

			raw, err := n.serializer.Session(session, tag)
			if err != nil {
				log.Printf("cast: failed to serialize session: %v", err)
				return
			}
			n.emit(EventSessionUpdate, raw)
		})
	})
	w.timer = n.loop.after(n.endTimeout, func() {
		n.finishEnd(w, newError(CodeTimeout, "session did not end within %s", n.endTimeout))
	})

	n.transport.EndSession(stopApp)
}

// finishEnd resolves w once. It reports false when w was already resolved.
func (n *negotiator) finishEnd(w *endWait, err error) bool {
	if w.done {
		return false
	}
	w.done = true
	w.cancel()
	w.timer.cancel()
	delete(n.ends, w)
	w.result.resolve(err)
	return true
}

// shutdown resolves pending work and drops every registration.
func (n *negotiator) shutdown() {
	if n.join != nil {
		n.finish(n.join, failedJoin(newError(CodeCancel, "caster closed")))
	}
	for w := range n.ends {
		n.finishEnd(w, newError(CodeCancel, "caster closed"))
	}
	n.stopListening()
	n.scanner.stop(n.initScan, nil)
	n.initScan = nil
}
