// ABOUTME: Route scanning over the discovery capability
// ABOUTME: Filters raw routes and manages one-shot, timed and continuous scans
package cast

import (
	"log"
	"time"
)

// scanSubscription is one logical scan. All fields are owned by the loop.
type scanSubscription struct {
	timeout  time.Duration
	onUpdate func(*scanSubscription, []Route)
	id       SubscriptionID
	active   bool // holds a discovery registration
	stopped  bool
	timer    *deferred
}

type routeScanner struct {
	loop      *loop
	discovery Discovery
	appID     func() string
}

// filterRoutes drops default routes, routes mirroring an active session,
// multizone member duplicates and routes that do not render remotely.
func filterRoutes(raw []RouteInfo) []Route {
	routes := make([]Route, 0, len(raw))
	for _, r := range raw {
		if r.SessionID != "" {
			continue
		}
		if r.Default || r.Description == MultizoneMemberDescription || r.PlaybackType != PlaybackRemote {
			continue
		}
		routes = append(routes, r.Route)
	}
	return routes
}

func (s *routeScanner) routes() []Route {
	return filterRoutes(s.discovery.Routes())
}

// start begins a scan. ScanOnce delivers the current routes and returns;
// ScanForever scans until stopped; a positive timeout unregisters after it
// elapses and then calls onTimeout. Must be called on the loop.
func (s *routeScanner) start(timeout time.Duration, onUpdate func(*scanSubscription, []Route), onTimeout func()) *scanSubscription {
	sub := &scanSubscription{timeout: timeout, onUpdate: onUpdate}

	if timeout == ScanOnce {
		sub.stopped = true
		onUpdate(sub, s.routes())
		return sub
	}

	id, err := s.discovery.Subscribe(s.appID(), func() {
		s.loop.post(func() { s.deliver(sub) })
	})
	if err != nil {
		log.Printf("cast: route scan subscribe failed: %v", err)
	} else {
		sub.id = id
		sub.active = true
	}

	if timeout > 0 {
		sub.timer = s.loop.after(timeout, func() {
			if sub.stopped {
				return
			}
			s.release(sub)
			if onTimeout != nil {
				onTimeout()
			}
		})
	}

	// The registration exists before the first delivery, so a subscriber
	// that stops itself from onUpdate really removes it.
	s.deliver(sub)
	return sub
}

func (s *routeScanner) deliver(sub *scanSubscription) {
	if sub.stopped {
		return
	}
	sub.onUpdate(sub, s.routes())
}

// stop ends sub and then calls onComplete. A nil sub completes at once.
func (s *routeScanner) stop(sub *scanSubscription, onComplete func()) {
	if sub != nil {
		s.release(sub)
	}
	if onComplete != nil {
		onComplete()
	}
}

func (s *routeScanner) release(sub *scanSubscription) {
	sub.stopped = true
	sub.timer.cancel()
	if sub.active {
		sub.active = false
		s.discovery.Unsubscribe(sub.id)
	}
}
