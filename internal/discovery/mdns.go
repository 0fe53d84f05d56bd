// ABOUTME: mDNS service discovery for Sendspin Cast receivers
// ABOUTME: Handles both advertisement (receiver side) and browsing (sender side)
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Sendspin/sendspin-cast/internal/protocol"
	"github.com/Sendspin/sendspin-cast/pkg/cast"
	"github.com/hashicorp/mdns"
)

// ServiceType is the mDNS service receivers advertise
const ServiceType = "_sendspin-cast._tcp"

// LocalRouteID identifies the always-present route that plays on this device
const LocalRouteID = "local"

var (
	// ErrInvalidAppID is returned by Subscribe for malformed application ids
	ErrInvalidAppID = errors.New("invalid receiver application id")
	// ErrRouteRemoved is returned by Select when the route is gone
	ErrRouteRemoved = errors.New("route no longer available")
)

var appIDPattern = regexp.MustCompile(`^[0-9A-Z]{8}$`)

// ValidAppID reports whether appID is a well-formed receiver application id
func ValidAppID(appID string) bool {
	return appIDPattern.MatchString(appID)
}

// Config holds discovery configuration
type Config struct {
	// Advertisement
	ServiceName string
	Port        int
	DeviceID    string
	AppIDs      []string // applications the receiver can run, empty means any
	Group       bool
	Description string

	// Browsing
	QueryTimeout time.Duration // default: 3s
	RouteTTL     time.Duration // default: 15s

	// OnSelect starts a session on a selected service
	OnSelect func(service Service, appID string) error

	// Query runs one mDNS query (default: mdns.Query)
	Query func(params *mdns.QueryParam) error
}

// Service describes a discovered receiver
type Service struct {
	ID          string
	Name        string
	Host        string
	Port        int
	AppIDs      []string
	Group       bool
	Description string
	SessionID   string

	seen time.Time
}

// Addr returns the host:port of the receiver
func (s Service) Addr() string {
	return net.JoinHostPort(s.Host, fmt.Sprint(s.Port))
}

// Supports reports whether the receiver can run appID
func (s Service) Supports(appID string) bool {
	if len(s.AppIDs) == 0 {
		return true
	}
	for _, id := range s.AppIDs {
		if id == appID {
			return true
		}
	}
	return false
}

type subscription struct {
	appID    string
	onChange func()
}

// Manager handles mDNS operations and implements cast.Discovery
type Manager struct {
	config Config
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	services map[string]Service
	subs     map[cast.SubscriptionID]subscription
	nextID   cast.SubscriptionID
	lastApp  string
	browse   context.CancelFunc
}

var _ cast.Discovery = (*Manager)(nil)

// NewManager creates a discovery manager
func NewManager(config Config) *Manager {
	if config.QueryTimeout <= 0 {
		config.QueryTimeout = 3 * time.Second
	}
	if config.RouteTTL <= 0 {
		config.RouteTTL = 15 * time.Second
	}
	if config.Query == nil {
		config.Query = mdns.Query
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		config:   config,
		ctx:      ctx,
		cancel:   cancel,
		services: make(map[string]Service),
		subs:     make(map[cast.SubscriptionID]subscription),
		lastApp:  cast.DefaultReceiverAppID,
	}
}

// Advertise advertises this receiver via mDNS
func (m *Manager) Advertise() error {
	ips, err := getLocalIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	service, err := mdns.NewMDNSService(
		m.config.ServiceName,
		ServiceType,
		"",
		"",
		m.config.Port,
		ips,
		m.txtRecords(),
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}

	log.Printf("Advertising mDNS service: %s on port %d (type: %s)", m.config.ServiceName, m.config.Port, ServiceType)

	go func() {
		<-m.ctx.Done()
		server.Shutdown()
	}()

	return nil
}

func (m *Manager) txtRecords() []string {
	txt := []string{
		"path=" + protocol.Path,
		"id=" + m.config.DeviceID,
		"fn=" + m.config.ServiceName,
	}
	if len(m.config.AppIDs) > 0 {
		txt = append(txt, "apps="+strings.Join(m.config.AppIDs, ","))
	}
	if m.config.Group {
		txt = append(txt, "group=1")
	}
	if m.config.Description != "" {
		txt = append(txt, "md="+m.config.Description)
	}
	return txt
}

// Routes returns the known routes, the local route first
func (m *Manager) Routes() []cast.RouteInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	routes := []cast.RouteInfo{{
		Route:        cast.Route{ID: LocalRouteID, DisplayName: "This device"},
		Default:      true,
		PlaybackType: cast.PlaybackLocal,
	}}

	ids := make([]string, 0, len(m.services))
	for id := range m.services {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		s := m.services[id]
		if !m.wantedLocked(s) {
			continue
		}
		routes = append(routes, cast.RouteInfo{
			Route: cast.Route{
				ID:          s.ID,
				DisplayName: s.Name,
				IsGroup:     s.Group,
			},
			Description:  s.Description,
			PlaybackType: cast.PlaybackRemote,
			SessionID:    s.SessionID,
		})
	}
	return routes
}

// wantedLocked reports whether any subscription can use s
func (m *Manager) wantedLocked(s Service) bool {
	if len(m.subs) == 0 {
		return true
	}
	for _, sub := range m.subs {
		if s.Supports(sub.appID) {
			return true
		}
	}
	return false
}

// Subscribe starts browsing for receivers able to run appID
func (m *Manager) Subscribe(appID string, onChange func()) (cast.SubscriptionID, error) {
	if !ValidAppID(appID) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAppID, appID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	id := m.nextID
	m.subs[id] = subscription{appID: appID, onChange: onChange}
	m.lastApp = appID

	if m.browse == nil {
		ctx, cancel := context.WithCancel(m.ctx)
		m.browse = cancel
		go m.browseLoop(ctx)
	}
	return id, nil
}

// Unsubscribe drops a subscription, stopping the browse after the last one
func (m *Manager) Unsubscribe(id cast.SubscriptionID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.subs[id]; !ok {
		return
	}
	delete(m.subs, id)
	if len(m.subs) == 0 && m.browse != nil {
		m.browse()
		m.browse = nil
	}
}

// Select starts a session on the route
func (m *Manager) Select(routeID string) error {
	m.mu.Lock()
	s, ok := m.services[routeID]
	appID := m.lastApp
	onSelect := m.config.OnSelect
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrRouteRemoved, routeID)
	}
	if onSelect == nil {
		return fmt.Errorf("no session starter configured")
	}
	log.Printf("Selecting %s at %s for %s", s.Name, s.Addr(), appID)
	return onSelect(s, appID)
}

// browseLoop continuously browses for receivers until ctx ends
func (m *Manager) browseLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		entries := make(chan *mdns.ServiceEntry, 10)
		done := make(chan struct{})

		go func() {
			defer close(done)
			for entry := range entries {
				m.observe(entry)
			}
		}()

		params := &mdns.QueryParam{
			Service: ServiceType,
			Domain:  "local",
			Timeout: m.config.QueryTimeout,
			Entries: entries,
		}

		if err := m.config.Query(params); err != nil {
			log.Printf("mDNS query failed: %v", err)
		}
		close(entries)
		<-done

		m.expire(time.Now())

		// Back off when queries return immediately
		select {
		case <-ctx.Done():
			return
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// observe records a discovered service and notifies subscribers on change
func (m *Manager) observe(entry *mdns.ServiceEntry) {
	s, ok := parseEntry(entry)
	if !ok {
		return
	}
	s.seen = time.Now()

	m.mu.Lock()
	prev, known := m.services[s.ID]
	m.services[s.ID] = s
	changed := !known || !sameService(prev, s)
	m.mu.Unlock()

	if changed {
		log.Printf("Discovered receiver: %s at %s", s.Name, s.Addr())
		m.notify()
	}
}

// expire drops services not seen within the route TTL
func (m *Manager) expire(now time.Time) {
	m.mu.Lock()
	removed := false
	for id, s := range m.services {
		if now.Sub(s.seen) > m.config.RouteTTL {
			log.Printf("Receiver %s expired", s.Name)
			delete(m.services, id)
			removed = true
		}
	}
	m.mu.Unlock()

	if removed {
		m.notify()
	}
}

func (m *Manager) notify() {
	m.mu.Lock()
	fns := make([]func(), 0, len(m.subs))
	for _, sub := range m.subs {
		fns = append(fns, sub.onChange)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		if fn != nil {
			fn()
		}
	}
}

// Stop stops the discovery manager
func (m *Manager) Stop() {
	m.cancel()
}

func parseEntry(entry *mdns.ServiceEntry) (Service, bool) {
	if entry == nil || entry.Port == 0 {
		return Service{}, false
	}

	s := Service{
		Name: strings.TrimSuffix(entry.Name, "."+ServiceType+".local."),
		Port: entry.Port,
	}
	switch {
	case entry.AddrV4 != nil:
		s.Host = entry.AddrV4.String()
	case entry.AddrV6 != nil:
		s.Host = entry.AddrV6.String()
	default:
		return Service{}, false
	}

	for _, field := range entry.InfoFields {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		switch key {
		case "id":
			s.ID = value
		case "fn":
			s.Name = value
		case "apps":
			if value != "" {
				s.AppIDs = strings.Split(value, ",")
			}
		case "group":
			s.Group = value == "1"
		case "md":
			s.Description = value
		case "sid":
			s.SessionID = value
		}
	}
	if s.ID == "" {
		s.ID = entry.Name
	}
	return s, true
}

func sameService(a, b Service) bool {
	return a.ID == b.ID && a.Name == b.Name && a.Host == b.Host && a.Port == b.Port &&
		a.Group == b.Group && a.Description == b.Description && a.SessionID == b.SessionID &&
		strings.Join(a.AppIDs, ",") == strings.Join(b.AppIDs, ",")
}

// getLocalIPs returns local IP addresses
func getLocalIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					ips = append(ips, ipnet.IP)
				}
			}
		}
	}

	return ips, nil
}
