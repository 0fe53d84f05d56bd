// ABOUTME: Wires discovery, transport, settings and the engine into one caster
// ABOUTME: Every subcommand that talks to receivers goes through here
package cli

import (
	"fmt"
	"log"

	"github.com/Sendspin/sendspin-cast/internal/config"
	"github.com/Sendspin/sendspin-cast/internal/discovery"
	"github.com/Sendspin/sendspin-cast/internal/settings"
	"github.com/Sendspin/sendspin-cast/internal/transport"
	"github.com/Sendspin/sendspin-cast/internal/ui"
	"github.com/Sendspin/sendspin-cast/pkg/cast"
	"github.com/Sendspin/sendspin-cast/pkg/cast/wire"
)

// castRuntime owns a caster and the collaborators it was built from
type castRuntime struct {
	caster    *cast.Caster
	discovery *discovery.Manager
	transport *transport.Manager
	store     *settings.Store
}

// newRuntime builds a caster from the configuration. The terminal chooser
// is attached when interactive is set.
func newRuntime(c *config.Config, interactive bool) (*castRuntime, error) {
	store, err := settings.Open(c.Settings.Dir)
	if err != nil {
		return nil, fmt.Errorf("open settings: %w", err)
	}

	tm := transport.NewManager(transport.Config{
		SenderID:     c.Transport.SenderID,
		DialTimeout:  config.Seconds(c.Transport.DialTimeout),
		StartTimeout: config.Seconds(c.Transport.StartTimeout),
	})

	dm := discovery.NewManager(discovery.Config{
		QueryTimeout: config.Seconds(c.Discovery.QueryTimeout),
		RouteTTL:     config.Seconds(c.Discovery.RouteTTL),
		OnSelect: func(service discovery.Service, appID string) error {
			log.Printf("Starting %s on %s (%s)", appID, service.Name, service.Addr())
			if err := store.SetLastRoute(service.ID); err != nil {
				log.Printf("Failed to remember route: %v", err)
			}
			tm.Start(service.Addr(), appID)
			return nil
		},
	})

	castConfig := cast.Config{
		AppID:            c.Cast.AppID,
		Discovery:        dm,
		Transport:        tm,
		Serializer:       wire.Serializer{},
		Store:            store,
		JoinTimeout:      config.Seconds(c.Cast.JoinTimeout),
		JoinRetries:      c.Cast.JoinRetries,
		InitScanTimeout:  config.Seconds(c.Cast.InitScanTimeout),
		MediaLoadTimeout: config.Seconds(c.Cast.MediaLoadTimeout),
		CallTimeout:      config.Seconds(c.Cast.CallTimeout),
	}
	if interactive {
		castConfig.Chooser = ui.NewChooser()
	}

	caster, err := cast.New(castConfig)
	if err != nil {
		dm.Stop()
		store.Close()
		return nil, err
	}

	return &castRuntime{
		caster:    caster,
		discovery: dm,
		transport: tm,
		store:     store,
	}, nil
}

// join selects routeID, or lets the user pick a receiver when it is empty
func (r *castRuntime) join(routeID string) (*cast.Session, error) {
	var res cast.JoinResult
	if routeID == "" {
		res = <-r.caster.RequestSession()
	} else {
		res = <-r.caster.SelectRoute(routeID)
	}
	if res.Err != nil {
		return nil, res.Err
	}
	return res.Session, nil
}

// lastRoute returns the remembered route id, or "" when there is none
func (r *castRuntime) lastRoute() string {
	routeID, err := r.store.LastRoute()
	if err != nil {
		log.Printf("Failed to read last route: %v", err)
	}
	return routeID
}

func (r *castRuntime) close() {
	if err := r.caster.Close(); err != nil {
		log.Printf("Error closing caster: %v", err)
	}
	r.discovery.Stop()
	if err := r.store.Close(); err != nil {
		log.Printf("Error closing settings: %v", err)
	}
}
