// ABOUTME: Client-side cast orchestration engine
// ABOUTME: Discovery scans, session negotiation, queue windows and status events
// Package cast keeps a sender connected to, and synchronized with, a remote
// rendering receiver.
//
// The engine is transport agnostic. It consumes a Discovery (routes), a
// Transport (sessions) and a Serializer (host-facing payloads) and runs every
// state mutation on one serialized execution loop. Results of one-shot
// operations arrive on buffered channels; receiver-originated events arrive on
// Caster.Events().
//
// Example:
//
//	caster, err := cast.New(cast.Config{
//	    Discovery:  disc,
//	    Transport:  sessions,
//	    Serializer: wire.New(),
//	})
//	<-caster.Initialize("CC1AD845")
//	res := <-caster.SelectRoute("living-room")
//	if res.Err != nil {
//	    log.Printf("join failed: %v", res.Err)
//	}
package cast
