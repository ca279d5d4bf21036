// Package realtime maintains the registry of live WebSocket connections on
// one gateway replica and pushes catalog events to them.
//
// # Scope
//
// The hub is local to its replica. Each replica holds only its own
// connections; cross-replica delivery happens because every replica
// subscribes to the same fan-out subject and rebroadcasts to its own
// clients. There is no shared connection state, no replay, and no
// per-client acknowledgement. A client that connects after an event was
// published never sees that event.
//
// # Connection lifecycle
//
// ServeHTTP authenticates the client before upgrading. The token comes from
// the Authorization header (Bearer form) or the token query parameter; a
// request with neither is rejected 401 without consulting the backend. The
// AuthorizeFunc supplied at construction performs the actual check, in the
// gateway's case a verify_token call to the user backend.
//
// Once registered, a connection is kept alive by a ping loop and a read
// loop. Clients never send application data; the read loop exists to
// service pongs and to notice disconnects promptly. A connection is removed
// exactly once, whether the trigger is a read error, a failed push, a
// failed ping, or shutdown.
//
// # Delivery
//
// Broadcast pushes one encoded event to every connection registered at that
// moment. Sends run concurrently under per-connection write mutexes with a
// write deadline, so one slow client cannot stall the others. A failed push
// unregisters that connection and is otherwise ignored. Broadcast's
// signature matches the fan-out bus handler:
//
//	bus.Subscribe(ctx, hub.Broadcast)
package realtime
