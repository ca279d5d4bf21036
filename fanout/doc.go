// Package fanout carries state-change events between gateway replicas over
// a shared pub/sub channel.
//
// The bus is thin: Publish encodes an event and sends it once;
// Subscribe decodes and hands each received event to a handler. There is no
// queue group, so every replica receives every event, including the one
// that published it, which is how the producing replica's own realtime
// clients get notified. There is no persistence either: a replica that was
// down when an event was published, or a client that connects afterwards,
// never sees it. This is a real-time notification channel, not an event
// log.
//
// Per-publisher ordering follows the broker's per-publisher delivery order.
// No ordering is guaranteed across events published by different replicas.
package fanout
