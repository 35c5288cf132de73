// Package device holds the gateway's Device Registry.
//
// The registry maps opaque backend device ids to the human-readable names
// used as Homie device segments, and back. It is rebuilt from the backend
// device list on every poll cycle and read concurrently by the command
// router, the poller and the HTTP API.
//
// # Concurrency
//
// Writes build a new Snapshot and publish it with an atomic pointer swap.
// Reads never lock. A caller that needs several lookups to agree takes a
// Snapshot once and queries it:
//
//	snap := registry.Snapshot()
//	id, _ := snap.IDFor("lamp1")
//	d, _ := snap.Device(id)
//
// # Lookups
//
// NameFor and IDFor report whether an entry exists. NameOrSelf and IDOrSelf
// fall back to their argument for call sites that always need a usable
// topic or URL segment.
package device
