// Package registry implements the device registry: who owns which
// device, on what subscription terms, and whether it is accepting new
// purchases.
//
// A device is registered exactly once under a caller-chosen identifier
// and is never deleted or transferred. Only the registering owner may
// change its terms or activation state. Listings preserve global
// registration order through a per-device sequence number assigned at
// registration.
//
// Every mutation appends an entry to the durable event log inside its
// own transaction, so the registry and its history cannot diverge.
package registry
