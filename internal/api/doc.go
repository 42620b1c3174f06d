// Package api exposes the marketplace over HTTP.
//
// Reads are public; mutations carry a bearer token whose subject is
// the acting principal. The route tree covers device registration and
// listing, term updates, activation, access purchases, wallet
// deposits, the event log, and a websocket event stream.
//
// Errors use a uniform JSON shape with a machine-readable code, so
// clients can tell an ownership refusal from a payment mismatch
// without parsing messages.
package api
