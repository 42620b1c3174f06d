// Package auth issues and validates the bearer tokens that carry the
// caller principal.
//
// The principal is the marketplace identity: device owner, subscriber,
// and wallet holder are all the token's subject. Tokens are HS256
// signed with the deployment secret and expire after the configured
// TTL.
package auth
