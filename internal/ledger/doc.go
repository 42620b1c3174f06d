// Package ledger implements pay-per-period access subscriptions
// between subscribers and device owners.
//
// Each subscriber/device pair has at most one entry holding its access
// expiry and the running total paid. Purchases extend the expiry by
// the device's subscription duration, stacking on the current expiry
// when access is still live and restarting from now when it has
// lapsed. Entries and payment totals only ever grow.
//
// The whole purchase is a single database transaction ending with the
// payment transfer, so an access grant and its funding commit or fail
// as one.
package ledger
