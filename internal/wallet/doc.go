// Package wallet tracks principal balances and moves purchase payments
// from subscriber to device owner.
//
// Transfers run inside the purchase's own transaction via Forward, so
// a failed payment rolls back the access grant it was meant to fund.
// Accounts are created implicitly on first deposit or credit; a frozen
// account refuses transfers in either direction.
package wallet
