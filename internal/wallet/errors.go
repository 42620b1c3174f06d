package wallet

import "errors"

var (
	// ErrInsufficientFunds indicates the payer's balance cannot cover
	// the transfer.
	ErrInsufficientFunds = errors.New("wallet: insufficient funds")

	// ErrAccountFrozen indicates the account refuses transfers.
	ErrAccountFrozen = errors.New("wallet: account frozen")

	// ErrInvalidAmount indicates a zero or negative transfer amount
	// where a positive one is required.
	ErrInvalidAmount = errors.New("wallet: invalid amount")
)
