package wallet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sensorgrid/sensorgrid-core/internal/infrastructure/database"
)

// Account holds a principal's balance in the smallest payment unit.
type Account struct {
	Principal string    `json:"principal"`
	Balance   int64     `json:"balance"`
	Frozen    bool      `json:"frozen"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Repository manages wallet accounts.
//
// Accounts are created implicitly on first deposit or credit. A
// principal with no account row has a zero balance.
type Repository struct {
	db *database.DB
}

// NewRepository creates a wallet repository using the given database.
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

// Balance returns the principal's current balance, zero if no account exists.
func (r *Repository) Balance(ctx context.Context, principal string) (int64, error) {
	var balance int64
	err := r.db.QueryRowContext(ctx,
		`SELECT balance FROM accounts WHERE principal = ?`, principal).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading balance: %w", err)
	}
	return balance, nil
}

// Get returns the full account record, or a zero-balance account if
// none exists yet.
func (r *Repository) Get(ctx context.Context, principal string) (*Account, error) {
	var a Account
	var frozen int
	var createdAt, updatedAt string

	err := r.db.QueryRowContext(ctx,
		`SELECT principal, balance, frozen, created_at, updated_at
		 FROM accounts WHERE principal = ?`, principal,
	).Scan(&a.Principal, &a.Balance, &frozen, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &Account{Principal: principal}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading account: %w", err)
	}

	a.Frozen = frozen != 0
	if a.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if a.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &a, nil
}

// Deposit credits the principal's account, creating it if needed.
func (r *Repository) Deposit(ctx context.Context, principal string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (principal, balance, frozen, created_at, updated_at)
		 VALUES (?, ?, 0, ?, ?)
		 ON CONFLICT(principal) DO UPDATE SET
			balance = balance + excluded.balance,
			updated_at = excluded.updated_at`,
		principal, amount, now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("depositing funds: %w", err)
	}

	return r.Balance(ctx, principal)
}

// SetFrozen marks an account as refusing transfers (or unfreezes it).
// The account is created if it does not exist.
func (r *Repository) SetFrozen(ctx context.Context, principal string, frozen bool) error {
	now := time.Now().UTC().Format(time.RFC3339)
	frozenInt := 0
	if frozen {
		frozenInt = 1
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (principal, balance, frozen, created_at, updated_at)
		 VALUES (?, 0, ?, ?, ?)
		 ON CONFLICT(principal) DO UPDATE SET
			frozen = excluded.frozen,
			updated_at = excluded.updated_at`,
		principal, frozenInt, now, now,
	)
	if err != nil {
		return fmt.Errorf("setting frozen state: %w", err)
	}
	return nil
}

// Forward moves funds from one principal to another inside the
// caller's transaction.
//
// The debit fails with ErrInsufficientFunds if the payer cannot cover
// the amount, and the credit fails with ErrAccountFrozen if the payee
// refuses transfers. Either failure leaves the transaction for the
// caller to roll back, reverting every change made alongside the
// transfer.
func (r *Repository) Forward(ctx context.Context, tx *sql.Tx, from, to string, amount int64) error {
	if amount < 0 {
		return ErrInvalidAmount
	}
	if amount == 0 {
		// free listing, nothing to move
		return nil
	}

	var balance int64
	var frozen int
	err := tx.QueryRowContext(ctx,
		`SELECT balance, frozen FROM accounts WHERE principal = ?`, from).Scan(&balance, &frozen)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrInsufficientFunds
	}
	if err != nil {
		return fmt.Errorf("reading payer account: %w", err)
	}
	if frozen != 0 {
		return ErrAccountFrozen
	}
	if balance < amount {
		return ErrInsufficientFunds
	}

	var payeeFrozen int
	err = tx.QueryRowContext(ctx,
		`SELECT frozen FROM accounts WHERE principal = ?`, to).Scan(&payeeFrozen)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("reading payee account: %w", err)
	}
	if payeeFrozen != 0 {
		return ErrAccountFrozen
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = tx.ExecContext(ctx,
		`UPDATE accounts SET balance = balance - ?, updated_at = ? WHERE principal = ?`,
		amount, now, from,
	)
	if err != nil {
		return fmt.Errorf("debiting payer: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO accounts (principal, balance, frozen, created_at, updated_at)
		 VALUES (?, ?, 0, ?, ?)
		 ON CONFLICT(principal) DO UPDATE SET
			balance = balance + excluded.balance,
			updated_at = excluded.updated_at`,
		to, amount, now, now,
	)
	if err != nil {
		return fmt.Errorf("crediting payee: %w", err)
	}

	return nil
}
