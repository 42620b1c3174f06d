package wallet

import (
	"context"
	"errors"
	"testing"

	"github.com/sensorgrid/sensorgrid-core/internal/infrastructure/database"
	_ "github.com/sensorgrid/sensorgrid-core/migrations"
)

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(database.Config{Path: ":memory:", BusyTimeout: 5})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}

	return db
}

func TestDeposit(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	t.Run("creates account on first deposit", func(t *testing.T) {
		balance, err := repo.Deposit(ctx, "alice", 1000)
		if err != nil {
			t.Fatalf("depositing: %v", err)
		}
		if balance != 1000 {
			t.Errorf("balance = %d, want 1000", balance)
		}
	})

	t.Run("accumulates", func(t *testing.T) {
		balance, err := repo.Deposit(ctx, "alice", 500)
		if err != nil {
			t.Fatalf("depositing: %v", err)
		}
		if balance != 1500 {
			t.Errorf("balance = %d, want 1500", balance)
		}
	})

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		for _, amount := range []int64{0, -10} {
			if _, err := repo.Deposit(ctx, "alice", amount); !errors.Is(err, ErrInvalidAmount) {
				t.Errorf("Deposit(%d): got %v, want ErrInvalidAmount", amount, err)
			}
		}
	})

	t.Run("unknown principal has zero balance", func(t *testing.T) {
		balance, err := repo.Balance(ctx, "nobody")
		if err != nil {
			t.Fatalf("reading balance: %v", err)
		}
		if balance != 0 {
			t.Errorf("balance = %d, want 0", balance)
		}
	})
}

func TestForward(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	if _, err := repo.Deposit(ctx, "alice", 1000); err != nil {
		t.Fatalf("funding alice: %v", err)
	}

	forward := func(t *testing.T, from, to string, amount int64) error {
		t.Helper()
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			t.Fatalf("beginning transaction: %v", err)
		}
		if err := repo.Forward(ctx, tx, from, to, amount); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			t.Fatalf("committing: %v", err)
		}
		return nil
	}

	t.Run("moves funds and creates payee account", func(t *testing.T) {
		if err := forward(t, "alice", "bob", 300); err != nil {
			t.Fatalf("forwarding: %v", err)
		}
		assertBalance(t, repo, "alice", 700)
		assertBalance(t, repo, "bob", 300)
	})

	t.Run("insufficient funds", func(t *testing.T) {
		err := forward(t, "alice", "bob", 10000)
		if !errors.Is(err, ErrInsufficientFunds) {
			t.Errorf("got %v, want ErrInsufficientFunds", err)
		}
		assertBalance(t, repo, "alice", 700)
	})

	t.Run("payer without account", func(t *testing.T) {
		err := forward(t, "ghost", "bob", 1)
		if !errors.Is(err, ErrInsufficientFunds) {
			t.Errorf("got %v, want ErrInsufficientFunds", err)
		}
	})

	t.Run("frozen payee refuses credit", func(t *testing.T) {
		if err := repo.SetFrozen(ctx, "carol", true); err != nil {
			t.Fatalf("freezing carol: %v", err)
		}
		err := forward(t, "alice", "carol", 100)
		if !errors.Is(err, ErrAccountFrozen) {
			t.Errorf("got %v, want ErrAccountFrozen", err)
		}
		assertBalance(t, repo, "alice", 700)
		assertBalance(t, repo, "carol", 0)
	})

	t.Run("frozen payer refuses debit", func(t *testing.T) {
		if err := repo.SetFrozen(ctx, "alice", true); err != nil {
			t.Fatalf("freezing alice: %v", err)
		}
		err := forward(t, "alice", "bob", 1)
		if !errors.Is(err, ErrAccountFrozen) {
			t.Errorf("got %v, want ErrAccountFrozen", err)
		}
		if err := repo.SetFrozen(ctx, "alice", false); err != nil {
			t.Fatalf("unfreezing alice: %v", err)
		}
	})

	t.Run("zero amount is a no-op", func(t *testing.T) {
		if err := forward(t, "alice", "bob", 0); err != nil {
			t.Errorf("zero transfer: %v", err)
		}
		assertBalance(t, repo, "alice", 700)
		assertBalance(t, repo, "bob", 300)
	})

	t.Run("negative amount is rejected", func(t *testing.T) {
		err := forward(t, "alice", "bob", -5)
		if !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("got %v, want ErrInvalidAmount", err)
		}
	})
}

func assertBalance(t *testing.T, repo *Repository, principal string, want int64) {
	t.Helper()
	got, err := repo.Balance(context.Background(), principal)
	if err != nil {
		t.Fatalf("reading %s balance: %v", principal, err)
	}
	if got != want {
		t.Errorf("%s balance = %d, want %d", principal, got, want)
	}
}
