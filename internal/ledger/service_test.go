package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sensorgrid/sensorgrid-core/internal/events"
	"github.com/sensorgrid/sensorgrid-core/internal/infrastructure/config"
	"github.com/sensorgrid/sensorgrid-core/internal/infrastructure/database"
	"github.com/sensorgrid/sensorgrid-core/internal/registry"
	"github.com/sensorgrid/sensorgrid-core/internal/wallet"
	_ "github.com/sensorgrid/sensorgrid-core/migrations"
)

const (
	testPrice    = int64(1_000_000_000_000_000)
	testDuration = int64(604800) // one week in seconds
)

// marketplace bundles the full purchase stack over one test database.
type marketplace struct {
	db      *database.DB
	devices *registry.SQLiteRepository
	wallets *wallet.Repository
	svc     *Service
	now     time.Time
}

func setupMarketplace(t *testing.T, policy Policy) *marketplace {
	t.Helper()

	db, err := database.Open(database.Config{Path: ":memory:", BusyTimeout: 5})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}

	m := &marketplace{
		db:      db,
		devices: registry.NewSQLiteRepository(db),
		wallets: wallet.NewRepository(db),
		now:     time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC),
	}
	m.svc = NewService(NewSQLiteRepository(db), m.devices, m.wallets, policy)
	m.svc.SetClock(func() time.Time { return m.now })

	return m
}

func defaultPolicy() Policy {
	return Policy{
		Overpayment:       config.OverpaymentReject,
		InactivePurchases: config.InactivePurchasesAllow,
	}
}

func (m *marketplace) registerDevice(t *testing.T, id, owner string, price, duration int64) {
	t.Helper()
	_, err := m.devices.Create(context.Background(), &registry.Device{
		ID:                   id,
		Owner:                owner,
		Name:                 "Roof Station",
		DeviceType:           "weather",
		PricePerPeriod:       price,
		SubscriptionDuration: duration,
		IsActive:             true,
	})
	if err != nil {
		t.Fatalf("registering %s: %v", id, err)
	}
}

func (m *marketplace) fund(t *testing.T, principal string, amount int64) {
	t.Helper()
	if _, err := m.wallets.Deposit(context.Background(), principal, amount); err != nil {
		t.Fatalf("funding %s: %v", principal, err)
	}
}

func (m *marketplace) balance(t *testing.T, principal string) int64 {
	t.Helper()
	balance, err := m.wallets.Balance(context.Background(), principal)
	if err != nil {
		t.Fatalf("reading %s balance: %v", principal, err)
	}
	return balance
}

func TestPurchaseAccess(t *testing.T) {
	ctx := context.Background()

	t.Run("first purchase grants one period from now", func(t *testing.T) {
		m := setupMarketplace(t, defaultPolicy())
		m.registerDevice(t, "dev-1", "owner", testPrice, testDuration)
		m.fund(t, "sub", 3*testPrice)

		entry, err := m.svc.PurchaseAccess(ctx, "sub", "dev-1", testPrice)
		if err != nil {
			t.Fatalf("purchasing: %v", err)
		}

		wantExpiry := m.now.Unix() + testDuration
		if entry.Expiry != wantExpiry {
			t.Errorf("expiry = %d, want %d", entry.Expiry, wantExpiry)
		}
		if entry.TotalPaid != testPrice {
			t.Errorf("total paid = %d, want %d", entry.TotalPaid, testPrice)
		}
		if got := m.balance(t, "sub"); got != 2*testPrice {
			t.Errorf("subscriber balance = %d, want %d", got, 2*testPrice)
		}
		if got := m.balance(t, "owner"); got != testPrice {
			t.Errorf("owner balance = %d, want %d", got, testPrice)
		}

		// the returned entry is the committed row, not a reconstruction
		stored, err := m.svc.Get(ctx, "sub", "dev-1")
		if err != nil {
			t.Fatalf("reading entry back: %v", err)
		}
		if entry.CreatedAt.IsZero() || !entry.CreatedAt.Equal(stored.CreatedAt) {
			t.Errorf("created_at = %v, stored %v", entry.CreatedAt, stored.CreatedAt)
		}
		if entry.Expiry != stored.Expiry || entry.TotalPaid != stored.TotalPaid {
			t.Errorf("returned entry %+v differs from stored %+v", entry, stored)
		}
	})

	t.Run("purchase validates against the latest committed terms", func(t *testing.T) {
		m := setupMarketplace(t, defaultPolicy())
		m.registerDevice(t, "dev-1", "owner", testPrice, testDuration)
		m.fund(t, "sub", 3*testPrice)

		newPrice := 2 * testPrice
		if _, _, err := m.devices.UpdateTerms(ctx, "dev-1", "owner", registry.UpdateInput{PricePerPeriod: &newPrice}); err != nil {
			t.Fatalf("repricing: %v", err)
		}

		_, err := m.svc.PurchaseAccess(ctx, "sub", "dev-1", testPrice)
		if !errors.Is(err, ErrInsufficientPayment) {
			t.Fatalf("purchase at stale price: got %v, want ErrInsufficientPayment", err)
		}
		assertNoEntry(t, m, "sub", "dev-1")

		entry, err := m.svc.PurchaseAccess(ctx, "sub", "dev-1", newPrice)
		if err != nil {
			t.Fatalf("purchase at current price: %v", err)
		}
		if entry.TotalPaid != newPrice {
			t.Errorf("total paid = %d, want %d", entry.TotalPaid, newPrice)
		}
	})

	t.Run("renewal before expiry stacks on current expiry", func(t *testing.T) {
		m := setupMarketplace(t, defaultPolicy())
		m.registerDevice(t, "dev-1", "owner", testPrice, testDuration)
		m.fund(t, "sub", 3*testPrice)

		first, err := m.svc.PurchaseAccess(ctx, "sub", "dev-1", testPrice)
		if err != nil {
			t.Fatalf("first purchase: %v", err)
		}

		// a day passes, access still live
		m.now = m.now.Add(24 * time.Hour)
		second, err := m.svc.PurchaseAccess(ctx, "sub", "dev-1", testPrice)
		if err != nil {
			t.Fatalf("second purchase: %v", err)
		}

		if want := first.Expiry + testDuration; second.Expiry != want {
			t.Errorf("expiry = %d, want %d (stacked on previous)", second.Expiry, want)
		}
		if second.TotalPaid != 2*testPrice {
			t.Errorf("total paid = %d, want %d", second.TotalPaid, 2*testPrice)
		}
	})

	t.Run("renewal after lapse restarts from now", func(t *testing.T) {
		m := setupMarketplace(t, defaultPolicy())
		m.registerDevice(t, "dev-1", "owner", testPrice, testDuration)
		m.fund(t, "sub", 3*testPrice)

		if _, err := m.svc.PurchaseAccess(ctx, "sub", "dev-1", testPrice); err != nil {
			t.Fatalf("first purchase: %v", err)
		}

		// a month passes, well past expiry
		m.now = m.now.Add(30 * 24 * time.Hour)
		entry, err := m.svc.PurchaseAccess(ctx, "sub", "dev-1", testPrice)
		if err != nil {
			t.Fatalf("renewal: %v", err)
		}

		if want := m.now.Unix() + testDuration; entry.Expiry != want {
			t.Errorf("expiry = %d, want %d (restarted from now)", entry.Expiry, want)
		}
	})

	t.Run("underpayment is rejected without side effects", func(t *testing.T) {
		m := setupMarketplace(t, defaultPolicy())
		m.registerDevice(t, "dev-1", "owner", testPrice, testDuration)
		m.fund(t, "sub", 3*testPrice)

		_, err := m.svc.PurchaseAccess(ctx, "sub", "dev-1", testPrice-1)
		if !errors.Is(err, ErrInsufficientPayment) {
			t.Fatalf("got %v, want ErrInsufficientPayment", err)
		}
		assertNoEntry(t, m, "sub", "dev-1")
		if got := m.balance(t, "sub"); got != 3*testPrice {
			t.Errorf("subscriber balance changed: %d", got)
		}
	})

	t.Run("overpayment rejected under exact-payment policy", func(t *testing.T) {
		m := setupMarketplace(t, defaultPolicy())
		m.registerDevice(t, "dev-1", "owner", testPrice, testDuration)
		m.fund(t, "sub", 3*testPrice)

		_, err := m.svc.PurchaseAccess(ctx, "sub", "dev-1", testPrice+1)
		if !errors.Is(err, ErrInsufficientPayment) {
			t.Fatalf("got %v, want ErrInsufficientPayment", err)
		}
		assertNoEntry(t, m, "sub", "dev-1")
	})

	t.Run("overpayment kept in full under accept policy", func(t *testing.T) {
		policy := defaultPolicy()
		policy.Overpayment = config.OverpaymentAccept
		m := setupMarketplace(t, policy)
		m.registerDevice(t, "dev-1", "owner", testPrice, testDuration)
		m.fund(t, "sub", 3*testPrice)

		entry, err := m.svc.PurchaseAccess(ctx, "sub", "dev-1", testPrice+500)
		if err != nil {
			t.Fatalf("purchasing: %v", err)
		}
		if entry.TotalPaid != testPrice+500 {
			t.Errorf("total paid = %d, want %d", entry.TotalPaid, testPrice+500)
		}
		if got := m.balance(t, "owner"); got != testPrice+500 {
			t.Errorf("owner balance = %d, want %d", got, testPrice+500)
		}
	})

	t.Run("unknown device", func(t *testing.T) {
		m := setupMarketplace(t, defaultPolicy())
		_, err := m.svc.PurchaseAccess(ctx, "sub", "dev-missing", testPrice)
		if !errors.Is(err, registry.ErrNotRegistered) {
			t.Errorf("got %v, want registry.ErrNotRegistered", err)
		}
	})

	t.Run("zero-price device needs no funds", func(t *testing.T) {
		m := setupMarketplace(t, defaultPolicy())
		m.registerDevice(t, "dev-free", "owner", 0, testDuration)

		entry, err := m.svc.PurchaseAccess(ctx, "broke", "dev-free", 0)
		if err != nil {
			t.Fatalf("purchasing free listing: %v", err)
		}
		if entry.TotalPaid != 0 {
			t.Errorf("total paid = %d, want 0", entry.TotalPaid)
		}
		if want := m.now.Unix() + testDuration; entry.Expiry != want {
			t.Errorf("expiry = %d, want %d", entry.Expiry, want)
		}
	})

	t.Run("zero-duration purchase grants no live access", func(t *testing.T) {
		m := setupMarketplace(t, defaultPolicy())
		m.registerDevice(t, "dev-instant", "owner", testPrice, 0)
		m.fund(t, "sub", testPrice)

		entry, err := m.svc.PurchaseAccess(ctx, "sub", "dev-instant", testPrice)
		if err != nil {
			t.Fatalf("purchasing: %v", err)
		}
		if entry.Expiry != m.now.Unix() {
			t.Errorf("expiry = %d, want %d", entry.Expiry, m.now.Unix())
		}
		live, err := m.svc.HasAccess(ctx, "sub", "dev-instant")
		if err != nil {
			t.Fatalf("checking access: %v", err)
		}
		if live {
			t.Error("zero-duration purchase reported live access")
		}
		// the owner still keeps the payment
		if got := m.balance(t, "owner"); got != testPrice {
			t.Errorf("owner balance = %d, want %d", got, testPrice)
		}
	})
}

func TestPurchaseInactiveDevice(t *testing.T) {
	ctx := context.Background()

	t.Run("allowed by default policy", func(t *testing.T) {
		m := setupMarketplace(t, defaultPolicy())
		m.registerDevice(t, "dev-1", "owner", testPrice, testDuration)
		m.fund(t, "sub", testPrice)

		if _, _, err := m.devices.SetActive(ctx, "dev-1", "owner", false); err != nil {
			t.Fatalf("deactivating: %v", err)
		}
		if _, err := m.svc.PurchaseAccess(ctx, "sub", "dev-1", testPrice); err != nil {
			t.Errorf("purchase against inactive device: %v", err)
		}
	})

	t.Run("refused under deny policy", func(t *testing.T) {
		policy := defaultPolicy()
		policy.InactivePurchases = config.InactivePurchasesDeny
		m := setupMarketplace(t, policy)
		m.registerDevice(t, "dev-1", "owner", testPrice, testDuration)
		m.fund(t, "sub", testPrice)

		if _, _, err := m.devices.SetActive(ctx, "dev-1", "owner", false); err != nil {
			t.Fatalf("deactivating: %v", err)
		}
		_, err := m.svc.PurchaseAccess(ctx, "sub", "dev-1", testPrice)
		if !errors.Is(err, ErrDeviceInactive) {
			t.Errorf("got %v, want ErrDeviceInactive", err)
		}
	})
}

func TestPurchaseRollback(t *testing.T) {
	ctx := context.Background()

	t.Run("unfunded subscriber rolls back everything", func(t *testing.T) {
		m := setupMarketplace(t, defaultPolicy())
		m.registerDevice(t, "dev-1", "owner", testPrice, testDuration)

		_, err := m.svc.PurchaseAccess(ctx, "sub", "dev-1", testPrice)
		if !errors.Is(err, ErrForwardingFailed) {
			t.Fatalf("got %v, want ErrForwardingFailed", err)
		}
		if !errors.Is(err, wallet.ErrInsufficientFunds) {
			t.Errorf("cause not preserved: %v", err)
		}
		assertNoEntry(t, m, "sub", "dev-1")
		assertNoPurchaseEvents(t, m)
	})

	t.Run("frozen owner account rolls back everything", func(t *testing.T) {
		m := setupMarketplace(t, defaultPolicy())
		m.registerDevice(t, "dev-1", "owner", testPrice, testDuration)
		m.fund(t, "sub", testPrice)
		if err := m.wallets.SetFrozen(ctx, "owner", true); err != nil {
			t.Fatalf("freezing owner: %v", err)
		}

		_, err := m.svc.PurchaseAccess(ctx, "sub", "dev-1", testPrice)
		if !errors.Is(err, ErrForwardingFailed) {
			t.Fatalf("got %v, want ErrForwardingFailed", err)
		}
		if !errors.Is(err, wallet.ErrAccountFrozen) {
			t.Errorf("cause not preserved: %v", err)
		}
		assertNoEntry(t, m, "sub", "dev-1")
		assertNoPurchaseEvents(t, m)
		if got := m.balance(t, "sub"); got != testPrice {
			t.Errorf("subscriber balance = %d, want untouched %d", got, testPrice)
		}
	})

	t.Run("failed renewal preserves the existing grant", func(t *testing.T) {
		m := setupMarketplace(t, defaultPolicy())
		m.registerDevice(t, "dev-1", "owner", testPrice, testDuration)
		m.fund(t, "sub", testPrice)

		first, err := m.svc.PurchaseAccess(ctx, "sub", "dev-1", testPrice)
		if err != nil {
			t.Fatalf("first purchase: %v", err)
		}

		// second attempt with an empty wallet
		_, err = m.svc.PurchaseAccess(ctx, "sub", "dev-1", testPrice)
		if !errors.Is(err, ErrForwardingFailed) {
			t.Fatalf("got %v, want ErrForwardingFailed", err)
		}

		entry, err := m.svc.Get(ctx, "sub", "dev-1")
		if err != nil {
			t.Fatalf("reading entry: %v", err)
		}
		if entry.Expiry != first.Expiry || entry.TotalPaid != first.TotalPaid {
			t.Errorf("entry changed by failed renewal: %+v, want %+v", entry, first)
		}
	})
}

func TestQueries(t *testing.T) {
	ctx := context.Background()
	m := setupMarketplace(t, defaultPolicy())
	m.registerDevice(t, "dev-1", "owner", testPrice, testDuration)
	m.registerDevice(t, "dev-2", "owner", testPrice, testDuration)
	m.fund(t, "sub", 4*testPrice)

	t.Run("defaults before any purchase", func(t *testing.T) {
		expiry, err := m.svc.Expiry(ctx, "sub", "dev-1")
		if err != nil || expiry != 0 {
			t.Errorf("Expiry = %d, %v; want 0", expiry, err)
		}
		total, err := m.svc.TotalPaid(ctx, "sub", "dev-1")
		if err != nil || total != 0 {
			t.Errorf("TotalPaid = %d, %v; want 0", total, err)
		}
		live, err := m.svc.HasAccess(ctx, "sub", "dev-1")
		if err != nil || live {
			t.Errorf("HasAccess = %v, %v; want false", live, err)
		}
		if _, err := m.svc.Get(ctx, "sub", "dev-1"); !errors.Is(err, ErrNoEntry) {
			t.Errorf("Get: got %v, want ErrNoEntry", err)
		}
	})

	t.Run("listings after purchases", func(t *testing.T) {
		for _, dev := range []string{"dev-1", "dev-2"} {
			if _, err := m.svc.PurchaseAccess(ctx, "sub", dev, testPrice); err != nil {
				t.Fatalf("purchasing %s: %v", dev, err)
			}
		}

		bySub, err := m.svc.ListBySubscriber(ctx, "sub")
		if err != nil {
			t.Fatalf("listing by subscriber: %v", err)
		}
		if len(bySub) != 2 {
			t.Errorf("got %d entries, want 2", len(bySub))
		}

		byDev, err := m.svc.ListByDevice(ctx, "dev-1")
		if err != nil {
			t.Fatalf("listing by device: %v", err)
		}
		if len(byDev) != 1 || byDev[0].SubscriberID != "sub" {
			t.Errorf("unexpected device entries: %+v", byDev)
		}
	})

	t.Run("total paid is monotonic across renewals", func(t *testing.T) {
		before, err := m.svc.TotalPaid(ctx, "sub", "dev-1")
		if err != nil {
			t.Fatalf("reading total: %v", err)
		}
		if _, err := m.svc.PurchaseAccess(ctx, "sub", "dev-1", testPrice); err != nil {
			t.Fatalf("renewing: %v", err)
		}
		after, err := m.svc.TotalPaid(ctx, "sub", "dev-1")
		if err != nil {
			t.Fatalf("reading total: %v", err)
		}
		if after != before+testPrice {
			t.Errorf("total paid = %d, want %d", after, before+testPrice)
		}
	})
}

func assertNoEntry(t *testing.T, m *marketplace, subscriberID, deviceID string) {
	t.Helper()
	_, err := m.svc.Get(context.Background(), subscriberID, deviceID)
	if !errors.Is(err, ErrNoEntry) {
		t.Errorf("expected no entry for %s/%s, got err %v", subscriberID, deviceID, err)
	}
}

func assertNoPurchaseEvents(t *testing.T, m *marketplace) {
	t.Helper()
	eventRepo := events.NewSQLiteRepository(m.db.DB)
	result, err := eventRepo.List(context.Background(), events.Filter{Type: events.TypeAccessPurchased})
	if err != nil {
		t.Fatalf("listing events: %v", err)
	}
	if result.Total != 0 {
		t.Errorf("found %d purchase events after rollback, want 0", result.Total)
	}
}
