package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/sensorgrid/sensorgrid-core/internal/events"
)

type capturePublisher struct {
	published []*events.Event
}

func (p *capturePublisher) Publish(e *events.Event) {
	p.published = append(p.published, e)
}

func newTestService(t *testing.T, allowZeroTerms bool) (*Service, *capturePublisher) {
	t.Helper()
	db := setupTestDB(t)
	svc := NewService(NewSQLiteRepository(db), allowZeroTerms)
	pub := &capturePublisher{}
	svc.SetPublisher(pub)
	return svc, pub
}

func TestServiceRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("caller becomes owner and device starts active", func(t *testing.T) {
		svc, pub := newTestService(t, true)

		d, err := svc.Register(ctx, "alice", RegisterInput{
			DeviceID:             "dev-1",
			Name:                 "Roof Station",
			DeviceType:           "weather",
			PricePerPeriod:       1000,
			SubscriptionDuration: 604800,
		})
		if err != nil {
			t.Fatalf("registering: %v", err)
		}
		if d.Owner != "alice" {
			t.Errorf("owner = %q, want alice", d.Owner)
		}
		if !d.IsActive {
			t.Error("device not active after registration")
		}
		if len(pub.published) != 1 || pub.published[0].Type != events.TypeDeviceRegistered {
			t.Errorf("published events = %+v, want one device.registered", pub.published)
		}
	})

	t.Run("rejects malformed input", func(t *testing.T) {
		svc, _ := newTestService(t, true)

		cases := []struct {
			name string
			in   RegisterInput
			want error
		}{
			{"empty id", RegisterInput{Name: "x", DeviceType: "t"}, ErrInvalidDevice},
			{"id with slash", RegisterInput{DeviceID: "a/b", Name: "x", DeviceType: "t"}, ErrInvalidDevice},
			{"empty name", RegisterInput{DeviceID: "dev-1", DeviceType: "t"}, ErrInvalidDevice},
			{"negative price", RegisterInput{DeviceID: "dev-1", Name: "x", DeviceType: "t", PricePerPeriod: -1}, ErrInvalidTerms},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				if _, err := svc.Register(ctx, "alice", tc.in); !errors.Is(err, tc.want) {
					t.Errorf("got %v, want %v", err, tc.want)
				}
			})
		}
	})

	t.Run("zero terms allowed by default policy", func(t *testing.T) {
		svc, _ := newTestService(t, true)

		_, err := svc.Register(ctx, "alice", RegisterInput{
			DeviceID:   "dev-free",
			Name:       "Free Feed",
			DeviceType: "demo",
		})
		if err != nil {
			t.Fatalf("registering zero-term device: %v", err)
		}
	})

	t.Run("zero terms rejected when policy forbids", func(t *testing.T) {
		svc, _ := newTestService(t, false)

		_, err := svc.Register(ctx, "alice", RegisterInput{
			DeviceID:             "dev-free",
			Name:                 "Free Feed",
			DeviceType:           "demo",
			PricePerPeriod:       0,
			SubscriptionDuration: 604800,
		})
		if !errors.Is(err, ErrInvalidTerms) {
			t.Errorf("got %v, want ErrInvalidTerms", err)
		}
	})
}

func TestServiceUpdateTerms(t *testing.T) {
	ctx := context.Background()
	svc, pub := newTestService(t, true)

	if _, err := svc.Register(ctx, "alice", RegisterInput{
		DeviceID:             "dev-1",
		Name:                 "Roof Station",
		DeviceType:           "weather",
		PricePerPeriod:       1000,
		SubscriptionDuration: 604800,
	}); err != nil {
		t.Fatalf("registering: %v", err)
	}

	t.Run("empty update is rejected", func(t *testing.T) {
		_, err := svc.UpdateTerms(ctx, "alice", "dev-1", UpdateInput{})
		if !errors.Is(err, ErrNoChanges) {
			t.Errorf("got %v, want ErrNoChanges", err)
		}
	})

	t.Run("owner change publishes event", func(t *testing.T) {
		before := len(pub.published)
		duration := int64(86400)
		d, err := svc.UpdateTerms(ctx, "alice", "dev-1", UpdateInput{SubscriptionDuration: &duration})
		if err != nil {
			t.Fatalf("updating: %v", err)
		}
		if d.SubscriptionDuration != 86400 {
			t.Errorf("duration = %d, want 86400", d.SubscriptionDuration)
		}
		if len(pub.published) != before+1 {
			t.Errorf("expected one new published event")
		}
	})

	t.Run("non-owner is rejected", func(t *testing.T) {
		price := int64(5)
		_, err := svc.UpdateTerms(ctx, "mallory", "dev-1", UpdateInput{PricePerPeriod: &price})
		if !errors.Is(err, ErrNotOwner) {
			t.Errorf("got %v, want ErrNotOwner", err)
		}
	})

	t.Run("device type is mutable", func(t *testing.T) {
		deviceType := "air-quality"
		d, err := svc.UpdateTerms(ctx, "alice", "dev-1", UpdateInput{DeviceType: &deviceType})
		if err != nil {
			t.Fatalf("updating device type: %v", err)
		}
		if d.DeviceType != "air-quality" {
			t.Errorf("device type = %q, want air-quality", d.DeviceType)
		}

		stored, err := svc.Get(ctx, "dev-1")
		if err != nil {
			t.Fatalf("reading back: %v", err)
		}
		if stored.DeviceType != "air-quality" {
			t.Errorf("stored device type = %q, want air-quality", stored.DeviceType)
		}
	})

	t.Run("empty device type is rejected", func(t *testing.T) {
		deviceType := "  "
		_, err := svc.UpdateTerms(ctx, "alice", "dev-1", UpdateInput{DeviceType: &deviceType})
		if !errors.Is(err, ErrInvalidDevice) {
			t.Errorf("got %v, want ErrInvalidDevice", err)
		}
	})
}

func TestServiceSetActive(t *testing.T) {
	ctx := context.Background()
	svc, pub := newTestService(t, true)

	if _, err := svc.Register(ctx, "alice", RegisterInput{
		DeviceID:             "dev-1",
		Name:                 "Roof Station",
		DeviceType:           "weather",
		PricePerPeriod:       1000,
		SubscriptionDuration: 604800,
	}); err != nil {
		t.Fatalf("registering: %v", err)
	}

	d, err := svc.SetActive(ctx, "alice", "dev-1", false)
	if err != nil {
		t.Fatalf("deactivating: %v", err)
	}
	if d.IsActive {
		t.Error("device still active")
	}

	last := pub.published[len(pub.published)-1]
	if last.Type != events.TypeDeviceActivation {
		t.Errorf("last event type = %q, want device.activation", last.Type)
	}
}
