package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hirelane/proctor-backend/internal/model"
)

func TestHandleExpiryNotifiesStreamBeforeAutoSubmit(t *testing.T) {
	rdb := deadRedis()
	t.Cleanup(func() { rdb.Close() })

	svc := NewSessionService(nil, nil, rdb, zerolog.Nop())
	inv := &model.Invitation{ID: uuid.New()}

	var order []string
	var notifiedAuto bool
	svc.SetExpiryHandler(func(id uuid.UUID, autoSubmit bool) {
		if id != inv.ID {
			t.Errorf("expiry notified for %s, want %s", id, inv.ID)
		}
		notifiedAuto = autoSubmit
		order = append(order, "expired")
	})
	svc.SetAutoSubmitHandler(func(got *model.Invitation) {
		if got != inv {
			t.Errorf("auto-submit got %+v", got)
		}
		order = append(order, "submit")
	})

	svc.handleExpiry(inv, true)

	if len(order) != 2 || order[0] != "expired" || order[1] != "submit" {
		t.Fatalf("call order = %v, want [expired submit]", order)
	}
	if !notifiedAuto {
		t.Error("expiry notice did not carry auto_submit=true")
	}
}

func TestHandleExpiryWithoutAutoSubmitOnlyNotifies(t *testing.T) {
	rdb := deadRedis()
	t.Cleanup(func() { rdb.Close() })

	svc := NewSessionService(nil, nil, rdb, zerolog.Nop())
	inv := &model.Invitation{ID: uuid.New()}

	var order []string
	svc.SetExpiryHandler(func(_ uuid.UUID, autoSubmit bool) {
		if autoSubmit {
			t.Error("expiry notice claimed auto-submit on a manual-only test")
		}
		order = append(order, "expired")
	})
	svc.SetAutoSubmitHandler(func(*model.Invitation) {
		order = append(order, "submit")
	})

	svc.handleExpiry(inv, false)

	if len(order) != 1 || order[0] != "expired" {
		t.Fatalf("call order = %v, want [expired]", order)
	}
}

func TestHandleExpiryWithoutHandlersIsSafe(t *testing.T) {
	rdb := deadRedis()
	t.Cleanup(func() { rdb.Close() })

	svc := NewSessionService(nil, nil, rdb, zerolog.Nop())
	svc.handleExpiry(&model.Invitation{ID: uuid.New()}, true)
}
