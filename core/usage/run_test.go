package usage

import (
	"context"
	"errors"
	"testing"
	"time"

	"pleia/model"
	"pleia/repository"
)

// fakeLedger is an in-memory UsageRepository.
type fakeLedger struct {
	events    []*model.UsageEvent
	recordErr error
}

func (f *fakeLedger) RecordEvent(event *model.UsageEvent) error {
	if f.recordErr != nil {
		return f.recordErr
	}
	copied := *event
	f.events = append(f.events, &copied)
	return nil
}

func (f *fakeLedger) RefundEvent(eventID string) error {
	for _, e := range f.events {
		if e.EventID == eventID && !e.Refunded {
			e.Refunded = true
			return nil
		}
	}
	return repository.ErrEventNotFound
}

func (f *fakeLedger) CountUnitsSince(userID int64, since time.Time) (int, error) {
	n := 0
	for _, e := range f.events {
		if e.UserID == userID && !e.Refunded {
			n += e.Units
		}
	}
	return n, nil
}

func freeUser() *model.User {
	return &model.User{ID: 7, Email: "u@example.com", Plan: model.PlanFree}
}

func TestConsumeOnFirstTrackIsIdempotent(t *testing.T) {
	ledger := &fakeLedger{}
	run, err := NewRun(context.Background(), freeUser(), ledger)
	if err != nil {
		t.Fatal(err)
	}

	if err := run.ConsumeOnFirstTrack(context.Background(), 20, nil); err != nil {
		t.Fatal(err)
	}
	if err := run.ConsumeOnFirstTrack(context.Background(), 20, nil); err != nil {
		t.Fatal(err)
	}

	if len(ledger.events) != 1 {
		t.Fatalf("got %d ledger events, want 1", len(ledger.events))
	}
	if !run.HasConsumed() {
		t.Error("run should report consumption")
	}
	if run.Remaining() != FreeMonthlyLimit-1 {
		t.Errorf("remaining: got %d, want %d", run.Remaining(), FreeMonthlyLimit-1)
	}
}

func TestConsumeRejectsAtLimit(t *testing.T) {
	ledger := &fakeLedger{}
	for i := 0; i < FreeMonthlyLimit; i++ {
		ledger.events = append(ledger.events, &model.UsageEvent{UserID: 7, Units: 1})
	}

	run, err := NewRun(context.Background(), freeUser(), ledger)
	if err != nil {
		t.Fatal(err)
	}
	if run.HasAllowance() {
		t.Fatal("expected no allowance at the limit")
	}
	if err := run.ConsumeOnFirstTrack(context.Background(), 20, nil); !errors.Is(err, ErrLimitReached) {
		t.Fatalf("got %v, want ErrLimitReached", err)
	}
	if !run.WasLimitReached() {
		t.Error("limit hit should be recorded")
	}
}

func TestRefundReversesConsumption(t *testing.T) {
	ledger := &fakeLedger{}
	run, err := NewRun(context.Background(), freeUser(), ledger)
	if err != nil {
		t.Fatal(err)
	}

	if err := run.ConsumeOnFirstTrack(context.Background(), 20, nil); err != nil {
		t.Fatal(err)
	}
	eventID := run.EventID()

	if err := run.Refund(context.Background()); err != nil {
		t.Fatal(err)
	}
	if run.HasConsumed() {
		t.Error("refund should clear the consumed flag")
	}
	if run.Remaining() != FreeMonthlyLimit {
		t.Errorf("remaining after refund: got %d, want %d", run.Remaining(), FreeMonthlyLimit)
	}

	found := false
	for _, e := range ledger.events {
		if e.EventID == eventID {
			found = true
			if !e.Refunded {
				t.Error("ledger event not marked refunded")
			}
		}
	}
	if !found {
		t.Fatal("consumption event missing from ledger")
	}

	// Refund without consumption is a no-op.
	fresh, _ := NewRun(context.Background(), freeUser(), ledger)
	if err := fresh.Refund(context.Background()); err != nil {
		t.Fatalf("no-op refund errored: %v", err)
	}
}

func TestUnlimitedPlanNeverMeters(t *testing.T) {
	ledger := &fakeLedger{}
	user := &model.User{ID: 9, Plan: model.PlanUnlimited}

	run, err := NewRun(context.Background(), user, ledger)
	if err != nil {
		t.Fatal(err)
	}
	if !run.IsUnlimited() || !run.HasAllowance() {
		t.Fatal("unlimited plan must always have allowance")
	}

	if err := run.ConsumeOnFirstTrack(context.Background(), 20, nil); err != nil {
		t.Fatal(err)
	}
	// Analytics event recorded, but at zero units.
	if len(ledger.events) != 1 || ledger.events[0].Units != 0 {
		t.Fatalf("expected one zero-unit event, got %+v", ledger.events)
	}
	if run.Remaining() != -1 {
		t.Errorf("remaining: got %d, want -1", run.Remaining())
	}
}

func TestPlanLimit(t *testing.T) {
	if PlanLimit(model.PlanFree) != FreeMonthlyLimit {
		t.Error("free plan limit mismatch")
	}
	if PlanLimit(model.PlanPro) != ProMonthlyLimit {
		t.Error("pro plan limit mismatch")
	}
	if PlanLimit(model.PlanUnlimited) != -1 {
		t.Error("unlimited plan should be -1")
	}
}
