package subscription

import (
	"errors"
	"testing"
	"time"

	"github.com/mjones3/exception-collector/internal/core/domain"
	"github.com/mjones3/exception-collector/internal/infra/storage/memory"
	"github.com/mjones3/exception-collector/internal/lifecycle/bridge"
)

var (
	opsCaller    = domain.Caller{Username: "ops", Roles: []domain.Role{domain.RoleOperations}}
	adminCaller  = domain.Caller{Username: "admin", Roles: []domain.Role{domain.RoleAdmin}}
	viewerCaller = domain.Caller{Username: "viewer", Roles: []domain.Role{domain.RoleViewer}}
	noRoleCaller = domain.Caller{Username: "anon"}
)

func newTestManager(t *testing.T) (*Manager, *bridge.Bridge) {
	t.Helper()
	store := memory.NewMemoryStorage()
	b := bridge.NewBridge(bridge.Config{BufferSize: 8}, memory.NewExceptionRepo(store), memory.NewAttemptRepo(store))
	t.Cleanup(b.Close)
	return NewManager(b), b
}

func TestSubscribeExceptionUpdates_RoleGate(t *testing.T) {
	m, _ := newTestManager(t)

	for _, caller := range []domain.Caller{viewerCaller, opsCaller, adminCaller} {
		sub, err := m.SubscribeExceptionUpdates(caller, Filters{})
		if err != nil {
			t.Errorf("%s: unexpected error %v", caller.Username, err)
			continue
		}
		sub.Close()
	}

	if _, err := m.SubscribeExceptionUpdates(noRoleCaller, Filters{}); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized for role-less caller, got %v", err)
	}
}

func TestSubscribeRetryStatus_RoleGate(t *testing.T) {
	m, _ := newTestManager(t)

	if _, err := m.SubscribeRetryStatus(viewerCaller, ""); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized for viewer, got %v", err)
	}
	sub, err := m.SubscribeRetryStatus(opsCaller, "")
	if err != nil {
		t.Fatalf("unexpected error for operations: %v", err)
	}
	sub.Close()
}

func TestSubscribeExceptionUpdates_FilterApplied(t *testing.T) {
	m, b := newTestManager(t)

	sub, err := m.SubscribeExceptionUpdates(opsCaller, Filters{
		Severities: []domain.Severity{domain.SeverityCritical},
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	low := domain.ExceptionUpdateEvent{Exception: domain.ExceptionSnapshot{TransactionID: "TXN-1", Severity: domain.SeverityLow}}
	crit := domain.ExceptionUpdateEvent{Exception: domain.ExceptionSnapshot{TransactionID: "TXN-2", Severity: domain.SeverityCritical}}

	b.PublishExceptionUpdate(low)
	b.PublishExceptionUpdate(crit)

	select {
	case e := <-sub.C:
		if e.Exception.TransactionID != "TXN-2" {
			t.Errorf("expected only the critical event, got %s", e.Exception.TransactionID)
		}
	case <-time.After(time.Second):
		t.Fatal("matching event not delivered")
	}
	select {
	case e := <-sub.C:
		t.Errorf("non-matching event delivered: %s", e.Exception.TransactionID)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribeRetryStatus_TransactionScope(t *testing.T) {
	m, b := newTestManager(t)

	sub, err := m.SubscribeRetryStatus(opsCaller, "TXN-7")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	b.PublishRetryStatus(domain.RetryStatusEvent{TransactionID: "TXN-1", Type: domain.RetryEventInitiated})
	b.PublishRetryStatus(domain.RetryStatusEvent{TransactionID: "TXN-7", Type: domain.RetryEventCompleted})

	select {
	case e := <-sub.C:
		if e.TransactionID != "TXN-7" {
			t.Errorf("expected TXN-7, got %s", e.TransactionID)
		}
	case <-time.After(time.Second):
		t.Fatal("scoped event not delivered")
	}
}

func TestSubscribeMutationCompletions_NonAdminSeesOwnOnly(t *testing.T) {
	m, b := newTestManager(t)

	opsSub, err := m.SubscribeMutationCompletions(opsCaller)
	if err != nil {
		t.Fatalf("subscribe ops: %v", err)
	}
	defer opsSub.Close()
	adminSub, err := m.SubscribeMutationCompletions(adminCaller)
	if err != nil {
		t.Fatalf("subscribe admin: %v", err)
	}
	defer adminSub.Close()

	b.PublishMutationCompletion(domain.MutationCompletionEvent{TransactionID: "TXN-1", PerformedBy: "someone-else"})
	b.PublishMutationCompletion(domain.MutationCompletionEvent{TransactionID: "TXN-2", PerformedBy: "ops"})

	// Admin sees both
	for i := 0; i < 2; i++ {
		select {
		case <-adminSub.C:
		case <-time.After(time.Second):
			t.Fatal("admin missing completion event")
		}
	}

	// Operations caller only sees their own
	select {
	case e := <-opsSub.C:
		if e.TransactionID != "TXN-2" {
			t.Errorf("expected own completion TXN-2, got %s", e.TransactionID)
		}
	case <-time.After(time.Second):
		t.Fatal("own completion not delivered")
	}
	select {
	case e := <-opsSub.C:
		t.Errorf("foreign completion delivered: %s", e.TransactionID)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscription_CloseReleasesBackloggedForwarder(t *testing.T) {
	m, b := newTestManager(t)

	sub, err := m.SubscribeExceptionUpdates(opsCaller, Filters{})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	// Overfill both the delivery buffer and the raw buffer without reading,
	// parking the forwarder on its send.
	for i := 0; i < 20; i++ {
		b.PublishExceptionUpdate(domain.ExceptionUpdateEvent{
			Exception: domain.ExceptionSnapshot{TransactionID: "TXN-1"},
		})
	}
	sub.Close()

	closed := make(chan struct{})
	go func() {
		for range sub.C {
		}
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("delivery channel did not close after Close")
	}
}

func TestSubscription_CloseIdempotent(t *testing.T) {
	m, b := newTestManager(t)

	sub, err := m.SubscribeExceptionUpdates(opsCaller, Filters{})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if sub.ID == "" {
		t.Error("expected subscription ID")
	}

	sub.Close()
	sub.Close()

	// Channel drains and closes after Close
	for {
		if _, ok := <-sub.C; !ok {
			break
		}
	}

	if b.ExceptionUpdates().Len() != 0 {
		t.Errorf("expected broadcast registration released, got %d", b.ExceptionUpdates().Len())
	}
}
