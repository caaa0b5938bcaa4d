package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/EmmyAnieDev/inventory-management-system/internal/core/domain"
)

func newTestOrder() domain.Order {
	return domain.Order{
		ID:        "test-order-" + uuid.New().String(),
		Direction: domain.DirectionOutbound,
		Status:    domain.OrderStatusPending,
		LineItems: []domain.LineItem{
			{ProductID: "item-a", Quantity: 2},
			{ProductID: "item-b", Quantity: 1},
		},
		CreatedAt: time.Now(),
	}
}

func TestOrderLedger_CreateAndGet(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	ledger := NewMySQLOrderLedger(db)
	order := newTestOrder()

	if err := ledger.CreateOrder(ctx, order); err != nil {
		t.Fatalf("create order: %v", err)
	}
	defer db.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = ?`, order.ID)
	defer db.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, order.ID)

	got, err := ledger.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if got.Status != domain.OrderStatusPending {
		t.Errorf("expected pending, got %s", got.Status)
	}
	if len(got.LineItems) != 2 || got.LineItems[0].ProductID != "item-a" {
		t.Errorf("line items not preserved in order: %+v", got.LineItems)
	}
	if got.SettledAt != nil {
		t.Error("expected nil settled timestamp on pending order")
	}
}

func TestOrderLedger_SettleExactlyOnce(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	ledger := NewMySQLOrderLedger(db)
	order := newTestOrder()

	if err := ledger.CreateOrder(ctx, order); err != nil {
		t.Fatalf("create order: %v", err)
	}
	defer db.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = ?`, order.ID)
	defer db.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, order.ID)

	items := order.LineItems
	items[0].UnitPrice = 4.5
	if err := ledger.MarkCommitted(ctx, order.ID, items, time.Now()); err != nil {
		t.Fatalf("mark committed: %v", err)
	}

	got, _ := ledger.GetOrder(ctx, order.ID)
	if got.Status != domain.OrderStatusCommitted {
		t.Errorf("expected committed, got %s", got.Status)
	}
	if got.LineItems[0].UnitPrice != 4.5 {
		t.Errorf("expected resolved unit price 4.5, got %v", got.LineItems[0].UnitPrice)
	}
	if got.SettledAt == nil {
		t.Error("expected settled timestamp")
	}

	err := ledger.MarkRejected(ctx, order.ID, "late", time.Now())
	if !errors.Is(err, domain.ErrDoubleSettlement) {
		t.Errorf("expected ErrDoubleSettlement, got %v", err)
	}
}

func TestOrderLedger_ClaimIsExclusive(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	ledger := NewMySQLOrderLedger(db)
	order := newTestOrder()

	if err := ledger.CreateOrder(ctx, order); err != nil {
		t.Fatalf("create order: %v", err)
	}
	defer db.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = ?`, order.ID)
	defer db.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, order.ID)

	claimed, err := ledger.ClaimOrder(ctx, order.ID)
	if err != nil || !claimed {
		t.Fatalf("first claim: claimed=%v err=%v", claimed, err)
	}

	claimed, err = ledger.ClaimOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if claimed {
		t.Error("expected second claim to fail")
	}

	// A claimed order is out of the cancellation window.
	err = ledger.CancelOrder(ctx, order.ID)
	if !errors.Is(err, domain.ErrOrderNotCancellable) {
		t.Errorf("expected ErrOrderNotCancellable, got %v", err)
	}
}

func TestOrderLedger_ReleaseClaimAllowsRetry(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	ledger := NewMySQLOrderLedger(db)
	order := newTestOrder()

	if err := ledger.CreateOrder(ctx, order); err != nil {
		t.Fatalf("create order: %v", err)
	}
	defer db.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = ?`, order.ID)
	defer db.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, order.ID)

	if claimed, err := ledger.ClaimOrder(ctx, order.ID); err != nil || !claimed {
		t.Fatalf("claim: claimed=%v err=%v", claimed, err)
	}
	if err := ledger.ReleaseOrder(ctx, order.ID); err != nil {
		t.Fatalf("release: %v", err)
	}

	// A released order goes back to the claimable pool.
	claimed, err := ledger.ClaimOrder(ctx, order.ID)
	if err != nil || !claimed {
		t.Errorf("expected reclaim after release, claimed=%v err=%v", claimed, err)
	}

	if err := ledger.MarkCommitted(ctx, order.ID, order.LineItems, time.Now()); err != nil {
		t.Fatalf("mark committed: %v", err)
	}
	// Releasing a settled order is a no-op.
	if err := ledger.ReleaseOrder(ctx, order.ID); err != nil {
		t.Fatalf("release settled: %v", err)
	}
	got, _ := ledger.GetOrder(ctx, order.ID)
	if got.Status != domain.OrderStatusCommitted {
		t.Errorf("expected committed, got %s", got.Status)
	}
}

func TestOrderLedger_ListPendingUnclaimed(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	ledger := NewMySQLOrderLedger(db)

	stale := newTestOrder()
	stale.CreatedAt = time.Now().Add(-time.Minute)
	claimed := newTestOrder()
	for _, order := range []domain.Order{stale, claimed} {
		if err := ledger.CreateOrder(ctx, order); err != nil {
			t.Fatalf("create order: %v", err)
		}
		defer db.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = ?`, order.ID)
		defer db.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, order.ID)
	}
	if ok, err := ledger.ClaimOrder(ctx, claimed.ID); err != nil || !ok {
		t.Fatalf("claim: ok=%v err=%v", ok, err)
	}

	orders, err := ledger.ListPendingUnclaimed(ctx, time.Now().Add(-30*time.Second))
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}

	var foundStale, foundClaimed bool
	for _, order := range orders {
		switch order.ID {
		case stale.ID:
			foundStale = true
			if len(order.LineItems) != 2 {
				t.Errorf("expected line items loaded, got %+v", order.LineItems)
			}
		case claimed.ID:
			foundClaimed = true
		}
	}
	if !foundStale {
		t.Error("expected stale unclaimed order in the listing")
	}
	if foundClaimed {
		t.Error("claimed order must not be listed for requeue")
	}
}

func TestOrderLedger_CancelBeforeClaim(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	ledger := NewMySQLOrderLedger(db)
	order := newTestOrder()

	if err := ledger.CreateOrder(ctx, order); err != nil {
		t.Fatalf("create order: %v", err)
	}
	defer db.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = ?`, order.ID)
	defer db.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, order.ID)

	if err := ledger.CancelOrder(ctx, order.ID); err != nil {
		t.Fatalf("cancel order: %v", err)
	}

	got, _ := ledger.GetOrder(ctx, order.ID)
	if got.Status != domain.OrderStatusCancelled {
		t.Errorf("expected cancelled, got %s", got.Status)
	}

	claimed, _ := ledger.ClaimOrder(ctx, order.ID)
	if claimed {
		t.Error("expected claim to fail on cancelled order")
	}
}
