package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/storage"
)

func testPosition(id string, opened time.Time) *domain.TradingPosition {
	return &domain.TradingPosition{
		ID: id,
		Pool: domain.DetectedPool{
			Variant:   domain.VariantRaydium,
			PoolID:    "pool-" + id,
			BaseMint:  "mint-" + id,
			QuoteMint: domain.WSOLMint,
		},
		BuyTxID:     "buy-" + id,
		QuoteAmount: 100_000_000,
		TokenAmount: 5_000_000,
		OpenedAt:    opened,
		Status:      domain.StatusBuying,
	}
}

func TestPositionStore_InsertAndGet(t *testing.T) {
	store := NewPositionStore()
	ctx := context.Background()

	p := testPosition("p1", time.Unix(1000, 0))
	if err := store.Insert(ctx, p); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "p1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Pool.PoolID != "pool-p1" || got.QuoteAmount != 100_000_000 {
		t.Errorf("unexpected position: %+v", got)
	}

	// returned copies must not alias stored state
	got.Status = domain.StatusSold
	again, _ := store.GetByID(ctx, "p1")
	if again.Status != domain.StatusBuying {
		t.Errorf("stored status changed through returned copy: %s", again.Status)
	}
}

func TestPositionStore_DuplicateKey(t *testing.T) {
	store := NewPositionStore()
	ctx := context.Background()

	p := testPosition("p1", time.Unix(1000, 0))
	if err := store.Insert(ctx, p); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}
	if err := store.Insert(ctx, p); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestPositionStore_InvalidInput(t *testing.T) {
	store := NewPositionStore()
	ctx := context.Background()

	if err := store.Insert(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("nil: expected ErrInvalidInput, got %v", err)
	}
	if err := store.Insert(ctx, &domain.TradingPosition{Status: domain.StatusBuying}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("empty id: expected ErrInvalidInput, got %v", err)
	}
}

func TestPositionStore_UpdateForwardOnly(t *testing.T) {
	store := NewPositionStore()
	ctx := context.Background()

	p := testPosition("p1", time.Unix(1000, 0))
	if err := store.Insert(ctx, p); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	p.Status = domain.StatusMonitoring
	if err := store.Update(ctx, p); err != nil {
		t.Fatalf("Update to monitoring failed: %v", err)
	}

	p.Status = domain.StatusBuying
	if err := store.Update(ctx, p); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("regression: expected ErrInvalidInput, got %v", err)
	}

	p.Status = domain.StatusSold
	p.SellTxID = "sell-p1"
	if err := store.Update(ctx, p); err != nil {
		t.Fatalf("Update to sold failed: %v", err)
	}

	got, _ := store.GetByID(ctx, "p1")
	if got.Status != domain.StatusSold || got.SellTxID != "sell-p1" {
		t.Errorf("unexpected position after update: %+v", got)
	}
}

func TestPositionStore_UpdateNotFound(t *testing.T) {
	store := NewPositionStore()
	err := store.Update(context.Background(), testPosition("missing", time.Now()))
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestPositionStore_GetOpen(t *testing.T) {
	store := NewPositionStore()
	ctx := context.Background()

	late := testPosition("late", time.Unix(3000, 0))
	early := testPosition("early", time.Unix(1000, 0))
	done := testPosition("done", time.Unix(2000, 0))
	done.Status = domain.StatusAbandoned

	for _, p := range []*domain.TradingPosition{late, early, done} {
		if err := store.Insert(ctx, p); err != nil {
			t.Fatalf("Insert %s failed: %v", p.ID, err)
		}
	}

	open, err := store.GetOpen(ctx)
	if err != nil {
		t.Fatalf("GetOpen failed: %v", err)
	}
	if len(open) != 2 {
		t.Fatalf("expected 2 open positions, got %d", len(open))
	}
	if open[0].ID != "early" || open[1].ID != "late" {
		t.Errorf("wrong order: %s, %s", open[0].ID, open[1].ID)
	}
}
