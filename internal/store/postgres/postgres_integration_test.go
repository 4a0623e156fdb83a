package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"puntoventa/backend/internal/domain"
	"puntoventa/backend/internal/store"
)

func newIntegrationStore(t *testing.T) *Store {
	t.Helper()
	databaseURL := os.Getenv("PUNTOVENTA_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set PUNTOVENTA_TEST_DATABASE_URL to run postgres integration tests")
	}

	s, err := New(context.Background(), databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func TestAdjustStockRejectsNegative(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	stamp := time.Now().UnixNano()
	id := fmt.Sprintf("prd-it-%d", stamp)
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	})

	_, err := s.CreateProduct(ctx, domain.Product{
		ID:         id,
		Brand:      "Generico",
		Model:      "Funda IT",
		Category:   "fundas",
		PriceCents: 15000,
		Stock:      3,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	newStock, err := s.AdjustStock(ctx, id, -2)
	if err != nil {
		t.Fatalf("adjust stock: %v", err)
	}
	if newStock != 1 {
		t.Fatalf("expected stock 1, got %d", newStock)
	}

	if _, err := s.AdjustStock(ctx, id, -2); !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock error, got %v", err)
	}

	if _, err := s.AdjustStock(ctx, "prd-missing", -1); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for missing product, got %v", err)
	}
}

func TestCancelTicketIsTerminal(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	stamp := time.Now().UnixNano()
	ticketID := fmt.Sprintf("tkt-it-%d", stamp)
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM ticket_items WHERE ticket_id = $1`, ticketID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM tickets WHERE id = $1`, ticketID)
	})

	folio, err := s.NextFolio(ctx)
	if err != nil {
		t.Fatalf("next folio: %v", err)
	}

	_, err = s.CreateTicket(ctx, domain.Ticket{
		ID:            ticketID,
		Folio:         folio,
		Seller:        "admin",
		PaymentMethod: domain.PaymentCash,
		TotalCents:    15000,
		Status:        domain.TicketStatusActive,
		CreatedAt:     time.Now().UTC(),
		Items: []domain.TicketItem{
			{ProductID: "prd-x", Brand: "Generico", Model: "Funda IT", Qty: 1, PriceCents: 15000, TotalCents: 15000},
		},
	})
	if err != nil {
		t.Fatalf("create ticket: %v", err)
	}

	at := time.Now().UTC()
	cancelled, err := s.CancelTicket(ctx, ticketID, at)
	if err != nil {
		t.Fatalf("cancel ticket: %v", err)
	}
	if cancelled.Status != domain.TicketStatusCancelled {
		t.Fatalf("expected cancelled status, got %s", cancelled.Status)
	}
	if cancelled.CancelledAt == nil {
		t.Fatalf("expected cancelled_at to be set")
	}

	if _, err := s.CancelTicket(ctx, ticketID, at); !errors.Is(err, store.ErrTicketCancelled) {
		t.Fatalf("expected repeat cancel to be rejected, got %v", err)
	}
}
