package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"puntoventa/backend/internal/domain"
	"puntoventa/backend/internal/store"
)

func seedProduct(t *testing.T, s *Store, id string, stock int) {
	t.Helper()
	_, err := s.CreateProduct(context.Background(), domain.Product{
		ID:         id,
		Brand:      "Generico",
		Model:      "Modelo " + id,
		PriceCents: 10000,
		Stock:      stock,
	})
	if err != nil {
		t.Fatalf("seed product: %v", err)
	}
}

func TestAdjustStockNeverGoesNegative(t *testing.T) {
	s := New()
	seedProduct(t, s, "prd-a", 3)
	ctx := context.Background()

	newStock, err := s.AdjustStock(ctx, "prd-a", -2)
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if newStock != 1 {
		t.Fatalf("expected stock 1, got %d", newStock)
	}

	if _, err := s.AdjustStock(ctx, "prd-a", -2); !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	product, err := s.GetProduct(ctx, "prd-a")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.Stock != 1 {
		t.Fatalf("expected rejected adjustment to leave stock at 1, got %d", product.Stock)
	}

	if _, err := s.AdjustStock(ctx, "prd-missing", -1); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAdjustStockConcurrentDecrements(t *testing.T) {
	s := New()
	seedProduct(t, s, "prd-a", 10)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.AdjustStock(ctx, "prd-a", -1); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 10 {
		t.Fatalf("expected exactly 10 decrements to land, got %d", succeeded)
	}
	product, _ := s.GetProduct(ctx, "prd-a")
	if product.Stock != 0 {
		t.Fatalf("expected stock 0, got %d", product.Stock)
	}
}

func TestNextFolioIsSequential(t *testing.T) {
	s := New()
	ctx := context.Background()

	first, err := s.NextFolio(ctx)
	if err != nil {
		t.Fatalf("next folio: %v", err)
	}
	second, err := s.NextFolio(ctx)
	if err != nil {
		t.Fatalf("next folio: %v", err)
	}
	if first != "T-000001" || second != "T-000002" {
		t.Fatalf("expected T-000001 then T-000002, got %s then %s", first, second)
	}
}

func TestCreateProductRejectsDuplicateQRCode(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.CreateProduct(ctx, domain.Product{ID: "prd-a", Brand: "A", Model: "M", PriceCents: 100, QRCode: "QR-1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err = s.CreateProduct(ctx, domain.Product{ID: "prd-b", Brand: "B", Model: "M", PriceCents: 100, QRCode: "QR-1"})
	if !errors.Is(err, store.ErrDuplicateQRCode) {
		t.Fatalf("expected duplicate qr code, got %v", err)
	}

	// Empty codes never collide.
	if _, err := s.CreateProduct(ctx, domain.Product{ID: "prd-c", Brand: "C", Model: "M", PriceCents: 100}); err != nil {
		t.Fatalf("create without code: %v", err)
	}
	if _, err := s.CreateProduct(ctx, domain.Product{ID: "prd-d", Brand: "D", Model: "M", PriceCents: 100}); err != nil {
		t.Fatalf("second create without code: %v", err)
	}
}

func TestGetProductByQRCode(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	product, err := s.GetProductByQRCode(ctx, "QR-FUNDA-IP15")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if product.ID != "prd-funda-ip15" {
		t.Fatalf("unexpected product %s", product.ID)
	}

	if _, err := s.GetProductByQRCode(ctx, "QR-NADA"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := s.GetProductByQRCode(ctx, ""); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for empty code, got %v", err)
	}
}

func createTicket(t *testing.T, s *Store, id string, createdAt time.Time, totalCents int64) {
	t.Helper()
	folio, err := s.NextFolio(context.Background())
	if err != nil {
		t.Fatalf("next folio: %v", err)
	}
	_, err = s.CreateTicket(context.Background(), domain.Ticket{
		ID:            id,
		Folio:         folio,
		Seller:        "admin",
		PaymentMethod: domain.PaymentCash,
		TotalCents:    totalCents,
		Status:        domain.TicketStatusActive,
		CreatedAt:     createdAt,
		Items: []domain.TicketItem{
			{ProductID: "prd-x", Brand: "A", Model: "M", Qty: 1, PriceCents: totalCents, TotalCents: totalCents},
		},
	})
	if err != nil {
		t.Fatalf("create ticket %s: %v", id, err)
	}
}

func TestListTicketsNewestFirstWithLimit(t *testing.T) {
	s := New()
	base := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	createTicket(t, s, "tkt-1", base, 100)
	createTicket(t, s, "tkt-2", base.Add(time.Hour), 200)
	createTicket(t, s, "tkt-3", base.Add(2*time.Hour), 300)

	tickets, err := s.ListTickets(context.Background(), 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tickets) != 2 {
		t.Fatalf("expected 2 tickets, got %d", len(tickets))
	}
	if tickets[0].ID != "tkt-3" || tickets[1].ID != "tkt-2" {
		t.Fatalf("expected newest first, got %s then %s", tickets[0].ID, tickets[1].ID)
	}
}

func TestListTicketsBetweenIsHalfOpen(t *testing.T) {
	s := New()
	from := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)
	createTicket(t, s, "tkt-before", from.Add(-time.Second), 100)
	createTicket(t, s, "tkt-start", from, 200)
	createTicket(t, s, "tkt-end", to, 300)

	tickets, err := s.ListTicketsBetween(context.Background(), from, to)
	if err != nil {
		t.Fatalf("list between: %v", err)
	}
	if len(tickets) != 1 || tickets[0].ID != "tkt-start" {
		t.Fatalf("expected only the start-boundary ticket, got %+v", tickets)
	}
}

func TestCancelTicketIsTerminal(t *testing.T) {
	s := New()
	createTicket(t, s, "tkt-1", time.Now().UTC(), 100)
	ctx := context.Background()

	at := time.Now().UTC()
	cancelled, err := s.CancelTicket(ctx, "tkt-1", at)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != domain.TicketStatusCancelled || cancelled.CancelledAt == nil {
		t.Fatalf("expected terminal cancelled state, got %+v", cancelled)
	}

	if _, err := s.CancelTicket(ctx, "tkt-1", at); !errors.Is(err, store.ErrTicketCancelled) {
		t.Fatalf("expected repeat cancel rejected, got %v", err)
	}
	if _, err := s.CancelTicket(ctx, "tkt-missing", at); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestTicketsAreClonedOnRead(t *testing.T) {
	s := New()
	createTicket(t, s, "tkt-1", time.Now().UTC(), 100)

	ticket, err := s.GetTicket(context.Background(), "tkt-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	ticket.Items[0].Qty = 99

	again, _ := s.GetTicket(context.Background(), "tkt-1")
	if again.Items[0].Qty != 1 {
		t.Fatalf("expected stored ticket untouched by caller mutation, got qty %d", again.Items[0].Qty)
	}
}

func TestSaveAndListCashCuts(t *testing.T) {
	s := New()
	ctx := context.Background()

	older, err := s.SaveCashCut(ctx, domain.CashCutReport{
		Window:      domain.WindowDay,
		GeneratedAt: time.Date(2026, 8, 25, 20, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	newer, err := s.SaveCashCut(ctx, domain.CashCutReport{
		Window:      domain.WindowDay,
		GeneratedAt: time.Date(2026, 8, 26, 20, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if older.ID == "" || newer.ID == "" || older.ID == newer.ID {
		t.Fatalf("expected distinct generated ids")
	}

	reports, err := s.ListCashCuts(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(reports))
	}
	if reports[0].ID != newer.ID {
		t.Fatalf("expected newest report first, got %s", reports[0].ID)
	}

	fetched, err := s.GetCashCut(ctx, older.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if fetched.ID != older.ID {
		t.Fatalf("unexpected report %s", fetched.ID)
	}
}

func TestUpdateProductPartialFields(t *testing.T) {
	s := New()
	seedProduct(t, s, "prd-a", 5)
	ctx := context.Background()

	price := int64(25000)
	color := "Rojo"
	updated, err := s.UpdateProduct(ctx, "prd-a", domain.ProductUpdateRequest{PriceCents: &price, Color: &color})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.PriceCents != 25000 || updated.Color != "Rojo" {
		t.Fatalf("expected updated fields, got %+v", updated)
	}
	if updated.Brand != "Generico" || updated.Stock != 5 {
		t.Fatalf("expected untouched fields preserved, got %+v", updated)
	}

	bad := int64(0)
	if _, err := s.UpdateProduct(ctx, "prd-a", domain.ProductUpdateRequest{PriceCents: &bad}); !errors.Is(err, store.ErrInvalidRequest) {
		t.Fatalf("expected invalid price rejected, got %v", err)
	}
}
