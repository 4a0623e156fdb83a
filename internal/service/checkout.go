package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"puntoventa/backend/internal/domain"
	"puntoventa/backend/internal/store"
	"puntoventa/backend/internal/xid"
)

// Checkout commits a cart: every line's stock is decremented through the
// repository's per-product atomic adjustment, and any failure rolls the
// earlier decrements back before the error is returned. The cart survives
// a failed checkout so the seller can fix it and retry; it is destroyed
// only once the ticket exists.
func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutResponse, error) {
	if req.PaymentMethod == "" {
		req.PaymentMethod = domain.PaymentCash
	}
	if !isSupportedPaymentMethod(req.PaymentMethod) {
		return domain.CheckoutResponse{}, ErrUnsupportedPayment
	}

	s.cartMu.Lock()
	cart, exists := s.carts[req.CartID]
	if !exists {
		s.cartMu.Unlock()
		return domain.CheckoutResponse{}, store.ErrNotFound
	}
	if len(cart.Lines) == 0 {
		s.cartMu.Unlock()
		return domain.CheckoutResponse{}, ErrEmptyCart
	}
	lines := make([]domain.CartLine, len(cart.Lines))
	copy(lines, cart.Lines)
	seller := cart.Seller
	totals := cartTotals(cart)
	s.cartMu.Unlock()

	changeCents := int64(0)
	if req.PaymentMethod == domain.PaymentCash {
		if req.TenderedCents < totals.TotalCents {
			return domain.CheckoutResponse{}, ErrInsufficientPayment
		}
		changeCents = req.TenderedCents - totals.TotalCents
	}

	if err := s.reserveStock(ctx, lines); err != nil {
		return domain.CheckoutResponse{}, err
	}

	folio, err := s.repo.NextFolio(ctx)
	if err != nil {
		s.releaseStock(ctx, lines, len(lines))
		return domain.CheckoutResponse{}, err
	}

	items := make([]domain.TicketItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, domain.TicketItem{
			ProductID:     line.ProductID,
			Brand:         line.Brand,
			Model:         line.Model,
			Qty:           line.Qty,
			PriceCents:    line.PriceCents,
			DiscountCents: line.DiscountCents,
			TotalCents:    line.TotalCents(),
		})
	}

	ticket := domain.Ticket{
		ID:            xid.New("tkt"),
		Folio:         folio,
		Seller:        seller,
		PaymentMethod: req.PaymentMethod,
		TotalCents:    totals.TotalCents,
		Status:        domain.TicketStatusActive,
		CreatedAt:     time.Now().UTC(),
		Items:         items,
	}

	created, err := s.repo.CreateTicket(ctx, ticket)
	if err != nil {
		s.releaseStock(ctx, lines, len(lines))
		return domain.CheckoutResponse{}, err
	}

	s.cartMu.Lock()
	delete(s.carts, req.CartID)
	s.cartMu.Unlock()

	log.Printf("[checkout] ticket created folio=%s seller=%s payment=%s total=%d items=%d",
		created.Folio, created.Seller, created.PaymentMethod, created.TotalCents, len(created.Items))

	return domain.CheckoutResponse{Ticket: *created, ChangeCents: changeCents}, nil
}

// reserveStock decrements stock line by line. On the first failure it
// restores everything already taken and reports the causal error.
func (s *Service) reserveStock(ctx context.Context, lines []domain.CartLine) error {
	for i, line := range lines {
		if _, err := s.repo.AdjustStock(ctx, line.ProductID, -line.Qty); err != nil {
			s.releaseStock(ctx, lines, i)
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("product %s: %w", line.ProductID, store.ErrNotFound)
			}
			return err
		}
	}
	return nil
}

// releaseStock undoes the first n reserved lines. A product that vanished
// mid-flight cannot be restored; that is logged and skipped so the rest
// of the compensation still runs.
func (s *Service) releaseStock(ctx context.Context, lines []domain.CartLine, n int) {
	for i := 0; i < n && i < len(lines); i++ {
		if _, err := s.repo.AdjustStock(ctx, lines[i].ProductID, lines[i].Qty); err != nil {
			log.Printf("[checkout] WARN: rollback failed product=%s qty=%d: %v", lines[i].ProductID, lines[i].Qty, err)
		}
	}
}

func (s *Service) GetTicket(ctx context.Context, id string) (domain.Ticket, error) {
	ticket, err := s.repo.GetTicket(ctx, id)
	if err != nil {
		return domain.Ticket{}, err
	}
	return *ticket, nil
}

func (s *Service) ListTickets(ctx context.Context, limit int) ([]domain.Ticket, error) {
	return s.repo.ListTickets(ctx, limit)
}

// CancelTicket flips an active ticket to its terminal cancelled state and
// returns the sold quantities to stock. Restocking is best effort: a
// product deleted since the sale produces a warning, never a failure,
// because the cancellation itself must stand.
func (s *Service) CancelTicket(ctx context.Context, id string) (domain.CancelTicketResponse, error) {
	if id == "" {
		return domain.CancelTicketResponse{}, store.ErrInvalidRequest
	}

	cancelled, err := s.repo.CancelTicket(ctx, id, time.Now().UTC())
	if err != nil {
		return domain.CancelTicketResponse{}, err
	}

	var warnings []string
	for _, item := range cancelled.Items {
		if _, err := s.repo.AdjustStock(ctx, item.ProductID, item.Qty); err != nil {
			msg := fmt.Sprintf("stock not restored for product %s (qty %d): %v", item.ProductID, item.Qty, err)
			warnings = append(warnings, msg)
			log.Printf("[cancel] WARN: %s folio=%s", msg, cancelled.Folio)
		}
	}

	log.Printf("[cancel] ticket cancelled folio=%s seller=%s total=%d by=%s",
		cancelled.Folio, cancelled.Seller, cancelled.TotalCents, actorUsername(ctx))

	return domain.CancelTicketResponse{Ticket: *cancelled, Warnings: warnings}, nil
}
