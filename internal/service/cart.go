package service

import (
	"context"
	"math"
	"strings"
	"time"

	"puntoventa/backend/internal/domain"
	"puntoventa/backend/internal/store"
	"puntoventa/backend/internal/xid"
)

// Carts are session state: they live in memory next to the service and
// never touch the repository. Only checkout commits their effects.

func (s *Service) CreateCart(ctx context.Context) (domain.CartResponse, error) {
	now := time.Now().UTC()
	cart := &domain.Cart{
		ID:        xid.New("cart"),
		Seller:    actorUsername(ctx),
		Lines:     []domain.CartLine{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.cartMu.Lock()
	s.carts[cart.ID] = cart
	s.cartMu.Unlock()

	return cartResponse(cart), nil
}

func (s *Service) GetCart(_ context.Context, cartID string) (domain.CartResponse, error) {
	s.cartMu.Lock()
	defer s.cartMu.Unlock()

	cart, exists := s.carts[cartID]
	if !exists {
		return domain.CartResponse{}, store.ErrNotFound
	}
	return cartResponse(cart), nil
}

// AddLine puts one unit of the product into the cart. Adding a product
// already in the cart bumps its quantity instead of creating a second line.
func (s *Service) AddLine(ctx context.Context, cartID string, productID string) (domain.CartResponse, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.CartResponse{}, store.ErrInvalidRequest
	}

	product, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return domain.CartResponse{}, err
	}
	if product.Stock == 0 {
		return domain.CartResponse{}, ErrOutOfStock
	}

	s.cartMu.Lock()
	defer s.cartMu.Unlock()

	cart, exists := s.carts[cartID]
	if !exists {
		return domain.CartResponse{}, store.ErrNotFound
	}

	for i := range cart.Lines {
		if cart.Lines[i].ProductID != productID {
			continue
		}
		if cart.Lines[i].Qty+1 > product.Stock {
			return domain.CartResponse{}, ErrStockExceeded
		}
		cart.Lines[i].Qty++
		cart.UpdatedAt = time.Now().UTC()
		return cartResponse(cart), nil
	}

	cart.Lines = append(cart.Lines, domain.CartLine{
		ProductID:  product.ID,
		Brand:      product.Brand,
		Model:      product.Model,
		PriceCents: product.PriceCents,
		Qty:        1,
	})
	cart.UpdatedAt = time.Now().UTC()
	return cartResponse(cart), nil
}

// UpdateLine changes quantity and/or discount on an existing line.
// Quantities below one are floored to one; quantities above the live
// stock are rejected. A percent discount is converted to an absolute
// amount at write time and stored as such: later quantity changes do
// not recompute it, and a quantity change that would drop the gross
// below the stored discount is rejected rather than clamped.
func (s *Service) UpdateLine(ctx context.Context, cartID string, productID string, req domain.UpdateLineRequest) (domain.CartResponse, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.CartResponse{}, store.ErrInvalidRequest
	}
	if req.Qty == nil && req.DiscountCents == nil && req.DiscountPercent == nil {
		return domain.CartResponse{}, store.ErrInvalidRequest
	}
	if req.DiscountCents != nil && req.DiscountPercent != nil {
		return domain.CartResponse{}, store.ErrInvalidRequest
	}

	var liveStock int
	if req.Qty != nil {
		product, err := s.repo.GetProduct(ctx, productID)
		if err != nil {
			return domain.CartResponse{}, err
		}
		liveStock = product.Stock
	}

	s.cartMu.Lock()
	defer s.cartMu.Unlock()

	cart, exists := s.carts[cartID]
	if !exists {
		return domain.CartResponse{}, store.ErrNotFound
	}

	line := findLine(cart, productID)
	if line == nil {
		return domain.CartResponse{}, store.ErrNotFound
	}

	// Validate against the prospective gross before touching the line, so
	// a rejected update never half-applies and the stored discount can
	// never exceed price*qty.
	qty := line.Qty
	if req.Qty != nil {
		qty = *req.Qty
		if qty < 1 {
			qty = 1
		}
		if qty > liveStock {
			return domain.CartResponse{}, ErrStockExceeded
		}
	}
	gross := line.PriceCents * int64(qty)

	discount := line.DiscountCents
	switch {
	case req.DiscountCents != nil:
		if *req.DiscountCents < 0 || *req.DiscountCents > gross {
			return domain.CartResponse{}, ErrInvalidDiscount
		}
		discount = *req.DiscountCents
	case req.DiscountPercent != nil:
		pct := *req.DiscountPercent
		if pct < 0 || pct > 100 {
			return domain.CartResponse{}, ErrInvalidDiscount
		}
		discount = int64(math.Round(float64(gross) * pct / 100))
	default:
		if discount > gross {
			return domain.CartResponse{}, ErrInvalidDiscount
		}
	}

	line.Qty = qty
	line.DiscountCents = discount
	cart.UpdatedAt = time.Now().UTC()
	return cartResponse(cart), nil
}

func (s *Service) RemoveLine(_ context.Context, cartID string, productID string) (domain.CartResponse, error) {
	s.cartMu.Lock()
	defer s.cartMu.Unlock()

	cart, exists := s.carts[cartID]
	if !exists {
		return domain.CartResponse{}, store.ErrNotFound
	}

	for i := range cart.Lines {
		if cart.Lines[i].ProductID == productID {
			cart.Lines = append(cart.Lines[:i], cart.Lines[i+1:]...)
			cart.UpdatedAt = time.Now().UTC()
			return cartResponse(cart), nil
		}
	}
	return domain.CartResponse{}, store.ErrNotFound
}

func (s *Service) ClearCart(_ context.Context, cartID string) (domain.CartResponse, error) {
	s.cartMu.Lock()
	defer s.cartMu.Unlock()

	cart, exists := s.carts[cartID]
	if !exists {
		return domain.CartResponse{}, store.ErrNotFound
	}
	cart.Lines = cart.Lines[:0]
	cart.UpdatedAt = time.Now().UTC()
	return cartResponse(cart), nil
}

func (s *Service) AbandonCart(_ context.Context, cartID string) error {
	s.cartMu.Lock()
	defer s.cartMu.Unlock()

	if _, exists := s.carts[cartID]; !exists {
		return store.ErrNotFound
	}
	delete(s.carts, cartID)
	return nil
}

// ChangeDue computes the cash change for a tendered amount against the
// current cart total. Never negative.
func (s *Service) ChangeDue(_ context.Context, cartID string, tenderedCents int64) (int64, error) {
	s.cartMu.Lock()
	defer s.cartMu.Unlock()

	cart, exists := s.carts[cartID]
	if !exists {
		return 0, store.ErrNotFound
	}
	totals := cartTotals(cart)
	return maxInt64(0, tenderedCents-totals.TotalCents), nil
}

func findLine(cart *domain.Cart, productID string) *domain.CartLine {
	for i := range cart.Lines {
		if cart.Lines[i].ProductID == productID {
			return &cart.Lines[i]
		}
	}
	return nil
}

func cartTotals(cart *domain.Cart) domain.CartTotals {
	totals := domain.CartTotals{}
	for _, line := range cart.Lines {
		totals.SubtotalCents += line.GrossCents()
		totals.DiscountCents += line.DiscountCents
		totals.ItemCount += line.Qty
	}
	totals.TotalCents = maxInt64(0, totals.SubtotalCents-totals.DiscountCents)
	return totals
}

func cartResponse(cart *domain.Cart) domain.CartResponse {
	copyCart := *cart
	copyCart.Lines = make([]domain.CartLine, len(cart.Lines))
	copy(copyCart.Lines, cart.Lines)
	return domain.CartResponse{Cart: copyCart, Totals: cartTotals(cart)}
}
