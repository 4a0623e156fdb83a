package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"puntoventa/backend/internal/cache"
	"puntoventa/backend/internal/domain"
	"puntoventa/backend/internal/store"
)

var (
	ErrOutOfStock          = errors.New("out of stock")
	ErrStockExceeded       = errors.New("stock exceeded")
	ErrInvalidDiscount     = errors.New("invalid discount")
	ErrInsufficientPayment = errors.New("insufficient payment")
	ErrEmptyCart           = errors.New("empty cart")
	ErrUnsupportedPayment  = errors.New("unsupported payment method")
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo           store.Repository
	analyticsCache cache.AnalyticsCache
	analyticsTTL   time.Duration
	loc            *time.Location

	cartMu sync.Mutex
	carts  map[string]*domain.Cart
}

func New(repo store.Repository, analyticsCache cache.AnalyticsCache, analyticsTTL time.Duration, loc *time.Location) *Service {
	if analyticsCache == nil {
		analyticsCache = cache.NoopAnalyticsCache{}
	}
	if analyticsTTL < time.Second {
		analyticsTTL = 30 * time.Second
	}
	if loc == nil {
		loc = time.Local
	}

	return &Service{
		repo:           repo,
		analyticsCache: analyticsCache,
		analyticsTTL:   analyticsTTL,
		loc:            loc,
		carts:          make(map[string]*domain.Cart),
	}
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

// GetProductByQRCode resolves a scanned code to a catalog product.
func (s *Service) GetProductByQRCode(ctx context.Context, code string) (domain.Product, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.Product{}, store.ErrInvalidRequest
	}
	product, err := s.repo.GetProductByQRCode(ctx, code)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	req.Brand = strings.TrimSpace(req.Brand)
	req.Model = strings.TrimSpace(req.Model)
	req.Type = strings.TrimSpace(req.Type)
	req.Color = strings.TrimSpace(req.Color)
	req.Category = strings.TrimSpace(req.Category)
	req.QRCode = strings.TrimSpace(req.QRCode)

	if req.Brand == "" || req.Model == "" {
		return domain.Product{}, store.ErrInvalidRequest
	}
	if req.PriceCents < 1 || req.Stock < 0 {
		return domain.Product{}, store.ErrInvalidRequest
	}

	product := domain.Product{
		Brand:      req.Brand,
		Model:      req.Model,
		Type:       req.Type,
		Color:      req.Color,
		Category:   req.Category,
		QRCode:     req.QRCode,
		PriceCents: req.PriceCents,
		Stock:      req.Stock,
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}

	log.Printf("[catalog] product created id=%s brand=%s model=%s price=%d stock=%d by=%s",
		created.ID, created.Brand, created.Model, created.PriceCents, created.Stock, actor.Username)
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Product{}, store.ErrInvalidRequest
	}

	updated, err := s.repo.UpdateProduct(ctx, id, req)
	if err != nil {
		return domain.Product{}, err
	}

	log.Printf("[catalog] product updated id=%s price=%d stock=%d by=%s",
		updated.ID, updated.PriceCents, updated.Stock, actor.Username)
	return *updated, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return fmt.Errorf("admin role required")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return store.ErrInvalidRequest
	}

	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}

	log.Printf("[catalog] product deleted id=%s by=%s", id, actor.Username)
	return nil
}

// AdjustStock applies a manual stock correction outside the sale flow.
func (s *Service) AdjustStock(ctx context.Context, id string, delta int) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	id = strings.TrimSpace(id)
	if id == "" || delta == 0 {
		return domain.Product{}, store.ErrInvalidRequest
	}

	if _, err := s.repo.AdjustStock(ctx, id, delta); err != nil {
		return domain.Product{}, err
	}

	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	log.Printf("[catalog] stock adjusted id=%s delta=%d stock=%d by=%s", id, delta, product.Stock, actor.Username)
	return *product, nil
}

func actorUsername(ctx context.Context) string {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Username == "" {
		return "desconocido"
	}
	return actor.Username
}

func isSupportedPaymentMethod(method string) bool {
	switch method {
	case domain.PaymentCash, domain.PaymentCard, domain.PaymentTransfer:
		return true
	default:
		return false
	}
}

func maxInt64(a int64, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
