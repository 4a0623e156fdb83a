package store

import (
	"context"
	"errors"
	"time"

	"puntoventa/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrTicketCancelled   = errors.New("ticket already cancelled")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrDuplicateQRCode   = errors.New("qr code already assigned")
)

type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetProductByQRCode(ctx context.Context, code string) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	// AdjustStock applies delta to a single product's stock atomically.
	// A result below zero is rejected with ErrInsufficientStock and the
	// stored value is left untouched. Returns the stock after the change.
	AdjustStock(ctx context.Context, id string, delta int) (int, error)

	NextFolio(ctx context.Context) (string, error)
	CreateTicket(ctx context.Context, ticket domain.Ticket) (*domain.Ticket, error)
	GetTicket(ctx context.Context, id string) (*domain.Ticket, error)
	ListTickets(ctx context.Context, limit int) ([]domain.Ticket, error)
	ListTicketsBetween(ctx context.Context, from time.Time, to time.Time) ([]domain.Ticket, error)
	CancelTicket(ctx context.Context, id string, at time.Time) (*domain.Ticket, error)

	SaveCashCut(ctx context.Context, report domain.CashCutReport) (*domain.CashCutReport, error)
	GetCashCut(ctx context.Context, id string) (*domain.CashCutReport, error)
	ListCashCuts(ctx context.Context, limit int) ([]domain.CashCutReport, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
