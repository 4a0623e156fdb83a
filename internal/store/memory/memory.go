package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"puntoventa/backend/internal/domain"
	"puntoventa/backend/internal/store"
	"puntoventa/backend/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	products        map[string]domain.Product
	ticketsByID     map[string]domain.Ticket
	cashCutsByID    map[string]domain.CashCutReport
	usersByUsername map[string]domain.UserAccount
	folioSeq        int64
}

func New() *Store {
	return &Store{
		products:        make(map[string]domain.Product),
		ticketsByID:     make(map[string]domain.Ticket),
		cashCutsByID:    make(map[string]domain.CashCutReport),
		usersByUsername: make(map[string]domain.UserAccount),
	}
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials come from SEED_ADMIN_PASSWORD and SEED_SELLER_PASSWORD. If
// unset, hardcoded dev defaults are used with a warning. These credentials
// are never used in production (the backend uses PostgreSQL when
// DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	sellerPwd := envOr("SEED_SELLER_PASSWORD", "seller123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_SELLER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_SELLER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"vendedor", sellerPwd, domain.RoleSeller},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	now := time.Now().UTC()
	products := []domain.Product{
		{ID: "prd-funda-ip15", Brand: "Apple", Model: "iPhone 15", Type: "Funda", Color: "Negro", Category: "accesorios", QRCode: "QR-FUNDA-IP15", PriceCents: 29900, Stock: 40},
		{ID: "prd-funda-s24", Brand: "Samsung", Model: "Galaxy S24", Type: "Funda", Color: "Azul", Category: "accesorios", QRCode: "QR-FUNDA-S24", PriceCents: 24900, Stock: 35},
		{ID: "prd-mica-ip15", Brand: "Apple", Model: "iPhone 15", Type: "Mica", Color: "Transparente", Category: "protectores", QRCode: "QR-MICA-IP15", PriceCents: 14900, Stock: 60},
		{ID: "prd-mica-s24", Brand: "Samsung", Model: "Galaxy S24", Type: "Mica", Color: "Transparente", Category: "protectores", QRCode: "QR-MICA-S24", PriceCents: 12900, Stock: 55},
		{ID: "prd-carg-usbc", Brand: "Anker", Model: "PowerPort 20W", Type: "Cargador", Color: "Blanco", Category: "cargadores", QRCode: "QR-CARG-USBC", PriceCents: 39900, Stock: 25},
		{ID: "prd-cable-light", Brand: "Apple", Model: "Lightning 1m", Type: "Cable", Color: "Blanco", Category: "cables", QRCode: "QR-CABLE-LIGHT", PriceCents: 34900, Stock: 30},
		{ID: "prd-cable-usbc", Brand: "Samsung", Model: "USB-C 1.5m", Type: "Cable", Color: "Negro", Category: "cables", QRCode: "QR-CABLE-USBC", PriceCents: 19900, Stock: 45},
		{ID: "prd-audif-bt", Brand: "Xiaomi", Model: "Redmi Buds 5", Type: "Audífonos", Color: "Negro", Category: "audio", QRCode: "QR-AUDIF-BT", PriceCents: 64900, Stock: 15},
		{ID: "prd-bateria-ip13", Brand: "Apple", Model: "iPhone 13", Type: "Batería", Color: "N/A", Category: "refacciones", QRCode: "QR-BAT-IP13", PriceCents: 89900, Stock: 10},
		{ID: "prd-pantalla-a54", Brand: "Samsung", Model: "Galaxy A54", Type: "Pantalla", Color: "N/A", Category: "refacciones", QRCode: "QR-PANT-A54", PriceCents: 159900, Stock: 8},
	}

	productMap := make(map[string]domain.Product, len(products))
	for _, p := range products {
		p.CreatedAt = now
		p.UpdatedAt = now
		productMap[p.ID] = p
	}

	return &Store{
		products:        productMap,
		ticketsByID:     make(map[string]domain.Ticket),
		cashCutsByID:    make(map[string]domain.CashCutReport),
		usersByUsername: seedUsers(),
	}
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}

	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Category == b.Category {
			if a.Brand == b.Brand {
				return cmpString(a.Model, b.Model)
			}
			return cmpString(a.Brand, b.Brand)
		}
		return cmpString(a.Category, b.Category)
	})

	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) GetProductByQRCode(_ context.Context, code string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if code == "" {
		return nil, store.ErrNotFound
	}
	for _, p := range s.products {
		if p.QRCode == code {
			copyProduct := p
			return &copyProduct, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.Brand == "" || product.Model == "" || product.PriceCents < 1 || product.Stock < 0 {
		return nil, store.ErrInvalidRequest
	}
	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	if _, exists := s.products[product.ID]; exists {
		return nil, store.ErrInvalidRequest
	}
	if product.QRCode != "" {
		for _, p := range s.products {
			if p.QRCode == product.QRCode {
				return nil, store.ErrDuplicateQRCode
			}
		}
	}

	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now
	s.products[product.ID] = product
	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(_ context.Context, id string, req domain.ProductUpdateRequest) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}

	if req.Brand != nil {
		product.Brand = strings.TrimSpace(*req.Brand)
	}
	if req.Model != nil {
		product.Model = strings.TrimSpace(*req.Model)
	}
	if req.Type != nil {
		product.Type = strings.TrimSpace(*req.Type)
	}
	if req.Color != nil {
		product.Color = strings.TrimSpace(*req.Color)
	}
	if req.Category != nil {
		product.Category = strings.TrimSpace(*req.Category)
	}
	if req.QRCode != nil {
		code := strings.TrimSpace(*req.QRCode)
		if code != "" {
			for _, p := range s.products {
				if p.ID != id && p.QRCode == code {
					return nil, store.ErrDuplicateQRCode
				}
			}
		}
		product.QRCode = code
	}
	if req.PriceCents != nil {
		if *req.PriceCents < 1 {
			return nil, store.ErrInvalidRequest
		}
		product.PriceCents = *req.PriceCents
	}
	if req.Stock != nil {
		if *req.Stock < 0 {
			return nil, store.ErrInsufficientStock
		}
		product.Stock = *req.Stock
	}

	product.UpdatedAt = time.Now().UTC()
	s.products[id] = product
	updated := product
	return &updated, nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *Store) AdjustStock(_ context.Context, id string, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.products[id]
	if !exists {
		return 0, store.ErrNotFound
	}
	next := product.Stock + delta
	if next < 0 {
		return product.Stock, store.ErrInsufficientStock
	}
	product.Stock = next
	product.UpdatedAt = time.Now().UTC()
	s.products[id] = product
	return next, nil
}

func (s *Store) NextFolio(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.folioSeq++
	return fmt.Sprintf("T-%06d", s.folioSeq), nil
}

func (s *Store) CreateTicket(_ context.Context, ticket domain.Ticket) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ticket.ID == "" || ticket.Folio == "" || len(ticket.Items) == 0 {
		return nil, store.ErrInvalidRequest
	}
	if _, exists := s.ticketsByID[ticket.ID]; exists {
		return nil, store.ErrInvalidRequest
	}
	if ticket.Status == "" {
		ticket.Status = domain.TicketStatusActive
	}
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = time.Now().UTC()
	}

	s.ticketsByID[ticket.ID] = cloneTicket(ticket)
	created := cloneTicket(ticket)
	return &created, nil
}

func (s *Store) GetTicket(_ context.Context, id string) (*domain.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ticket, exists := s.ticketsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyTicket := cloneTicket(ticket)
	return &copyTicket, nil
}

func (s *Store) ListTickets(_ context.Context, limit int) ([]domain.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tickets := make([]domain.Ticket, 0, len(s.ticketsByID))
	for _, t := range s.ticketsByID {
		tickets = append(tickets, cloneTicket(t))
	}
	sortTicketsNewestFirst(tickets)
	if limit > 0 && len(tickets) > limit {
		tickets = tickets[:limit]
	}
	return tickets, nil
}

func (s *Store) ListTicketsBetween(_ context.Context, from time.Time, to time.Time) ([]domain.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tickets := make([]domain.Ticket, 0, len(s.ticketsByID))
	for _, t := range s.ticketsByID {
		if t.CreatedAt.Before(from) || !t.CreatedAt.Before(to) {
			continue
		}
		tickets = append(tickets, cloneTicket(t))
	}
	sortTicketsNewestFirst(tickets)
	return tickets, nil
}

func (s *Store) CancelTicket(_ context.Context, id string, at time.Time) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket, exists := s.ticketsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	if ticket.Status == domain.TicketStatusCancelled {
		return nil, store.ErrTicketCancelled
	}

	cancelledAt := at.UTC()
	ticket.Status = domain.TicketStatusCancelled
	ticket.CancelledAt = &cancelledAt
	s.ticketsByID[id] = cloneTicket(ticket)
	cancelled := cloneTicket(ticket)
	return &cancelled, nil
}

func (s *Store) SaveCashCut(_ context.Context, report domain.CashCutReport) (*domain.CashCutReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if report.ID == "" {
		report.ID = xid.New("cut")
	}
	if report.GeneratedAt.IsZero() {
		report.GeneratedAt = time.Now().UTC()
	}
	s.cashCutsByID[report.ID] = cloneCashCut(report)
	saved := cloneCashCut(report)
	return &saved, nil
}

func (s *Store) GetCashCut(_ context.Context, id string) (*domain.CashCutReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report, exists := s.cashCutsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyReport := cloneCashCut(report)
	return &copyReport, nil
}

func (s *Store) ListCashCuts(_ context.Context, limit int) ([]domain.CashCutReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reports := make([]domain.CashCutReport, 0, len(s.cashCutsByID))
	for _, r := range s.cashCutsByID {
		reports = append(reports, cloneCashCut(r))
	}
	slices.SortFunc(reports, func(a, b domain.CashCutReport) int {
		if a.GeneratedAt.Equal(b.GeneratedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.GeneratedAt.After(b.GeneratedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(reports) > limit {
		reports = reports[:limit]
	}
	return reports, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.Username == "" || user.Password == "" {
		return store.ErrInvalidRequest
	}
	if _, exists := s.usersByUsername[user.Username]; exists {
		return store.ErrInvalidRequest
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, u := range s.usersByUsername {
		users = append(users, u)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func sortTicketsNewestFirst(tickets []domain.Ticket) {
	slices.SortFunc(tickets, func(a, b domain.Ticket) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.Folio, a.Folio)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
}

func cloneTicket(t domain.Ticket) domain.Ticket {
	copyTicket := t
	copyTicket.Items = make([]domain.TicketItem, len(t.Items))
	copy(copyTicket.Items, t.Items)
	if t.CancelledAt != nil {
		at := *t.CancelledAt
		copyTicket.CancelledAt = &at
	}
	return copyTicket
}

func cloneCashCut(r domain.CashCutReport) domain.CashCutReport {
	copyReport := r
	copyReport.Expenses = make([]domain.Expense, len(r.Expenses))
	copy(copyReport.Expenses, r.Expenses)
	return copyReport
}

func cmpString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
