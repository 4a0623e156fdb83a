package domain

import "time"

type Product struct {
	ID         string    `json:"id"`
	Brand      string    `json:"brand"`
	Model      string    `json:"model"`
	Type       string    `json:"type"`
	Color      string    `json:"color"`
	Category   string    `json:"category"`
	QRCode     string    `json:"qr_code,omitempty"`
	PriceCents int64     `json:"price_cents"`
	Stock      int       `json:"stock"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type ProductCreateRequest struct {
	Brand      string `json:"brand"`
	Model      string `json:"model"`
	Type       string `json:"type"`
	Color      string `json:"color"`
	Category   string `json:"category"`
	QRCode     string `json:"qr_code,omitempty"`
	PriceCents int64  `json:"price_cents"`
	Stock      int    `json:"stock"`
}

type ProductUpdateRequest struct {
	Brand      *string `json:"brand,omitempty"`
	Model      *string `json:"model,omitempty"`
	Type       *string `json:"type,omitempty"`
	Color      *string `json:"color,omitempty"`
	Category   *string `json:"category,omitempty"`
	QRCode     *string `json:"qr_code,omitempty"`
	PriceCents *int64  `json:"price_cents,omitempty"`
	Stock      *int    `json:"stock,omitempty"`
}

// CartLine snapshots price at the moment the product enters the cart.
// DiscountCents is always absolute; percent discounts are converted on write.
type CartLine struct {
	ProductID     string `json:"product_id"`
	Brand         string `json:"brand"`
	Model         string `json:"model"`
	PriceCents    int64  `json:"price_cents"`
	Qty           int    `json:"qty"`
	DiscountCents int64  `json:"discount_cents"`
}

func (l CartLine) GrossCents() int64 {
	return l.PriceCents * int64(l.Qty)
}

func (l CartLine) TotalCents() int64 {
	return l.GrossCents() - l.DiscountCents
}

type Cart struct {
	ID        string     `json:"id"`
	Seller    string     `json:"seller"`
	Lines     []CartLine `json:"lines"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type CartTotals struct {
	SubtotalCents int64 `json:"subtotal_cents"`
	DiscountCents int64 `json:"discount_cents"`
	TotalCents    int64 `json:"total_cents"`
	ItemCount     int   `json:"item_count"`
}

type CartResponse struct {
	Cart   Cart       `json:"cart"`
	Totals CartTotals `json:"totals"`
}

type AddLineRequest struct {
	ProductID string `json:"product_id"`
}

type UpdateLineRequest struct {
	Qty             *int     `json:"qty,omitempty"`
	DiscountCents   *int64   `json:"discount_cents,omitempty"`
	DiscountPercent *float64 `json:"discount_percent,omitempty"`
}

type TicketItem struct {
	ProductID     string `json:"product_id"`
	Brand         string `json:"brand"`
	Model         string `json:"model"`
	Qty           int    `json:"qty"`
	PriceCents    int64  `json:"price_cents"`
	DiscountCents int64  `json:"discount_cents"`
	TotalCents    int64  `json:"total_cents"`
}

type Ticket struct {
	ID            string       `json:"id"`
	Folio         string       `json:"folio"`
	Seller        string       `json:"seller"`
	PaymentMethod string       `json:"payment_method"`
	TotalCents    int64        `json:"total_cents"`
	Status        string       `json:"status"`
	CreatedAt     time.Time    `json:"created_at"`
	CancelledAt   *time.Time   `json:"cancelled_at,omitempty"`
	Items         []TicketItem `json:"items"`
}

type CheckoutRequest struct {
	CartID        string `json:"cart_id"`
	PaymentMethod string `json:"payment_method"`
	TenderedCents int64  `json:"tendered_cents"`
}

type CheckoutResponse struct {
	Ticket      Ticket `json:"ticket"`
	ChangeCents int64  `json:"change_cents"`
}

type CancelTicketResponse struct {
	Ticket   Ticket   `json:"ticket"`
	Warnings []string `json:"warnings,omitempty"`
}

type Expense struct {
	Label       string `json:"label"`
	AmountCents int64  `json:"amount_cents"`
}

type CashCutRequest struct {
	Window       string     `json:"window"`
	Anchor       *time.Time `json:"anchor,omitempty"`
	OpeningCents int64      `json:"opening_cents"`
	ClosingCents int64      `json:"closing_cents"`
	Expenses     []Expense  `json:"expenses,omitempty"`
}

// CashCutReport always carries the resolved [Start, End) range, never
// just the symbolic window, so a saved report stays reproducible.
type CashCutReport struct {
	ID             string    `json:"id"`
	Window         string    `json:"window"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	OpeningCents   int64     `json:"opening_cents"`
	ClosingCents   int64     `json:"closing_cents"`
	SalesCents     int64     `json:"sales_cents"`
	TicketCount    int       `json:"ticket_count"`
	ExpensesCents  int64     `json:"expenses_cents"`
	ExpectedCents  int64     `json:"expected_cents"`
	VarianceCents  int64     `json:"variance_cents"`
	NetProfitCents int64     `json:"net_profit_cents"`
	Expenses       []Expense `json:"expenses,omitempty"`
	GeneratedBy    string    `json:"generated_by"`
	GeneratedAt    time.Time `json:"generated_at"`
}

type SellerStat struct {
	Name        string `json:"name"`
	TotalCents  int64  `json:"total_cents"`
	TicketCount int    `json:"ticket_count"`
}

type TrendPoint struct {
	Label      string `json:"label"`
	Date       string `json:"date"`
	TotalCents int64  `json:"total_cents"`
	Height     int    `json:"height"`
}

type AnalyticsResponse struct {
	Window          string       `json:"window"`
	TotalTodayCents int64        `json:"total_today_cents"`
	TotalWeekCents  int64        `json:"total_week_cents"`
	TotalMonthCents int64        `json:"total_month_cents"`
	CountToday      int          `json:"count_today"`
	Ranking         []SellerStat `json:"ranking"`
	Trend           []TrendPoint `json:"trend"`
	GeneratedAt     string       `json:"generated_at"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type UserCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type UserView struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

const (
	TicketStatusActive    = "active"
	TicketStatusCancelled = "cancelled"
)

const (
	PaymentCash     = "cash"
	PaymentCard     = "card"
	PaymentTransfer = "transfer"
)

const (
	WindowDay   = "day"
	WindowWeek  = "week"
	WindowMonth = "month"
)

const (
	RoleAdmin  = "admin"
	RoleSeller = "seller"
)
