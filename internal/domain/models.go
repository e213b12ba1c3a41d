package domain

import "time"

type Product struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Category   string     `json:"category"`
	PriceCents int64      `json:"price_cents"`
	Stock      int        `json:"stock"`
	ExpiryDate *time.Time `json:"expiry_date,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

type ProductCreateRequest struct {
	Name       string `json:"name"`
	Category   string `json:"category"`
	PriceCents int64  `json:"price_cents"`
	Stock      int    `json:"stock"`
	ExpiryDate string `json:"expiry_date,omitempty"`
}

type ProductUpdateRequest struct {
	Name       *string `json:"name,omitempty"`
	Category   *string `json:"category,omitempty"`
	PriceCents *int64  `json:"price_cents,omitempty"`
	Stock      *int    `json:"stock,omitempty"`
	ExpiryDate *string `json:"expiry_date,omitempty"`
}

type Client struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type ClientCreateRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type ClientUpdateRequest struct {
	Name  *string `json:"name,omitempty"`
	Phone *string `json:"phone,omitempty"`
}

type CartLine struct {
	ProductID      string `json:"product_id"`
	ProductName    string `json:"product_name"`
	Qty            int    `json:"qty"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

type CartLineRequest struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type OrderLine struct {
	ProductID      string `json:"product_id"`
	ProductName    string `json:"product_name"`
	Qty            int    `json:"qty"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

type Order struct {
	ID            string      `json:"id"`
	ClientID      string      `json:"client_id"`
	EmployeeID    string      `json:"employee_id"`
	TotalCents    int64       `json:"total_cents"`
	PaymentStatus string      `json:"payment_status"`
	CreatedAt     time.Time   `json:"created_at"`
	Lines         []OrderLine `json:"lines"`
}

type OrderCommitRequest struct {
	ClientID      string            `json:"client_id"`
	PaymentStatus string            `json:"payment_status"`
	Lines         []CartLineRequest `json:"lines"`
}

type OrderCommitResponse struct {
	OrderID       string `json:"order_id"`
	TotalCents    int64  `json:"total_cents"`
	PaymentStatus string `json:"payment_status"`
	CreatedAt     string `json:"created_at"`
}

type BalanceFilter struct {
	ClientName string
	From       *time.Time
	To         *time.Time
}

// BalanceRow is one flat line of the balance join, ordered by client
// name, then order id, then line insertion order. The service folds
// rows into the client/order/line hierarchy.
type BalanceRow struct {
	ClientID       string
	ClientName     string
	OrderID        string
	OrderDate      time.Time
	PaymentStatus  string
	ProductName    string
	Qty            int
	UnitPriceCents int64
}

type BalanceLine struct {
	ProductName    string `json:"product_name"`
	Qty            int    `json:"qty"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	SubtotalCents  int64  `json:"subtotal_cents"`
}

type BalanceOrder struct {
	OrderID       string        `json:"order_id"`
	Date          time.Time     `json:"date"`
	PaymentStatus string        `json:"payment_status"`
	TotalCents    int64         `json:"total_cents"`
	Lines         []BalanceLine `json:"lines"`
}

type BalanceClient struct {
	ClientID   string         `json:"client_id"`
	ClientName string         `json:"client_name"`
	TotalCents int64          `json:"total_cents"`
	Orders     []BalanceOrder `json:"orders"`
}

type BalanceReport struct {
	GeneratedAt     string          `json:"generated_at"`
	ClientName      string          `json:"client_name_filter,omitempty"`
	From            string          `json:"from,omitempty"`
	To              string          `json:"to,omitempty"`
	GrandTotalCents int64           `json:"grand_total_cents"`
	OrderCount      int             `json:"order_count"`
	Clients         []BalanceClient `json:"clients"`
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

type EmployeeCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type Employee struct {
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Name      string
	Role      string
	Active    bool
	CreatedAt time.Time
}

const (
	PaymentStatusPaid = "paid"
	PaymentStatusOpen = "open"
)

const (
	RoleAdmin    = "admin"
	RoleEmployee = "employee"
)
