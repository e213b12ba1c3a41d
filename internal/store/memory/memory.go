package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"cantina/backend/internal/domain"
	"cantina/backend/internal/store"
	"cantina/backend/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	products        map[string]domain.Product
	clients         map[string]domain.Client
	ordersByID      map[string]*domain.Order
	usersByUsername map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_EMPLOYEE_PASSWORD
// environment variables. If unset, hardcoded dev defaults are used with a
// warning printed to stdout. These credentials are never used in production
// (the backend uses PostgreSQL when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	employeePwd := envOr("SEED_EMPLOYEE_PASSWORD", "employee123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_EMPLOYEE_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_EMPLOYEE_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		name     string
		role     string
	}{
		{"admin", adminPwd, "Administrator", domain.RoleAdmin},
		{"employee", employeePwd, "Counter Employee", domain.RoleEmployee},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Name:      u.name,
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
	nextWeek := dateUTC(now.Add(7 * 24 * time.Hour))
	tomorrow := dateUTC(now.Add(24 * time.Hour))

	products := []domain.Product{
		{ID: "prod-sandwich", Name: "Cheese Sandwich", Category: "food", PriceCents: 850, Stock: 40, ExpiryDate: &tomorrow, CreatedAt: now},
		{ID: "prod-coffee", Name: "Filter Coffee", Category: "beverage", PriceCents: 350, Stock: 200, CreatedAt: now},
		{ID: "prod-juice", Name: "Orange Juice 300ml", Category: "beverage", PriceCents: 600, Stock: 80, ExpiryDate: &nextWeek, CreatedAt: now},
		{ID: "prod-soda", Name: "Soda Can", Category: "beverage", PriceCents: 500, Stock: 120, CreatedAt: now},
		{ID: "prod-cake", Name: "Carrot Cake Slice", Category: "food", PriceCents: 700, Stock: 25, ExpiryDate: &tomorrow, CreatedAt: now},
		{ID: "prod-chips", Name: "Potato Chips", Category: "snack", PriceCents: 450, Stock: 90, ExpiryDate: &nextWeek, CreatedAt: now},
		{ID: "prod-chocolate", Name: "Chocolate Bar", Category: "snack", PriceCents: 400, Stock: 110, CreatedAt: now},
		{ID: "prod-water", Name: "Mineral Water 500ml", Category: "beverage", PriceCents: 250, Stock: 300, CreatedAt: now},
	}

	clients := []domain.Client{
		{ID: "cli-ana", Name: "Ana Souza", Phone: "555-0101", CreatedAt: now},
		{ID: "cli-bruno", Name: "Bruno Lima", Phone: "555-0102", CreatedAt: now},
		{ID: "cli-carla", Name: "Carla Mendes", CreatedAt: now},
	}

	productMap := make(map[string]domain.Product, len(products))
	for _, p := range products {
		productMap[p.ID] = p
	}
	clientMap := make(map[string]domain.Client, len(clients))
	for _, c := range clients {
		clientMap[c.ID] = c
	}

	return &Store{
		products:        productMap,
		clients:         clientMap,
		ordersByID:      make(map[string]*domain.Order),
		usersByUsername: seedUsers(),
	}
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, cloneProduct(p))
	}

	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Category == b.Category {
			return cmpString(a.Name, b.Name)
		}
		return cmpString(a.Category, b.Category)
	})

	return products, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product.Name = strings.TrimSpace(product.Name)
	if product.Name == "" || product.PriceCents < 1 || product.Stock < 0 {
		return nil, store.ErrInvalidInput
	}
	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	if _, exists := s.products[product.ID]; exists {
		return nil, store.ErrInvalidInput
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}

	s.products[product.ID] = cloneProduct(product)
	created := cloneProduct(product)
	return &created, nil
}

func (s *Store) GetProductByID(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyProduct := cloneProduct(product)
	return &copyProduct, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product.Name = strings.TrimSpace(product.Name)
	if product.ID == "" || product.Name == "" || product.PriceCents < 1 || product.Stock < 0 {
		return nil, store.ErrInvalidInput
	}
	existing, exists := s.products[product.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	product.CreatedAt = existing.CreatedAt

	s.products[product.ID] = cloneProduct(product)
	updated := cloneProduct(product)
	return &updated, nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[id]; !exists {
		return store.ErrNotFound
	}
	for _, order := range s.ordersByID {
		for _, line := range order.Lines {
			if line.ProductID == id {
				return store.ErrInvalidInput
			}
		}
	}
	delete(s.products, id)
	return nil
}

func (s *Store) ListClients(_ context.Context) ([]domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clients := make([]domain.Client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	slices.SortFunc(clients, func(a, b domain.Client) int {
		if a.Name == b.Name {
			return cmpString(a.ID, b.ID)
		}
		return cmpString(a.Name, b.Name)
	})
	return clients, nil
}

func (s *Store) CreateClient(_ context.Context, client domain.Client) (*domain.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	client.Name = strings.TrimSpace(client.Name)
	client.Phone = strings.TrimSpace(client.Phone)
	if client.Name == "" {
		return nil, store.ErrInvalidInput
	}
	if client.ID == "" {
		client.ID = xid.New("cli")
	}
	if _, exists := s.clients[client.ID]; exists {
		return nil, store.ErrInvalidInput
	}
	if client.CreatedAt.IsZero() {
		client.CreatedAt = time.Now().UTC()
	}

	s.clients[client.ID] = client
	saved := client
	return &saved, nil
}

func (s *Store) GetClientByID(_ context.Context, id string) (*domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	client, exists := s.clients[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyClient := client
	return &copyClient, nil
}

func (s *Store) UpdateClient(_ context.Context, client domain.Client) (*domain.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	client.Name = strings.TrimSpace(client.Name)
	if client.ID == "" || client.Name == "" {
		return nil, store.ErrInvalidInput
	}
	existing, exists := s.clients[client.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	client.CreatedAt = existing.CreatedAt

	s.clients[client.ID] = client
	updated := client
	return &updated, nil
}

func (s *Store) DeleteClient(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.clients[id]; !exists {
		return store.ErrNotFound
	}
	for _, order := range s.ordersByID {
		if order.ClientID == id {
			return store.ErrInvalidInput
		}
	}
	delete(s.clients, id)
	return nil
}

// CreateOrder mirrors the postgres commit semantics: all lines are
// validated and stock-checked before any decrement happens, so a
// failing line leaves stock untouched.
func (s *Store) CreateOrder(_ context.Context, order domain.Order) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(order.Lines) == 0 {
		return nil, store.ErrEmptyCart
	}
	if order.PaymentStatus != domain.PaymentStatusPaid && order.PaymentStatus != domain.PaymentStatusOpen {
		return nil, store.ErrInvalidInput
	}
	if _, exists := s.clients[order.ClientID]; !exists {
		return nil, store.ErrNotFound
	}

	today := dateUTC(time.Now().UTC())
	needed := make(map[string]int, len(order.Lines))
	for _, line := range order.Lines {
		if line.Qty < 1 {
			return nil, store.ErrInvalidQuantity
		}
		product, exists := s.products[line.ProductID]
		if !exists {
			return nil, store.ErrNotFound
		}
		if product.ExpiryDate != nil && product.ExpiryDate.Before(today) {
			return nil, store.ErrExpiredProduct
		}
		needed[line.ProductID] += line.Qty
		if needed[line.ProductID] > product.Stock {
			return nil, store.ErrStockConflict
		}
	}

	totalCents := int64(0)
	recaptured := make([]domain.OrderLine, 0, len(order.Lines))
	for _, line := range order.Lines {
		product := s.products[line.ProductID]
		product.Stock -= line.Qty
		s.products[line.ProductID] = product

		recaptured = append(recaptured, domain.OrderLine{
			ProductID:      line.ProductID,
			ProductName:    product.Name,
			Qty:            line.Qty,
			UnitPriceCents: product.PriceCents,
		})
		totalCents += product.PriceCents * int64(line.Qty)
	}

	order.TotalCents = totalCents
	order.Lines = recaptured
	if order.ID == "" {
		order.ID = xid.New("ord")
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}

	saved := cloneOrder(&order)
	s.ordersByID[order.ID] = saved
	return cloneOrder(saved), nil
}

func (s *Store) GetOrderByID(_ context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, exists := s.ordersByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return cloneOrder(order), nil
}

func (s *Store) BalanceRows(_ context.Context, filter domain.BalanceFilter) ([]domain.BalanceRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nameFilter := strings.ToLower(strings.TrimSpace(filter.ClientName))
	var from, cutoff time.Time
	if filter.From != nil {
		from = dateUTC(*filter.From)
	}
	if filter.To != nil {
		cutoff = dateUTC(*filter.To).Add(24 * time.Hour)
	}

	orders := make([]*domain.Order, 0, len(s.ordersByID))
	for _, order := range s.ordersByID {
		client, exists := s.clients[order.ClientID]
		if !exists {
			continue
		}
		if nameFilter != "" && !strings.Contains(strings.ToLower(client.Name), nameFilter) {
			continue
		}
		if filter.From != nil && order.CreatedAt.Before(from) {
			continue
		}
		if filter.To != nil && !order.CreatedAt.Before(cutoff) {
			continue
		}
		orders = append(orders, order)
	}

	slices.SortFunc(orders, func(a, b *domain.Order) int {
		nameA := s.clients[a.ClientID].Name
		nameB := s.clients[b.ClientID].Name
		if nameA == nameB {
			return cmpString(a.ID, b.ID)
		}
		return cmpString(nameA, nameB)
	})

	rows := make([]domain.BalanceRow, 0, len(orders)*2)
	for _, order := range orders {
		client := s.clients[order.ClientID]
		for _, line := range order.Lines {
			rows = append(rows, domain.BalanceRow{
				ClientID:       client.ID,
				ClientName:     client.Name,
				OrderID:        order.ID,
				OrderDate:      order.CreatedAt,
				PaymentStatus:  order.PaymentStatus,
				ProductName:    line.ProductName,
				Qty:            line.Qty,
				UnitPriceCents: line.UnitPriceCents,
			})
		}
	}
	return rows, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrInvalidInput
	}
	user.Username = username
	if user.Role == "" {
		user.Role = domain.RoleEmployee
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func dateUTC(t time.Time) time.Time {
	return time.Date(t.UTC().Year(), t.UTC().Month(), t.UTC().Day(), 0, 0, 0, 0, time.UTC)
}

func cmpString(a string, b string) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

func cloneProduct(src domain.Product) domain.Product {
	dup := src
	if src.ExpiryDate != nil {
		expiry := src.ExpiryDate.UTC()
		dup.ExpiryDate = &expiry
	}
	return dup
}

func cloneOrder(src *domain.Order) *domain.Order {
	if src == nil {
		return nil
	}
	dup := *src
	lines := make([]domain.OrderLine, len(src.Lines))
	copy(lines, src.Lines)
	dup.Lines = lines
	return &dup
}
