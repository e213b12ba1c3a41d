package postgres

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"cantina/backend/internal/domain"
	"cantina/backend/internal/store"
	"cantina/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, price_cents, stock, expiry_date, created_at
		FROM products
		ORDER BY category, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		var p domain.Product
		var expiry sql.NullTime
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.PriceCents, &p.Stock, &expiry, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.CreatedAt = p.CreatedAt.UTC()
		if expiry.Valid {
			e := dateUTC(expiry.Time)
			p.ExpiryDate = &e
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	product.Name = strings.TrimSpace(product.Name)
	if product.Name == "" || product.PriceCents < 1 || product.Stock < 0 {
		return nil, store.ErrInvalidInput
	}
	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, category, price_cents, stock, expiry_date, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,now())
	`, product.ID, product.Name, product.Category, product.PriceCents, product.Stock, nullDate(product.ExpiryDate), product.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	var product domain.Product
	var expiry sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, category, price_cents, stock, expiry_date, created_at
		FROM products
		WHERE id = $1
	`, id).Scan(&product.ID, &product.Name, &product.Category, &product.PriceCents, &product.Stock, &expiry, &product.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	product.CreatedAt = product.CreatedAt.UTC()
	if expiry.Valid {
		e := dateUTC(expiry.Time)
		product.ExpiryDate = &e
	}
	return &product, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	product.Name = strings.TrimSpace(product.Name)
	if product.ID == "" || product.Name == "" || product.PriceCents < 1 || product.Stock < 0 {
		return nil, store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2, category = $3, price_cents = $4, stock = $5, expiry_date = $6, updated_at = now()
		WHERE id = $1
	`, product.ID, product.Name, product.Category, product.PriceCents, product.Stock, nullDate(product.ExpiryDate))
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	updated := product
	return &updated, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return store.ErrInvalidInput
		}
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListClients(ctx context.Context) ([]domain.Client, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(phone,''), created_at
		FROM clients
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	clients := make([]domain.Client, 0, 64)
	for rows.Next() {
		var c domain.Client
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.CreatedAt = c.CreatedAt.UTC()
		clients = append(clients, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return clients, nil
}

func (s *Store) CreateClient(ctx context.Context, client domain.Client) (*domain.Client, error) {
	client.Name = strings.TrimSpace(client.Name)
	client.Phone = strings.TrimSpace(client.Phone)
	if client.Name == "" {
		return nil, store.ErrInvalidInput
	}
	if client.ID == "" {
		client.ID = xid.New("cli")
	}
	if client.CreatedAt.IsZero() {
		client.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO clients (id, name, phone, created_at, updated_at)
		VALUES ($1,$2,$3,$4,now())
	`, client.ID, client.Name, nullIfEmpty(client.Phone), client.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, err
	}
	saved := client
	return &saved, nil
}

func (s *Store) GetClientByID(ctx context.Context, id string) (*domain.Client, error) {
	var client domain.Client
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(phone,''), created_at
		FROM clients
		WHERE id = $1
	`, id).Scan(&client.ID, &client.Name, &client.Phone, &client.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	client.CreatedAt = client.CreatedAt.UTC()
	return &client, nil
}

func (s *Store) UpdateClient(ctx context.Context, client domain.Client) (*domain.Client, error) {
	client.Name = strings.TrimSpace(client.Name)
	if client.ID == "" || client.Name == "" {
		return nil, store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE clients
		SET name = $2, phone = $3, updated_at = now()
		WHERE id = $1
	`, client.ID, client.Name, nullIfEmpty(strings.TrimSpace(client.Phone)))
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	updated := client
	return &updated, nil
}

func (s *Store) DeleteClient(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return store.ErrInvalidInput
		}
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// CreateOrder persists an order and its lines in one serializable
// transaction. Unit prices are recaptured from the products table
// inside the transaction, and stock is decremented with a conditional
// update so a concurrent sale can never drive it negative.
func (s *Store) CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error) {
	if len(order.Lines) == 0 {
		return nil, store.ErrEmptyCart
	}
	if order.PaymentStatus != domain.PaymentStatusPaid && order.PaymentStatus != domain.PaymentStatusOpen {
		return nil, store.ErrInvalidInput
	}
	for _, line := range order.Lines {
		if line.Qty < 1 {
			return nil, store.ErrInvalidQuantity
		}
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var clientID string
	err = pgTx.QueryRowContext(ctx, `
		SELECT id FROM clients WHERE id = $1
	`, order.ClientID).Scan(&clientID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	ids := uniqueProductIDs(order.Lines)
	productRows, err := pgTx.QueryContext(ctx, `
		SELECT id, name, price_cents, stock, expiry_date
		FROM products
		WHERE id = ANY($1)
		FOR UPDATE
	`, ids)
	if err != nil {
		return nil, err
	}
	type productState struct {
		name       string
		priceCents int64
		stock      int
		expiry     *time.Time
	}
	productMap := make(map[string]productState, len(ids))
	for productRows.Next() {
		var id string
		var state productState
		var expiry sql.NullTime
		if err := productRows.Scan(&id, &state.name, &state.priceCents, &state.stock, &expiry); err != nil {
			_ = productRows.Close()
			return nil, err
		}
		if expiry.Valid {
			e := dateUTC(expiry.Time)
			state.expiry = &e
		}
		productMap[id] = state
	}
	if err := productRows.Err(); err != nil {
		_ = productRows.Close()
		return nil, err
	}
	_ = productRows.Close()

	today := dateUTC(time.Now().UTC())
	totalCents := int64(0)
	recaptured := make([]domain.OrderLine, 0, len(order.Lines))
	for _, line := range order.Lines {
		product, exists := productMap[line.ProductID]
		if !exists {
			return nil, store.ErrNotFound
		}
		if product.expiry != nil && product.expiry.Before(today) {
			return nil, store.ErrExpiredProduct
		}

		res, err := pgTx.ExecContext(ctx, `
			UPDATE products
			SET stock = stock - $1, updated_at = now()
			WHERE id = $2 AND stock >= $1
		`, line.Qty, line.ProductID)
		if err != nil {
			return nil, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			return nil, store.ErrStockConflict
		}

		recaptured = append(recaptured, domain.OrderLine{
			ProductID:      line.ProductID,
			ProductName:    product.name,
			Qty:            line.Qty,
			UnitPriceCents: product.priceCents,
		})
		totalCents += product.priceCents * int64(line.Qty)
	}

	order.TotalCents = totalCents
	order.Lines = recaptured
	if order.ID == "" {
		order.ID = xid.New("ord")
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO orders (id, client_id, employee_id, total_cents, payment_status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, order.ID, order.ClientID, order.EmployeeID, order.TotalCents, order.PaymentStatus, order.CreatedAt)
	if err != nil {
		return nil, err
	}

	for _, line := range order.Lines {
		_, err := pgTx.ExecContext(ctx, `
			INSERT INTO order_lines (order_id, product_id, product_name, qty, unit_price_cents)
			VALUES ($1,$2,$3,$4,$5)
		`, order.ID, line.ProductID, line.ProductName, line.Qty, line.UnitPriceCents)
		if err != nil {
			return nil, err
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	return &order, nil
}

func (s *Store) GetOrderByID(ctx context.Context, id string) (*domain.Order, error) {
	var order domain.Order
	err := s.db.QueryRowContext(ctx, `
		SELECT id, client_id, employee_id, total_cents, payment_status, created_at
		FROM orders
		WHERE id = $1
	`, id).Scan(&order.ID, &order.ClientID, &order.EmployeeID, &order.TotalCents, &order.PaymentStatus, &order.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	order.CreatedAt = order.CreatedAt.UTC()

	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, product_name, qty, unit_price_cents
		FROM order_lines
		WHERE order_id = $1
		ORDER BY id ASC
	`, order.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lines := make([]domain.OrderLine, 0, 8)
	for rows.Next() {
		var line domain.OrderLine
		if err := rows.Scan(&line.ProductID, &line.ProductName, &line.Qty, &line.UnitPriceCents); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	order.Lines = lines

	return &order, nil
}

func (s *Store) BalanceRows(ctx context.Context, filter domain.BalanceFilter) ([]domain.BalanceRow, error) {
	query := `
		SELECT c.id, c.name, o.id, o.created_at, o.payment_status,
			ol.product_name, ol.qty, ol.unit_price_cents
		FROM orders o
		JOIN clients c ON c.id = o.client_id
		JOIN order_lines ol ON ol.order_id = o.id
		WHERE 1=1
	`
	args := make([]any, 0, 3)
	if name := strings.TrimSpace(filter.ClientName); name != "" {
		args = append(args, "%"+name+"%")
		query += ` AND c.name ILIKE $` + itoa(len(args))
	}
	if filter.From != nil {
		args = append(args, dateUTC(*filter.From))
		query += ` AND o.created_at >= $` + itoa(len(args))
	}
	if filter.To != nil {
		// end date is inclusive, so the cutoff is the following midnight
		args = append(args, dateUTC(*filter.To).Add(24*time.Hour))
		query += ` AND o.created_at < $` + itoa(len(args))
	}
	query += `
		ORDER BY c.name ASC, o.id ASC, ol.id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.BalanceRow, 0, 128)
	for rows.Next() {
		var row domain.BalanceRow
		if err := rows.Scan(&row.ClientID, &row.ClientName, &row.OrderID, &row.OrderDate, &row.PaymentStatus, &row.ProductName, &row.Qty, &row.UnitPriceCents); err != nil {
			return nil, err
		}
		row.OrderDate = row.OrderDate.UTC()
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if user.Role == "" {
		user.Role = domain.RoleEmployee
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, password, name, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,now())
	`, user.Username, user.Password, user.Name, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrInvalidInput
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, COALESCE(name,''), role, active, created_at
		FROM app_users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Name, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET password = $2, updated_at = now()
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func uniqueProductIDs(lines []domain.OrderLine) []string {
	set := make(map[string]struct{}, len(lines))
	for _, line := range lines {
		if line.ProductID == "" {
			continue
		}
		set[line.ProductID] = struct{}{}
	}

	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func dateUTC(t time.Time) time.Time {
	return time.Date(t.UTC().Year(), t.UTC().Month(), t.UTC().Day(), 0, 0, 0, 0, time.UTC)
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullDate(val *time.Time) any {
	if val == nil {
		return nil
	}
	return dateUTC(*val)
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
