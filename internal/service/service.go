package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"cantina/backend/internal/cache"
	"cantina/backend/internal/domain"
	"cantina/backend/internal/store"
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
	repo      store.Repository
	reports   cache.ReportCache
	reportTTL time.Duration
}

func New(repo store.Repository, reports cache.ReportCache, reportTTL time.Duration) *Service {
	if reports == nil {
		reports = cache.NoopReportCache{}
	}
	if reportTTL <= 0 {
		reportTTL = 30 * time.Second
	}

	return &Service{
		repo:      repo,
		reports:   reports,
		reportTTL: reportTTL,
	}
}

// Repo exposes the underlying repository so callers can build carts
// against the same store the service commits to.
func (s *Service) Repo() store.Repository {
	return s.repo
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	product, err := s.repo.GetProductByID(ctx, strings.TrimSpace(id))
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

	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)
	if req.Name == "" {
		return domain.Product{}, store.ErrInvalidInput
	}
	if req.PriceCents < 1 || req.Stock < 0 {
		return domain.Product{}, store.ErrInvalidInput
	}

	expiry, err := parseOptionalDate(req.ExpiryDate)
	if err != nil {
		return domain.Product{}, store.ErrInvalidInput
	}

	product := domain.Product{
		Name:       req.Name,
		Category:   req.Category,
		PriceCents: req.PriceCents,
		Stock:      req.Stock,
		ExpiryDate: expiry,
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}

	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Product{}, store.ErrInvalidInput
	}

	existing, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.Name = name
	}
	if req.Category != nil {
		updated.Category = strings.TrimSpace(*req.Category)
	}
	if req.PriceCents != nil {
		if *req.PriceCents < 1 {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.PriceCents = *req.PriceCents
	}
	if req.Stock != nil {
		if *req.Stock < 0 {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.Stock = *req.Stock
	}
	if req.ExpiryDate != nil {
		expiry, err := parseOptionalDate(*req.ExpiryDate)
		if err != nil {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.ExpiryDate = expiry
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}

	return *saved, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return fmt.Errorf("admin role required")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return store.ErrInvalidInput
	}
	return s.repo.DeleteProduct(ctx, id)
}

func (s *Service) ListClients(ctx context.Context) ([]domain.Client, error) {
	return s.repo.ListClients(ctx)
}

func (s *Service) GetClient(ctx context.Context, id string) (domain.Client, error) {
	client, err := s.repo.GetClientByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Client{}, err
	}
	return *client, nil
}

func (s *Service) CreateClient(ctx context.Context, req domain.ClientCreateRequest) (domain.Client, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Client{}, store.ErrInvalidInput
	}

	saved, err := s.repo.CreateClient(ctx, domain.Client{
		Name:  req.Name,
		Phone: strings.TrimSpace(req.Phone),
	})
	if err != nil {
		return domain.Client{}, err
	}
	return *saved, nil
}

func (s *Service) UpdateClient(ctx context.Context, id string, req domain.ClientUpdateRequest) (domain.Client, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Client{}, store.ErrInvalidInput
	}

	existing, err := s.repo.GetClientByID(ctx, id)
	if err != nil {
		return domain.Client{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Client{}, store.ErrInvalidInput
		}
		updated.Name = name
	}
	if req.Phone != nil {
		updated.Phone = strings.TrimSpace(*req.Phone)
	}

	saved, err := s.repo.UpdateClient(ctx, updated)
	if err != nil {
		return domain.Client{}, err
	}
	return *saved, nil
}

func (s *Service) DeleteClient(ctx context.Context, id string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return fmt.Errorf("admin role required")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return store.ErrInvalidInput
	}
	return s.repo.DeleteClient(ctx, id)
}

// CommitOrder is the single write path for sales. Unit prices on the
// lines are whatever the products table says at commit time, not what
// the cart saw; the repository transaction guarantees stock, order row
// and lines move together or not at all.
func (s *Service) CommitOrder(ctx context.Context, req domain.OrderCommitRequest) (domain.OrderCommitResponse, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.OrderCommitResponse{}, fmt.Errorf("authentication required")
	}

	req.ClientID = strings.TrimSpace(req.ClientID)
	if req.ClientID == "" {
		return domain.OrderCommitResponse{}, store.ErrInvalidInput
	}
	req.PaymentStatus = strings.ToLower(strings.TrimSpace(req.PaymentStatus))
	if req.PaymentStatus == "" {
		req.PaymentStatus = domain.PaymentStatusOpen
	}
	if req.PaymentStatus != domain.PaymentStatusPaid && req.PaymentStatus != domain.PaymentStatusOpen {
		return domain.OrderCommitResponse{}, store.ErrInvalidInput
	}
	if len(req.Lines) == 0 {
		return domain.OrderCommitResponse{}, store.ErrEmptyCart
	}

	lines := make([]domain.OrderLine, 0, len(req.Lines))
	for _, line := range req.Lines {
		productID := strings.TrimSpace(line.ProductID)
		if productID == "" {
			return domain.OrderCommitResponse{}, store.ErrInvalidInput
		}
		if line.Qty < 1 {
			return domain.OrderCommitResponse{}, store.ErrInvalidQuantity
		}
		lines = append(lines, domain.OrderLine{ProductID: productID, Qty: line.Qty})
	}

	created, err := s.repo.CreateOrder(ctx, domain.Order{
		ClientID:      req.ClientID,
		EmployeeID:    actor.Username,
		PaymentStatus: req.PaymentStatus,
		CreatedAt:     time.Now().UTC(),
		Lines:         lines,
	})
	if err != nil {
		return domain.OrderCommitResponse{}, err
	}

	if err := s.reports.Invalidate(ctx); err != nil {
		log.Printf("[service] WARN: failed to invalidate report cache: %v", err)
	}

	return domain.OrderCommitResponse{
		OrderID:       created.ID,
		TotalCents:    created.TotalCents,
		PaymentStatus: created.PaymentStatus,
		CreatedAt:     created.CreatedAt.Format(time.RFC3339),
	}, nil
}

func (s *Service) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	order, err := s.repo.GetOrderByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Order{}, err
	}
	return *order, nil
}

// BalanceReport folds the flat store rows into the
// client -> order -> line hierarchy. Rows arrive ordered by client
// name, then order id, then line insertion order, so a single pass
// with boundary detection is enough.
func (s *Service) BalanceReport(ctx context.Context, filter domain.BalanceFilter) (domain.BalanceReport, error) {
	key := reportCacheKey(filter)
	if cached, hit, err := s.reports.Get(ctx, key); err != nil {
		log.Printf("[service] WARN: report cache read failed: %v", err)
	} else if hit {
		return *cached, nil
	}

	rows, err := s.repo.BalanceRows(ctx, filter)
	if err != nil {
		return domain.BalanceReport{}, err
	}

	report := foldBalanceRows(rows)
	report.GeneratedAt = time.Now().UTC().Format(time.RFC3339)
	report.ClientName = strings.TrimSpace(filter.ClientName)
	if filter.From != nil {
		report.From = filter.From.Format("2006-01-02")
	}
	if filter.To != nil {
		report.To = filter.To.Format("2006-01-02")
	}

	if err := s.reports.Set(ctx, key, &report, s.reportTTL); err != nil {
		log.Printf("[service] WARN: report cache write failed: %v", err)
	}

	return report, nil
}

func foldBalanceRows(rows []domain.BalanceRow) domain.BalanceReport {
	report := domain.BalanceReport{Clients: make([]domain.BalanceClient, 0, 16)}

	for _, row := range rows {
		if len(report.Clients) == 0 || report.Clients[len(report.Clients)-1].ClientID != row.ClientID {
			report.Clients = append(report.Clients, domain.BalanceClient{
				ClientID:   row.ClientID,
				ClientName: row.ClientName,
				Orders:     make([]domain.BalanceOrder, 0, 4),
			})
		}
		client := &report.Clients[len(report.Clients)-1]

		if len(client.Orders) == 0 || client.Orders[len(client.Orders)-1].OrderID != row.OrderID {
			client.Orders = append(client.Orders, domain.BalanceOrder{
				OrderID:       row.OrderID,
				Date:          row.OrderDate,
				PaymentStatus: row.PaymentStatus,
				Lines:         make([]domain.BalanceLine, 0, 4),
			})
			report.OrderCount++
		}
		order := &client.Orders[len(client.Orders)-1]

		subtotal := int64(row.Qty) * row.UnitPriceCents
		order.Lines = append(order.Lines, domain.BalanceLine{
			ProductName:    row.ProductName,
			Qty:            row.Qty,
			UnitPriceCents: row.UnitPriceCents,
			SubtotalCents:  subtotal,
		})
		order.TotalCents += subtotal
		client.TotalCents += subtotal
		report.GrandTotalCents += subtotal
	}

	return report
}

func reportCacheKey(filter domain.BalanceFilter) string {
	from := ""
	if filter.From != nil {
		from = filter.From.Format("2006-01-02")
	}
	to := ""
	if filter.To != nil {
		to = filter.To.Format("2006-01-02")
	}
	return strings.ToLower(strings.TrimSpace(filter.ClientName)) + "|" + from + "|" + to
}

// FormatCents renders integer cents as a two-decimal string, e.g. 3500 -> "35.00".
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

func parseOptionalDate(val string) (*time.Time, error) {
	val = strings.TrimSpace(val)
	if val == "" {
		return nil, nil
	}
	parsed, err := time.Parse("2006-01-02", val)
	if err != nil {
		return nil, err
	}
	date := parsed.UTC()
	return &date, nil
}
