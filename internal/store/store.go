package store

import (
	"context"
	"errors"

	"cantina/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrExpiredProduct    = errors.New("expired product")
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrEmptyCart         = errors.New("empty cart")
	ErrStockConflict     = errors.New("stock conflict")
	ErrInvalidInput      = errors.New("invalid input")
)

type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProductByID(ctx context.Context, id string) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	ListClients(ctx context.Context) ([]domain.Client, error)
	CreateClient(ctx context.Context, client domain.Client) (*domain.Client, error)
	GetClientByID(ctx context.Context, id string) (*domain.Client, error)
	UpdateClient(ctx context.Context, client domain.Client) (*domain.Client, error)
	DeleteClient(ctx context.Context, id string) error
	CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error)
	GetOrderByID(ctx context.Context, id string) (*domain.Order, error)
	BalanceRows(ctx context.Context, filter domain.BalanceFilter) ([]domain.BalanceRow, error)
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
