package store

import (
	"context"
	"errors"

	"dukapos/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidSale       = errors.New("invalid sale")
	ErrAlreadyVoided     = errors.New("sale already voided")
	ErrContention        = errors.New("lock contention, retry")
)

// SaleDraft is a fully validated, price-snapshotted sale ready to be
// committed atomically with its items, ledger entries, first payment,
// document, and notifications.
type SaleDraft struct {
	Sale    domain.Sale
	Payment *domain.Payment
}

type Repository interface {
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProductByID(ctx context.Context, id string) (*domain.Product, error)
	GetProductBySKU(ctx context.Context, sku string) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)

	GetInventory(ctx context.Context, productID string) (*domain.Inventory, error)
	ListInventory(ctx context.Context, filter domain.InventoryFilter) ([]domain.Inventory, error)
	ApplyMovement(ctx context.Context, movement domain.StockMovement) (*domain.Inventory, error)
	SetReorderConfig(ctx context.Context, productID string, reorderLevel int64, thresholdPercent int64) (*domain.Inventory, error)
	ListMovements(ctx context.Context, filter domain.MovementFilter) ([]domain.StockMovement, error)

	CreateSale(ctx context.Context, draft SaleDraft) (*domain.SaleResponse, error)
	GetSaleByID(ctx context.Context, id string) (*domain.Sale, error)
	ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error)
	AddPayment(ctx context.Context, payment domain.Payment) (*domain.SaleResponse, error)
	VoidSale(ctx context.Context, saleID string, voidedBy string, notes string) (*domain.Sale, error)
	ListPayments(ctx context.Context, saleID string) ([]domain.Payment, error)
	GetReceiptBySale(ctx context.Context, saleID string) (*domain.Receipt, error)
	GetInvoiceBySale(ctx context.Context, saleID string) (*domain.Invoice, error)

	ListNotifications(ctx context.Context, recipient string, unreadOnly bool, limit int) ([]domain.Notification, error)
	MarkNotificationRead(ctx context.Context, id string, recipient string) error

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
