package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	MovementSale       = "SALE"
	MovementSupply     = "SUPPLY"
	MovementAdjustment = "ADJUSTMENT"
	MovementReturn     = "RETURN"
	MovementVoid       = "VOID"
)

const (
	DirectionIn  = "IN"
	DirectionOut = "OUT"
)

const (
	SaleStatusCompleted = "COMPLETED"
	SaleStatusVoided    = "VOIDED"
)

const (
	PaymentTypePayNow = "PAY_NOW"
	PaymentTypeCredit = "CREDIT"
)

const (
	PaymentStatusUnpaid  = "UNPAID"
	PaymentStatusPartial = "PARTIAL"
	PaymentStatusPaid    = "PAID"
)

const (
	InvoiceStatusOpen      = "OPEN"
	InvoiceStatusPaid      = "PAID"
	InvoiceStatusOverdue   = "OVERDUE"
	InvoiceStatusCancelled = "CANCELLED"
)

const (
	NotificationSaleMade   = "SALE_MADE"
	NotificationLowStock   = "LOW_STOCK"
	NotificationSaleVoided = "SALE_VOIDED"
)

const (
	RoleOwner   = "owner"
	RoleCashier = "cashier"
)

// DefaultReorderPoint applies when a product has no reorder level configured.
const DefaultReorderPoint = 10

type Product struct {
	ID           string          `json:"id"`
	SKU          string          `json:"sku"`
	Name         string          `json:"name"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	CostPrice    decimal.Decimal `json:"cost_price"`
	Active       bool            `json:"active"`
	CreatedAt    time.Time       `json:"created_at"`
}

type Inventory struct {
	ProductID               string    `json:"product_id"`
	SKU                     string    `json:"sku"`
	Quantity                int64     `json:"quantity"`
	ReorderLevel            int64     `json:"reorder_level"`
	ReorderThresholdPercent int64     `json:"reorder_threshold_percent"`
	ReorderPoint            int64     `json:"reorder_point"`
	LowStock                bool      `json:"low_stock"`
	UpdatedAt               time.Time `json:"updated_at"`
}

type StockMovement struct {
	ID           string    `json:"id"`
	ProductID    string    `json:"product_id"`
	SKU          string    `json:"sku"`
	MovementType string    `json:"movement_type"`
	Direction    string    `json:"direction"`
	Quantity     int64     `json:"quantity"`
	SaleID       string    `json:"sale_id,omitempty"`
	CreatedBy    string    `json:"created_by"`
	Notes        string    `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type Sale struct {
	ID            string          `json:"id"`
	Cashier       string          `json:"cashier"`
	Status        string          `json:"status"`
	PaymentType   string          `json:"payment_type"`
	PaymentStatus string          `json:"payment_status"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Discount      decimal.Decimal `json:"discount"`
	Total         decimal.Decimal `json:"total"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	DueDate       string          `json:"due_date,omitempty"`
	CustomerName  string          `json:"customer_name,omitempty"`
	CustomerPhone string          `json:"customer_phone,omitempty"`
	Items         []SaleItem      `json:"items,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

type SaleItem struct {
	SaleID            string          `json:"sale_id"`
	ProductID         string          `json:"product_id"`
	SKU               string          `json:"sku"`
	Quantity          int64           `json:"quantity"`
	UnitPriceSnapshot decimal.Decimal `json:"unit_price_snapshot"`
	LineTotal         decimal.Decimal `json:"line_total"`
}

type Payment struct {
	ID         string          `json:"id"`
	SaleID     string          `json:"sale_id"`
	Method     string          `json:"method"`
	Amount     decimal.Decimal `json:"amount"`
	Reference  string          `json:"reference,omitempty"`
	ReceivedBy string          `json:"received_by"`
	ReceivedAt time.Time       `json:"received_at"`
}

type Receipt struct {
	ID            string    `json:"id"`
	SaleID        string    `json:"sale_id"`
	ReceiptNumber string    `json:"receipt_number"`
	IssuedAt      time.Time `json:"issued_at"`
}

type Invoice struct {
	ID            string    `json:"id"`
	SaleID        string    `json:"sale_id"`
	InvoiceNumber string    `json:"invoice_number"`
	Status        string    `json:"status"`
	DueDate       string    `json:"due_date,omitempty"`
	IssuedAt      time.Time `json:"issued_at"`
}

type Notification struct {
	ID        string    `json:"id"`
	Recipient string    `json:"recipient"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	ProductID string    `json:"product_id,omitempty"`
	SaleID    string    `json:"sale_id,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

type UserAccount struct {
	Username  string    `json:"username"`
	Password  string    `json:"-"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type Actor struct {
	Username string
	Role     string
}

func (a Actor) IsOwner() bool {
	return a.Role == RoleOwner
}
