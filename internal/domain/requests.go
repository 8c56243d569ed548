package domain

import "github.com/shopspring/decimal"

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type CashierCreateRequest struct {
	Username string `json:"username" validate:"required,min=4"`
	Password string `json:"password" validate:"required,min=6"`
}

type ProductCreateRequest struct {
	SKU          string          `json:"sku" validate:"required"`
	Name         string          `json:"name" validate:"required"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	CostPrice    decimal.Decimal `json:"cost_price"`
}

type SaleLineRequest struct {
	SKU       string `json:"sku,omitempty"`
	ProductID string `json:"product_id,omitempty"`
	Quantity  int64  `json:"quantity" validate:"required,min=1"`
}

type SaleCreateRequest struct {
	PaymentType   string            `json:"payment_type" validate:"required,oneof=PAY_NOW CREDIT"`
	PaymentMethod string            `json:"payment_method,omitempty"`
	AmountPaid    *decimal.Decimal  `json:"amount_paid,omitempty"`
	DueDate       string            `json:"due_date,omitempty"`
	CustomerName  string            `json:"customer_name,omitempty"`
	CustomerPhone string            `json:"customer_phone,omitempty"`
	Items         []SaleLineRequest `json:"items" validate:"required,min=1,dive"`
}

type SaleResponse struct {
	Sale    Sale     `json:"sale"`
	Receipt *Receipt `json:"receipt,omitempty"`
	Invoice *Invoice `json:"invoice,omitempty"`
}

type PaymentCreateRequest struct {
	Method    string          `json:"method" validate:"required"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference,omitempty"`
}

type VoidSaleRequest struct {
	Notes string `json:"notes,omitempty"`
}

// StockOpRequest identifies a product by sku or id, never both.
type StockOpRequest struct {
	SKU       string `json:"sku,omitempty"`
	ProductID string `json:"product_id,omitempty"`
	Quantity  int64  `json:"quantity" validate:"required,min=1"`
	Notes     string `json:"notes,omitempty"`
}

type StockAdjustRequest struct {
	SKU       string `json:"sku,omitempty"`
	ProductID string `json:"product_id,omitempty"`
	Quantity  int64  `json:"quantity" validate:"required,min=1"`
	Direction string `json:"direction" validate:"required,oneof=IN OUT"`
	Notes     string `json:"notes,omitempty"`
}

type ReorderConfigRequest struct {
	SKU                     string `json:"sku,omitempty"`
	ProductID               string `json:"product_id,omitempty"`
	ReorderLevel            int64  `json:"reorder_level" validate:"min=0"`
	ReorderThresholdPercent int64  `json:"reorder_threshold_percent" validate:"required,min=1,max=100"`
}

type InventoryFilter struct {
	Search       string
	LowStockOnly bool
}

type MovementFilter struct {
	SKU          string
	MovementType string
	Direction    string
	Limit        int
}

type SaleFilter struct {
	Cashier string
	Status  string
	Limit   int
}

type RestockAdvice struct {
	ProductID         string `json:"product_id"`
	SKU               string `json:"sku"`
	Name              string `json:"name"`
	Quantity          int64  `json:"quantity"`
	ReorderPoint      int64  `json:"reorder_point"`
	DailyOutRate      string `json:"daily_out_rate"`
	SuggestedQuantity int64  `json:"suggested_quantity"`
}
