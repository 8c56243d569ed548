package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"dukapos/backend/internal/domain"
	"dukapos/backend/internal/restock"
	"dukapos/backend/internal/store"
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
	repo    store.Repository
	advisor *restock.Advisor
	log     *logrus.Logger
}

func New(repo store.Repository, advisor *restock.Advisor, logger *logrus.Logger) *Service {
	if advisor == nil {
		advisor = restock.NewAdvisor(nil, 0)
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Service{
		repo:    repo,
		advisor: advisor,
		log:     logger,
	}
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || !actor.IsOwner() {
		return domain.Product{}, fmt.Errorf("owner role required")
	}

	req.SKU = strings.ToUpper(strings.TrimSpace(req.SKU))
	req.Name = strings.TrimSpace(req.Name)
	if req.SKU == "" || req.Name == "" {
		return domain.Product{}, fmt.Errorf("%w: sku and name are required", store.ErrInvalidSale)
	}
	if req.SellingPrice.IsNegative() || req.CostPrice.IsNegative() {
		return domain.Product{}, fmt.Errorf("%w: prices must not be negative", store.ErrInvalidSale)
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		SKU:          req.SKU,
		Name:         req.Name,
		SellingPrice: req.SellingPrice.Round(2),
		CostPrice:    req.CostPrice.Round(2),
		Active:       true,
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.log.WithFields(logrus.Fields{"sku": created.SKU, "by": actor.Username}).Info("product created")
	return *created, nil
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) GetProduct(ctx context.Context, sku string, productID string) (domain.Product, error) {
	product, err := s.resolveProduct(ctx, sku, productID)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

// resolveProduct looks a product up by sku or by id. Exactly one of the two
// must be provided.
func (s *Service) resolveProduct(ctx context.Context, sku string, productID string) (*domain.Product, error) {
	sku = strings.TrimSpace(sku)
	productID = strings.TrimSpace(productID)
	if sku == "" && productID == "" {
		return nil, fmt.Errorf("%w: provide either sku or product_id", store.ErrInvalidSale)
	}
	if sku != "" && productID != "" {
		return nil, fmt.Errorf("%w: provide only one of sku or product_id", store.ErrInvalidSale)
	}
	if sku != "" {
		return s.repo.GetProductBySKU(ctx, sku)
	}
	return s.repo.GetProductByID(ctx, productID)
}

func (s *Service) ListInventory(ctx context.Context, filter domain.InventoryFilter) ([]domain.Inventory, error) {
	return s.repo.ListInventory(ctx, filter)
}

func (s *Service) GetInventory(ctx context.Context, sku string, productID string) (domain.Inventory, error) {
	product, err := s.resolveProduct(ctx, sku, productID)
	if err != nil {
		return domain.Inventory{}, err
	}
	inv, err := s.repo.GetInventory(ctx, product.ID)
	if err != nil {
		return domain.Inventory{}, err
	}
	return *inv, nil
}

func (s *Service) SupplyStock(ctx context.Context, req domain.StockOpRequest) (domain.Inventory, error) {
	return s.recordMovement(ctx, req.SKU, req.ProductID, req.Quantity, domain.MovementSupply, domain.DirectionIn, req.Notes, true)
}

func (s *Service) AdjustStock(ctx context.Context, req domain.StockAdjustRequest) (domain.Inventory, error) {
	return s.recordMovement(ctx, req.SKU, req.ProductID, req.Quantity, domain.MovementAdjustment, req.Direction, req.Notes, true)
}

func (s *Service) ReturnStock(ctx context.Context, req domain.StockOpRequest) (domain.Inventory, error) {
	return s.recordMovement(ctx, req.SKU, req.ProductID, req.Quantity, domain.MovementReturn, domain.DirectionIn, req.Notes, false)
}

func (s *Service) recordMovement(ctx context.Context, sku string, productID string, quantity int64, movementType string, direction string, notes string, ownerOnly bool) (domain.Inventory, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.Inventory{}, fmt.Errorf("authentication required")
	}
	if ownerOnly && !actor.IsOwner() {
		return domain.Inventory{}, fmt.Errorf("owner role required")
	}
	if quantity < 1 {
		return domain.Inventory{}, fmt.Errorf("%w: quantity must be at least 1", store.ErrInvalidSale)
	}

	product, err := s.resolveProduct(ctx, sku, productID)
	if err != nil {
		return domain.Inventory{}, err
	}
	if !product.Active {
		return domain.Inventory{}, fmt.Errorf("%w: product %s is inactive", store.ErrInvalidSale, product.SKU)
	}

	inv, err := s.repo.ApplyMovement(ctx, domain.StockMovement{
		ProductID:    product.ID,
		MovementType: movementType,
		Direction:    direction,
		Quantity:     quantity,
		CreatedBy:    actor.Username,
		Notes:        notes,
	})
	if err != nil {
		return domain.Inventory{}, err
	}

	s.log.WithFields(logrus.Fields{
		"sku": product.SKU, "type": movementType, "direction": direction, "qty": quantity, "by": actor.Username,
	}).Info("stock movement recorded")
	return *inv, nil
}

func (s *Service) SetReorderConfig(ctx context.Context, req domain.ReorderConfigRequest) (domain.Inventory, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || !actor.IsOwner() {
		return domain.Inventory{}, fmt.Errorf("owner role required")
	}
	if req.ReorderLevel < 0 {
		return domain.Inventory{}, fmt.Errorf("%w: reorder level must not be negative", store.ErrInvalidSale)
	}
	if req.ReorderThresholdPercent < 1 || req.ReorderThresholdPercent > 100 {
		return domain.Inventory{}, fmt.Errorf("%w: threshold percent must be between 1 and 100", store.ErrInvalidSale)
	}

	product, err := s.resolveProduct(ctx, req.SKU, req.ProductID)
	if err != nil {
		return domain.Inventory{}, err
	}

	inv, err := s.repo.SetReorderConfig(ctx, product.ID, req.ReorderLevel, req.ReorderThresholdPercent)
	if err != nil {
		return domain.Inventory{}, err
	}

	s.log.WithFields(logrus.Fields{
		"sku": product.SKU, "reorder_level": req.ReorderLevel, "threshold_percent": req.ReorderThresholdPercent, "by": actor.Username,
	}).Info("reorder config updated")
	return *inv, nil
}

func (s *Service) ListMovements(ctx context.Context, filter domain.MovementFilter) ([]domain.StockMovement, error) {
	return s.repo.ListMovements(ctx, filter)
}

func (s *Service) CreateSale(ctx context.Context, req domain.SaleCreateRequest) (domain.SaleResponse, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.SaleResponse{}, fmt.Errorf("authentication required")
	}

	if len(req.Items) == 0 {
		return domain.SaleResponse{}, fmt.Errorf("%w: at least one item is required", store.ErrInvalidSale)
	}
	if req.PaymentType != domain.PaymentTypePayNow && req.PaymentType != domain.PaymentTypeCredit {
		return domain.SaleResponse{}, fmt.Errorf("%w: payment_type must be PAY_NOW or CREDIT", store.ErrInvalidSale)
	}

	items := make([]domain.SaleItem, 0, len(req.Items))
	subtotal := decimal.Zero
	for _, line := range req.Items {
		if line.Quantity < 1 {
			return domain.SaleResponse{}, fmt.Errorf("%w: item quantity must be at least 1", store.ErrInvalidSale)
		}
		product, err := s.resolveProduct(ctx, line.SKU, line.ProductID)
		if err != nil {
			return domain.SaleResponse{}, err
		}
		if !product.Active {
			return domain.SaleResponse{}, fmt.Errorf("%w: product %s is inactive", store.ErrInvalidSale, product.SKU)
		}

		lineTotal := product.SellingPrice.Mul(decimal.NewFromInt(line.Quantity)).Round(2)
		items = append(items, domain.SaleItem{
			ProductID:         product.ID,
			SKU:               product.SKU,
			Quantity:          line.Quantity,
			UnitPriceSnapshot: product.SellingPrice,
			LineTotal:         lineTotal,
		})
		subtotal = subtotal.Add(lineTotal)
	}

	total := subtotal

	method := strings.TrimSpace(req.PaymentMethod)
	dueDate := strings.TrimSpace(req.DueDate)
	var amountPaid decimal.Decimal
	switch req.PaymentType {
	case domain.PaymentTypePayNow:
		if method == "" {
			return domain.SaleResponse{}, fmt.Errorf("%w: payment_method is required for PAY_NOW", store.ErrInvalidSale)
		}
		if req.AmountPaid != nil {
			amountPaid = *req.AmountPaid
		} else {
			amountPaid = subtotal
		}
	case domain.PaymentTypeCredit:
		if dueDate == "" {
			return domain.SaleResponse{}, fmt.Errorf("%w: due_date is required for CREDIT", store.ErrInvalidSale)
		}
		if _, err := time.Parse("2006-01-02", dueDate); err != nil {
			return domain.SaleResponse{}, fmt.Errorf("%w: due_date must be YYYY-MM-DD", store.ErrInvalidSale)
		}
		if req.AmountPaid != nil {
			amountPaid = *req.AmountPaid
		}
		if amountPaid.IsPositive() && method == "" {
			return domain.SaleResponse{}, fmt.Errorf("%w: payment_method is required when amount_paid is set", store.ErrInvalidSale)
		}
	}
	if amountPaid.IsNegative() || amountPaid.GreaterThan(total) {
		return domain.SaleResponse{}, fmt.Errorf("%w: amount_paid must be between 0 and %s", store.ErrInvalidSale, total.StringFixed(2))
	}
	amountPaid = amountPaid.Round(2)

	paymentStatus := domain.PaymentStatusUnpaid
	switch {
	case total.IsPositive() && amountPaid.GreaterThanOrEqual(total):
		paymentStatus = domain.PaymentStatusPaid
	case amountPaid.IsPositive():
		paymentStatus = domain.PaymentStatusPartial
	}

	draft := store.SaleDraft{
		Sale: domain.Sale{
			Cashier:       actor.Username,
			Status:        domain.SaleStatusCompleted,
			PaymentType:   req.PaymentType,
			PaymentStatus: paymentStatus,
			PaymentMethod: method,
			Subtotal:      subtotal,
			Discount:      decimal.Zero,
			Total:         total,
			AmountPaid:    amountPaid,
			DueDate:       dueDate,
			CustomerName:  strings.TrimSpace(req.CustomerName),
			CustomerPhone: strings.TrimSpace(req.CustomerPhone),
			Items:         items,
		},
	}
	if amountPaid.IsPositive() {
		draft.Payment = &domain.Payment{
			Method:     method,
			Amount:     amountPaid,
			ReceivedBy: actor.Username,
		}
	}

	resp, err := s.repo.CreateSale(ctx, draft)
	if err != nil {
		return domain.SaleResponse{}, err
	}

	s.log.WithFields(logrus.Fields{
		"sale_id": resp.Sale.ID, "cashier": actor.Username, "total": resp.Sale.Total.StringFixed(2), "payment_status": resp.Sale.PaymentStatus,
	}).Info("sale created")
	return *resp, nil
}

func (s *Service) GetSale(ctx context.Context, saleID string) (domain.Sale, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.Sale{}, fmt.Errorf("authentication required")
	}

	sale, err := s.repo.GetSaleByID(ctx, saleID)
	if err != nil {
		return domain.Sale{}, err
	}
	if !actor.IsOwner() && sale.Cashier != actor.Username {
		// Cashiers only see their own sales; hide existence of others.
		return domain.Sale{}, store.ErrNotFound
	}
	return *sale, nil
}

func (s *Service) ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("authentication required")
	}
	if !actor.IsOwner() {
		filter.Cashier = actor.Username
	}
	return s.repo.ListSales(ctx, filter)
}

func (s *Service) AddPayment(ctx context.Context, saleID string, req domain.PaymentCreateRequest) (domain.SaleResponse, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.SaleResponse{}, fmt.Errorf("authentication required")
	}
	method := strings.TrimSpace(req.Method)
	if method == "" {
		return domain.SaleResponse{}, fmt.Errorf("%w: payment method is required", store.ErrInvalidSale)
	}
	if !req.Amount.IsPositive() {
		return domain.SaleResponse{}, fmt.Errorf("%w: payment amount must be positive", store.ErrInvalidSale)
	}

	resp, err := s.repo.AddPayment(ctx, domain.Payment{
		SaleID:     saleID,
		Method:     method,
		Amount:     req.Amount.Round(2),
		Reference:  strings.TrimSpace(req.Reference),
		ReceivedBy: actor.Username,
	})
	if err != nil {
		return domain.SaleResponse{}, err
	}

	s.log.WithFields(logrus.Fields{
		"sale_id": saleID, "amount": req.Amount.StringFixed(2), "payment_status": resp.Sale.PaymentStatus, "by": actor.Username,
	}).Info("payment recorded")
	return *resp, nil
}

func (s *Service) VoidSale(ctx context.Context, saleID string, req domain.VoidSaleRequest) (domain.Sale, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || !actor.IsOwner() {
		return domain.Sale{}, fmt.Errorf("owner role required")
	}

	sale, err := s.repo.VoidSale(ctx, saleID, actor.Username, strings.TrimSpace(req.Notes))
	if err != nil {
		return domain.Sale{}, err
	}

	s.log.WithFields(logrus.Fields{"sale_id": saleID, "by": actor.Username}).Info("sale voided")
	return *sale, nil
}

func (s *Service) ListPayments(ctx context.Context, saleID string) ([]domain.Payment, error) {
	if _, err := s.GetSale(ctx, saleID); err != nil {
		return nil, err
	}
	return s.repo.ListPayments(ctx, saleID)
}

func (s *Service) GetReceipt(ctx context.Context, saleID string) (domain.Receipt, error) {
	if _, err := s.GetSale(ctx, saleID); err != nil {
		return domain.Receipt{}, err
	}
	receipt, err := s.repo.GetReceiptBySale(ctx, saleID)
	if err != nil {
		return domain.Receipt{}, err
	}
	return *receipt, nil
}

func (s *Service) GetInvoice(ctx context.Context, saleID string) (domain.Invoice, error) {
	if _, err := s.GetSale(ctx, saleID); err != nil {
		return domain.Invoice{}, err
	}
	invoice, err := s.repo.GetInvoiceBySale(ctx, saleID)
	if err != nil {
		return domain.Invoice{}, err
	}
	return *invoice, nil
}

func (s *Service) ListNotifications(ctx context.Context, unreadOnly bool, limit int) ([]domain.Notification, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("authentication required")
	}
	return s.repo.ListNotifications(ctx, actor.Username, unreadOnly, limit)
}

func (s *Service) MarkNotificationRead(ctx context.Context, id string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return fmt.Errorf("authentication required")
	}
	return s.repo.MarkNotificationRead(ctx, id, actor.Username)
}

func (s *Service) RestockAdvice(ctx context.Context) ([]domain.RestockAdvice, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || !actor.IsOwner() {
		return nil, fmt.Errorf("owner role required")
	}

	inventories, err := s.repo.ListInventory(ctx, domain.InventoryFilter{LowStockOnly: true})
	if err != nil {
		return nil, err
	}
	if len(inventories) == 0 {
		return []domain.RestockAdvice{}, nil
	}

	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	productMap := make(map[string]domain.Product, len(products))
	for _, p := range products {
		productMap[p.ID] = p
	}

	movements, err := s.repo.ListMovements(ctx, domain.MovementFilter{Direction: domain.DirectionOut})
	if err != nil {
		s.log.WithError(err).Warn("restock advice: movement history unavailable, using stock levels only")
		movements = nil
	}

	return s.advisor.Advise(ctx, inventories, productMap, movements), nil
}

// IsOwner reports whether the context actor holds the owner role. Callers
// needing role gates use this single capability query.
func (s *Service) IsOwner(ctx context.Context) bool {
	actor, ok := ActorFromContext(ctx)
	return ok && actor.IsOwner()
}
