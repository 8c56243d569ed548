package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"dukapos/backend/internal/docnum"
	"dukapos/backend/internal/domain"
	"dukapos/backend/internal/store"
	"dukapos/backend/internal/xid"
)

type Store struct {
	mu               sync.RWMutex
	productsByID     map[string]domain.Product
	productIDBySKU   map[string]string
	inventoryByID    map[string]domain.Inventory
	movements        []domain.StockMovement
	salesByID        map[string]*domain.Sale
	paymentsBySale   map[string][]domain.Payment
	receiptsBySale   map[string]domain.Receipt
	invoicesBySale   map[string]domain.Invoice
	notifications    []domain.Notification
	usersByUsername  map[string]domain.UserAccount
	receiptSeqByYear map[int]int64
}

func New() *Store {
	return &Store{
		productsByID:     make(map[string]domain.Product),
		productIDBySKU:   make(map[string]string),
		inventoryByID:    make(map[string]domain.Inventory),
		movements:        make([]domain.StockMovement, 0, 128),
		salesByID:        make(map[string]*domain.Sale),
		paymentsBySale:   make(map[string][]domain.Payment),
		receiptsBySale:   make(map[string]domain.Receipt),
		invoicesBySale:   make(map[string]domain.Invoice),
		notifications:    make([]domain.Notification, 0, 64),
		usersByUsername:  make(map[string]domain.UserAccount),
		receiptSeqByYear: make(map[int]int64),
	}
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_OWNER_PASSWORD and SEED_CASHIER_PASSWORD
// environment variables. If unset, hardcoded dev defaults are used with a
// warning printed to stdout. These credentials are never used in production
// (the backend uses PostgreSQL when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	ownerPwd := envOr("SEED_OWNER_PASSWORD", "owner123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_OWNER_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_OWNER_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"owner", ownerPwd, domain.RoleOwner},
		{"cashier", cashierPwd, domain.RoleCashier},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
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
	s := New()
	s.usersByUsername = seedUsers()

	now := time.Now().UTC()
	seed := []struct {
		sku   string
		name  string
		price string
		cost  string
		qty   int64
	}{
		{"SKU-MAIZE-01", "Maize Flour 2kg", "185.00", "158.00", 120},
		{"SKU-RICE-01", "Rice 5kg", "720.00", "655.00", 80},
		{"SKU-SUGAR-01", "Sugar 1kg", "165.00", "149.00", 100},
		{"SKU-TEA-01", "Tea Leaves 250g", "95.00", "78.00", 60},
		{"SKU-MILK-01", "Long Life Milk 500ml", "62.00", "54.00", 150},
		{"SKU-SOAP-01", "Bar Soap", "48.00", "39.00", 90},
		{"SKU-OIL-01", "Cooking Oil 1L", "310.00", "282.00", 70},
		{"SKU-BREAD-01", "Bread 400g", "65.00", "52.00", 40},
	}
	for _, p := range seed {
		id := xid.New("prd")
		s.productsByID[id] = domain.Product{
			ID:           id,
			SKU:          p.sku,
			Name:         p.name,
			SellingPrice: decimal.RequireFromString(p.price),
			CostPrice:    decimal.RequireFromString(p.cost),
			Active:       true,
			CreatedAt:    now,
		}
		s.productIDBySKU[p.sku] = id
		s.inventoryByID[id] = domain.Inventory{
			ProductID:               id,
			SKU:                     p.sku,
			Quantity:                p.qty,
			ReorderThresholdPercent: 10,
			ReorderPoint:            domain.DefaultReorderPoint,
			LowStock:                domain.IsLowStock(p.qty, 0, 10),
			UpdatedAt:               now,
		}
	}
	return s
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.SKU == "" || product.Name == "" || product.SellingPrice.IsNegative() {
		return nil, store.ErrInvalidSale
	}
	if _, exists := s.productIDBySKU[product.SKU]; exists {
		return nil, fmt.Errorf("%w: sku %s already exists", store.ErrInvalidSale, product.SKU)
	}

	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	product.Active = true
	s.productsByID[product.ID] = product
	s.productIDBySKU[product.SKU] = product.ID

	// A product always carries an inventory projection from birth.
	s.inventoryByID[product.ID] = domain.Inventory{
		ProductID:               product.ID,
		SKU:                     product.SKU,
		ReorderThresholdPercent: 10,
		ReorderPoint:            domain.DefaultReorderPoint,
		LowStock:                domain.IsLowStock(0, 0, 10),
		UpdatedAt:               product.CreatedAt,
	}

	created := product
	return &created, nil
}

func (s *Store) GetProductByID(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.productsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) GetProductBySKU(_ context.Context, sku string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.productIDBySKU[sku]
	if !exists {
		return nil, store.ErrNotFound
	}
	product := s.productsByID[id]
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.productsByID))
	for _, p := range s.productsByID {
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		return cmpString(a.SKU, b.SKU)
	})
	return products, nil
}

func (s *Store) GetInventory(_ context.Context, productID string) (*domain.Inventory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, exists := s.inventoryByID[productID]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyInv := inv
	return &copyInv, nil
}

func (s *Store) ListInventory(_ context.Context, filter domain.InventoryFilter) ([]domain.Inventory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Inventory, 0, len(s.inventoryByID))
	for _, inv := range s.inventoryByID {
		if filter.LowStockOnly && !inv.LowStock {
			continue
		}
		if filter.Search != "" {
			product := s.productsByID[inv.ProductID]
			needle := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(product.Name), needle) && !strings.Contains(strings.ToLower(product.SKU), needle) {
				continue
			}
		}
		result = append(result, inv)
	}
	slices.SortFunc(result, func(a, b domain.Inventory) int {
		if a.UpdatedAt.Equal(b.UpdatedAt) {
			return cmpString(a.ProductID, b.ProductID)
		}
		if a.UpdatedAt.After(b.UpdatedAt) {
			return -1
		}
		return 1
	})
	return result, nil
}

func (s *Store) ApplyMovement(_ context.Context, movement domain.StockMovement) (*domain.Inventory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, err := s.applyMovementLocked(movement)
	if err != nil {
		return nil, err
	}
	copyInv := *inv
	return &copyInv, nil
}

// applyMovementLocked appends one ledger entry and updates the projection,
// emitting a low-stock notification on a false-to-true flag transition.
// Caller must hold the write lock.
func (s *Store) applyMovementLocked(movement domain.StockMovement) (*domain.Inventory, error) {
	inv, exists := s.inventoryByID[movement.ProductID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if movement.Quantity < 1 {
		return nil, fmt.Errorf("%w: movement quantity must be at least 1", store.ErrInvalidSale)
	}
	if movement.Direction != domain.DirectionIn && movement.Direction != domain.DirectionOut {
		return nil, fmt.Errorf("%w: unknown direction %q", store.ErrInvalidSale, movement.Direction)
	}
	if movement.Direction == domain.DirectionOut && inv.Quantity < movement.Quantity {
		return nil, fmt.Errorf("%w: %s has %d, requested %d", store.ErrInsufficientStock, inv.SKU, inv.Quantity, movement.Quantity)
	}

	now := time.Now().UTC()
	if movement.ID == "" {
		movement.ID = xid.New("mov")
	}
	if movement.CreatedAt.IsZero() {
		movement.CreatedAt = now
	}
	movement.SKU = inv.SKU
	s.movements = append(s.movements, movement)

	wasLow := inv.LowStock
	if movement.Direction == domain.DirectionIn {
		inv.Quantity += movement.Quantity
	} else {
		inv.Quantity -= movement.Quantity
	}
	inv.ReorderPoint = domain.ReorderPointFor(inv.ReorderLevel, inv.ReorderThresholdPercent)
	inv.LowStock = domain.IsLowStock(inv.Quantity, inv.ReorderLevel, inv.ReorderThresholdPercent)
	inv.UpdatedAt = now
	s.inventoryByID[movement.ProductID] = inv

	if !wasLow && inv.LowStock {
		product := s.productsByID[movement.ProductID]
		s.notifyOwnersLocked(domain.NotificationLowStock,
			fmt.Sprintf("Low stock: %s (%s) is at %d, reorder point %d", product.Name, product.SKU, inv.Quantity, inv.ReorderPoint),
			movement.ProductID, movement.SaleID, now)
	}

	updated := inv
	return &updated, nil
}

func (s *Store) SetReorderConfig(_ context.Context, productID string, reorderLevel int64, thresholdPercent int64) (*domain.Inventory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, exists := s.inventoryByID[productID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if reorderLevel < 0 || thresholdPercent < 1 || thresholdPercent > 100 {
		return nil, fmt.Errorf("%w: reorder config out of range", store.ErrInvalidSale)
	}

	now := time.Now().UTC()
	wasLow := inv.LowStock
	inv.ReorderLevel = reorderLevel
	inv.ReorderThresholdPercent = thresholdPercent
	inv.ReorderPoint = domain.ReorderPointFor(reorderLevel, thresholdPercent)
	inv.LowStock = domain.IsLowStock(inv.Quantity, reorderLevel, thresholdPercent)
	inv.UpdatedAt = now
	s.inventoryByID[productID] = inv

	if !wasLow && inv.LowStock {
		product := s.productsByID[productID]
		s.notifyOwnersLocked(domain.NotificationLowStock,
			fmt.Sprintf("Low stock: %s (%s) is at %d, reorder point %d", product.Name, product.SKU, inv.Quantity, inv.ReorderPoint),
			productID, "", now)
	}

	updated := inv
	return &updated, nil
}

func (s *Store) ListMovements(_ context.Context, filter domain.MovementFilter) ([]domain.StockMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.StockMovement, 0, len(s.movements))
	for _, m := range s.movements {
		if filter.SKU != "" && m.SKU != filter.SKU {
			continue
		}
		if filter.MovementType != "" && m.MovementType != filter.MovementType {
			continue
		}
		if filter.Direction != "" && m.Direction != filter.Direction {
			continue
		}
		result = append(result, m)
	}
	slices.SortFunc(result, func(a, b domain.StockMovement) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (s *Store) CreateSale(_ context.Context, draft store.SaleDraft) (*domain.SaleResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale := draft.Sale
	if len(sale.Items) == 0 {
		return nil, fmt.Errorf("%w: sale has no items", store.ErrInvalidSale)
	}

	// Aggregate requested quantity per product, then validate everything
	// before the first write.
	needed := make(map[string]int64, len(sale.Items))
	order := make([]string, 0, len(sale.Items))
	for _, item := range sale.Items {
		if _, seen := needed[item.ProductID]; !seen {
			order = append(order, item.ProductID)
		}
		needed[item.ProductID] += item.Quantity
	}
	slices.Sort(order)

	for _, productID := range order {
		product, exists := s.productsByID[productID]
		if !exists {
			return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, productID)
		}
		if !product.Active {
			return nil, fmt.Errorf("%w: product %s is inactive", store.ErrInvalidSale, product.SKU)
		}
		inv, exists := s.inventoryByID[productID]
		if !exists {
			return nil, fmt.Errorf("%w: inventory for product %s", store.ErrNotFound, productID)
		}
		if inv.Quantity < needed[productID] {
			return nil, fmt.Errorf("%w: %s has %d, requested %d", store.ErrInsufficientStock, inv.SKU, inv.Quantity, needed[productID])
		}
	}

	now := time.Now().UTC()
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = now
	}
	for i := range sale.Items {
		sale.Items[i].SaleID = sale.ID
		sale.Items[i].SKU = s.productsByID[sale.Items[i].ProductID].SKU
	}

	// The validation pass above checked every line under this same lock, so
	// applyMovementLocked cannot fail here; the loop applies atomically.
	for _, item := range sale.Items {
		if _, err := s.applyMovementLocked(domain.StockMovement{
			ProductID:    item.ProductID,
			MovementType: domain.MovementSale,
			Direction:    domain.DirectionOut,
			Quantity:     item.Quantity,
			SaleID:       sale.ID,
			CreatedBy:    sale.Cashier,
			CreatedAt:    now,
		}); err != nil {
			return nil, err
		}
	}

	stored := sale
	s.salesByID[sale.ID] = &stored

	if draft.Payment != nil {
		payment := *draft.Payment
		if payment.ID == "" {
			payment.ID = xid.New("pay")
		}
		payment.SaleID = sale.ID
		if payment.ReceivedAt.IsZero() {
			payment.ReceivedAt = now
		}
		s.paymentsBySale[sale.ID] = append(s.paymentsBySale[sale.ID], payment)
	}

	resp := domain.SaleResponse{Sale: cloneSale(&stored)}
	if sale.PaymentStatus == domain.PaymentStatusPaid {
		receipt := s.issueReceiptLocked(sale.ID, now)
		resp.Receipt = &receipt
	} else if sale.PaymentType == domain.PaymentTypeCredit {
		invoice := domain.Invoice{
			ID:            xid.New("inv"),
			SaleID:        sale.ID,
			InvoiceNumber: docnum.Invoice(now),
			Status:        domain.InvoiceStatusOpen,
			DueDate:       sale.DueDate,
			IssuedAt:      now,
		}
		s.invoicesBySale[sale.ID] = invoice
		resp.Invoice = &invoice
	}

	s.notifyOwnersLocked(domain.NotificationSaleMade,
		fmt.Sprintf("Sale %s completed by %s, total %s", sale.ID, sale.Cashier, sale.Total.StringFixed(2)),
		"", sale.ID, now)

	return &resp, nil
}

func (s *Store) GetSaleByID(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, exists := s.salesByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copySale := cloneSale(sale)
	return &copySale, nil
}

func (s *Store) ListSales(_ context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Sale, 0, len(s.salesByID))
	for _, sale := range s.salesByID {
		if filter.Cashier != "" && sale.Cashier != filter.Cashier {
			continue
		}
		if filter.Status != "" && sale.Status != filter.Status {
			continue
		}
		result = append(result, cloneSale(sale))
	}
	slices.SortFunc(result, func(a, b domain.Sale) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (s *Store) AddPayment(_ context.Context, payment domain.Payment) (*domain.SaleResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, exists := s.salesByID[payment.SaleID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if sale.Status == domain.SaleStatusVoided {
		return nil, fmt.Errorf("%w: cannot pay a voided sale", store.ErrInvalidSale)
	}
	if sale.PaymentStatus == domain.PaymentStatusPaid {
		return nil, fmt.Errorf("%w: sale is already fully paid", store.ErrInvalidSale)
	}
	if !payment.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: payment amount must be positive", store.ErrInvalidSale)
	}
	outstanding := sale.Total.Sub(sale.AmountPaid)
	if payment.Amount.GreaterThan(outstanding) {
		return nil, fmt.Errorf("%w: payment %s exceeds outstanding balance %s", store.ErrInvalidSale, payment.Amount.StringFixed(2), outstanding.StringFixed(2))
	}

	now := time.Now().UTC()
	if payment.ID == "" {
		payment.ID = xid.New("pay")
	}
	if payment.ReceivedAt.IsZero() {
		payment.ReceivedAt = now
	}
	s.paymentsBySale[sale.ID] = append(s.paymentsBySale[sale.ID], payment)

	sale.AmountPaid = sale.AmountPaid.Add(payment.Amount)
	if sale.PaymentMethod == "" {
		sale.PaymentMethod = payment.Method
	}
	sale.PaymentStatus = paymentStatusFor(sale.AmountPaid, sale.Total)

	resp := domain.SaleResponse{Sale: cloneSale(sale)}
	if sale.PaymentStatus == domain.PaymentStatusPaid {
		if invoice, ok := s.invoicesBySale[sale.ID]; ok && invoice.Status == domain.InvoiceStatusOpen {
			invoice.Status = domain.InvoiceStatusPaid
			s.invoicesBySale[sale.ID] = invoice
		}
		receipt := s.issueReceiptLocked(sale.ID, now)
		resp.Receipt = &receipt
	}
	if invoice, ok := s.invoicesBySale[sale.ID]; ok {
		copyInvoice := invoice
		resp.Invoice = &copyInvoice
	}
	return &resp, nil
}

func (s *Store) VoidSale(_ context.Context, saleID string, voidedBy string, notes string) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, exists := s.salesByID[saleID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if sale.Status == domain.SaleStatusVoided {
		return nil, store.ErrAlreadyVoided
	}

	now := time.Now().UTC()
	order := make([]int, 0, len(sale.Items))
	for i := range sale.Items {
		order = append(order, i)
	}
	slices.SortFunc(order, func(a, b int) int {
		return cmpString(sale.Items[a].ProductID, sale.Items[b].ProductID)
	})
	for _, i := range order {
		item := sale.Items[i]
		if _, err := s.applyMovementLocked(domain.StockMovement{
			ProductID:    item.ProductID,
			MovementType: domain.MovementVoid,
			Direction:    domain.DirectionIn,
			Quantity:     item.Quantity,
			SaleID:       sale.ID,
			CreatedBy:    voidedBy,
			Notes:        notes,
			CreatedAt:    now,
		}); err != nil {
			return nil, err
		}
	}

	sale.Status = domain.SaleStatusVoided

	s.notifyOwnersLocked(domain.NotificationSaleVoided,
		fmt.Sprintf("Sale %s voided by %s", sale.ID, voidedBy),
		"", sale.ID, now)

	copySale := cloneSale(sale)
	return &copySale, nil
}

func (s *Store) ListPayments(_ context.Context, saleID string) ([]domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, exists := s.salesByID[saleID]; !exists {
		return nil, store.ErrNotFound
	}
	payments := s.paymentsBySale[saleID]
	result := make([]domain.Payment, len(payments))
	copy(result, payments)
	return result, nil
}

func (s *Store) GetReceiptBySale(_ context.Context, saleID string) (*domain.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	receipt, exists := s.receiptsBySale[saleID]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyReceipt := receipt
	return &copyReceipt, nil
}

func (s *Store) GetInvoiceBySale(_ context.Context, saleID string) (*domain.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	invoice, exists := s.invoicesBySale[saleID]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyInvoice := invoice
	return &copyInvoice, nil
}

func (s *Store) ListNotifications(_ context.Context, recipient string, unreadOnly bool, limit int) ([]domain.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Notification, 0, 16)
	for _, n := range s.notifications {
		if n.Recipient != recipient {
			continue
		}
		if unreadOnly && n.Read {
			continue
		}
		result = append(result, n)
	}
	slices.SortFunc(result, func(a, b domain.Notification) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) MarkNotificationRead(_ context.Context, id string, recipient string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.notifications {
		if s.notifications[i].ID != id {
			continue
		}
		if s.notifications[i].Recipient != recipient {
			return store.ErrNotFound
		}
		s.notifications[i].Read = true
		return nil
	}
	return store.ErrNotFound
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.Username == "" {
		return store.ErrInvalidSale
	}
	if _, exists := s.usersByUsername[user.Username]; exists {
		return fmt.Errorf("%w: username %s already exists", store.ErrInvalidSale, user.Username)
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, u := range s.usersByUsername {
		users = append(users, u)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

// issueReceiptLocked returns the existing receipt for the sale if one was
// already issued, otherwise allocates the next per-year sequence number.
// Caller must hold the write lock.
func (s *Store) issueReceiptLocked(saleID string, now time.Time) domain.Receipt {
	if receipt, exists := s.receiptsBySale[saleID]; exists {
		return receipt
	}
	year := now.Year()
	s.receiptSeqByYear[year]++
	receipt := domain.Receipt{
		ID:            xid.New("rcpt"),
		SaleID:        saleID,
		ReceiptNumber: docnum.Receipt(year, s.receiptSeqByYear[year]),
		IssuedAt:      now,
	}
	s.receiptsBySale[saleID] = receipt
	return receipt
}

// notifyOwnersLocked fans one notification out to every active owner account.
// Caller must hold the write lock.
func (s *Store) notifyOwnersLocked(notifType string, message string, productID string, saleID string, now time.Time) {
	for _, user := range s.usersByUsername {
		if user.Role != domain.RoleOwner || !user.Active {
			continue
		}
		s.notifications = append(s.notifications, domain.Notification{
			ID:        xid.New("ntf"),
			Recipient: user.Username,
			Type:      notifType,
			Message:   message,
			ProductID: productID,
			SaleID:    saleID,
			CreatedAt: now,
		})
	}
}

func paymentStatusFor(amountPaid, total decimal.Decimal) string {
	switch {
	case total.IsPositive() && amountPaid.GreaterThanOrEqual(total):
		return domain.PaymentStatusPaid
	case amountPaid.IsPositive():
		return domain.PaymentStatusPartial
	default:
		return domain.PaymentStatusUnpaid
	}
}

func cloneSale(sale *domain.Sale) domain.Sale {
	copySale := *sale
	copySale.Items = make([]domain.SaleItem, len(sale.Items))
	copy(copySale.Items, sale.Items)
	return copySale
}

func cmpString(a, b string) int {
	return strings.Compare(a, b)
}
