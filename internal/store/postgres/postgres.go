package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"dukapos/backend/internal/docnum"
	"dukapos/backend/internal/domain"
	"dukapos/backend/internal/store"
	"dukapos/backend/internal/xid"
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

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.SKU == "" || product.Name == "" || product.SellingPrice.IsNegative() {
		return nil, store.ErrInvalidSale
	}
	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	product.Active = true

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO products (id, sku, name, selling_price, cost_price, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, product.ID, product.SKU, product.Name, product.SellingPrice, product.CostPrice, product.Active, product.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: sku %s already exists", store.ErrInvalidSale, product.SKU)
		}
		return nil, err
	}

	// A product always carries an inventory projection from birth.
	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO inventories (product_id, sku, quantity, reorder_level, reorder_threshold_percent, low_stock, updated_at)
		VALUES ($1,$2,0,0,10,$3,$4)
	`, product.ID, product.SKU, domain.IsLowStock(0, 0, 10), product.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, wrapTxErr(err)
	}
	created := product
	return &created, nil
}

func (s *Store) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	return s.getProduct(ctx, "id", id)
}

func (s *Store) GetProductBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	return s.getProduct(ctx, "sku", sku)
}

func (s *Store) getProduct(ctx context.Context, column string, value string) (*domain.Product, error) {
	var product domain.Product
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT id, sku, name, selling_price, cost_price, active, created_at
		FROM products
		WHERE %s = $1
	`, column), value).Scan(&product.ID, &product.SKU, &product.Name, &product.SellingPrice, &product.CostPrice, &product.Active, &product.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sku, name, selling_price, cost_price, active, created_at
		FROM products
		ORDER BY sku
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.SellingPrice, &p.CostPrice, &p.Active, &p.CreatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) GetInventory(ctx context.Context, productID string) (*domain.Inventory, error) {
	var inv domain.Inventory
	err := s.db.QueryRowContext(ctx, `
		SELECT product_id, sku, quantity, reorder_level, reorder_threshold_percent, low_stock, updated_at
		FROM inventories
		WHERE product_id = $1
	`, productID).Scan(&inv.ProductID, &inv.SKU, &inv.Quantity, &inv.ReorderLevel, &inv.ReorderThresholdPercent, &inv.LowStock, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	inv.ReorderPoint = domain.ReorderPointFor(inv.ReorderLevel, inv.ReorderThresholdPercent)
	return &inv, nil
}

func (s *Store) ListInventory(ctx context.Context, filter domain.InventoryFilter) ([]domain.Inventory, error) {
	query := `
		SELECT i.product_id, i.sku, i.quantity, i.reorder_level, i.reorder_threshold_percent, i.low_stock, i.updated_at
		FROM inventories i
		JOIN products p ON p.id = i.product_id
	`
	conditions := make([]string, 0, 2)
	args := make([]any, 0, 2)
	if filter.LowStockOnly {
		conditions = append(conditions, "i.low_stock = true")
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("(lower(p.name) LIKE $%d OR lower(p.sku) LIKE $%d)", len(args), len(args)))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY i.updated_at DESC, i.product_id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.Inventory, 0, 64)
	for rows.Next() {
		var inv domain.Inventory
		if err := rows.Scan(&inv.ProductID, &inv.SKU, &inv.Quantity, &inv.ReorderLevel, &inv.ReorderThresholdPercent, &inv.LowStock, &inv.UpdatedAt); err != nil {
			return nil, err
		}
		inv.ReorderPoint = domain.ReorderPointFor(inv.ReorderLevel, inv.ReorderThresholdPercent)
		result = append(result, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) ApplyMovement(ctx context.Context, movement domain.StockMovement) (*domain.Inventory, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	inv, err := s.applyMovementTx(ctx, pgTx, movement)
	if err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, wrapTxErr(err)
	}
	return inv, nil
}

// applyMovementTx appends one ledger entry and updates the projection row
// under its exclusive lock, emitting low-stock notifications on a
// false-to-true flag transition. It never commits; the caller owns the
// transaction boundary.
func (s *Store) applyMovementTx(ctx context.Context, pgTx *sql.Tx, movement domain.StockMovement) (*domain.Inventory, error) {
	if movement.Quantity < 1 {
		return nil, fmt.Errorf("%w: movement quantity must be at least 1", store.ErrInvalidSale)
	}
	if movement.Direction != domain.DirectionIn && movement.Direction != domain.DirectionOut {
		return nil, fmt.Errorf("%w: unknown direction %q", store.ErrInvalidSale, movement.Direction)
	}

	var inv domain.Inventory
	var productName string
	err := pgTx.QueryRowContext(ctx, `
		SELECT i.product_id, i.sku, i.quantity, i.reorder_level, i.reorder_threshold_percent, i.low_stock, p.name
		FROM inventories i
		JOIN products p ON p.id = i.product_id
		WHERE i.product_id = $1
		FOR UPDATE OF i
	`, movement.ProductID).Scan(&inv.ProductID, &inv.SKU, &inv.Quantity, &inv.ReorderLevel, &inv.ReorderThresholdPercent, &inv.LowStock, &productName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, wrapTxErr(err)
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

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO stock_movements (id, product_id, sku, movement_type, direction, quantity, sale_id, created_by, notes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, movement.ID, movement.ProductID, movement.SKU, movement.MovementType, movement.Direction,
		movement.Quantity, nullIfEmpty(movement.SaleID), movement.CreatedBy, nullIfEmpty(movement.Notes), movement.CreatedAt)
	if err != nil {
		return nil, wrapTxErr(err)
	}

	wasLow := inv.LowStock
	if movement.Direction == domain.DirectionIn {
		inv.Quantity += movement.Quantity
	} else {
		inv.Quantity -= movement.Quantity
	}
	inv.ReorderPoint = domain.ReorderPointFor(inv.ReorderLevel, inv.ReorderThresholdPercent)
	inv.LowStock = domain.IsLowStock(inv.Quantity, inv.ReorderLevel, inv.ReorderThresholdPercent)
	inv.UpdatedAt = now

	_, err = pgTx.ExecContext(ctx, `
		UPDATE inventories
		SET quantity = $2, low_stock = $3, updated_at = $4
		WHERE product_id = $1
	`, inv.ProductID, inv.Quantity, inv.LowStock, inv.UpdatedAt)
	if err != nil {
		return nil, wrapTxErr(err)
	}

	if !wasLow && inv.LowStock {
		message := fmt.Sprintf("Low stock: %s (%s) is at %d, reorder point %d", productName, inv.SKU, inv.Quantity, inv.ReorderPoint)
		if err := s.notifyOwnersTx(ctx, pgTx, domain.NotificationLowStock, message, inv.ProductID, movement.SaleID, now); err != nil {
			return nil, err
		}
	}

	updated := inv
	return &updated, nil
}

func (s *Store) SetReorderConfig(ctx context.Context, productID string, reorderLevel int64, thresholdPercent int64) (*domain.Inventory, error) {
	if reorderLevel < 0 || thresholdPercent < 1 || thresholdPercent > 100 {
		return nil, fmt.Errorf("%w: reorder config out of range", store.ErrInvalidSale)
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var inv domain.Inventory
	var productName string
	err = pgTx.QueryRowContext(ctx, `
		SELECT i.product_id, i.sku, i.quantity, i.low_stock, p.name
		FROM inventories i
		JOIN products p ON p.id = i.product_id
		WHERE i.product_id = $1
		FOR UPDATE OF i
	`, productID).Scan(&inv.ProductID, &inv.SKU, &inv.Quantity, &inv.LowStock, &productName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, wrapTxErr(err)
	}

	now := time.Now().UTC()
	wasLow := inv.LowStock
	inv.ReorderLevel = reorderLevel
	inv.ReorderThresholdPercent = thresholdPercent
	inv.ReorderPoint = domain.ReorderPointFor(reorderLevel, thresholdPercent)
	inv.LowStock = domain.IsLowStock(inv.Quantity, reorderLevel, thresholdPercent)
	inv.UpdatedAt = now

	_, err = pgTx.ExecContext(ctx, `
		UPDATE inventories
		SET reorder_level = $2, reorder_threshold_percent = $3, low_stock = $4, updated_at = $5
		WHERE product_id = $1
	`, productID, reorderLevel, thresholdPercent, inv.LowStock, now)
	if err != nil {
		return nil, wrapTxErr(err)
	}

	if !wasLow && inv.LowStock {
		message := fmt.Sprintf("Low stock: %s (%s) is at %d, reorder point %d", productName, inv.SKU, inv.Quantity, inv.ReorderPoint)
		if err := s.notifyOwnersTx(ctx, pgTx, domain.NotificationLowStock, message, productID, "", now); err != nil {
			return nil, err
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, wrapTxErr(err)
	}
	updated := inv
	return &updated, nil
}

func (s *Store) ListMovements(ctx context.Context, filter domain.MovementFilter) ([]domain.StockMovement, error) {
	query := `
		SELECT id, product_id, sku, movement_type, direction, quantity, COALESCE(sale_id, ''), created_by, COALESCE(notes, ''), created_at
		FROM stock_movements
	`
	conditions := make([]string, 0, 3)
	args := make([]any, 0, 3)
	if filter.SKU != "" {
		args = append(args, filter.SKU)
		conditions = append(conditions, fmt.Sprintf("sku = $%d", len(args)))
	}
	if filter.MovementType != "" {
		args = append(args, filter.MovementType)
		conditions = append(conditions, fmt.Sprintf("movement_type = $%d", len(args)))
	}
	if filter.Direction != "" {
		args = append(args, filter.Direction)
		conditions = append(conditions, fmt.Sprintf("direction = $%d", len(args)))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.StockMovement, 0, 64)
	for rows.Next() {
		var m domain.StockMovement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.SKU, &m.MovementType, &m.Direction, &m.Quantity, &m.SaleID, &m.CreatedBy, &m.Notes, &m.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) CreateSale(ctx context.Context, draft store.SaleDraft) (*domain.SaleResponse, error) {
	sale := draft.Sale
	if len(sale.Items) == 0 {
		return nil, fmt.Errorf("%w: sale has no items", store.ErrInvalidSale)
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	needed := make(map[string]int64, len(sale.Items))
	for _, item := range sale.Items {
		needed[item.ProductID] += item.Quantity
	}
	productIDs := make([]string, 0, len(needed))
	for id := range needed {
		productIDs = append(productIDs, id)
	}
	sort.Strings(productIDs)

	// Lock every projection row in ascending product id order so two sales
	// sharing products in different basket orders cannot deadlock.
	lockRows, err := pgTx.QueryContext(ctx, `
		SELECT i.product_id, i.sku, i.quantity, p.active
		FROM inventories i
		JOIN products p ON p.id = i.product_id
		WHERE i.product_id = ANY($1)
		ORDER BY i.product_id
		FOR UPDATE OF i
	`, productIDs)
	if err != nil {
		return nil, wrapTxErr(err)
	}
	type lockedState struct {
		sku      string
		quantity int64
		active   bool
	}
	locked := make(map[string]lockedState, len(productIDs))
	for lockRows.Next() {
		var productID string
		var state lockedState
		if err := lockRows.Scan(&productID, &state.sku, &state.quantity, &state.active); err != nil {
			_ = lockRows.Close()
			return nil, err
		}
		locked[productID] = state
	}
	if err := lockRows.Err(); err != nil {
		_ = lockRows.Close()
		return nil, err
	}
	_ = lockRows.Close()

	for _, productID := range productIDs {
		state, exists := locked[productID]
		if !exists {
			return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, productID)
		}
		if !state.active {
			return nil, fmt.Errorf("%w: product %s is inactive", store.ErrInvalidSale, state.sku)
		}
		if state.quantity < needed[productID] {
			return nil, fmt.Errorf("%w: %s has %d, requested %d", store.ErrInsufficientStock, state.sku, state.quantity, needed[productID])
		}
	}

	now := time.Now().UTC()
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = now
	}

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO sales (
			id, cashier, status, payment_type, payment_status, payment_method,
			subtotal, discount, total, amount_paid, due_date, customer_name, customer_phone, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, sale.ID, sale.Cashier, sale.Status, sale.PaymentType, sale.PaymentStatus, nullIfEmpty(sale.PaymentMethod),
		sale.Subtotal, sale.Discount, sale.Total, sale.AmountPaid, nullIfEmpty(sale.DueDate),
		nullIfEmpty(sale.CustomerName), nullIfEmpty(sale.CustomerPhone), sale.CreatedAt)
	if err != nil {
		return nil, wrapTxErr(err)
	}

	for i := range sale.Items {
		item := &sale.Items[i]
		item.SaleID = sale.ID
		item.SKU = locked[item.ProductID].sku
		_, err := pgTx.ExecContext(ctx, `
			INSERT INTO sale_items (sale_id, product_id, sku, quantity, unit_price_snapshot, line_total)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, item.SaleID, item.ProductID, item.SKU, item.Quantity, item.UnitPriceSnapshot, item.LineTotal)
		if err != nil {
			return nil, wrapTxErr(err)
		}
	}

	for _, item := range sale.Items {
		if _, err := s.applyMovementTx(ctx, pgTx, domain.StockMovement{
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

	if draft.Payment != nil {
		payment := *draft.Payment
		if payment.ID == "" {
			payment.ID = xid.New("pay")
		}
		payment.SaleID = sale.ID
		if payment.ReceivedAt.IsZero() {
			payment.ReceivedAt = now
		}
		if err := insertPaymentTx(ctx, pgTx, payment); err != nil {
			return nil, err
		}
	}

	resp := domain.SaleResponse{Sale: sale}
	if sale.PaymentStatus == domain.PaymentStatusPaid {
		receipt, err := s.issueReceiptTx(ctx, pgTx, sale.ID, now)
		if err != nil {
			return nil, err
		}
		resp.Receipt = receipt
	} else if sale.PaymentType == domain.PaymentTypeCredit {
		invoice := domain.Invoice{
			ID:            xid.New("inv"),
			SaleID:        sale.ID,
			InvoiceNumber: docnum.Invoice(now),
			Status:        domain.InvoiceStatusOpen,
			DueDate:       sale.DueDate,
			IssuedAt:      now,
		}
		_, err := pgTx.ExecContext(ctx, `
			INSERT INTO invoices (id, sale_id, invoice_number, status, due_date, issued_at)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, invoice.ID, invoice.SaleID, invoice.InvoiceNumber, invoice.Status, nullIfEmpty(invoice.DueDate), invoice.IssuedAt)
		if err != nil {
			return nil, wrapTxErr(err)
		}
		resp.Invoice = &invoice
	}

	message := fmt.Sprintf("Sale %s completed by %s, total %s", sale.ID, sale.Cashier, sale.Total.StringFixed(2))
	if err := s.notifyOwnersTx(ctx, pgTx, domain.NotificationSaleMade, message, "", sale.ID, now); err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, wrapTxErr(err)
	}
	return &resp, nil
}

func (s *Store) GetSaleByID(ctx context.Context, id string) (*domain.Sale, error) {
	var sale domain.Sale
	err := s.db.QueryRowContext(ctx, `
		SELECT id, cashier, status, payment_type, payment_status, COALESCE(payment_method, ''),
			subtotal, discount, total, amount_paid, COALESCE(due_date, ''),
			COALESCE(customer_name, ''), COALESCE(customer_phone, ''), created_at
		FROM sales
		WHERE id = $1
	`, id).Scan(&sale.ID, &sale.Cashier, &sale.Status, &sale.PaymentType, &sale.PaymentStatus, &sale.PaymentMethod,
		&sale.Subtotal, &sale.Discount, &sale.Total, &sale.AmountPaid, &sale.DueDate,
		&sale.CustomerName, &sale.CustomerPhone, &sale.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	items, err := s.listSaleItems(ctx, id)
	if err != nil {
		return nil, err
	}
	sale.Items = items
	return &sale, nil
}

func (s *Store) listSaleItems(ctx context.Context, saleID string) ([]domain.SaleItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sale_id, product_id, sku, quantity, unit_price_snapshot, line_total
		FROM sale_items
		WHERE sale_id = $1
		ORDER BY product_id
	`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.SaleItem, 0, 8)
	for rows.Next() {
		var item domain.SaleItem
		if err := rows.Scan(&item.SaleID, &item.ProductID, &item.SKU, &item.Quantity, &item.UnitPriceSnapshot, &item.LineTotal); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	query := `
		SELECT id, cashier, status, payment_type, payment_status, COALESCE(payment_method, ''),
			subtotal, discount, total, amount_paid, COALESCE(due_date, ''),
			COALESCE(customer_name, ''), COALESCE(customer_phone, ''), created_at
		FROM sales
	`
	conditions := make([]string, 0, 2)
	args := make([]any, 0, 3)
	if filter.Cashier != "" {
		args = append(args, filter.Cashier)
		conditions = append(conditions, fmt.Sprintf("cashier = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 64)
	for rows.Next() {
		var sale domain.Sale
		if err := rows.Scan(&sale.ID, &sale.Cashier, &sale.Status, &sale.PaymentType, &sale.PaymentStatus, &sale.PaymentMethod,
			&sale.Subtotal, &sale.Discount, &sale.Total, &sale.AmountPaid, &sale.DueDate,
			&sale.CustomerName, &sale.CustomerPhone, &sale.CreatedAt); err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sales, nil
}

func (s *Store) AddPayment(ctx context.Context, payment domain.Payment) (*domain.SaleResponse, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var sale domain.Sale
	err = pgTx.QueryRowContext(ctx, `
		SELECT id, cashier, status, payment_type, payment_status, COALESCE(payment_method, ''),
			subtotal, discount, total, amount_paid, COALESCE(due_date, ''), created_at
		FROM sales
		WHERE id = $1
		FOR UPDATE
	`, payment.SaleID).Scan(&sale.ID, &sale.Cashier, &sale.Status, &sale.PaymentType, &sale.PaymentStatus, &sale.PaymentMethod,
		&sale.Subtotal, &sale.Discount, &sale.Total, &sale.AmountPaid, &sale.DueDate, &sale.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, wrapTxErr(err)
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
	if err := insertPaymentTx(ctx, pgTx, payment); err != nil {
		return nil, err
	}

	sale.AmountPaid = sale.AmountPaid.Add(payment.Amount)
	if sale.PaymentMethod == "" {
		sale.PaymentMethod = payment.Method
	}
	if sale.AmountPaid.GreaterThanOrEqual(sale.Total) {
		sale.PaymentStatus = domain.PaymentStatusPaid
	} else {
		sale.PaymentStatus = domain.PaymentStatusPartial
	}

	_, err = pgTx.ExecContext(ctx, `
		UPDATE sales
		SET amount_paid = $2, payment_status = $3, payment_method = $4
		WHERE id = $1
	`, sale.ID, sale.AmountPaid, sale.PaymentStatus, nullIfEmpty(sale.PaymentMethod))
	if err != nil {
		return nil, wrapTxErr(err)
	}

	resp := domain.SaleResponse{Sale: sale}
	if sale.PaymentStatus == domain.PaymentStatusPaid {
		_, err = pgTx.ExecContext(ctx, `
			UPDATE invoices
			SET status = $2
			WHERE sale_id = $1 AND status = $3
		`, sale.ID, domain.InvoiceStatusPaid, domain.InvoiceStatusOpen)
		if err != nil {
			return nil, wrapTxErr(err)
		}
		receipt, err := s.issueReceiptTx(ctx, pgTx, sale.ID, now)
		if err != nil {
			return nil, err
		}
		resp.Receipt = receipt
	}

	var invoice domain.Invoice
	err = pgTx.QueryRowContext(ctx, `
		SELECT id, sale_id, invoice_number, status, COALESCE(due_date, ''), issued_at
		FROM invoices
		WHERE sale_id = $1
	`, sale.ID).Scan(&invoice.ID, &invoice.SaleID, &invoice.InvoiceNumber, &invoice.Status, &invoice.DueDate, &invoice.IssuedAt)
	if err == nil {
		resp.Invoice = &invoice
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, wrapTxErr(err)
	}

	if err := pgTx.Commit(); err != nil {
		return nil, wrapTxErr(err)
	}
	return &resp, nil
}

func (s *Store) VoidSale(ctx context.Context, saleID string, voidedBy string, notes string) (*domain.Sale, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var sale domain.Sale
	err = pgTx.QueryRowContext(ctx, `
		SELECT id, cashier, status, payment_type, payment_status, COALESCE(payment_method, ''),
			subtotal, discount, total, amount_paid, COALESCE(due_date, ''), created_at
		FROM sales
		WHERE id = $1
		FOR UPDATE
	`, saleID).Scan(&sale.ID, &sale.Cashier, &sale.Status, &sale.PaymentType, &sale.PaymentStatus, &sale.PaymentMethod,
		&sale.Subtotal, &sale.Discount, &sale.Total, &sale.AmountPaid, &sale.DueDate, &sale.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, wrapTxErr(err)
	}
	if sale.Status == domain.SaleStatusVoided {
		return nil, store.ErrAlreadyVoided
	}

	itemRows, err := pgTx.QueryContext(ctx, `
		SELECT product_id, sku, quantity, unit_price_snapshot, line_total
		FROM sale_items
		WHERE sale_id = $1
		ORDER BY product_id
	`, saleID)
	if err != nil {
		return nil, wrapTxErr(err)
	}
	items := make([]domain.SaleItem, 0, 8)
	for itemRows.Next() {
		item := domain.SaleItem{SaleID: saleID}
		if err := itemRows.Scan(&item.ProductID, &item.SKU, &item.Quantity, &item.UnitPriceSnapshot, &item.LineTotal); err != nil {
			_ = itemRows.Close()
			return nil, err
		}
		items = append(items, item)
	}
	if err := itemRows.Err(); err != nil {
		_ = itemRows.Close()
		return nil, err
	}
	_ = itemRows.Close()

	now := time.Now().UTC()
	for _, item := range items {
		if _, err := s.applyMovementTx(ctx, pgTx, domain.StockMovement{
			ProductID:    item.ProductID,
			MovementType: domain.MovementVoid,
			Direction:    domain.DirectionIn,
			Quantity:     item.Quantity,
			SaleID:       saleID,
			CreatedBy:    voidedBy,
			Notes:        notes,
			CreatedAt:    now,
		}); err != nil {
			return nil, err
		}
	}

	_, err = pgTx.ExecContext(ctx, `
		UPDATE sales
		SET status = $2
		WHERE id = $1 AND status = $3
	`, saleID, domain.SaleStatusVoided, domain.SaleStatusCompleted)
	if err != nil {
		return nil, wrapTxErr(err)
	}

	message := fmt.Sprintf("Sale %s voided by %s", saleID, voidedBy)
	if err := s.notifyOwnersTx(ctx, pgTx, domain.NotificationSaleVoided, message, "", saleID, now); err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, wrapTxErr(err)
	}

	sale.Status = domain.SaleStatusVoided
	sale.Items = items
	return &sale, nil
}

func (s *Store) ListPayments(ctx context.Context, saleID string) ([]domain.Payment, error) {
	if _, err := s.GetSaleByID(ctx, saleID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sale_id, method, amount, COALESCE(reference, ''), received_by, received_at
		FROM payments
		WHERE sale_id = $1
		ORDER BY received_at, id
	`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]domain.Payment, 0, 4)
	for rows.Next() {
		var p domain.Payment
		if err := rows.Scan(&p.ID, &p.SaleID, &p.Method, &p.Amount, &p.Reference, &p.ReceivedBy, &p.ReceivedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return payments, nil
}

func (s *Store) GetReceiptBySale(ctx context.Context, saleID string) (*domain.Receipt, error) {
	var receipt domain.Receipt
	err := s.db.QueryRowContext(ctx, `
		SELECT id, sale_id, receipt_number, issued_at
		FROM receipts
		WHERE sale_id = $1
	`, saleID).Scan(&receipt.ID, &receipt.SaleID, &receipt.ReceiptNumber, &receipt.IssuedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &receipt, nil
}

func (s *Store) GetInvoiceBySale(ctx context.Context, saleID string) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := s.db.QueryRowContext(ctx, `
		SELECT id, sale_id, invoice_number, status, COALESCE(due_date, ''), issued_at
		FROM invoices
		WHERE sale_id = $1
	`, saleID).Scan(&invoice.ID, &invoice.SaleID, &invoice.InvoiceNumber, &invoice.Status, &invoice.DueDate, &invoice.IssuedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &invoice, nil
}

func (s *Store) ListNotifications(ctx context.Context, recipient string, unreadOnly bool, limit int) ([]domain.Notification, error) {
	query := `
		SELECT id, recipient, type, message, COALESCE(product_id, ''), COALESCE(sale_id, ''), is_read, created_at
		FROM notifications
		WHERE recipient = $1
	`
	args := []any{recipient}
	if unreadOnly {
		query += " AND is_read = false"
	}
	query += " ORDER BY created_at DESC, id DESC"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.Notification, 0, 32)
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.Recipient, &n.Type, &n.Message, &n.ProductID, &n.SaleID, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, id string, recipient string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE notifications
		SET is_read = true
		WHERE id = $1 AND recipient = $2
	`, id, recipient)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.Username == "" {
		return store.ErrInvalidSale
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: username %s already exists", store.ErrInvalidSale, user.Username)
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var u domain.UserAccount
		if err := rows.Scan(&u.Username, &u.Password, &u.Role, &u.Active, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET password = $2
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// issueReceiptTx allocates the next per-year sequence number and inserts the
// receipt. The sequence counter row serializes concurrent issuance; the
// unique sale_id constraint makes issuance idempotent per sale.
func (s *Store) issueReceiptTx(ctx context.Context, pgTx *sql.Tx, saleID string, now time.Time) (*domain.Receipt, error) {
	var existing domain.Receipt
	err := pgTx.QueryRowContext(ctx, `
		SELECT id, sale_id, receipt_number, issued_at
		FROM receipts
		WHERE sale_id = $1
	`, saleID).Scan(&existing.ID, &existing.SaleID, &existing.ReceiptNumber, &existing.IssuedAt)
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, wrapTxErr(err)
	}

	year := now.Year()
	var seq int64
	err = pgTx.QueryRowContext(ctx, `
		INSERT INTO receipt_sequences (year, last_seq)
		VALUES ($1, 1)
		ON CONFLICT (year)
		DO UPDATE SET last_seq = receipt_sequences.last_seq + 1
		RETURNING last_seq
	`, year).Scan(&seq)
	if err != nil {
		return nil, wrapTxErr(err)
	}

	receipt := domain.Receipt{
		ID:            xid.New("rcpt"),
		SaleID:        saleID,
		ReceiptNumber: docnum.Receipt(year, seq),
		IssuedAt:      now,
	}
	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO receipts (id, sale_id, receipt_number, issued_at)
		VALUES ($1,$2,$3,$4)
	`, receipt.ID, receipt.SaleID, receipt.ReceiptNumber, receipt.IssuedAt)
	if err != nil {
		return nil, wrapTxErr(err)
	}
	return &receipt, nil
}

func insertPaymentTx(ctx context.Context, pgTx *sql.Tx, payment domain.Payment) error {
	_, err := pgTx.ExecContext(ctx, `
		INSERT INTO payments (id, sale_id, method, amount, reference, received_by, received_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, payment.ID, payment.SaleID, payment.Method, payment.Amount, nullIfEmpty(payment.Reference), payment.ReceivedBy, payment.ReceivedAt)
	return wrapTxErr(err)
}

func (s *Store) notifyOwnersTx(ctx context.Context, pgTx *sql.Tx, notifType string, message string, productID string, saleID string, now time.Time) error {
	rows, err := pgTx.QueryContext(ctx, `
		SELECT username
		FROM users
		WHERE role = $1 AND active = true
	`, domain.RoleOwner)
	if err != nil {
		return wrapTxErr(err)
	}
	owners := make([]string, 0, 4)
	for rows.Next() {
		var username string
		if err := rows.Scan(&username); err != nil {
			_ = rows.Close()
			return err
		}
		owners = append(owners, username)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	_ = rows.Close()

	for _, owner := range owners {
		_, err := pgTx.ExecContext(ctx, `
			INSERT INTO notifications (id, recipient, type, message, product_id, sale_id, is_read, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,false,$7)
		`, xid.New("ntf"), owner, notifType, message, nullIfEmpty(productID), nullIfEmpty(saleID), now)
		if err != nil {
			return wrapTxErr(err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// wrapTxErr maps transient serialization and lock failures onto
// store.ErrContention so callers can retry the whole operation.
func wrapTxErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03":
			return fmt.Errorf("%w: %s", store.ErrContention, pgErr.Code)
		}
	}
	return err
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}
