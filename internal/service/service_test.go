package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"dukapos/backend/internal/cache"
	"dukapos/backend/internal/domain"
	"dukapos/backend/internal/restock"
	"dukapos/backend/internal/store"
	"dukapos/backend/internal/store/memory"
)

func newTestService() *Service {
	repo := memory.NewSeeded()
	advisor := restock.NewAdvisor(cache.NoopAdviceCache{}, 5*time.Second)
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return New(repo, advisor, logger)
}

func ownerCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "owner", Role: domain.RoleOwner})
}

func cashierCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "cashier", Role: domain.RoleCashier})
}

func createProductWithStock(t *testing.T, svc *Service, sku string, price string, qty int64) domain.Product {
	t.Helper()
	product, err := svc.CreateProduct(ownerCtx(), domain.ProductCreateRequest{
		SKU:          sku,
		Name:         "Test " + sku,
		SellingPrice: decimal.RequireFromString(price),
		CostPrice:    decimal.RequireFromString(price).Mul(decimal.RequireFromString("0.8")),
	})
	if err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	if qty > 0 {
		if _, err := svc.SupplyStock(ownerCtx(), domain.StockOpRequest{SKU: sku, Quantity: qty}); err != nil {
			t.Fatalf("supply stock failed: %v", err)
		}
	}
	return product
}

func TestCreateSaleUpdatesInventoryAndTotals(t *testing.T) {
	svc := newTestService()
	createProductWithStock(t, svc, "SKU-SODA-01", "60.00", 50)

	resp, err := svc.CreateSale(cashierCtx(), domain.SaleCreateRequest{
		PaymentType:   domain.PaymentTypePayNow,
		PaymentMethod: "cash",
		Items:         []domain.SaleLineRequest{{SKU: "SKU-SODA-01", Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}
	if resp.Sale.Total.StringFixed(2) != "120.00" {
		t.Fatalf("expected total 120.00, got %s", resp.Sale.Total.StringFixed(2))
	}
	if resp.Sale.PaymentStatus != domain.PaymentStatusPaid {
		t.Fatalf("expected PAID status, got %s", resp.Sale.PaymentStatus)
	}
	if resp.Receipt == nil || !strings.HasPrefix(resp.Receipt.ReceiptNumber, "RCPT-") {
		t.Fatalf("expected receipt with RCPT- prefix, got %+v", resp.Receipt)
	}

	inv, err := svc.GetInventory(cashierCtx(), "SKU-SODA-01", "")
	if err != nil {
		t.Fatalf("get inventory failed: %v", err)
	}
	if inv.Quantity != 48 {
		t.Fatalf("expected quantity 48 after sale, got %d", inv.Quantity)
	}

	movements, err := svc.ListMovements(cashierCtx(), domain.MovementFilter{SKU: "SKU-SODA-01", MovementType: domain.MovementSale})
	if err != nil {
		t.Fatalf("list movements failed: %v", err)
	}
	if len(movements) != 1 || movements[0].Direction != domain.DirectionOut || movements[0].Quantity != 2 {
		t.Fatalf("expected one SALE/OUT movement of 2, got %+v", movements)
	}

	notifications, err := svc.ListNotifications(ownerCtx(), false, 0)
	if err != nil {
		t.Fatalf("list notifications failed: %v", err)
	}
	saleMade := 0
	for _, n := range notifications {
		if n.Type == domain.NotificationSaleMade && n.SaleID == resp.Sale.ID {
			saleMade++
		}
	}
	if saleMade != 1 {
		t.Fatalf("expected exactly one SALE_MADE notification for owner, got %d", saleMade)
	}
}

func TestCreateSaleInsufficientStockLeavesStateUntouched(t *testing.T) {
	svc := newTestService()
	createProductWithStock(t, svc, "SKU-RARE-01", "99.00", 1)

	_, err := svc.CreateSale(cashierCtx(), domain.SaleCreateRequest{
		PaymentType:   domain.PaymentTypePayNow,
		PaymentMethod: "cash",
		Items:         []domain.SaleLineRequest{{SKU: "SKU-RARE-01", Quantity: 2}},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	inv, err := svc.GetInventory(cashierCtx(), "SKU-RARE-01", "")
	if err != nil {
		t.Fatalf("get inventory failed: %v", err)
	}
	if inv.Quantity != 1 {
		t.Fatalf("expected quantity unchanged at 1, got %d", inv.Quantity)
	}

	movements, err := svc.ListMovements(cashierCtx(), domain.MovementFilter{SKU: "SKU-RARE-01", MovementType: domain.MovementSale})
	if err != nil {
		t.Fatalf("list movements failed: %v", err)
	}
	if len(movements) != 0 {
		t.Fatalf("expected no SALE movements after failed sale, got %d", len(movements))
	}

	sales, err := svc.ListSales(cashierCtx(), domain.SaleFilter{})
	if err != nil {
		t.Fatalf("list sales failed: %v", err)
	}
	if len(sales) != 0 {
		t.Fatalf("expected no sales recorded, got %d", len(sales))
	}
}

func TestCreateSaleDuplicateLinesAggregateAgainstStock(t *testing.T) {
	svc := newTestService()
	createProductWithStock(t, svc, "SKU-DUP-01", "10.00", 3)

	_, err := svc.CreateSale(cashierCtx(), domain.SaleCreateRequest{
		PaymentType:   domain.PaymentTypePayNow,
		PaymentMethod: "cash",
		Items: []domain.SaleLineRequest{
			{SKU: "SKU-DUP-01", Quantity: 2},
			{SKU: "SKU-DUP-01", Quantity: 2},
		},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected aggregated quantity to exceed stock, got %v", err)
	}
}

func TestCreateSaleCreditIssuesOpenInvoice(t *testing.T) {
	svc := newTestService()
	createProductWithStock(t, svc, "SKU-CRED-01", "60.00", 10)

	resp, err := svc.CreateSale(cashierCtx(), domain.SaleCreateRequest{
		PaymentType:  domain.PaymentTypeCredit,
		DueDate:      "2026-09-30",
		CustomerName: "Mama Njeri",
		Items:        []domain.SaleLineRequest{{SKU: "SKU-CRED-01", Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("credit sale failed: %v", err)
	}
	if resp.Sale.PaymentStatus != domain.PaymentStatusUnpaid {
		t.Fatalf("expected UNPAID, got %s", resp.Sale.PaymentStatus)
	}
	if resp.Receipt != nil {
		t.Fatalf("expected no receipt for unpaid credit sale")
	}
	if resp.Invoice == nil || resp.Invoice.Status != domain.InvoiceStatusOpen {
		t.Fatalf("expected OPEN invoice, got %+v", resp.Invoice)
	}
	if !strings.HasPrefix(resp.Invoice.InvoiceNumber, "INV-") {
		t.Fatalf("unexpected invoice number %s", resp.Invoice.InvoiceNumber)
	}

	if _, err := svc.GetReceipt(cashierCtx(), resp.Sale.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for receipt on unpaid sale, got %v", err)
	}
}

func TestAddPaymentSettlesCreditSale(t *testing.T) {
	svc := newTestService()
	createProductWithStock(t, svc, "SKU-CRED-02", "60.00", 10)

	created, err := svc.CreateSale(cashierCtx(), domain.SaleCreateRequest{
		PaymentType: domain.PaymentTypeCredit,
		DueDate:     "2026-09-30",
		Items:       []domain.SaleLineRequest{{SKU: "SKU-CRED-02", Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("credit sale failed: %v", err)
	}

	partial, err := svc.AddPayment(cashierCtx(), created.Sale.ID, domain.PaymentCreateRequest{
		Method: "mpesa",
		Amount: decimal.RequireFromString("50.00"),
	})
	if err != nil {
		t.Fatalf("first payment failed: %v", err)
	}
	if partial.Sale.PaymentStatus != domain.PaymentStatusPartial {
		t.Fatalf("expected PARTIAL after first payment, got %s", partial.Sale.PaymentStatus)
	}
	if partial.Receipt != nil {
		t.Fatalf("expected no receipt while balance is outstanding")
	}

	settled, err := svc.AddPayment(cashierCtx(), created.Sale.ID, domain.PaymentCreateRequest{
		Method: "cash",
		Amount: decimal.RequireFromString("70.00"),
	})
	if err != nil {
		t.Fatalf("settling payment failed: %v", err)
	}
	if settled.Sale.PaymentStatus != domain.PaymentStatusPaid {
		t.Fatalf("expected PAID, got %s", settled.Sale.PaymentStatus)
	}
	if settled.Receipt == nil {
		t.Fatalf("expected receipt on full settlement")
	}
	if settled.Invoice == nil || settled.Invoice.Status != domain.InvoiceStatusPaid {
		t.Fatalf("expected invoice marked PAID, got %+v", settled.Invoice)
	}

	receipt, err := svc.GetReceipt(cashierCtx(), created.Sale.ID)
	if err != nil {
		t.Fatalf("get receipt failed: %v", err)
	}
	if receipt.ReceiptNumber != settled.Receipt.ReceiptNumber {
		t.Fatalf("expected a single receipt per sale, got %s vs %s", receipt.ReceiptNumber, settled.Receipt.ReceiptNumber)
	}

	payments, err := svc.ListPayments(cashierCtx(), created.Sale.ID)
	if err != nil {
		t.Fatalf("list payments failed: %v", err)
	}
	if len(payments) != 2 {
		t.Fatalf("expected 2 payments, got %d", len(payments))
	}
}

func TestAddPaymentRejectsOverpayment(t *testing.T) {
	svc := newTestService()
	createProductWithStock(t, svc, "SKU-CRED-03", "60.00", 10)

	created, err := svc.CreateSale(cashierCtx(), domain.SaleCreateRequest{
		PaymentType: domain.PaymentTypeCredit,
		DueDate:     "2026-09-30",
		Items:       []domain.SaleLineRequest{{SKU: "SKU-CRED-03", Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("credit sale failed: %v", err)
	}

	_, err = svc.AddPayment(cashierCtx(), created.Sale.ID, domain.PaymentCreateRequest{
		Method: "cash",
		Amount: decimal.RequireFromString("150.00"),
	})
	if !errors.Is(err, store.ErrInvalidSale) {
		t.Fatalf("expected ErrInvalidSale for overpayment, got %v", err)
	}

	sale, err := svc.GetSale(cashierCtx(), created.Sale.ID)
	if err != nil {
		t.Fatalf("get sale failed: %v", err)
	}
	if !sale.AmountPaid.IsZero() {
		t.Fatalf("expected amount paid unchanged at 0, got %s", sale.AmountPaid.StringFixed(2))
	}
}

func TestVoidSaleRestoresStockAndRejectsDoubleVoid(t *testing.T) {
	svc := newTestService()
	createProductWithStock(t, svc, "SKU-VOID-01", "60.00", 50)

	created, err := svc.CreateSale(cashierCtx(), domain.SaleCreateRequest{
		PaymentType:   domain.PaymentTypePayNow,
		PaymentMethod: "cash",
		Items:         []domain.SaleLineRequest{{SKU: "SKU-VOID-01", Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}

	voided, err := svc.VoidSale(ownerCtx(), created.Sale.ID, domain.VoidSaleRequest{Notes: "wrong item"})
	if err != nil {
		t.Fatalf("void failed: %v", err)
	}
	if voided.Status != domain.SaleStatusVoided {
		t.Fatalf("expected VOIDED status, got %s", voided.Status)
	}

	inv, err := svc.GetInventory(ownerCtx(), "SKU-VOID-01", "")
	if err != nil {
		t.Fatalf("get inventory failed: %v", err)
	}
	if inv.Quantity != 50 {
		t.Fatalf("expected stock restored to 50, got %d", inv.Quantity)
	}

	movements, err := svc.ListMovements(ownerCtx(), domain.MovementFilter{SKU: "SKU-VOID-01", MovementType: domain.MovementVoid})
	if err != nil {
		t.Fatalf("list movements failed: %v", err)
	}
	if len(movements) != 1 || movements[0].Direction != domain.DirectionIn {
		t.Fatalf("expected one VOID/IN movement, got %+v", movements)
	}

	// Voiding reverses stock but never claws back money already taken.
	payments, err := svc.ListPayments(ownerCtx(), created.Sale.ID)
	if err != nil {
		t.Fatalf("list payments failed: %v", err)
	}
	if len(payments) != 1 {
		t.Fatalf("expected payment record untouched by void, got %d payments", len(payments))
	}

	_, err = svc.VoidSale(ownerCtx(), created.Sale.ID, domain.VoidSaleRequest{})
	if !errors.Is(err, store.ErrAlreadyVoided) {
		t.Fatalf("expected ErrAlreadyVoided on second void, got %v", err)
	}
}

func TestVoidSaleRequiresOwner(t *testing.T) {
	svc := newTestService()
	createProductWithStock(t, svc, "SKU-VOID-02", "60.00", 10)

	created, err := svc.CreateSale(cashierCtx(), domain.SaleCreateRequest{
		PaymentType:   domain.PaymentTypePayNow,
		PaymentMethod: "cash",
		Items:         []domain.SaleLineRequest{{SKU: "SKU-VOID-02", Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}

	_, err = svc.VoidSale(cashierCtx(), created.Sale.ID, domain.VoidSaleRequest{})
	if err == nil || !strings.Contains(err.Error(), "owner role required") {
		t.Fatalf("expected owner role required, got %v", err)
	}
}

func TestLowStockNotificationFiresOnceOnCrossing(t *testing.T) {
	svc := newTestService()
	product := createProductWithStock(t, svc, "SKU-LOW-01", "20.00", 12)

	if _, err := svc.SetReorderConfig(ownerCtx(), domain.ReorderConfigRequest{
		SKU:                     "SKU-LOW-01",
		ReorderLevel:            100,
		ReorderThresholdPercent: 10,
	}); err != nil {
		t.Fatalf("set reorder config failed: %v", err)
	}

	countLowStock := func() int {
		notifications, err := svc.ListNotifications(ownerCtx(), false, 0)
		if err != nil {
			t.Fatalf("list notifications failed: %v", err)
		}
		count := 0
		for _, n := range notifications {
			if n.Type == domain.NotificationLowStock && n.ProductID == product.ID {
				count++
			}
		}
		return count
	}

	sell := func(qty int64) {
		t.Helper()
		_, err := svc.CreateSale(cashierCtx(), domain.SaleCreateRequest{
			PaymentType:   domain.PaymentTypePayNow,
			PaymentMethod: "cash",
			Items:         []domain.SaleLineRequest{{SKU: "SKU-LOW-01", Quantity: qty}},
		})
		if err != nil {
			t.Fatalf("sale failed: %v", err)
		}
	}

	sell(3) // 12 -> 9, crosses reorder point 10
	if got := countLowStock(); got != 1 {
		t.Fatalf("expected exactly one low stock notification after crossing, got %d", got)
	}

	sell(1) // 9 -> 8, still low, no new notification
	if got := countLowStock(); got != 1 {
		t.Fatalf("expected no additional notification while already low, got %d", got)
	}

	if _, err := svc.SupplyStock(ownerCtx(), domain.StockOpRequest{SKU: "SKU-LOW-01", Quantity: 12}); err != nil {
		t.Fatalf("supply failed: %v", err)
	}

	sell(11) // 20 -> 9, crosses again
	if got := countLowStock(); got != 2 {
		t.Fatalf("expected a second notification after re-crossing, got %d", got)
	}
}

func TestReorderConfigChangeTriggersLowStockOnce(t *testing.T) {
	svc := newTestService()
	product := createProductWithStock(t, svc, "SKU-CFG-01", "45.00", 15)

	countLowStock := func() int {
		notifications, err := svc.ListNotifications(ownerCtx(), false, 0)
		if err != nil {
			t.Fatalf("list notifications failed: %v", err)
		}
		count := 0
		for _, n := range notifications {
			if n.Type == domain.NotificationLowStock && n.ProductID == product.ID {
				count++
			}
		}
		return count
	}

	// Quantity 15 sits above the default reorder point, so no notification yet.
	if got := countLowStock(); got != 0 {
		t.Fatalf("expected no low stock notifications before reconfig, got %d", got)
	}

	// Raising the reorder point to 20 puts quantity 15 below it.
	inv, err := svc.SetReorderConfig(ownerCtx(), domain.ReorderConfigRequest{
		SKU:                     "SKU-CFG-01",
		ReorderLevel:            200,
		ReorderThresholdPercent: 10,
	})
	if err != nil {
		t.Fatalf("set reorder config failed: %v", err)
	}
	if inv.ReorderPoint != 20 || !inv.LowStock {
		t.Fatalf("expected reorder point 20 with low stock set, got point %d low %v", inv.ReorderPoint, inv.LowStock)
	}
	if got := countLowStock(); got != 1 {
		t.Fatalf("expected exactly one low stock notification after reconfig crossing, got %d", got)
	}

	// Raising the point again while already low stays silent.
	inv, err = svc.SetReorderConfig(ownerCtx(), domain.ReorderConfigRequest{
		SKU:                     "SKU-CFG-01",
		ReorderLevel:            250,
		ReorderThresholdPercent: 10,
	})
	if err != nil {
		t.Fatalf("second reorder config failed: %v", err)
	}
	if inv.ReorderPoint != 25 || !inv.LowStock {
		t.Fatalf("expected reorder point 25 with low stock still set, got point %d low %v", inv.ReorderPoint, inv.LowStock)
	}
	if got := countLowStock(); got != 1 {
		t.Fatalf("expected no additional notification while already low, got %d", got)
	}
}

func TestAddPaymentRejectedOnVoidedSale(t *testing.T) {
	svc := newTestService()
	createProductWithStock(t, svc, "SKU-VOID-03", "60.00", 10)

	created, err := svc.CreateSale(cashierCtx(), domain.SaleCreateRequest{
		PaymentType: domain.PaymentTypeCredit,
		DueDate:     "2026-09-30",
		Items:       []domain.SaleLineRequest{{SKU: "SKU-VOID-03", Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("credit sale failed: %v", err)
	}

	if _, err := svc.VoidSale(ownerCtx(), created.Sale.ID, domain.VoidSaleRequest{Notes: "customer cancelled"}); err != nil {
		t.Fatalf("void failed: %v", err)
	}

	_, err = svc.AddPayment(cashierCtx(), created.Sale.ID, domain.PaymentCreateRequest{
		Method: "cash",
		Amount: decimal.RequireFromString("10.00"),
	})
	if !errors.Is(err, store.ErrInvalidSale) {
		t.Fatalf("expected ErrInvalidSale paying a voided sale, got %v", err)
	}

	sale, err := svc.GetSale(cashierCtx(), created.Sale.ID)
	if err != nil {
		t.Fatalf("get sale failed: %v", err)
	}
	if !sale.AmountPaid.IsZero() {
		t.Fatalf("expected amount paid unchanged at 0, got %s", sale.AmountPaid.StringFixed(2))
	}
	payments, err := svc.ListPayments(cashierCtx(), created.Sale.ID)
	if err != nil {
		t.Fatalf("list payments failed: %v", err)
	}
	if len(payments) != 0 {
		t.Fatalf("expected no payment records on voided sale, got %d", len(payments))
	}
}

func TestCreateSaleNormalizationRules(t *testing.T) {
	svc := newTestService()
	createProductWithStock(t, svc, "SKU-NORM-01", "30.00", 20)

	_, err := svc.CreateSale(cashierCtx(), domain.SaleCreateRequest{
		PaymentType: domain.PaymentTypePayNow,
		Items:       []domain.SaleLineRequest{{SKU: "SKU-NORM-01", Quantity: 1}},
	})
	if !errors.Is(err, store.ErrInvalidSale) {
		t.Fatalf("expected PAY_NOW without method to fail, got %v", err)
	}

	_, err = svc.CreateSale(cashierCtx(), domain.SaleCreateRequest{
		PaymentType: domain.PaymentTypeCredit,
		Items:       []domain.SaleLineRequest{{SKU: "SKU-NORM-01", Quantity: 1}},
	})
	if !errors.Is(err, store.ErrInvalidSale) {
		t.Fatalf("expected CREDIT without due date to fail, got %v", err)
	}

	_, err = svc.CreateSale(cashierCtx(), domain.SaleCreateRequest{
		PaymentType: domain.PaymentTypeCredit,
		DueDate:     "30/09/2026",
		Items:       []domain.SaleLineRequest{{SKU: "SKU-NORM-01", Quantity: 1}},
	})
	if !errors.Is(err, store.ErrInvalidSale) {
		t.Fatalf("expected malformed due date to fail, got %v", err)
	}

	amount := decimal.RequireFromString("25.00")
	_, err = svc.CreateSale(cashierCtx(), domain.SaleCreateRequest{
		PaymentType: domain.PaymentTypeCredit,
		DueDate:     "2026-09-30",
		AmountPaid:  &amount,
		Items:       []domain.SaleLineRequest{{SKU: "SKU-NORM-01", Quantity: 1}},
	})
	if !errors.Is(err, store.ErrInvalidSale) {
		t.Fatalf("expected CREDIT deposit without method to fail, got %v", err)
	}

	over := decimal.RequireFromString("500.00")
	_, err = svc.CreateSale(cashierCtx(), domain.SaleCreateRequest{
		PaymentType:   domain.PaymentTypePayNow,
		PaymentMethod: "cash",
		AmountPaid:    &over,
		Items:         []domain.SaleLineRequest{{SKU: "SKU-NORM-01", Quantity: 1}},
	})
	if !errors.Is(err, store.ErrInvalidSale) {
		t.Fatalf("expected amount paid above total to fail, got %v", err)
	}

	deposit := decimal.RequireFromString("10.00")
	resp, err := svc.CreateSale(cashierCtx(), domain.SaleCreateRequest{
		PaymentType:   domain.PaymentTypeCredit,
		PaymentMethod: "mpesa",
		DueDate:       "2026-09-30",
		AmountPaid:    &deposit,
		Items:         []domain.SaleLineRequest{{SKU: "SKU-NORM-01", Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("credit sale with deposit failed: %v", err)
	}
	if resp.Sale.PaymentStatus != domain.PaymentStatusPartial {
		t.Fatalf("expected PARTIAL for credit deposit, got %s", resp.Sale.PaymentStatus)
	}
}

func TestCashierSeesOnlyOwnSales(t *testing.T) {
	svc := newTestService()
	createProductWithStock(t, svc, "SKU-VIS-01", "15.00", 20)

	ownSale, err := svc.CreateSale(cashierCtx(), domain.SaleCreateRequest{
		PaymentType:   domain.PaymentTypePayNow,
		PaymentMethod: "cash",
		Items:         []domain.SaleLineRequest{{SKU: "SKU-VIS-01", Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("cashier sale failed: %v", err)
	}

	ownerSale, err := svc.CreateSale(ownerCtx(), domain.SaleCreateRequest{
		PaymentType:   domain.PaymentTypePayNow,
		PaymentMethod: "cash",
		Items:         []domain.SaleLineRequest{{SKU: "SKU-VIS-01", Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("owner sale failed: %v", err)
	}

	sales, err := svc.ListSales(cashierCtx(), domain.SaleFilter{})
	if err != nil {
		t.Fatalf("cashier list sales failed: %v", err)
	}
	if len(sales) != 1 || sales[0].ID != ownSale.Sale.ID {
		t.Fatalf("expected cashier to see only own sale, got %d sales", len(sales))
	}

	if _, err := svc.GetSale(cashierCtx(), ownerSale.Sale.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected others' sales to be hidden as not found, got %v", err)
	}

	ownerView, err := svc.ListSales(ownerCtx(), domain.SaleFilter{})
	if err != nil {
		t.Fatalf("owner list sales failed: %v", err)
	}
	if len(ownerView) != 2 {
		t.Fatalf("expected owner to see both sales, got %d", len(ownerView))
	}
}

func TestConcurrentSalesOfLastUnit(t *testing.T) {
	svc := newTestService()
	createProductWithStock(t, svc, "SKU-RACE-01", "40.00", 1)

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateSale(cashierCtx(), domain.SaleCreateRequest{
				PaymentType:   domain.PaymentTypePayNow,
				PaymentMethod: "cash",
				Items:         []domain.SaleLineRequest{{SKU: "SKU-RACE-01", Quantity: 1}},
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded, failed := 0, 0
	for err := range results {
		if err == nil {
			succeeded++
		} else if errors.Is(err, store.ErrInsufficientStock) {
			failed++
		} else {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 || failed != 1 {
		t.Fatalf("expected exactly one winner and one insufficient-stock loser, got %d/%d", succeeded, failed)
	}

	inv, err := svc.GetInventory(cashierCtx(), "SKU-RACE-01", "")
	if err != nil {
		t.Fatalf("get inventory failed: %v", err)
	}
	if inv.Quantity != 0 {
		t.Fatalf("expected quantity 0, got %d", inv.Quantity)
	}
}

func TestStockOperationsRoleGating(t *testing.T) {
	svc := newTestService()
	createProductWithStock(t, svc, "SKU-GATE-01", "25.00", 10)

	if _, err := svc.SupplyStock(cashierCtx(), domain.StockOpRequest{SKU: "SKU-GATE-01", Quantity: 5}); err == nil || !strings.Contains(err.Error(), "owner role required") {
		t.Fatalf("expected cashier supply to be rejected, got %v", err)
	}
	if _, err := svc.AdjustStock(cashierCtx(), domain.StockAdjustRequest{SKU: "SKU-GATE-01", Quantity: 1, Direction: domain.DirectionOut}); err == nil || !strings.Contains(err.Error(), "owner role required") {
		t.Fatalf("expected cashier adjust to be rejected, got %v", err)
	}

	inv, err := svc.ReturnStock(cashierCtx(), domain.StockOpRequest{SKU: "SKU-GATE-01", Quantity: 2, Notes: "customer return"})
	if err != nil {
		t.Fatalf("cashier return should be allowed: %v", err)
	}
	if inv.Quantity != 12 {
		t.Fatalf("expected quantity 12 after return, got %d", inv.Quantity)
	}
}

func TestRestockAdviceSuggestsLowStockProducts(t *testing.T) {
	svc := newTestService()
	createProductWithStock(t, svc, "SKU-ADV-01", "35.00", 12)

	if _, err := svc.SetReorderConfig(ownerCtx(), domain.ReorderConfigRequest{
		SKU:                     "SKU-ADV-01",
		ReorderLevel:            100,
		ReorderThresholdPercent: 10,
	}); err != nil {
		t.Fatalf("set reorder config failed: %v", err)
	}

	if _, err := svc.CreateSale(cashierCtx(), domain.SaleCreateRequest{
		PaymentType:   domain.PaymentTypePayNow,
		PaymentMethod: "cash",
		Items:         []domain.SaleLineRequest{{SKU: "SKU-ADV-01", Quantity: 7}},
	}); err != nil {
		t.Fatalf("sale failed: %v", err)
	}

	if _, err := svc.RestockAdvice(cashierCtx()); err == nil || !strings.Contains(err.Error(), "owner role required") {
		t.Fatalf("expected restock advice to require owner, got %v", err)
	}

	advice, err := svc.RestockAdvice(ownerCtx())
	if err != nil {
		t.Fatalf("restock advice failed: %v", err)
	}
	found := false
	for _, item := range advice {
		if item.SKU == "SKU-ADV-01" {
			found = true
			if item.SuggestedQuantity < 1 {
				t.Fatalf("expected positive suggested quantity, got %d", item.SuggestedQuantity)
			}
		}
	}
	if !found {
		t.Fatalf("expected advice for SKU-ADV-01")
	}
}

func TestNotificationReadScopedToRecipient(t *testing.T) {
	svc := newTestService()
	createProductWithStock(t, svc, "SKU-NTF-01", "18.00", 10)

	if _, err := svc.CreateSale(cashierCtx(), domain.SaleCreateRequest{
		PaymentType:   domain.PaymentTypePayNow,
		PaymentMethod: "cash",
		Items:         []domain.SaleLineRequest{{SKU: "SKU-NTF-01", Quantity: 1}},
	}); err != nil {
		t.Fatalf("sale failed: %v", err)
	}

	notifications, err := svc.ListNotifications(ownerCtx(), true, 0)
	if err != nil {
		t.Fatalf("list notifications failed: %v", err)
	}
	if len(notifications) == 0 {
		t.Fatalf("expected at least one unread owner notification")
	}
	target := notifications[0]

	if err := svc.MarkNotificationRead(cashierCtx(), target.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected cashier to be unable to read owner notification, got %v", err)
	}
	if err := svc.MarkNotificationRead(ownerCtx(), target.ID); err != nil {
		t.Fatalf("mark read failed: %v", err)
	}

	unread, err := svc.ListNotifications(ownerCtx(), true, 0)
	if err != nil {
		t.Fatalf("list unread failed: %v", err)
	}
	for _, n := range unread {
		if n.ID == target.ID {
			t.Fatalf("expected notification %s to be marked read", target.ID)
		}
	}
}
