// Package restock suggests reorder quantities for low-stock products from
// recent outbound movement velocity.
package restock

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"dukapos/backend/internal/cache"
	"dukapos/backend/internal/domain"
)

type Advisor struct {
	cache      cache.AdviceCache
	cacheTTL   time.Duration
	windowDays int
	leadDays   int
}

func NewAdvisor(cacheStore cache.AdviceCache, cacheTTL time.Duration) *Advisor {
	if cacheStore == nil {
		cacheStore = cache.NoopAdviceCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}

	return &Advisor{
		cache:      cacheStore,
		cacheTTL:   cacheTTL,
		windowDays: 14,
		leadDays:   7,
	}
}

// Advise builds one suggestion per low-stock product. The suggested quantity
// covers expected demand over the lead time and restores headroom above the
// reorder point, whichever is larger.
func (a *Advisor) Advise(
	ctx context.Context,
	inventories []domain.Inventory,
	products map[string]domain.Product,
	movements []domain.StockMovement,
) []domain.RestockAdvice {
	cacheKey := buildCacheKey(inventories)
	if cached, ok, err := a.cache.Get(ctx, cacheKey); err == nil && ok {
		return cached
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -a.windowDays)
	outByProduct := make(map[string]int64)
	for _, m := range movements {
		if m.Direction != domain.DirectionOut || m.CreatedAt.Before(cutoff) {
			continue
		}
		outByProduct[m.ProductID] += m.Quantity
	}

	advice := make([]domain.RestockAdvice, 0, len(inventories))
	for _, inv := range inventories {
		if !inv.LowStock {
			continue
		}
		product, ok := products[inv.ProductID]
		if !ok || !product.Active {
			continue
		}

		dailyRate := float64(outByProduct[inv.ProductID]) / float64(a.windowDays)
		demandCover := int64(math.Ceil(dailyRate * float64(a.leadDays)))
		headroom := inv.ReorderPoint*2 - inv.Quantity
		suggested := demandCover
		if headroom > suggested {
			suggested = headroom
		}
		if suggested < 1 {
			suggested = 1
		}

		advice = append(advice, domain.RestockAdvice{
			ProductID:         inv.ProductID,
			SKU:               inv.SKU,
			Name:              product.Name,
			Quantity:          inv.Quantity,
			ReorderPoint:      inv.ReorderPoint,
			DailyOutRate:      decimal.NewFromFloat(dailyRate).Round(2).StringFixed(2),
			SuggestedQuantity: suggested,
		})
	}

	sort.Slice(advice, func(i, j int) bool {
		if advice[i].SuggestedQuantity == advice[j].SuggestedQuantity {
			return advice[i].SKU < advice[j].SKU
		}
		return advice[i].SuggestedQuantity > advice[j].SuggestedQuantity
	})

	_ = a.cache.Set(ctx, cacheKey, advice, a.cacheTTL)
	return advice
}

func buildCacheKey(inventories []domain.Inventory) string {
	parts := make([]string, 0, len(inventories))
	for _, inv := range inventories {
		if !inv.LowStock {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s:%d:%d", inv.ProductID, inv.Quantity, inv.ReorderPoint))
	}
	sort.Strings(parts)

	hash := sha1.Sum([]byte(strings.Join(parts, "|")))
	return "pos:restock:" + hex.EncodeToString(hash[:])
}
