package domain

// ReorderPointFor computes the quantity threshold at or below which stock is
// considered low. When a reorder level is configured the point is
// ceil(level * percent / 100) with percent clamped to [1,100]; otherwise the
// fixed fallback applies.
func ReorderPointFor(reorderLevel, thresholdPercent int64) int64 {
	if reorderLevel <= 0 {
		return DefaultReorderPoint
	}
	if thresholdPercent < 1 {
		thresholdPercent = 1
	}
	if thresholdPercent > 100 {
		thresholdPercent = 100
	}
	return (reorderLevel*thresholdPercent + 99) / 100
}

func IsLowStock(quantity, reorderLevel, thresholdPercent int64) bool {
	point := ReorderPointFor(reorderLevel, thresholdPercent)
	return point > 0 && quantity <= point
}
