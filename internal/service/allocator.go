package service

import (
	"sort"

	"pharmacy/internal/model"
)

// Allocation is one leg of a FIFO plan: take Quantity units from Batch.
type Allocation struct {
	Batch    model.Batch
	Quantity int
}

// AllocateFIFO plans how to take required units from batches, consuming the
// earliest-expiring stock first. Only active batches with stock are eligible.
// The plan is all-or-nothing: when the eligible total falls short it returns
// an *InsufficientStockError and no allocations.
func AllocateFIFO(batches []model.Batch, required int) ([]Allocation, error) {
	if required <= 0 {
		return nil, ErrInvalidQuantity
	}

	eligible := make([]model.Batch, 0, len(batches))
	available := 0
	for _, b := range batches {
		if !b.Active || b.CurrentQuantity <= 0 {
			continue
		}
		eligible = append(eligible, b)
		available += b.CurrentQuantity
	}

	if available < required {
		e := &InsufficientStockError{Available: available, Required: required}
		if len(batches) > 0 {
			e.ProductID = batches[0].ProductID
		}
		return nil, e
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		a, b := eligible[i], eligible[j]
		if !a.ExpiryDate.Equal(b.ExpiryDate) {
			return a.ExpiryDate.Before(b.ExpiryDate)
		}
		if !a.ReceivedAt.Equal(b.ReceivedAt) {
			return a.ReceivedAt.Before(b.ReceivedAt)
		}
		return a.BatchNumber < b.BatchNumber
	})

	plan := make([]Allocation, 0, len(eligible))
	remaining := required
	for _, b := range eligible {
		if remaining == 0 {
			break
		}
		take := min(b.CurrentQuantity, remaining)
		plan = append(plan, Allocation{Batch: b, Quantity: take})
		remaining -= take
	}
	return plan, nil
}
