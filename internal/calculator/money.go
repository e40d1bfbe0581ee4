// Package calculator implements the bill-splitting money math: tax-inclusive
// breakdowns of a base amount and per-participant shares of assigned items.
// Everything here is pure; no rounding is applied (display rounding to two
// decimal places is a presentation concern).
package calculator

import "github.com/makansplit/backend/internal/models"

// Breakdown is the tax-inclusive decomposition of an amount.
type Breakdown struct {
	// Base is the pre-tax amount the breakdown was computed from.
	Base float64

	// ServiceCharge is Base * serviceCharge% .
	ServiceCharge float64

	// ServiceTax is (Base + ServiceCharge) * serviceTax% .
	// The tax compounds on the service-charge-inclusive amount.
	ServiceTax float64

	// Total is Base + ServiceCharge + ServiceTax.
	Total float64
}

// Compute returns the breakdown of base under the given tax settings.
//
// The ordering is load-bearing: the service tax is computed on the
// service-charge-inclusive amount, not on the base alone. Reversing the
// order changes totals.
func Compute(base float64, tax models.TaxSettings) Breakdown {
	serviceCharge := base * tax.ServiceCharge / 100
	taxable := base + serviceCharge
	serviceTax := taxable * tax.ServiceTax / 100
	return Breakdown{
		Base:          base,
		ServiceCharge: serviceCharge,
		ServiceTax:    serviceTax,
		Total:         base + serviceCharge + serviceTax,
	}
}

// MemberShare computes one participant's breakdown across all items.
//
// Each item the participant is assigned to contributes
// price / len(assignedMembers) — an even split across everyone sharing the
// item. An item with no assignees contributes zero to everyone, so member
// totals need not sum to the split's grand total while items remain
// unassigned; that difference is expected and never redistributed.
func MemberShare(participantID string, items []models.Item, tax models.TaxSettings) Breakdown {
	var base float64
	for _, item := range items {
		if len(item.AssignedMembers) == 0 {
			continue
		}
		if item.Assigned(participantID) {
			base += item.Price / float64(len(item.AssignedMembers))
		}
	}
	return Compute(base, tax)
}

// SplitTotals computes the breakdown of the whole receipt: the sum of all
// item prices run through the same formula as individual shares, assigned
// or not.
func SplitTotals(items []models.Item, tax models.TaxSettings) Breakdown {
	var subtotal float64
	for _, item := range items {
		subtotal += item.Price
	}
	return Compute(subtotal, tax)
}
