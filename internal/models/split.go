package models

// DefaultTaxSettings are applied to newly created splits.
// 10% service charge and 6% service tax, the common Malaysian restaurant setup.
var DefaultTaxSettings = TaxSettings{ServiceCharge: 10, ServiceTax: 6}

// Split represents one bill-splitting session: one receipt, its
// participants, items, and tax settings. It is the aggregate root; the
// split ID is the only state that must survive a process restart.
type Split struct {
	// ID is the unique identifier for the split (UUID format).
	// Assigned by the persistence layer.
	ID string

	// Title is the human-readable name for the split (e.g., "Friday Lunch").
	Title string

	// Currency is the ISO-ish currency code for display (e.g., "MYR").
	Currency string

	// Tax holds the split-scoped service charge and tax percentages.
	Tax TaxSettings

	// CreatedAt is the Unix timestamp when the split was created.
	CreatedAt int64
}

// TaxSettings holds the percentages applied on top of item prices.
// Both are split-scoped, never per-item.
type TaxSettings struct {
	// ServiceCharge is a percentage >= 0 applied to the base amount.
	ServiceCharge float64

	// ServiceTax is a percentage >= 0 applied to the service-charge-inclusive
	// amount (it compounds on top of the service charge).
	ServiceTax float64
}

// Participant represents a person sharing the bill.
// Participants are created explicitly and never deleted within a split.
type Participant struct {
	// ID is the unique identifier for the participant (UUID format).
	// Assigned by the persistence layer; carries a transient placeholder
	// ID before the first sync completes.
	ID string

	// Name is the display name, non-empty and unique within a split.
	// Uniqueness is validated at the service layer, not enforced here.
	Name string

	// Phone is an optional phone number, used for WhatsApp deep links.
	Phone string

	// Avatar is a display glyph (an emoji in the current UI).
	Avatar string

	// IsSettled marks whether this participant has settled up.
	IsSettled bool
}

// Item represents a single line on the receipt.
// Items can be shared among multiple participants; the price is then split
// equally among everyone assigned.
type Item struct {
	// ID is the unique identifier for the item (UUID format).
	ID string

	// Name is the receipt line description (e.g., "Nasi Lemak").
	Name string

	// Price is the non-negative pre-tax price for the whole line.
	// Tax math operates on Price directly; Quantity is informational only.
	Price float64

	// Quantity is a positive integer, display-only.
	Quantity int

	// AssignedMembers is the set of participant IDs sharing this item.
	// Set semantics: no ordering, no duplicates, every ID references an
	// existing participant.
	AssignedMembers []string
}

// Assigned reports whether the given participant is in the item's
// assignment set.
func (i Item) Assigned(participantID string) bool {
	for _, id := range i.AssignedMembers {
		if id == participantID {
			return true
		}
	}
	return false
}

// LineItem is a raw receipt line, either entered manually or extracted by
// the OCR service. Bulk item creation consumes these.
type LineItem struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}
