package models

// Payment status values for a participant, tracked locally only.
const (
	PaymentPaid    = "paid"
	PaymentPending = "pending"
)

// PaymentSettings holds the collection recipient's details. These are
// locally scoped: they belong to the device owner, not to any split, and
// are never written to the remote store.
type PaymentSettings struct {
	// DuitNowID is the recipient's DuitNow ID (usually a phone number or IC).
	DuitNowID string `json:"duitNowId"`

	// BankName is the recipient's bank, shown in payment messages.
	BankName string `json:"bankName"`

	// AccountNumber is the recipient's account number.
	AccountNumber string `json:"accountNumber"`
}

// ReminderSettings controls payment reminder behavior. Locally scoped.
type ReminderSettings struct {
	// Frequency is one of "daily", "every-2-days", "every-3-days", "weekly".
	Frequency string `json:"frequency"`

	// Time is one of "morning", "afternoon", "evening".
	Time string `json:"time"`

	// AutoSend enables sending reminders without confirmation.
	AutoSend bool `json:"autoSend"`
}

// DefaultReminderSettings mirror the values a fresh install starts with.
var DefaultReminderSettings = ReminderSettings{
	Frequency: "every-2-days",
	Time:      "morning",
	AutoSend:  false,
}
