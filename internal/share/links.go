// Package share builds the outward-facing payment artifacts: WhatsApp
// deep links with pre-filled request and reminder messages, payment links,
// and signed tokens for read-only summary views.
package share

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/makansplit/backend/internal/models"
)

const paymentBaseURL = "https://pay.makan-split.app/pay"

// FormatPrice renders an amount for messages, rounded to two decimals.
// Rounding happens here only; the money model never rounds.
func FormatPrice(amount float64) string {
	return fmt.Sprintf("RM %.2f", amount)
}

// NormalizePhone converts a Malaysian phone number to the digits-only
// international form wa.me expects: symbols stripped, a leading 0
// replaced with the 60 country code.
func NormalizePhone(phone string) string {
	var cleaned strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' || r == '+' {
			cleaned.WriteRune(r)
		}
	}
	out := cleaned.String()
	if strings.HasPrefix(out, "0") {
		out = "60" + out[1:]
	}
	return strings.TrimPrefix(out, "+")
}

// PaymentLink builds the per-participant payment URL. There is no open
// DuitNow deep-link standard, so the link carries the recipient and
// amount and the message carries the transfer details.
func PaymentLink(settings models.PaymentSettings, participantID string, amount float64) string {
	recipient := settings.DuitNowID
	if recipient == "" {
		recipient = "user-not-set"
	}
	q := url.Values{}
	q.Set("to", recipient)
	q.Set("amount", fmt.Sprintf("%.2f", amount))
	q.Set("ref", participantID)
	return paymentBaseURL + "?" + q.Encode()
}

// RequestMessage builds the payment request sent after a meal.
func RequestMessage(p models.Participant, amount float64, settings models.PaymentSettings) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hey %s! 🍜\n\nWe just had lunch together and your share is %s.\n\n", p.Name, FormatPrice(amount))

	if settings.DuitNowID != "" {
		fmt.Fprintf(&b, "Please DuitNow/Transfer to:\nID: %s\n", settings.DuitNowID)
		if settings.BankName != "" {
			fmt.Fprintf(&b, "Bank: %s\n", settings.BankName)
		}
		if settings.AccountNumber != "" {
			fmt.Fprintf(&b, "Acc: %s\n", settings.AccountNumber)
		}
	} else {
		fmt.Fprintf(&b, "Pay here: %s\n", PaymentLink(settings, p.ID, amount))
	}

	b.WriteString("\nThank you! 🙏")
	return b.String()
}

// ReminderMessage builds the friendly nudge for participants still
// pending.
func ReminderMessage(p models.Participant, amount float64) string {
	return fmt.Sprintf(
		"Hey %s! 👋\n\nJust a friendly reminder that you still owe %s from our last meal. 🍜\n\nThank you! 🙏",
		p.Name, FormatPrice(amount),
	)
}

// WhatsAppLink builds the wa.me deep link with the message pre-filled.
// Without a phone number the link opens the contact picker instead.
func WhatsAppLink(phone, message string) string {
	encoded := url.QueryEscape(message)
	if normalized := NormalizePhone(phone); normalized != "" {
		return fmt.Sprintf("https://wa.me/%s?text=%s", normalized, encoded)
	}
	return fmt.Sprintf("https://wa.me/?text=%s", encoded)
}
