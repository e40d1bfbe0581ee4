// Package payment tracks per-participant paid/pending status and the
// collection recipient's payment and reminder settings. All of it lives
// in the local keyed store only: this state deliberately has no remote
// representation and an independent lifecycle from the split record, so
// it survives split switches.
package payment

import (
	"fmt"

	"github.com/makansplit/backend/internal/localstore"
	"github.com/makansplit/backend/internal/models"
)

const (
	statusKey           = "payment_status"
	paymentSettingsKey  = "payment_settings"
	reminderSettingsKey = "reminder_settings"
)

// Tracker persists payment state keyed by participant ID.
type Tracker struct {
	local *localstore.Store
}

// NewTracker creates a tracker over the given local store.
func NewTracker(local *localstore.Store) *Tracker {
	return &Tracker{local: local}
}

// MarkPaid records that the participant has paid.
func (t *Tracker) MarkPaid(participantID string) error {
	return t.setStatus(participantID, models.PaymentPaid)
}

// MarkPending moves the participant back to pending.
func (t *Tracker) MarkPending(participantID string) error {
	return t.setStatus(participantID, models.PaymentPending)
}

func (t *Tracker) setStatus(participantID, status string) error {
	if participantID == "" {
		return fmt.Errorf("participant id required")
	}
	statuses, err := t.StatusMap()
	if err != nil {
		return err
	}
	statuses[participantID] = status
	return t.local.Put(statusKey, statuses)
}

// Status returns the participant's payment status, defaulting to pending.
func (t *Tracker) Status(participantID string) (string, error) {
	statuses, err := t.StatusMap()
	if err != nil {
		return "", err
	}
	if status, ok := statuses[participantID]; ok {
		return status, nil
	}
	return models.PaymentPending, nil
}

// StatusMap returns the full participant-id → status mapping.
func (t *Tracker) StatusMap() (map[string]string, error) {
	statuses := make(map[string]string)
	if _, err := t.local.Get(statusKey, &statuses); err != nil {
		return nil, err
	}
	return statuses, nil
}

// PaymentSettings returns the stored recipient details, zero-valued when
// none were saved yet.
func (t *Tracker) PaymentSettings() (models.PaymentSettings, error) {
	var s models.PaymentSettings
	if _, err := t.local.Get(paymentSettingsKey, &s); err != nil {
		return models.PaymentSettings{}, err
	}
	return s, nil
}

// SetPaymentSettings stores the recipient details.
func (t *Tracker) SetPaymentSettings(s models.PaymentSettings) error {
	return t.local.Put(paymentSettingsKey, s)
}

// ReminderSettings returns the stored reminder settings, falling back to
// the defaults of a fresh install.
func (t *Tracker) ReminderSettings() (models.ReminderSettings, error) {
	s := models.DefaultReminderSettings
	if _, err := t.local.Get(reminderSettingsKey, &s); err != nil {
		return models.ReminderSettings{}, err
	}
	return s, nil
}

// SetReminderSettings stores the reminder settings.
func (t *Tracker) SetReminderSettings(s models.ReminderSettings) error {
	return t.local.Put(reminderSettingsKey, s)
}
