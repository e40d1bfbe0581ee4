package service

import (
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/makansplit/backend/internal/calculator"
	"github.com/makansplit/backend/internal/models"
	"github.com/makansplit/backend/internal/ocr"
	"github.com/makansplit/backend/internal/share"
	"github.com/makansplit/backend/internal/split"
)

// maxReceiptBytes bounds uploaded receipt images at 10 MB.
const maxReceiptBytes = 10 << 20

func (s *Service) handleScanReceipt(w http.ResponseWriter, r *http.Request) {
	if s.manager.CurrentSplitID() == "" {
		writeEngineError(w, split.ErrNoActiveSplit)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxReceiptBytes)
	file, header, err := r.FormFile("receipt")
	if err != nil {
		writeError(w, http.StatusBadRequest, "receipt image is required")
		return
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read receipt image")
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(image)
	}

	lines, err := s.scanner.ParseReceipt(r.Context(), image, mimeType)
	if err != nil {
		writeScanError(w, err)
		return
	}

	created, err := s.manager.Session().AddItems(lines)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	items := make([]itemResponse, 0, len(created))
	for _, item := range created {
		items = append(items, toItem(item))
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"items": items})
}

// writeScanError maps classified OCR failures to user-facing messages.
func writeScanError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ocr.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, "receipt scanning is not configured")
	case errors.Is(err, ocr.ErrBadImage):
		writeError(w, http.StatusBadRequest, "the image could not be processed, try a clearer photo")
	case errors.Is(err, ocr.ErrContentBlocked):
		writeError(w, http.StatusUnprocessableEntity, "the image was rejected, try a different photo")
	case errors.Is(err, ocr.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "scanning quota exceeded, try again later")
	case errors.Is(err, ocr.ErrInvalidResponse):
		writeError(w, http.StatusBadGateway, "could not read the receipt, add items manually")
	default:
		writeError(w, http.StatusBadGateway, "receipt scanning failed, add items manually")
	}
}

type shareLinkResponse struct {
	Message      string `json:"message"`
	WhatsAppLink string `json:"whatsappLink"`
	PaymentLink  string `json:"paymentLink"`
	Amount       string `json:"amount"`
}

func (s *Service) shareMember(w http.ResponseWriter, id string) (models.Participant, float64, bool) {
	sess := s.manager.Session()
	for _, m := range sess.Members() {
		if m.ID == id {
			return m, sess.MemberShare(id).Total, true
		}
	}
	writeError(w, http.StatusNotFound, "participant not found")
	return models.Participant{}, 0, false
}

func (s *Service) handleShareLink(w http.ResponseWriter, r *http.Request) {
	member, amount, ok := s.shareMember(w, mux.Vars(r)["id"])
	if !ok {
		return
	}
	settings, err := s.tracker.PaymentSettings()
	if err != nil {
		writeEngineError(w, err)
		return
	}

	msg := share.RequestMessage(member, amount, settings)
	writeJSON(w, http.StatusOK, shareLinkResponse{
		Message:      msg,
		WhatsAppLink: share.WhatsAppLink(member.Phone, msg),
		PaymentLink:  share.PaymentLink(settings, member.ID, amount),
		Amount:       share.FormatPrice(amount),
	})
}

func (s *Service) handleRemindLink(w http.ResponseWriter, r *http.Request) {
	member, amount, ok := s.shareMember(w, mux.Vars(r)["id"])
	if !ok {
		return
	}
	settings, err := s.tracker.PaymentSettings()
	if err != nil {
		writeEngineError(w, err)
		return
	}

	msg := share.ReminderMessage(member, amount)
	writeJSON(w, http.StatusOK, shareLinkResponse{
		Message:      msg,
		WhatsAppLink: share.WhatsAppLink(member.Phone, msg),
		PaymentLink:  share.PaymentLink(settings, member.ID, amount),
		Amount:       share.FormatPrice(amount),
	})
}

func (s *Service) handleShareToken(w http.ResponseWriter, r *http.Request) {
	splitID := s.manager.CurrentSplitID()
	if splitID == "" {
		writeEngineError(w, split.ErrNoActiveSplit)
		return
	}
	token, err := s.tokens.Issue(splitID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// handleSharedView serves the token-gated read-only summary. It reads the
// split straight from the store: the viewer may be looking at a split
// that is not this device's current one.
func (s *Service) handleSharedView(w http.ResponseWriter, r *http.Request) {
	splitID, err := s.tokens.Validate(mux.Vars(r)["token"])
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid or expired share link")
		return
	}

	ctx := r.Context()
	sp, err := s.store.GetSplit(ctx, splitID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	members, err := s.store.ListParticipants(ctx, splitID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	items, err := s.store.ListItems(ctx, splitID)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	resp := summaryResponse{
		SplitID: sp.ID,
		Totals:  toBreakdown(calculator.SplitTotals(items, sp.Tax)),
		Members: make([]memberSummary, 0, len(members)),
	}
	for _, m := range members {
		// Paid/pending tracking is device-local; the shared view falls back
		// to the synced settled flag.
		status := models.PaymentPending
		if m.IsSettled {
			status = models.PaymentPaid
		}
		resp.Members = append(resp.Members, memberSummary{
			Participant:   toParticipant(m),
			Share:         toBreakdown(calculator.MemberShare(m.ID, items, sp.Tax)),
			PaymentStatus: status,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
