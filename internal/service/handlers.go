package service

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/makansplit/backend/internal/calculator"
	"github.com/makansplit/backend/internal/models"
	"github.com/makansplit/backend/internal/split"
)

type breakdownResponse struct {
	Base          float64 `json:"base"`
	ServiceCharge float64 `json:"serviceCharge"`
	ServiceTax    float64 `json:"serviceTax"`
	Total         float64 `json:"total"`
}

func toBreakdown(b calculator.Breakdown) breakdownResponse {
	return breakdownResponse{
		Base:          b.Base,
		ServiceCharge: b.ServiceCharge,
		ServiceTax:    b.ServiceTax,
		Total:         b.Total,
	}
}

type participantResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Phone     string `json:"phone,omitempty"`
	Avatar    string `json:"avatar,omitempty"`
	IsSettled bool   `json:"isSettled"`

	// Pending is true while the participant only exists locally, before
	// the background create has confirmed a store-assigned ID.
	Pending bool `json:"pending,omitempty"`
}

func toParticipant(p models.Participant) participantResponse {
	return participantResponse{
		ID:        p.ID,
		Name:      p.Name,
		Phone:     p.Phone,
		Avatar:    p.Avatar,
		IsSettled: p.IsSettled,
		Pending:   split.IsPlaceholder(p.ID),
	}
}

type itemResponse struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Price           float64  `json:"price"`
	Quantity        int      `json:"quantity"`
	AssignedMembers []string `json:"assignedMembers"`
	Pending         bool     `json:"pending,omitempty"`
}

func toItem(item models.Item) itemResponse {
	assigned := item.AssignedMembers
	if assigned == nil {
		assigned = []string{}
	}
	return itemResponse{
		ID:              item.ID,
		Name:            item.Name,
		Price:           item.Price,
		Quantity:        item.Quantity,
		AssignedMembers: assigned,
		Pending:         split.IsPlaceholder(item.ID),
	}
}

type taxResponse struct {
	ServiceCharge float64 `json:"serviceCharge"`
	ServiceTax    float64 `json:"serviceTax"`
}

type stateResponse struct {
	SplitID      string                `json:"splitId"`
	Tax          taxResponse           `json:"tax"`
	Participants []participantResponse `json:"participants"`
	Items        []itemResponse        `json:"items"`
	Totals       breakdownResponse     `json:"totals"`
}

func (s *Service) currentState() stateResponse {
	sess := s.manager.Session()
	members := sess.Members()
	items := sess.Items()
	tax := sess.Tax()

	resp := stateResponse{
		SplitID:      sess.SplitID(),
		Tax:          taxResponse{ServiceCharge: tax.ServiceCharge, ServiceTax: tax.ServiceTax},
		Participants: make([]participantResponse, 0, len(members)),
		Items:        make([]itemResponse, 0, len(items)),
		Totals:       toBreakdown(sess.Totals()),
	}
	for _, m := range members {
		resp.Participants = append(resp.Participants, toParticipant(m))
	}
	for _, item := range items {
		resp.Items = append(resp.Items, toItem(item))
	}
	return resp
}

func (s *Service) handleCreateSplit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Title == "" {
		req.Title = "New Split"
	}

	splitID, err := s.manager.CreateSplit(r.Context(), req.Title)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"splitId": splitID})
}

func (s *Service) handleGetCurrent(w http.ResponseWriter, r *http.Request) {
	if s.manager.CurrentSplitID() == "" {
		writeError(w, http.StatusNotFound, "no active split")
		return
	}
	writeJSON(w, http.StatusOK, s.currentState())
}

func (s *Service) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.Reset(); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleSetTax(w http.ResponseWriter, r *http.Request) {
	var req taxResponse
	if !decodeBody(w, r, &req) {
		return
	}

	err := s.manager.Session().SetTax(models.TaxSettings{
		ServiceCharge: req.ServiceCharge,
		ServiceTax:    req.ServiceTax,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.currentState())
}

func (s *Service) handleAddParticipant(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name   string `json:"name"`
		Phone  string `json:"phone"`
		Avatar string `json:"avatar"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validateName(req.Name, ""); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := s.manager.Session().AddParticipant(models.Participant{
		Name:   req.Name,
		Phone:  req.Phone,
		Avatar: req.Avatar,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id})
}

func (s *Service) handleUpdateParticipant(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req struct {
		Name      *string `json:"name"`
		Phone     *string `json:"phone"`
		Avatar    *string `json:"avatar"`
		IsSettled *bool   `json:"isSettled"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name != nil {
		if err := s.validateName(*req.Name, id); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	err := s.manager.Session().UpdateParticipant(id, split.ParticipantUpdate{
		Name:      req.Name,
		Phone:     req.Phone,
		Avatar:    req.Avatar,
		IsSettled: req.IsSettled,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.currentState())
}

func (s *Service) handleAddItems(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Items []models.LineItem `json:"items"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	for _, line := range req.Items {
		if line.Name == "" {
			writeError(w, http.StatusBadRequest, "item name is required")
			return
		}
		if line.Price < 0 {
			writeError(w, http.StatusBadRequest, "item price must be >= 0")
			return
		}
	}

	created, err := s.manager.Session().AddItems(req.Items)
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

func (s *Service) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.Session().RemoveItem(mux.Vars(r)["id"]); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleToggleAssignment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ParticipantID string `json:"participantId"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ParticipantID == "" {
		writeError(w, http.StatusBadRequest, "participantId is required")
		return
	}

	err := s.manager.Session().ToggleAssignment(mux.Vars(r)["id"], req.ParticipantID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.currentState())
}

func (s *Service) handleAssignAll(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.Session().AssignAll(mux.Vars(r)["id"]); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.currentState())
}

type memberSummary struct {
	Participant   participantResponse `json:"participant"`
	Share         breakdownResponse   `json:"share"`
	PaymentStatus string              `json:"paymentStatus"`
}

type summaryResponse struct {
	SplitID string            `json:"splitId"`
	Totals  breakdownResponse `json:"totals"`
	Members []memberSummary   `json:"members"`
}

func (s *Service) handleSummary(w http.ResponseWriter, r *http.Request) {
	sess := s.manager.Session()
	if sess.SplitID() == "" {
		writeError(w, http.StatusNotFound, "no active split")
		return
	}

	statuses, err := s.tracker.StatusMap()
	if err != nil {
		writeEngineError(w, err)
		return
	}

	members := sess.Members()
	resp := summaryResponse{
		SplitID: sess.SplitID(),
		Totals:  toBreakdown(sess.Totals()),
		Members: make([]memberSummary, 0, len(members)),
	}
	for _, m := range members {
		status, ok := statuses[m.ID]
		if !ok {
			status = models.PaymentPending
		}
		resp.Members = append(resp.Members, memberSummary{
			Participant:   toParticipant(m),
			Share:         toBreakdown(sess.MemberShare(m.ID)),
			PaymentStatus: status,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Service) handleMarkPaid(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.MarkPaid(mux.Vars(r)["id"]); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleMarkPending(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.MarkPending(mux.Vars(r)["id"]); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleGetPaymentSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.tracker.PaymentSettings()
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Service) handleSetPaymentSettings(w http.ResponseWriter, r *http.Request) {
	var settings models.PaymentSettings
	if !decodeBody(w, r, &settings) {
		return
	}
	if err := s.tracker.SetPaymentSettings(settings); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Service) handleGetReminderSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.tracker.ReminderSettings()
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Service) handleSetReminderSettings(w http.ResponseWriter, r *http.Request) {
	var settings models.ReminderSettings
	if !decodeBody(w, r, &settings) {
		return
	}
	if err := s.tracker.SetReminderSettings(settings); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}
