package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/makansplit/backend/internal/localstore"
	"github.com/makansplit/backend/internal/models"
	"github.com/makansplit/backend/internal/ocr"
	"github.com/makansplit/backend/internal/payment"
	"github.com/makansplit/backend/internal/share"
	"github.com/makansplit/backend/internal/split"
	"github.com/makansplit/backend/internal/storage/sqlite"
)

// fakeScanner returns canned lines or a canned error.
type fakeScanner struct {
	lines []models.LineItem
	err   error
}

func (f *fakeScanner) ParseReceipt(_ context.Context, _ []byte, _ string) ([]models.LineItem, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.lines, nil
}

type testEnv struct {
	server  *httptest.Server
	manager *split.Manager
	scanner *fakeScanner
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	store, err := sqlite.New(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("failed to open sqlite store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	local, err := localstore.Open(filepath.Join(dir, "state.json"))
	if err != nil {
		t.Fatalf("failed to open local store: %v", err)
	}

	manager := split.NewManager(store, local)
	scanner := &fakeScanner{}
	svc := New(
		manager,
		payment.NewTracker(local),
		scanner,
		share.NewTokenManager("test-secret-key-32-bytes-long!!!", time.Hour),
		store,
	)

	server := httptest.NewServer(svc.Router())
	t.Cleanup(server.Close)

	return &testEnv{server: server, manager: manager, scanner: scanner}
}

// doJSON issues a request with a JSON body and decodes the JSON response
// into out when out is non-nil.
func (e *testEnv) doJSON(t *testing.T, method, path string, body, out any) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
	}
	return resp.StatusCode
}

func (e *testEnv) createSplit(t *testing.T, title string) string {
	t.Helper()
	var resp map[string]string
	if code := e.doJSON(t, http.MethodPost, "/api/v1/splits", map[string]string{"title": title}, &resp); code != http.StatusCreated {
		t.Fatalf("create split returned %d", code)
	}
	if resp["splitId"] == "" {
		t.Fatal("create split returned empty id")
	}
	return resp["splitId"]
}

// addParticipant creates a participant and waits for the background write
// so the returned ID is the confirmed one.
func (e *testEnv) addParticipant(t *testing.T, name string) string {
	t.Helper()
	var resp map[string]string
	if code := e.doJSON(t, http.MethodPost, "/api/v1/participants", map[string]string{"name": name}, &resp); code != http.StatusAccepted {
		t.Fatalf("add participant returned %d", code)
	}
	e.manager.Session().Wait()
	for _, m := range e.manager.Session().Members() {
		if m.Name == name {
			return m.ID
		}
	}
	t.Fatalf("participant %q not found after sync", name)
	return ""
}

func (e *testEnv) addItem(t *testing.T, name string, price float64) string {
	t.Helper()
	body := map[string]any{"items": []models.LineItem{{Name: name, Price: price, Quantity: 1}}}
	if code := e.doJSON(t, http.MethodPost, "/api/v1/items", body, nil); code != http.StatusAccepted {
		t.Fatalf("add items returned %d", code)
	}
	e.manager.Session().Wait()
	for _, item := range e.manager.Session().Items() {
		if item.Name == name {
			return item.ID
		}
	}
	t.Fatalf("item %q not found after sync", name)
	return ""
}

func TestSplitLifecycle(t *testing.T) {
	env := newTestEnv(t)

	if code := env.doJSON(t, http.MethodGet, "/api/v1/splits/current", nil, nil); code != http.StatusNotFound {
		t.Errorf("current split before create returned %d, want 404", code)
	}

	env.createSplit(t, "Friday Lunch")

	var state stateResponse
	if code := env.doJSON(t, http.MethodGet, "/api/v1/splits/current", nil, &state); code != http.StatusOK {
		t.Fatalf("current split returned %d", code)
	}
	if state.Tax.ServiceCharge != 10 || state.Tax.ServiceTax != 6 {
		t.Errorf("default tax = %+v, want 10/6", state.Tax)
	}

	if code := env.doJSON(t, http.MethodDelete, "/api/v1/splits/current", nil, nil); code != http.StatusNoContent {
		t.Errorf("reset returned %d", code)
	}
	if code := env.doJSON(t, http.MethodGet, "/api/v1/splits/current", nil, nil); code != http.StatusNotFound {
		t.Errorf("current split after reset returned %d, want 404", code)
	}
}

func TestParticipantValidation(t *testing.T) {
	env := newTestEnv(t)
	env.createSplit(t, "Dinner")
	env.addParticipant(t, "Alice")

	tests := []struct {
		name string
		body map[string]string
	}{
		{"empty name", map[string]string{"name": ""}},
		{"whitespace name", map[string]string{"name": "   "}},
		{"duplicate name", map[string]string{"name": "Alice"}},
		{"duplicate name different case", map[string]string{"name": "alice"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code := env.doJSON(t, http.MethodPost, "/api/v1/participants", tt.body, nil); code != http.StatusBadRequest {
				t.Errorf("got %d, want 400", code)
			}
		})
	}

	// The rejected requests must not have touched the collection.
	if n := len(env.manager.Session().Members()); n != 1 {
		t.Errorf("participant count = %d, want 1", n)
	}
}

func TestAssignmentAndSummary(t *testing.T) {
	env := newTestEnv(t)
	env.createSplit(t, "Mamak")
	alice := env.addParticipant(t, "Alice")
	env.addParticipant(t, "Bob")
	itemID := env.addItem(t, "Roti Canai", 20)

	var state stateResponse
	code := env.doJSON(t, http.MethodPost, fmt.Sprintf("/api/v1/items/%s/toggle", itemID),
		map[string]string{"participantId": alice}, &state)
	if code != http.StatusAccepted {
		t.Fatalf("toggle returned %d", code)
	}
	if got := state.Items[0].AssignedMembers; len(got) != 1 || got[0] != alice {
		t.Errorf("assigned members = %v, want [%s]", got, alice)
	}

	code = env.doJSON(t, http.MethodPost, fmt.Sprintf("/api/v1/items/%s/assign-all", itemID), nil, &state)
	if code != http.StatusAccepted {
		t.Fatalf("assign-all returned %d", code)
	}
	if got := state.Items[0].AssignedMembers; len(got) != 2 {
		t.Errorf("assigned members after assign-all = %v, want both", got)
	}

	if code := env.doJSON(t, http.MethodPost, "/api/v1/participants/"+alice+"/paid", nil, nil); code != http.StatusNoContent {
		t.Fatalf("mark paid returned %d", code)
	}

	var summary summaryResponse
	if code := env.doJSON(t, http.MethodGet, "/api/v1/splits/current/summary", nil, &summary); code != http.StatusOK {
		t.Fatalf("summary returned %d", code)
	}
	if len(summary.Members) != 2 {
		t.Fatalf("summary members = %d, want 2", len(summary.Members))
	}
	for _, m := range summary.Members {
		// 20 split two ways, then 10% service charge and 6% tax on top.
		if diff := m.Share.Total - 11.66; diff > 0.001 || diff < -0.001 {
			t.Errorf("share for %s = %v, want ~11.66", m.Participant.Name, m.Share.Total)
		}
		want := models.PaymentPending
		if m.Participant.ID == alice {
			want = models.PaymentPaid
		}
		if m.PaymentStatus != want {
			t.Errorf("payment status for %s = %q, want %q", m.Participant.Name, m.PaymentStatus, want)
		}
	}
}

func TestTaxUpdate(t *testing.T) {
	env := newTestEnv(t)
	env.createSplit(t, "Dinner")

	var state stateResponse
	code := env.doJSON(t, http.MethodPut, "/api/v1/splits/current/tax",
		map[string]float64{"serviceCharge": 0, "serviceTax": 8}, &state)
	if code != http.StatusOK {
		t.Fatalf("set tax returned %d", code)
	}
	if state.Tax.ServiceCharge != 0 || state.Tax.ServiceTax != 8 {
		t.Errorf("tax = %+v, want 0/8", state.Tax)
	}

	code = env.doJSON(t, http.MethodPut, "/api/v1/splits/current/tax",
		map[string]float64{"serviceCharge": -1, "serviceTax": 6}, nil)
	if code != http.StatusBadRequest {
		t.Errorf("negative rate returned %d, want 400", code)
	}
}

func TestScanReceipt(t *testing.T) {
	env := newTestEnv(t)
	env.createSplit(t, "Scanned")

	scanRequest := func(t *testing.T) (*http.Request, error) {
		t.Helper()
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		part, err := mw.CreateFormFile("receipt", "receipt.jpg")
		if err != nil {
			return nil, err
		}
		if _, err := part.Write([]byte("not-a-real-jpeg")); err != nil {
			return nil, err
		}
		if err := mw.Close(); err != nil {
			return nil, err
		}
		req, err := http.NewRequest(http.MethodPost, env.server.URL+"/api/v1/scan", &buf)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", mw.FormDataContentType())
		return req, nil
	}

	t.Run("imports extracted lines", func(t *testing.T) {
		env.scanner.lines = []models.LineItem{
			{Name: "Nasi Lemak", Price: 15, Quantity: 1},
			{Name: "Teh Tarik", Price: 5, Quantity: 2},
		}
		req, err := scanRequest(t)
		if err != nil {
			t.Fatalf("failed to build scan request: %v", err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("scan failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusAccepted {
			t.Fatalf("scan returned %d", resp.StatusCode)
		}

		env.manager.Session().Wait()
		items := env.manager.Session().Items()
		if len(items) != 2 {
			t.Fatalf("item count after scan = %d, want 2", len(items))
		}
		for _, item := range items {
			if len(item.AssignedMembers) != 0 {
				t.Errorf("imported item %q has assignments %v, want none", item.Name, item.AssignedMembers)
			}
		}
	})

	t.Run("maps quota errors", func(t *testing.T) {
		env.scanner.err = ocr.ErrRateLimited
		req, err := scanRequest(t)
		if err != nil {
			t.Fatalf("failed to build scan request: %v", err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("scan failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusTooManyRequests {
			t.Errorf("scan returned %d, want 429", resp.StatusCode)
		}
	})
}

func TestShareLinks(t *testing.T) {
	env := newTestEnv(t)
	env.createSplit(t, "Lunch")
	alice := env.addParticipant(t, "Alice")
	env.addItem(t, "Laksa", 10)

	code := env.doJSON(t, http.MethodPut, "/api/v1/settings/payment",
		models.PaymentSettings{DuitNowID: "0123456789", BankName: "Maybank"}, nil)
	if code != http.StatusOK {
		t.Fatalf("set payment settings returned %d", code)
	}

	var link shareLinkResponse
	if code := env.doJSON(t, http.MethodGet, "/api/v1/participants/"+alice+"/share", nil, &link); code != http.StatusOK {
		t.Fatalf("share link returned %d", code)
	}
	if !strings.Contains(link.Message, "Hey Alice!") || !strings.Contains(link.Message, "ID: 0123456789") {
		t.Errorf("unexpected share message:\n%s", link.Message)
	}
	if !strings.HasPrefix(link.WhatsAppLink, "https://wa.me/") {
		t.Errorf("unexpected whatsapp link: %s", link.WhatsAppLink)
	}

	if code := env.doJSON(t, http.MethodGet, "/api/v1/participants/nope/share", nil, nil); code != http.StatusNotFound {
		t.Errorf("share link for unknown participant returned %d, want 404", code)
	}
}

func TestSharedView(t *testing.T) {
	env := newTestEnv(t)
	splitID := env.createSplit(t, "Shared Dinner")
	env.addParticipant(t, "Alice")
	env.addItem(t, "Satay", 12)

	var tokenResp map[string]string
	if code := env.doJSON(t, http.MethodGet, "/api/v1/splits/current/share-token", nil, &tokenResp); code != http.StatusOK {
		t.Fatalf("share token returned %d", code)
	}

	var summary summaryResponse
	if code := env.doJSON(t, http.MethodGet, "/api/v1/shared/"+tokenResp["token"], nil, &summary); code != http.StatusOK {
		t.Fatalf("shared view returned %d", code)
	}
	if summary.SplitID != splitID {
		t.Errorf("shared view split = %q, want %q", summary.SplitID, splitID)
	}
	if len(summary.Members) != 1 {
		t.Errorf("shared view members = %d, want 1", len(summary.Members))
	}

	if code := env.doJSON(t, http.MethodGet, "/api/v1/shared/garbage", nil, nil); code != http.StatusUnauthorized {
		t.Errorf("garbage token returned %d, want 401", code)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	var reminders models.ReminderSettings
	if code := env.doJSON(t, http.MethodGet, "/api/v1/settings/reminders", nil, &reminders); code != http.StatusOK {
		t.Fatalf("get reminder settings returned %d", code)
	}
	if reminders != models.DefaultReminderSettings {
		t.Errorf("default reminders = %+v, want %+v", reminders, models.DefaultReminderSettings)
	}

	updated := models.ReminderSettings{Frequency: "weekly", Time: "evening", AutoSend: true}
	if code := env.doJSON(t, http.MethodPut, "/api/v1/settings/reminders", updated, nil); code != http.StatusOK {
		t.Fatalf("set reminder settings returned %d", code)
	}
	if code := env.doJSON(t, http.MethodGet, "/api/v1/settings/reminders", nil, &reminders); code != http.StatusOK {
		t.Fatalf("get reminder settings returned %d", code)
	}
	if reminders != updated {
		t.Errorf("reminders = %+v, want %+v", reminders, updated)
	}
}

func TestMutationsWithoutSplit(t *testing.T) {
	env := newTestEnv(t)

	code := env.doJSON(t, http.MethodPost, "/api/v1/participants", map[string]string{"name": "Alice"}, nil)
	if code != http.StatusConflict {
		t.Errorf("add participant without split returned %d, want 409", code)
	}

	code = env.doJSON(t, http.MethodPost, "/api/v1/items",
		map[string]any{"items": []models.LineItem{{Name: "Mee Goreng", Price: 8}}}, nil)
	if code != http.StatusConflict {
		t.Errorf("add items without split returned %d, want 409", code)
	}
}
