package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/eventhub/eventhub-api/internal/models"
)

func postBooking(r http.Handler, token string, eventID string, seats int) *httptest.ResponseRecorder {
	body, _ := json.Marshal(map[string]interface{}{
		"eventId": eventID,
		"seats":   seats,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateBooking(t *testing.T) {
	db := setupTestDB(t)
	m := &fakeMailer{}
	r := setupRouter(t, db, m)

	user := createTestUser(t, db, "alice@example.com", models.RoleUser)
	event := createTestEvent(t, db, 10, 25.0, time.Now().AddDate(0, 1, 0))
	token := tokenFor(t, user)

	w := postBooking(r, token, event.ID.String(), 3)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Success bool           `json:"success"`
		Booking models.Booking `json:"booking"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Success {
		t.Error("expected success=true")
	}
	if resp.Booking.Seats != 3 {
		t.Errorf("expected 3 seats, got %d", resp.Booking.Seats)
	}
	if resp.Booking.TotalAmount != 75.0 {
		t.Errorf("expected total 75.00, got %.2f", resp.Booking.TotalAmount)
	}
	if resp.Booking.TicketCode == "" {
		t.Error("expected a ticket code")
	}
	if _, confirmations := m.sent(); confirmations != 1 {
		t.Errorf("expected 1 confirmation email, got %d", confirmations)
	}

	var updated models.Event
	if err := db.First(&updated, "id = ?", event.ID).Error; err != nil {
		t.Fatalf("failed to reload event: %v", err)
	}
	if updated.BookedSeats != 3 {
		t.Errorf("expected booked_seats=3, got %d", updated.BookedSeats)
	}
}

func TestCreateBookingEventNotFound(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouter(t, db, &fakeMailer{})
	user := createTestUser(t, db, "alice@example.com", models.RoleUser)

	w := postBooking(r, tokenFor(t, user), "00000000-0000-0000-0000-000000000001", 1)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestCreateBookingInsufficientSeats(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouter(t, db, &fakeMailer{})

	user := createTestUser(t, db, "alice@example.com", models.RoleUser)
	event := createTestEvent(t, db, 5, 10.0, time.Now().AddDate(0, 1, 0))
	token := tokenFor(t, user)

	if w := postBooking(r, token, event.ID.String(), 3); w.Code != http.StatusCreated {
		t.Fatalf("setup booking failed: %d", w.Code)
	}

	w := postBooking(r, token, event.ID.String(), 4)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Message string `json:"message"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Message != "Only 2 seats available" {
		t.Errorf("expected exact availability in message, got %q", resp.Message)
	}

	var count int64
	db.Model(&models.Booking{}).Where("event_id = ?", event.ID).Count(&count)
	if count != 1 {
		t.Errorf("rejected booking must not create a record, found %d", count)
	}
}

// TestConcurrentBookingsNeverOversubscribe drives many parallel
// requests at a small event and asserts the capacity ceiling holds.
// With a read-then-write seat check this fails; the conditional update
// makes it pass.
func TestConcurrentBookingsNeverOversubscribe(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouter(t, db, &fakeMailer{})

	event := createTestEvent(t, db, 10, 20.0, time.Now().AddDate(0, 1, 0))

	const attempts = 25
	tokens := make([]string, attempts)
	for i := 0; i < attempts; i++ {
		user := createTestUser(t, db, fmt.Sprintf("user%d@example.com", i), models.RoleUser)
		tokens[i] = tokenFor(t, user)
	}

	var wg sync.WaitGroup
	results := make(chan int, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(token string) {
			defer wg.Done()
			w := postBooking(r, token, event.ID.String(), 1)
			results <- w.Code
		}(tokens[i])
	}
	wg.Wait()
	close(results)

	created := 0
	for code := range results {
		switch code {
		case http.StatusCreated:
			created++
		case http.StatusBadRequest:
		default:
			t.Errorf("unexpected status %d", code)
		}
	}

	if created != 10 {
		t.Errorf("expected exactly 10 successful bookings, got %d", created)
	}

	var updated models.Event
	db.First(&updated, "id = ?", event.ID)
	if updated.BookedSeats > updated.Capacity {
		t.Errorf("capacity oversubscribed: booked_seats=%d capacity=%d", updated.BookedSeats, updated.Capacity)
	}

	var seatSum int64
	db.Model(&models.Booking{}).
		Where("event_id = ? AND status = ?", event.ID, models.BookingStatusBooked).
		Select("COALESCE(SUM(seats), 0)").Scan(&seatSum)
	if seatSum != int64(updated.BookedSeats) {
		t.Errorf("counter drifted from bookings: counter=%d sum=%d", updated.BookedSeats, seatSum)
	}
}

func TestCancelBooking(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouter(t, db, &fakeMailer{})

	user := createTestUser(t, db, "alice@example.com", models.RoleUser)
	event := createTestEvent(t, db, 10, 20.0, time.Now().AddDate(0, 1, 0))
	token := tokenFor(t, user)

	w := postBooking(r, token, event.ID.String(), 4)
	if w.Code != http.StatusCreated {
		t.Fatalf("setup booking failed: %d", w.Code)
	}
	var created struct {
		Booking models.Booking `json:"booking"`
	}
	json.Unmarshal(w.Body.Bytes(), &created)

	cancel := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPut, "/api/v1/bookings/"+created.Booking.ID.String()+"/cancel", nil)
		req.Header.Set("Authorization", token)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	if rec := cancel(); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on first cancel, got %d: %s", rec.Code, rec.Body.String())
	}

	var updated models.Event
	db.First(&updated, "id = ?", event.ID)
	if updated.BookedSeats != 0 {
		t.Errorf("cancel must release seats, booked_seats=%d", updated.BookedSeats)
	}

	// Repeated cancels report the same validation error every time.
	for i := 0; i < 2; i++ {
		rec := cancel()
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 on repeat cancel, got %d", rec.Code)
		}
		var resp struct {
			Message string `json:"message"`
		}
		json.Unmarshal(rec.Body.Bytes(), &resp)
		if resp.Message != "Booking is already cancelled." {
			t.Errorf("expected idempotent error message, got %q", resp.Message)
		}
	}
}

func TestBookingAccessControl(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouter(t, db, &fakeMailer{})

	owner := createTestUser(t, db, "owner@example.com", models.RoleUser)
	other := createTestUser(t, db, "other@example.com", models.RoleUser)
	admin := createTestUser(t, db, "admin@example.com", models.RoleAdmin)
	event := createTestEvent(t, db, 10, 20.0, time.Now().AddDate(0, 1, 0))

	w := postBooking(r, tokenFor(t, owner), event.ID.String(), 2)
	if w.Code != http.StatusCreated {
		t.Fatalf("setup booking failed: %d", w.Code)
	}
	var created struct {
		Booking models.Booking `json:"booking"`
	}
	json.Unmarshal(w.Body.Bytes(), &created)
	path := "/api/v1/bookings/" + created.Booking.ID.String()

	get := func(token string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", token)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := get(tokenFor(t, other)); code != http.StatusForbidden {
		t.Errorf("non-owner read: expected 403, got %d", code)
	}
	if code := get(tokenFor(t, admin)); code != http.StatusOK {
		t.Errorf("admin read: expected 200, got %d", code)
	}
	if code := get(tokenFor(t, owner)); code != http.StatusOK {
		t.Errorf("owner read: expected 200, got %d", code)
	}

	req := httptest.NewRequest(http.MethodPut, path+"/cancel", nil)
	req.Header.Set("Authorization", tokenFor(t, other))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("non-owner cancel: expected 403, got %d", rec.Code)
	}
}
