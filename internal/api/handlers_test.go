package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/medilink/appointment-engine/internal/appointment"
	"github.com/medilink/appointment-engine/internal/availability"
	"github.com/medilink/appointment-engine/internal/schedule"
)

// memRepo is the in-memory appointment store backing the API tests.
type memRepo struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*appointment.Appointment
}

func newMemRepo() *memRepo {
	return &memRepo{byID: make(map[uuid.UUID]*appointment.Appointment)}
}

func (r *memRepo) GetByID(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.byID[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, appointment.ErrAppointmentNotFound
}

func (r *memRepo) GetByIdempotencyKey(ctx context.Context, key string) (*appointment.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.byID {
		if a.IdempotencyKey == key {
			cp := *a
			return &cp, nil
		}
	}
	return nil, appointment.ErrAppointmentNotFound
}

func (r *memRepo) GetConfirmedForSlot(ctx context.Context, doctorID uuid.UUID, slotStart, slotEnd time.Time) (*appointment.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.byID {
		if a.Status == appointment.StatusConfirmed && a.DoctorID == doctorID &&
			a.SlotStart.Equal(slotStart) && a.SlotEnd.Equal(slotEnd) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, appointment.ErrAppointmentNotFound
}

func (r *memRepo) ListConfirmedInRange(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]appointment.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []appointment.Appointment
	for _, a := range r.byID {
		if a.Status == appointment.StatusConfirmed && a.DoctorID == doctorID &&
			!a.SlotStart.Before(from) && a.SlotStart.Before(to) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *memRepo) InsertConfirmed(ctx context.Context, a *appointment.Appointment) (*appointment.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if existing.IdempotencyKey == a.IdempotencyKey {
			return nil, appointment.ErrKeyTaken
		}
		if existing.Status == appointment.StatusConfirmed && existing.DoctorID == a.DoctorID &&
			existing.SlotStart.Equal(a.SlotStart) && existing.SlotEnd.Equal(a.SlotEnd) {
			return nil, appointment.ErrSlotTaken
		}
	}
	cp := *a
	cp.ID = uuid.New()
	cp.Status = appointment.StatusConfirmed
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	r.byID[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (r *memRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to appointment.Status) (*appointment.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok || a.Status != from {
		return nil, appointment.ErrAppointmentNotFound
	}
	a.Status = to
	cp := *a
	return &cp, nil
}

func (r *memRepo) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]appointment.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []appointment.Appointment
	for _, a := range r.byID {
		if a.PatientID == patientID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *memRepo) ListByDoctorAndDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]appointment.Appointment, error) {
	day := date.UTC().Truncate(24 * time.Hour)
	return r.ListConfirmedInRange(ctx, doctorID, day, day.AddDate(0, 0, 1))
}

func (r *memRepo) ListConfirmedStartingBetween(ctx context.Context, from, to time.Time) ([]appointment.Appointment, error) {
	return nil, nil
}

func (r *memRepo) InsertEvent(ctx context.Context, ev appointment.EventLog) error { return nil }

type passLocker struct{}

func (passLocker) WithSlotLock(ctx context.Context, doctorID uuid.UUID, slotStart time.Time, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type staticSource struct {
	blocks []schedule.WorkBlock
}

func (s *staticSource) Blocks(ctx context.Context, doctorID uuid.UUID, day time.Time, shift schedule.Shift) ([]schedule.WorkBlock, error) {
	var out []schedule.WorkBlock
	for _, b := range s.blocks {
		if b.DoctorID == doctorID && b.Date.Equal(day) && b.Shift == shift {
			out = append(out, b)
		}
	}
	return out, nil
}

type apiFixture struct {
	server   *httptest.Server
	doctorID uuid.UUID
	day      time.Time
}

func newAPIFixture(t *testing.T) *apiFixture {
	return newAPIFixtureWithCache(t, nil)
}

func newAPIFixtureWithCache(t *testing.T, cache *availability.GridCache) *apiFixture {
	t.Helper()

	doctorID := uuid.New()
	day := time.Now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, 1)

	repo := newMemRepo()
	appointments := appointment.NewService(repo, passLocker{}, zap.NewNop(), nil)

	source := &staticSource{blocks: []schedule.WorkBlock{{
		DoctorID: doctorID,
		Date:     day,
		Shift:    schedule.ShiftMorning,
		Start:    day.Add(9 * time.Hour),
		End:      day.Add(11 * time.Hour),
		RoomID:   3,
	}}}
	resolver := schedule.NewResolver(source, 24, zap.NewNop())
	grids := availability.NewService(resolver, repo, cache, 30*time.Minute, zap.NewNop(), nil)

	router := NewRouter(RouterConfig{
		Appointments: appointments,
		Availability: grids,
		Logger:       zap.NewNop(),
		Env:          "dev",
		Version:      "test",
		HorizonDays:  7,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &apiFixture{server: srv, doctorID: doctorID, day: day}
}

func (f *apiFixture) commitBody(patientID uuid.UUID, startHour int) []byte {
	start := f.day.Add(time.Duration(startHour) * time.Hour)
	body, _ := json.Marshal(CommitAppointmentRequest{
		IdempotencyKey: uuid.NewString(),
		DoctorID:       f.doctorID.String(),
		PatientID:      patientID.String(),
		SlotStart:      start,
		SlotEnd:        start.Add(30 * time.Minute),
		ShiftStart:     f.day.Add(9 * time.Hour),
		Symptoms:       []string{"headache"},
	})
	return body
}

func (f *apiFixture) postCommit(t *testing.T, body []byte) *http.Response {
	t.Helper()
	resp, err := http.Post(f.server.URL+"/appointments", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	return resp
}

func decodeAppointment(t *testing.T, resp *http.Response) AppointmentResponse {
	t.Helper()
	defer resp.Body.Close()
	var out AppointmentResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestCommitEndpointCreatesAppointment(t *testing.T) {
	f := newAPIFixture(t)
	patientID := uuid.New()

	resp := f.postCommit(t, f.commitBody(patientID, 10))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	appt := decodeAppointment(t, resp)
	assert.Equal(t, f.doctorID, appt.DoctorID)
	assert.Equal(t, patientID, appt.PatientID)
	assert.Equal(t, "confirmed", appt.Status)
	// 09:00 block start, 10:00 slot: third visit of the shift.
	assert.Equal(t, 3, appt.Number)
}

func TestCommitEndpointConflict(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.postCommit(t, f.commitBody(uuid.New(), 10))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = f.postCommit(t, f.commitBody(uuid.New(), 10))
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var errResp ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
	assert.Equal(t, "slot_conflict", errResp.Error)
}

func TestCommitEndpointValidation(t *testing.T) {
	f := newAPIFixture(t)

	cases := []struct {
		name string
		body string
		code string
	}{
		{"malformed json", "{not json", "invalid_request_body"},
		{"bad doctor id", `{"doctor_id":"nope","patient_id":"` + uuid.NewString() + `"}`, "invalid_doctor_id"},
		{"bad patient id", `{"doctor_id":"` + uuid.NewString() + `","patient_id":"nope"}`, "invalid_patient_id"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := f.postCommit(t, []byte(tc.body))
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

			var errResp ErrorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
			assert.Equal(t, tc.code, errResp.Error)
		})
	}
}

func TestCommitEndpointMissingSymptoms(t *testing.T) {
	f := newAPIFixture(t)

	body, _ := json.Marshal(CommitAppointmentRequest{
		IdempotencyKey: uuid.NewString(),
		DoctorID:       f.doctorID.String(),
		PatientID:      uuid.NewString(),
		SlotStart:      f.day.Add(10 * time.Hour),
		SlotEnd:        f.day.Add(10*time.Hour + 30*time.Minute),
	})

	resp := f.postCommit(t, body)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetAppointmentEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	created := decodeAppointment(t, f.postCommit(t, f.commitBody(uuid.New(), 10)))

	resp, err := http.Get(fmt.Sprintf("%s/appointments/%s", f.server.URL, created.ID))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := decodeAppointment(t, resp)
	assert.Equal(t, created.ID, got.ID)
}

func TestGetAppointmentNotFound(t *testing.T) {
	f := newAPIFixture(t)

	resp, err := http.Get(fmt.Sprintf("%s/appointments/%s", f.server.URL, uuid.New()))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetAppointmentBadID(t *testing.T) {
	f := newAPIFixture(t)

	resp, err := http.Get(f.server.URL + "/appointments/not-a-uuid")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCancelEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	created := decodeAppointment(t, f.postCommit(t, f.commitBody(uuid.New(), 10)))

	resp, err := http.Post(fmt.Sprintf("%s/appointments/%s/cancel", f.server.URL, created.ID), "application/json", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cancelled := decodeAppointment(t, resp)
	assert.Equal(t, "cancelled", cancelled.Status)

	// Cancelling again is a no-op 200.
	resp, err = http.Post(fmt.Sprintf("%s/appointments/%s/cancel", f.server.URL, created.ID), "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCancelEndpointNotFound(t *testing.T) {
	f := newAPIFixture(t)

	resp, err := http.Post(fmt.Sprintf("%s/appointments/%s/cancel", f.server.URL, uuid.New()), "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAvailabilityEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	// Book the 10:00 slot, then check the grid reflects it.
	resp := f.postCommit(t, f.commitBody(uuid.New(), 10))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp, err := http.Get(fmt.Sprintf("%s/doctors/%s/availability?days=2", f.server.URL, f.doctorID))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var grid []struct {
		Start  time.Time `json:"start"`
		Status string    `json:"status"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&grid))
	require.Len(t, grid, 4)

	byStart := make(map[time.Time]string)
	for _, s := range grid {
		byStart[s.Start] = s.Status
	}
	assert.Equal(t, "BOOKED", byStart[f.day.Add(10*time.Hour)])
	assert.Equal(t, "AVAILABLE", byStart[f.day.Add(9*time.Hour)])
}

func (f *apiFixture) fetchGridStatuses(t *testing.T) map[time.Time]string {
	t.Helper()

	resp, err := http.Get(fmt.Sprintf("%s/doctors/%s/availability?days=2", f.server.URL, f.doctorID))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var grid []struct {
		Start  time.Time `json:"start"`
		Status string    `json:"status"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&grid))

	byStart := make(map[time.Time]string)
	for _, s := range grid {
		byStart[s.Start] = s.Status
	}
	return byStart
}

func TestCommitAndCancelRefreshCachedGrid(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	// A TTL this long would pin a stale grid for the whole test without the
	// drop on commit and cancel.
	f := newAPIFixtureWithCache(t, availability.NewGridCache(rdb, time.Hour))

	// Prime the cache.
	require.Equal(t, "AVAILABLE", f.fetchGridStatuses(t)[f.day.Add(10*time.Hour)])

	resp := f.postCommit(t, f.commitBody(uuid.New(), 10))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	appt := decodeAppointment(t, resp)

	assert.Equal(t, "BOOKED", f.fetchGridStatuses(t)[f.day.Add(10*time.Hour)])

	resp, err := http.Post(fmt.Sprintf("%s/appointments/%s/cancel", f.server.URL, appt.ID), "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "AVAILABLE", f.fetchGridStatuses(t)[f.day.Add(10*time.Hour)])
}

func TestAvailabilitySummaryEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	resp, err := http.Get(fmt.Sprintf("%s/doctors/%s/availability/summary?days=2", f.server.URL, f.doctorID))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var summary []struct {
		Date      time.Time `json:"date"`
		Available int       `json:"available"`
		Total     int       `json:"total"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summary))
	require.Len(t, summary, 1)
	assert.Equal(t, 4, summary[0].Total)
	assert.Equal(t, 4, summary[0].Available)
}

func TestListPatientAppointmentsEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	patientID := uuid.New()

	resp := f.postCommit(t, f.commitBody(patientID, 9))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp, err := http.Get(fmt.Sprintf("%s/patients/%s/appointments", f.server.URL, patientID))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var appts []AppointmentResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&appts))
	require.Len(t, appts, 1)
	assert.Equal(t, patientID, appts[0].PatientID)
}

func TestListDoctorDayAppointmentsEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.postCommit(t, f.commitBody(uuid.New(), 10))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	url := fmt.Sprintf("%s/doctors/%s/appointments?date=%s", f.server.URL, f.doctorID, f.day.Format("2006-01-02"))
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var appts []AppointmentResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&appts))
	require.Len(t, appts, 1)

	// Malformed date is rejected.
	resp, err = http.Get(fmt.Sprintf("%s/doctors/%s/appointments?date=10-09-2026", f.server.URL, f.doctorID))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLivenessEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	resp, err := http.Get(f.server.URL + "/health/live")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}
