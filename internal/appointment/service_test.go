package appointment

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/doctor-appointment-booking/internal/apperr"
	"github.com/hackgods/doctor-appointment-booking/internal/availability"
	"github.com/hackgods/doctor-appointment-booking/internal/clock"
	"github.com/hackgods/doctor-appointment-booking/internal/directory"
	redisclient "github.com/hackgods/doctor-appointment-booking/internal/redis"
)

// -- Mock Repository --

type mockRepo struct {
	mu           sync.Mutex
	doctors      map[uuid.UUID]*directory.Doctor
	appointments map[uuid.UUID]*Appointment
	events       []EventLog
	doctorLocks  map[uuid.UUID]*sync.Mutex
	failEvents   bool
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		doctors:      make(map[uuid.UUID]*directory.Doctor),
		appointments: make(map[uuid.UUID]*Appointment),
		doctorLocks:  make(map[uuid.UUID]*sync.Mutex),
	}
}

func (m *mockRepo) addDoctor(timeslots string, active bool) *directory.Doctor {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := &directory.Doctor{ID: uuid.New(), IsActive: active}
	if timeslots != "" {
		d.Timeslots = &timeslots
	}
	m.doctors[d.ID] = d
	return d
}

func (m *mockRepo) getDoctor(id uuid.UUID) (*directory.Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.doctors[id]
	if !ok {
		return nil, directory.ErrDoctorNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *mockRepo) GetDoctor(_ context.Context, id uuid.UUID) (*directory.Doctor, error) {
	return m.getDoctor(id)
}

func (m *mockRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockRepo) CountActiveInWindow(_ context.Context, doctorID uuid.UUID, from, to time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.appointments {
		if a.DoctorID == doctorID && a.Status.Active() && !a.ScheduledAt.Before(from) && !a.ScheduledAt.After(to) {
			n++
		}
	}
	return n, nil
}

func (m *mockRepo) ListAppointments(_ context.Context, q Query) ([]Appointment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []Appointment
	for _, a := range m.appointments {
		if q.Matches(a) {
			matched = append(matched, *a)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].ScheduledAt.Equal(matched[j].ScheduledAt) {
			return matched[i].ScheduledAt.Before(matched[j].ScheduledAt)
		}
		return matched[i].ID.String() < matched[j].ID.String()
	})

	total := len(matched)
	if q.Skip >= total {
		return nil, total, nil
	}
	end := q.Skip + q.Limit
	if end > total {
		end = total
	}
	return matched[q.Skip:end], total, nil
}

func (m *mockRepo) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, to Status, from []Status) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	for _, s := range from {
		if a.Status == s {
			a.Status = to
			a.UpdatedAt = time.Now()
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrAppointmentNotFound
}

func (m *mockRepo) FindByStatusBetween(_ context.Context, status Status, from, to time.Time) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Appointment
	for _, a := range m.appointments {
		if a.Status == status && !a.ScheduledAt.Before(from) && a.ScheduledAt.Before(to) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *mockRepo) InsertEvent(_ context.Context, ev EventLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failEvents {
		return errors.New("event store down")
	}
	m.events = append(m.events, ev)
	return nil
}

func (m *mockRepo) eventCount(eventType string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, ev := range m.events {
		if ev.EventType == eventType {
			n++
		}
	}
	return n
}

func (m *mockRepo) doctorLock(id uuid.UUID) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.doctorLocks[id]
	if !ok {
		l = &sync.Mutex{}
		m.doctorLocks[id] = l
	}
	return l
}

// WithDoctorTx holds a per doctor mutex for the whole callback, like the
// row lock, and applies writes only when fn succeeds.
func (m *mockRepo) WithDoctorTx(ctx context.Context, doctorID uuid.UUID, fn func(ctx context.Context, tx TxRepository) error) error {
	l := m.doctorLock(doctorID)
	l.Lock()
	defer l.Unlock()

	tx := &mockTx{repo: m}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range tx.created {
		m.appointments[a.ID] = a
	}
	m.events = append(m.events, tx.events...)
	return nil
}

type mockTx struct {
	repo    *mockRepo
	created []*Appointment
	events  []EventLog
}

func (t *mockTx) GetDoctor(_ context.Context, id uuid.UUID) (*directory.Doctor, error) {
	return t.repo.getDoctor(id)
}

func (t *mockTx) CountActiveInWindow(ctx context.Context, doctorID uuid.UUID, from, to time.Time) (int, error) {
	n, err := t.repo.CountActiveInWindow(ctx, doctorID, from, to)
	if err != nil {
		return 0, err
	}
	for _, a := range t.created {
		if a.DoctorID == doctorID && !a.ScheduledAt.Before(from) && !a.ScheduledAt.After(to) {
			n++
		}
	}
	return n, nil
}

func (t *mockTx) CreateAppointment(_ context.Context, patientID uuid.UUID, req CreateRequest) (*Appointment, error) {
	now := time.Now()
	a := &Appointment{
		ID:          uuid.New(),
		PatientID:   patientID,
		DoctorID:    req.DoctorID,
		ScheduledAt: req.ScheduledAt,
		Notes:       req.Notes,
		Symptoms:    req.Symptoms,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	t.created = append(t.created, a)
	cp := *a
	return &cp, nil
}

func (t *mockTx) InsertEvent(_ context.Context, ev EventLog) error {
	t.repo.mu.Lock()
	fail := t.repo.failEvents
	t.repo.mu.Unlock()
	if fail {
		return errors.New("event store down")
	}
	t.events = append(t.events, ev)
	return nil
}

// -- Lockers --

type passLocker struct{}

func (passLocker) WithDoctorLock(ctx context.Context, _ uuid.UUID, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type busyLocker struct{}

func (busyLocker) WithDoctorLock(context.Context, uuid.UUID, func(ctx context.Context) error) error {
	return redisclient.ErrLockNotAcquired
}

// -- Helpers --

var testNow = time.Date(2025, 3, 9, 12, 0, 0, 0, time.UTC)

func newTestService(locker redisclient.Locker) (*Service, *mockRepo) {
	repo := newMockRepo()
	engine := availability.NewEngine(repo, repo, availability.DefaultPolicy(), zerolog.Nop())
	return NewService(repo, engine, locker, clock.Fixed(testNow), zerolog.Nop()), repo
}

func patient() directory.Actor {
	return directory.Actor{ID: uuid.New(), Role: directory.RolePatient}
}

func doctorActor(d *directory.Doctor) directory.Actor {
	return directory.Actor{ID: d.ID, Role: directory.RoleDoctor}
}

func admin() directory.Actor {
	return directory.Actor{ID: uuid.New(), Role: directory.RoleAdmin}
}

func on(day, hour, minute int) time.Time {
	return time.Date(2025, 3, day, hour, minute, 0, 0, time.UTC)
}

func notes() *string {
	s := gofakeit.Sentence(6)
	return &s
}

// -- Create --

func TestCreate_Success(t *testing.T) {
	svc, repo := newTestService(passLocker{})
	doc := repo.addDoctor("08:00-18:00", true)
	p := patient()

	appt, err := svc.Create(context.Background(), p, CreateRequest{
		DoctorID:    doc.ID,
		ScheduledAt: on(10, 10, 0),
		Notes:       notes(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if appt.Status != StatusPending {
		t.Errorf("expected pending, got %s", appt.Status)
	}
	if appt.PatientID != p.ID || appt.DoctorID != doc.ID {
		t.Error("appointment must reference the patient and doctor")
	}
	if repo.eventCount(EventAppointmentCreated) != 1 {
		t.Error("expected a created event")
	}
}

func TestCreate_Rejections(t *testing.T) {
	svc, repo := newTestService(passLocker{})
	doc := repo.addDoctor("08:00-12:00,14:00-18:00", true)
	inactive := repo.addDoctor("", false)

	cases := []struct {
		name  string
		actor directory.Actor
		req   CreateRequest
		want  error
	}{
		{"doctor cannot book", doctorActor(doc), CreateRequest{DoctorID: doc.ID, ScheduledAt: on(10, 9, 0)}, ErrPatientsOnly},
		{"admin cannot book", admin(), CreateRequest{DoctorID: doc.ID, ScheduledAt: on(10, 9, 0)}, ErrPatientsOnly},
		{"past instant", patient(), CreateRequest{DoctorID: doc.ID, ScheduledAt: on(8, 9, 0)}, ErrPastAppointment},
		{"before opening", patient(), CreateRequest{DoctorID: doc.ID, ScheduledAt: on(10, 7, 59)}, ErrOutsideBusinessHours},
		{"after closing", patient(), CreateRequest{DoctorID: doc.ID, ScheduledAt: on(10, 18, 1)}, ErrOutsideBusinessHours},
		{"lunch gap", patient(), CreateRequest{DoctorID: doc.ID, ScheduledAt: on(10, 13, 0)}, ErrDoctorUnavailable},
		{"inactive doctor", patient(), CreateRequest{DoctorID: inactive.ID, ScheduledAt: on(10, 9, 0)}, ErrDoctorUnavailable},
		{"unknown doctor", patient(), CreateRequest{DoctorID: uuid.New(), ScheduledAt: on(10, 9, 0)}, ErrDoctorUnavailable},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), c.actor, c.req)
			if !errors.Is(err, c.want) {
				t.Errorf("expected %v, got %v", c.want, err)
			}
		})
	}

	if len(repo.appointments) != 0 {
		t.Errorf("expected no appointments, got %d", len(repo.appointments))
	}
}

func TestCreate_ClosingTimeIsInclusive(t *testing.T) {
	svc, repo := newTestService(passLocker{})
	doc := repo.addDoctor("", true)

	for _, at := range []time.Time{on(10, 8, 0), on(10, 18, 0)} {
		if _, err := svc.Create(context.Background(), patient(), CreateRequest{DoctorID: doc.ID, ScheduledAt: at}); err != nil {
			t.Fatalf("unexpected error at %s: %v", at.Format("15:04"), err)
		}
	}
}

func TestCreate_ThenUnavailable(t *testing.T) {
	svc, repo := newTestService(passLocker{})
	doc := repo.addDoctor("08:00-18:00", true)
	at := on(10, 10, 0)

	if _, err := svc.Create(context.Background(), patient(), CreateRequest{DoctorID: doc.ID, ScheduledAt: at}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ok, err := svc.CheckAvailability(context.Background(), doc.ID, at)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("doctor must be unavailable at an instant they were just booked for")
	}
}

func TestCreate_ConflictBoundary(t *testing.T) {
	svc, repo := newTestService(passLocker{})
	doc := repo.addDoctor("08:00-18:00", true)

	if _, err := svc.Create(context.Background(), patient(), CreateRequest{DoctorID: doc.ID, ScheduledAt: on(10, 10, 0)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := svc.Create(context.Background(), patient(), CreateRequest{DoctorID: doc.ID, ScheduledAt: on(10, 10, 59)})
	if !errors.Is(err, ErrDoctorUnavailable) {
		t.Errorf("59 minutes apart must conflict, got %v", err)
	}

	if _, err := svc.Create(context.Background(), patient(), CreateRequest{DoctorID: doc.ID, ScheduledAt: on(10, 11, 0)}); err != nil {
		t.Errorf("60 minutes apart must not conflict, got %v", err)
	}
}

func TestCreate_CancelledFreesTheSlot(t *testing.T) {
	svc, repo := newTestService(passLocker{})
	doc := repo.addDoctor("08:00-18:00", true)
	p := patient()

	appt, err := svc.Create(context.Background(), p, CreateRequest{DoctorID: doc.ID, ScheduledAt: on(10, 10, 0)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Cancel(context.Background(), p, appt.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Create(context.Background(), patient(), CreateRequest{DoctorID: doc.ID, ScheduledAt: on(10, 10, 0)}); err != nil {
		t.Errorf("cancelled appointments must not block the slot, got %v", err)
	}
}

func TestCreate_LockWaitExpiredFallsBackToRowLock(t *testing.T) {
	svc, repo := newTestService(busyLocker{})
	doc := repo.addDoctor("08:00-18:00", true)

	appt, err := svc.Create(context.Background(), patient(), CreateRequest{DoctorID: doc.ID, ScheduledAt: on(10, 10, 0)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if appt.Status != StatusPending {
		t.Errorf("expected pending, got %q", appt.Status)
	}

	_, err = svc.Create(context.Background(), patient(), CreateRequest{DoctorID: doc.ID, ScheduledAt: on(10, 10, 30)})
	if !errors.Is(err, ErrDoctorUnavailable) {
		t.Errorf("expected ErrDoctorUnavailable, got %v", err)
	}
}

func TestCreate_RollsBackOnEventFailure(t *testing.T) {
	svc, repo := newTestService(passLocker{})
	doc := repo.addDoctor("08:00-18:00", true)
	repo.failEvents = true

	if _, err := svc.Create(context.Background(), patient(), CreateRequest{DoctorID: doc.ID, ScheduledAt: on(10, 10, 0)}); err == nil {
		t.Fatal("expected error")
	}
	if len(repo.appointments) != 0 {
		t.Error("appointment must not be persisted when the transaction fails")
	}
}

func TestCreate_ConcurrentSameInstant(t *testing.T) {
	lockers := map[string]redisclient.Locker{
		"row lock only":       passLocker{},
		"local doctor locker": redisclient.NewLocalLocker(5 * time.Second),
	}

	for name, locker := range lockers {
		t.Run(name, func(t *testing.T) {
			svc, repo := newTestService(locker)
			doc := repo.addDoctor("08:00-18:00", true)
			at := on(10, 10, 0)

			const n = 20
			var wg sync.WaitGroup
			var mu sync.Mutex
			successes, conflicts := 0, 0
			var unexpected []error

			start := make(chan struct{})
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					<-start
					_, err := svc.Create(context.Background(), patient(), CreateRequest{DoctorID: doc.ID, ScheduledAt: at})
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						successes++
					case apperr.KindOf(err) == apperr.KindConflict:
						conflicts++
					default:
						unexpected = append(unexpected, err)
					}
				}()
			}
			close(start)
			wg.Wait()

			if len(unexpected) > 0 {
				t.Fatalf("unexpected errors: %v", unexpected)
			}
			if successes != 1 || conflicts != n-1 {
				t.Errorf("expected 1 success and %d conflicts, got %d and %d", n-1, successes, conflicts)
			}
			if len(repo.appointments) != 1 {
				t.Errorf("expected exactly one stored appointment, got %d", len(repo.appointments))
			}
		})
	}
}

// Bookings for one doctor that do not overlap must all succeed, however
// many are in flight at once.
func TestCreate_ConcurrentDistinctInstants(t *testing.T) {
	lockers := map[string]redisclient.Locker{
		"row lock only":       passLocker{},
		"local doctor locker": redisclient.NewLocalLocker(5 * time.Second),
	}

	for name, locker := range lockers {
		t.Run(name, func(t *testing.T) {
			svc, repo := newTestService(locker)
			doc := repo.addDoctor("08:00-18:00", true)

			var (
				wg    sync.WaitGroup
				mu    sync.Mutex
				errs  []error
				start = make(chan struct{})
			)
			slots := 0
			for h := 8; h < 18; h++ {
				slots++
				at := on(10, h, 0)
				wg.Add(1)
				go func() {
					defer wg.Done()
					<-start
					if _, err := svc.Create(context.Background(), patient(), CreateRequest{DoctorID: doc.ID, ScheduledAt: at}); err != nil {
						mu.Lock()
						errs = append(errs, err)
						mu.Unlock()
					}
				}()
			}
			close(start)
			wg.Wait()

			if len(errs) > 0 {
				t.Fatalf("expected every non-overlapping booking to succeed, got %v", errs)
			}
			if len(repo.appointments) != slots {
				t.Errorf("expected %d stored appointments, got %d", slots, len(repo.appointments))
			}
		})
	}
}

// -- Status updates --

func TestUpdateStatus(t *testing.T) {
	svc, repo := newTestService(passLocker{})
	doc := repo.addDoctor("08:00-18:00", true)
	other := repo.addDoctor("08:00-18:00", true)
	p := patient()

	appt, err := svc.Create(context.Background(), p, CreateRequest{DoctorID: doc.ID, ScheduledAt: on(10, 10, 0)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.UpdateStatus(context.Background(), p, appt.ID, StatusConfirmed); !errors.Is(err, ErrDoctorsOnly) {
		t.Errorf("expected ErrDoctorsOnly for patient, got %v", err)
	}
	if _, err := svc.UpdateStatus(context.Background(), doctorActor(other), appt.ID, StatusConfirmed); !errors.Is(err, ErrAppointmentNotFound) {
		t.Errorf("expected ErrAppointmentNotFound for another doctor, got %v", err)
	}
	if _, err := svc.UpdateStatus(context.Background(), doctorActor(doc), uuid.New(), StatusConfirmed); !errors.Is(err, ErrAppointmentNotFound) {
		t.Errorf("expected ErrAppointmentNotFound for unknown id, got %v", err)
	}
	if _, err := svc.UpdateStatus(context.Background(), doctorActor(doc), appt.ID, Status("archived")); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}

	updated, err := svc.UpdateStatus(context.Background(), doctorActor(doc), appt.ID, StatusConfirmed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != StatusConfirmed {
		t.Errorf("expected confirmed, got %s", updated.Status)
	}

	if _, err := svc.UpdateStatus(context.Background(), doctorActor(doc), appt.ID, StatusPending); !errors.Is(err, ErrBackToPending) {
		t.Errorf("expected ErrBackToPending, got %v", err)
	}
	if repo.eventCount(EventAppointmentStatusChanged) != 1 {
		t.Error("expected exactly one status change event")
	}
}

func TestUpdateStatus_SkippingConfirmIsAllowed(t *testing.T) {
	svc, repo := newTestService(passLocker{})
	doc := repo.addDoctor("", true)

	appt, err := svc.Create(context.Background(), patient(), CreateRequest{DoctorID: doc.ID, ScheduledAt: on(10, 10, 0)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	updated, err := svc.UpdateStatus(context.Background(), doctorActor(doc), appt.ID, StatusCompleted)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != StatusCompleted {
		t.Errorf("expected completed, got %s", updated.Status)
	}
}

// -- Cancel --

func TestCancel_Permissions(t *testing.T) {
	svc, repo := newTestService(passLocker{})
	doc := repo.addDoctor("", true)
	owner := patient()

	book := func(hour int) *Appointment {
		appt, err := svc.Create(context.Background(), owner, CreateRequest{DoctorID: doc.ID, ScheduledAt: on(10, hour, 0)})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return appt
	}

	appt := book(9)
	if _, err := svc.Cancel(context.Background(), patient(), appt.ID); !errors.Is(err, ErrNotCancelable) {
		t.Errorf("expected ErrNotCancelable for another patient, got %v", err)
	}
	if _, err := svc.Cancel(context.Background(), directory.Actor{ID: uuid.New(), Role: directory.RoleDoctor}, appt.ID); !errors.Is(err, ErrNotCancelable) {
		t.Errorf("expected ErrNotCancelable for another doctor, got %v", err)
	}
	if _, err := svc.Cancel(context.Background(), owner, uuid.New()); !errors.Is(err, ErrNotCancelable) {
		t.Errorf("expected ErrNotCancelable for unknown id, got %v", err)
	}

	for _, actor := range []directory.Actor{owner, doctorActor(doc), admin()} {
		a := book(11 + len(repo.appointments))
		cancelled, err := svc.Cancel(context.Background(), actor, a.ID)
		if err != nil {
			t.Fatalf("unexpected error for %s: %v", actor.Role, err)
		}
		if cancelled.Status != StatusCancelled {
			t.Errorf("expected cancelled, got %s", cancelled.Status)
		}
	}
}

func TestCancel_Idempotence(t *testing.T) {
	svc, repo := newTestService(passLocker{})
	doc := repo.addDoctor("", true)
	p := patient()

	appt, err := svc.Create(context.Background(), p, CreateRequest{DoctorID: doc.ID, ScheduledAt: on(10, 10, 0)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Cancel(context.Background(), p, appt.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = svc.Cancel(context.Background(), p, appt.ID)
	if !errors.Is(err, ErrNotCancelable) {
		t.Fatalf("expected ErrNotCancelable, got %v", err)
	}
	if apperr.KindOf(err) != apperr.KindState {
		t.Errorf("expected state kind, got %q", apperr.KindOf(err))
	}
	if repo.appointments[appt.ID].Status != StatusCancelled {
		t.Error("state must be unchanged")
	}
	if repo.eventCount(EventAppointmentCancelled) != 1 {
		t.Error("expected one cancellation event")
	}
}

func TestCancel_CompletedIsTerminal(t *testing.T) {
	svc, repo := newTestService(passLocker{})
	doc := repo.addDoctor("", true)
	p := patient()

	appt, err := svc.Create(context.Background(), p, CreateRequest{DoctorID: doc.ID, ScheduledAt: on(10, 10, 0)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.UpdateStatus(context.Background(), doctorActor(doc), appt.ID, StatusCompleted); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Cancel(context.Background(), p, appt.ID); !errors.Is(err, ErrNotCancelable) {
		t.Errorf("expected ErrNotCancelable, got %v", err)
	}
}

// -- Full lifecycle --

func TestLifecycleScenario(t *testing.T) {
	svc, repo := newTestService(passLocker{})
	doc := repo.addDoctor("08:00-18:00", true)
	fee := 500.0
	doc.ConsultationFee = &fee
	p := patient()

	appt, err := svc.Create(context.Background(), p, CreateRequest{
		DoctorID:    doc.ID,
		ScheduledAt: time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC),
		Symptoms:    notes(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if appt.Status != StatusPending {
		t.Fatalf("expected pending, got %s", appt.Status)
	}

	confirmed, err := svc.UpdateStatus(context.Background(), doctorActor(doc), appt.ID, StatusConfirmed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if confirmed.Status != StatusConfirmed {
		t.Fatalf("expected confirmed, got %s", confirmed.Status)
	}

	cancelled, err := svc.Cancel(context.Background(), p, appt.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}

	if _, err := svc.Cancel(context.Background(), p, appt.ID); !errors.Is(err, ErrNotCancelable) {
		t.Errorf("expected ErrNotCancelable, got %v", err)
	}
}

// -- Get / List --

func TestGet_Visibility(t *testing.T) {
	svc, repo := newTestService(passLocker{})
	doc := repo.addDoctor("", true)
	p := patient()

	appt, err := svc.Create(context.Background(), p, CreateRequest{DoctorID: doc.ID, ScheduledAt: on(10, 10, 0)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, actor := range []directory.Actor{p, doctorActor(doc), admin()} {
		if _, err := svc.Get(context.Background(), actor, appt.ID); err != nil {
			t.Errorf("expected %s to see the appointment, got %v", actor.Role, err)
		}
	}
	if _, err := svc.Get(context.Background(), patient(), appt.ID); !errors.Is(err, ErrAppointmentNotFound) {
		t.Errorf("expected ErrAppointmentNotFound for another patient, got %v", err)
	}
}

func TestList_ScopedAndPaginated(t *testing.T) {
	svc, repo := newTestService(passLocker{})
	doc := repo.addDoctor("", true)
	otherDoc := repo.addDoctor("", true)
	p := patient()
	other := patient()

	for hour := 8; hour <= 17; hour++ {
		if _, err := svc.Create(context.Background(), p, CreateRequest{DoctorID: doc.ID, ScheduledAt: on(10, hour, 0)}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if _, err := svc.Create(context.Background(), other, CreateRequest{DoctorID: otherDoc.ID, ScheduledAt: on(10, 10, 0)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	page, err := svc.List(context.Background(), p, Filter{Skip: 2, Limit: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Total != 10 {
		t.Errorf("expected total 10, got %d", page.Total)
	}
	if len(page.Appointments) != 3 {
		t.Fatalf("expected 3 appointments, got %d", len(page.Appointments))
	}
	if page.Appointments[0].ScheduledAt.Hour() != 10 {
		t.Errorf("expected ascending order starting at 10:00, got %s", page.Appointments[0].ScheduledAt.Format("15:04"))
	}

	page, err = svc.List(context.Background(), doctorActor(otherDoc), Filter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Total != 1 || page.Limit != DefaultLimit {
		t.Errorf("expected 1 appointment with default limit, got total=%d limit=%d", page.Total, page.Limit)
	}

	page, err = svc.List(context.Background(), admin(), Filter{Limit: 1000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Total != 11 || page.Limit != MaxLimit {
		t.Errorf("expected admin to see all 11 with max limit, got total=%d limit=%d", page.Total, page.Limit)
	}

	// patient filtering on someone else's id sees nothing
	page, err = svc.List(context.Background(), p, Filter{PatientID: &other.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Total != 0 || page.Appointments == nil {
		t.Errorf("expected an empty page, got total=%d", page.Total)
	}
}

func TestList_InvalidFilter(t *testing.T) {
	svc, _ := newTestService(passLocker{})
	bad := Status("archived")
	if _, err := svc.List(context.Background(), admin(), Filter{Status: &bad}); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}

	start, end := on(11, 0, 0), on(10, 0, 0)
	if _, err := svc.List(context.Background(), admin(), Filter{Start: &start, End: &end}); !errors.Is(err, ErrInvalidQuery) {
		t.Errorf("expected ErrInvalidQuery, got %v", err)
	}
}
