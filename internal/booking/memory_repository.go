package booking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is a mutex-guarded in-memory Repository. It backs the
// unit tests and keeps the same guarded-insert semantics as the Postgres
// implementation, so the service behaves identically against either.
type MemoryRepository struct {
	mu           sync.Mutex
	patients     map[uuid.UUID]Patient
	schedule     map[time.Weekday]ScheduleDay
	vacations    map[uuid.UUID]Vacation
	settings     *ClinicSettings
	appointments map[uuid.UUID]Appointment
	events       []EventLog
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		patients:     make(map[uuid.UUID]Patient),
		schedule:     make(map[time.Weekday]ScheduleDay),
		vacations:    make(map[uuid.UUID]Vacation),
		appointments: make(map[uuid.UUID]Appointment),
	}
}

func (m *MemoryRepository) AddPatient(p Patient) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patients[p.ID] = p
}

func (m *MemoryRepository) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (m *MemoryRepository) GetScheduleDay(_ context.Context, weekday time.Weekday) (*ScheduleDay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.schedule[weekday]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (m *MemoryRepository) ListScheduleDays(_ context.Context) ([]ScheduleDay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ScheduleDay
	for _, d := range m.schedule {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Weekday < out[j].Weekday })
	return out, nil
}

func (m *MemoryRepository) ReplaceSchedule(_ context.Context, days []ScheduleDay) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedule = make(map[time.Weekday]ScheduleDay)
	for _, d := range days {
		m.schedule[d.Weekday] = d
	}
	return nil
}

func (m *MemoryRepository) ListVacations(_ context.Context) ([]Vacation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Vacation
	for _, v := range m.vacations {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

func (m *MemoryRepository) VacationCovering(_ context.Context, date time.Time) (*Vacation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.vacations {
		if v.Contains(date) {
			out := v
			return &out, nil
		}
	}
	return nil, nil
}

func (m *MemoryRepository) CreateVacation(_ context.Context, v Vacation) (*Vacation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	v.CreatedAt = time.Now()
	m.vacations[v.ID] = v
	return &v, nil
}

func (m *MemoryRepository) DeleteVacation(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.vacations[id]; !ok {
		return ErrVacationNotFound
	}
	delete(m.vacations, id)
	return nil
}

func (m *MemoryRepository) GetClinicSettings(_ context.Context) (ClinicSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settings == nil {
		return ClinicSettings{}, ErrSettingsNotFound
	}
	return *m.settings, nil
}

func (m *MemoryRepository) UpdateClinicSettings(_ context.Context, s ClinicSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = &s
	return nil
}

func (m *MemoryRepository) CountActiveBySlot(_ context.Context, date time.Time) (map[TimeOfDay]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[TimeOfDay]int)
	for _, a := range m.appointments {
		if a.Date.Equal(DateOf(date)) && a.Status.IsActive() {
			counts[a.SlotTime]++
		}
	}
	return counts, nil
}

func (m *MemoryRepository) CreateAppointment(_ context.Context, p CreateParams) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := 0
	for _, a := range m.appointments {
		if !a.Date.Equal(p.Date) || a.SlotTime != p.SlotTime || !a.Status.IsActive() {
			continue
		}
		if a.PatientID == p.PatientID {
			return nil, ErrDuplicateBooking
		}
		total++
	}
	if total >= p.MaxPatientsPerSlot {
		return nil, ErrSlotFull
	}

	now := time.Now()
	appt := Appointment{
		ID:        uuid.New(),
		PatientID: p.PatientID,
		Date:      p.Date,
		SlotTime:  p.SlotTime,
		EndTime:   p.EndTime,
		Status:    StatusPending,
		Reason:    p.Reason,
		Notes:     p.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.appointments[appt.ID] = appt
	return &appt, nil
}

func (m *MemoryRepository) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (m *MemoryRepository) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, change StatusChange) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appointments[id]
	if !ok || a.Status != change.From {
		return nil, ErrAppointmentNotFound
	}

	a.Status = change.To
	a.UpdatedAt = change.At
	at := change.At
	switch change.To {
	case StatusConfirmed:
		a.ConfirmedAt = &at
	case StatusCompleted:
		a.CompletedAt = &at
		if change.AdminNotes != "" {
			a.AdminNotes = change.AdminNotes
		}
	case StatusCancelled:
		a.CancelledAt = &at
		a.CancelledBy = change.CancelledBy
		a.CancellationReason = change.CancellationReason
	}

	m.appointments[id] = a
	return &a, nil
}

func (m *MemoryRepository) ListAppointments(_ context.Context, f AppointmentFilter) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Appointment
	for _, a := range m.appointments {
		if f.Date != nil && !a.Date.Equal(DateOf(*f.Date)) {
			continue
		}
		if f.PatientID != nil && a.PatientID != *f.PatientID {
			continue
		}
		if f.Status != nil && a.Status != *f.Status {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].SlotTime < out[j].SlotTime
	})

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *MemoryRepository) FindElapsedConfirmed(_ context.Context, cutoff time.Time) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Appointment
	for _, a := range m.appointments {
		if a.Status != StatusConfirmed {
			continue
		}
		start := a.SlotTime.At(a.Date, cutoff.Location())
		if !start.After(cutoff) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev.ID = int64(len(m.events) + 1)
	m.events = append(m.events, ev)
	return nil
}

// Events returns a copy of the recorded event log, oldest first.
func (m *MemoryRepository) Events() []EventLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EventLog, len(m.events))
	copy(out, m.events)
	return out
}
