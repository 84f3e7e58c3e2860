package services

import (
	"context"
	"time"

	"eventbooking/internal/domain"
)

// mockUnitOfWork runs the transactional function directly; repository mocks
// below record the calls the function makes.
type mockUnitOfWork struct {
	err error
}

func (m *mockUnitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.err != nil {
		return m.err
	}
	return fn(ctx)
}

type mockDispatcher struct {
	dispatched []domain.DomainEvent
	err        error
}

func (m *mockDispatcher) Dispatch(ctx context.Context, events []domain.DomainEvent) error {
	if m.err != nil {
		return m.err
	}
	m.dispatched = append(m.dispatched, events...)
	return nil
}

type mockEventRepo struct {
	events  map[string]*domain.Event
	updated []*domain.Event
	err     error
}

func (m *mockEventRepo) Create(ctx context.Context, event *domain.Event) error {
	if m.err != nil {
		return m.err
	}
	event.ID = "ev-created"
	return nil
}

func (m *mockEventRepo) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	return m.get(id)
}

func (m *mockEventRepo) GetByIDForUpdate(ctx context.Context, id string) (*domain.Event, error) {
	return m.get(id)
}

func (m *mockEventRepo) get(id string) (*domain.Event, error) {
	if m.err != nil {
		return nil, m.err
	}
	ev, ok := m.events[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return ev, nil
}

func (m *mockEventRepo) Update(ctx context.Context, event *domain.Event) error {
	m.updated = append(m.updated, event)
	return nil
}

func (m *mockEventRepo) ListPublished(ctx context.Context, p domain.PaginationParams) ([]*domain.Event, int, error) {
	var out []*domain.Event
	for _, ev := range m.events {
		if ev.Published {
			out = append(out, ev)
		}
	}
	return out, len(out), nil
}

func (m *mockEventRepo) ListByOrganizer(ctx context.Context, organizerID string) ([]*domain.Event, error) {
	return nil, nil
}

func (m *mockEventRepo) Delete(ctx context.Context, id string) error {
	delete(m.events, id)
	return nil
}

type mockRegRepo struct {
	regs      map[string]*domain.EventRegistration
	active    map[string]*domain.EventRegistration // keyed by eventID:userID
	waitlist  []*domain.EventRegistration
	nextPos   int
	created   []*domain.EventRegistration
	updated   []*domain.EventRegistration
	createErr error
}

func (m *mockRegRepo) Create(ctx context.Context, reg *domain.EventRegistration) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, reg)
	return nil
}

func (m *mockRegRepo) GetByID(ctx context.Context, id string) (*domain.EventRegistration, error) {
	reg, ok := m.regs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return reg, nil
}

func (m *mockRegRepo) GetActiveByEventAndUser(ctx context.Context, eventID, userID string) (*domain.EventRegistration, error) {
	reg, ok := m.active[eventID+":"+userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return reg, nil
}

func (m *mockRegRepo) Update(ctx context.Context, reg *domain.EventRegistration) error {
	m.updated = append(m.updated, reg)
	return nil
}

func (m *mockRegRepo) ListWaitlistedByEvent(ctx context.Context, eventID string) ([]*domain.EventRegistration, error) {
	return m.waitlist, nil
}

func (m *mockRegRepo) CountByEventAndStatus(ctx context.Context, eventID string, status domain.RegistrationStatus) (int, error) {
	count := 0
	for _, reg := range m.regs {
		if reg.EventID == eventID && reg.Status == status {
			count++
		}
	}
	return count, nil
}

func (m *mockRegRepo) NextWaitlistPosition(ctx context.Context, eventID string) (int, error) {
	if m.nextPos == 0 {
		return 1, nil
	}
	return m.nextPos, nil
}

func (m *mockRegRepo) ListByEvent(ctx context.Context, eventID string, status *domain.RegistrationStatus, p domain.PaginationParams) ([]*domain.EventRegistration, int, error) {
	var out []*domain.EventRegistration
	for _, reg := range m.regs {
		if reg.EventID != eventID {
			continue
		}
		if status != nil && reg.Status != *status {
			continue
		}
		out = append(out, reg)
	}
	return out, len(out), nil
}

func (m *mockRegRepo) DeleteCancelledBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

type mockUserRepo struct {
	users map[string]*domain.User
}

func (m *mockUserRepo) Create(ctx context.Context, user *domain.User) error { return nil }

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return u, nil
}

func (m *mockUserRepo) AssignRole(ctx context.Context, userID, roleID string) error { return nil }

type mockOutboxRepo struct {
	inserted  []*domain.OutboxMessage
	insertErr error
}

func (m *mockOutboxRepo) Insert(ctx context.Context, msg *domain.OutboxMessage) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.inserted = append(m.inserted, msg)
	return nil
}

func (m *mockOutboxRepo) ClaimPending(ctx context.Context, workerID string, limit int, now time.Time) ([]*domain.OutboxMessage, error) {
	return nil, nil
}

func (m *mockOutboxRepo) MarkProcessed(ctx context.Context, id string, now time.Time) error {
	return nil
}

func (m *mockOutboxRepo) Reschedule(ctx context.Context, id string, retryCount int, lastError string, nextAttemptAt time.Time) error {
	return nil
}

func (m *mockOutboxRepo) MarkDead(ctx context.Context, id string, lastError string) error {
	return nil
}

func (m *mockOutboxRepo) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}
