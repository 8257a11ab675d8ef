package alert

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/surveyhos/surveyhos/internal/domain/response"
	"github.com/surveyhos/surveyhos/internal/domain/staff"
	"github.com/surveyhos/surveyhos/internal/platform/apperr"
)

type mockNotificationRepo struct {
	mu      sync.Mutex
	store   map[uuid.UUID]*Notification
	seq     time.Time
	failFor map[uuid.UUID]bool
}

func newMockNotificationRepo() *mockNotificationRepo {
	return &mockNotificationRepo{
		store:   make(map[uuid.UUID]*Notification),
		seq:     time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC),
		failFor: map[uuid.UUID]bool{},
	}
}

func (m *mockNotificationRepo) Create(_ context.Context, n *Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFor[n.RecipientID] {
		return errors.New("insert failed")
	}
	n.ID = uuid.New()
	m.seq = m.seq.Add(time.Second)
	n.CreatedAt = m.seq
	cp := *n
	m.store[n.ID] = &cp
	return nil
}

func (m *mockNotificationRepo) GetByID(_ context.Context, id uuid.UUID) (*Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.store[id]
	if !ok {
		return nil, apperr.NotFound("notification", id.String())
	}
	cp := *n
	return &cp, nil
}

func (m *mockNotificationRepo) MarkRead(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.store[id]
	if !ok {
		return apperr.NotFound("notification", id.String())
	}
	n.IsRead = true
	return nil
}

func (m *mockNotificationRepo) filter(recipientID uuid.UUID, unreadOnly bool) []*Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Notification
	for _, n := range m.store {
		if n.RecipientID == recipientID && (!unreadOnly || !n.IsRead) {
			cp := *n
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func page(items []*Notification, limit, offset int) []*Notification {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}

func (m *mockNotificationRepo) ListByRecipient(_ context.Context, recipientID uuid.UUID, limit, offset int) ([]*Notification, int, error) {
	all := m.filter(recipientID, false)
	return page(all, limit, offset), len(all), nil
}

func (m *mockNotificationRepo) ListUnread(_ context.Context, recipientID uuid.UUID, limit int) ([]*Notification, int, error) {
	all := m.filter(recipientID, true)
	return page(all, limit, 0), len(all), nil
}

func (m *mockNotificationRepo) forRecipient(id uuid.UUID) []*Notification {
	return m.filter(id, false)
}

func (m *mockNotificationRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.store)
}

type mockDirectory struct {
	managers map[uuid.UUID][]*staff.Staff
	admins   []*staff.Staff
	err      error
}

func (m *mockDirectory) ManagersOfPoint(_ context.Context, pointID uuid.UUID) ([]*staff.Staff, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.managers[pointID], nil
}

func (m *mockDirectory) Admins(_ context.Context) ([]*staff.Staff, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.admins, nil
}

func strPtr(s string) *string { return &s }

func member(username string, admin bool, email, line string) *staff.Staff {
	s := &staff.Staff{ID: uuid.New(), Username: username, IsAdmin: admin, IsActive: true}
	if email != "" {
		s.Email = strPtr(email)
	}
	if line != "" {
		s.LineUserID = strPtr(line)
	}
	return s
}

// lowScoreResponse builds a recorded response at pointID with the given ratings.
func lowScoreResponse(pointID uuid.UUID, ratings ...int) *response.Response {
	surveyID := uuid.New()
	at := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	r := &response.Response{
		ID:               uuid.New(),
		SurveyID:         &surveyID,
		ServicePointID:   &pointID,
		ServicePointName: strPtr("Laboratory"),
		SubmittedAt:      &at,
	}
	r.RespondentRole = response.RolePatient
	for i := range ratings {
		v := ratings[i]
		q := uuid.New()
		r.Answers = append(r.Answers, &response.Answer{ID: uuid.New(), ResponseID: r.ID, QuestionID: &q, Rating: &v})
	}
	return r
}
