package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-adp-api/internal/models"
	"github.com/noah-isme/exam-adp-api/internal/repository"
	appErrors "github.com/noah-isme/exam-adp-api/pkg/errors"
)

type memScheduleRepo struct {
	schedules map[string]*models.Schedule
	createErr error
	seq       int
}

func (m *memScheduleRepo) List(ctx context.Context, filter models.ScheduleFilter) ([]models.Schedule, int, error) {
	var list []models.Schedule
	for _, schedule := range m.schedules {
		list = append(list, *schedule)
	}
	return list, len(list), nil
}

func (m *memScheduleRepo) FindByID(ctx context.Context, id string) (*models.Schedule, error) {
	if schedule, ok := m.schedules[id]; ok {
		copied := *schedule
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *memScheduleRepo) ListByRoomAndDay(ctx context.Context, room, dayOfWeek string) ([]models.Schedule, error) {
	var list []models.Schedule
	for _, schedule := range m.schedules {
		if schedule.Room == room && schedule.DayOfWeek == dayOfWeek {
			list = append(list, *schedule)
		}
	}
	return list, nil
}

func (m *memScheduleRepo) Create(ctx context.Context, schedule *models.Schedule) error {
	if m.createErr != nil {
		return m.createErr
	}
	if m.schedules == nil {
		m.schedules = map[string]*models.Schedule{}
	}
	m.seq++
	schedule.ID = fmt.Sprintf("sched%d", m.seq)
	copied := *schedule
	m.schedules[schedule.ID] = &copied
	return nil
}

func (m *memScheduleRepo) Update(ctx context.Context, schedule *models.Schedule) error {
	copied := *schedule
	m.schedules[schedule.ID] = &copied
	return nil
}

func (m *memScheduleRepo) Delete(ctx context.Context, id string) error {
	delete(m.schedules, id)
	return nil
}

type stubCatalog struct {
	classes map[string]*models.Class
	courses map[string]*models.Course
}

func (s *stubCatalog) FindClass(ctx context.Context, id string) (*models.Class, error) {
	if class, ok := s.classes[id]; ok {
		return class, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubCatalog) FindCourse(ctx context.Context, id string) (*models.Course, error) {
	if course, ok := s.courses[id]; ok {
		return course, nil
	}
	return nil, sql.ErrNoRows
}

func defaultCatalog() *stubCatalog {
	return &stubCatalog{
		classes: map[string]*models.Class{
			"class1": {ID: "class1", DepartmentID: "dept1"},
			"classX": {ID: "classX", DepartmentID: "deptX"},
		},
		courses: map[string]*models.Course{
			"course1": {ID: "course1", DepartmentID: "dept1"},
		},
	}
}

func newScheduleFixture() (*ScheduleService, *memScheduleRepo) {
	repo := &memScheduleRepo{}
	svc := NewScheduleService(repo, defaultCatalog(), validator.New(), zap.NewNop())
	return svc, repo
}

func slotRequest(day, start, end string) ProposeScheduleRequest {
	return ProposeScheduleRequest{
		ClassID:   "class1",
		CourseID:  "course1",
		Room:      "R1",
		DayOfWeek: day,
		StartTime: start,
		EndTime:   end,
	}
}

func TestProposeStoresMinutes(t *testing.T) {
	svc, _ := newScheduleFixture()

	schedule, err := svc.Propose(context.Background(), slotRequest("monday", "09:00", "10:00"))
	require.NoError(t, err)
	assert.Equal(t, "MONDAY", schedule.DayOfWeek)
	assert.Equal(t, 540, schedule.StartMinute)
	assert.Equal(t, 600, schedule.EndMinute)
	assert.Equal(t, "dept1", schedule.DepartmentID)
}

func TestProposeOverlapRejected(t *testing.T) {
	svc, _ := newScheduleFixture()

	_, err := svc.Propose(context.Background(), slotRequest("MONDAY", "09:00", "10:00"))
	require.NoError(t, err)

	_, err = svc.Propose(context.Background(), slotRequest("MONDAY", "09:30", "10:30"))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrRoomTimeConflict))

	var conflict *models.ScheduleConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "R1", conflict.Conflict.Room)
	assert.Equal(t, 540, conflict.Conflict.StartMinute)
}

func TestProposeTouchingIntervalsAccepted(t *testing.T) {
	svc, repo := newScheduleFixture()

	_, err := svc.Propose(context.Background(), slotRequest("MONDAY", "09:00", "10:00"))
	require.NoError(t, err)
	_, err = svc.Propose(context.Background(), slotRequest("MONDAY", "10:00", "11:00"))
	require.NoError(t, err)
	assert.Len(t, repo.schedules, 2)
}

func TestProposeDifferentDayOrRoomNoConflict(t *testing.T) {
	svc, _ := newScheduleFixture()

	_, err := svc.Propose(context.Background(), slotRequest("MONDAY", "09:00", "10:00"))
	require.NoError(t, err)

	_, err = svc.Propose(context.Background(), slotRequest("TUESDAY", "09:00", "10:00"))
	require.NoError(t, err)

	other := slotRequest("MONDAY", "09:00", "10:00")
	other.Room = "R2"
	_, err = svc.Propose(context.Background(), other)
	require.NoError(t, err)
}

func TestProposeValidation(t *testing.T) {
	svc, _ := newScheduleFixture()

	_, err := svc.Propose(context.Background(), slotRequest("MONDAY", "10:00", "10:00"))
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidInterval))

	_, err = svc.Propose(context.Background(), slotRequest("MONDAY", "11:00", "10:00"))
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidInterval))

	_, err = svc.Propose(context.Background(), slotRequest("SOMEDAY", "09:00", "10:00"))
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.Propose(context.Background(), slotRequest("MONDAY", "9am", "10:00"))
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestProposeDepartmentMismatch(t *testing.T) {
	svc, _ := newScheduleFixture()

	req := slotRequest("MONDAY", "09:00", "10:00")
	req.ClassID = "classX"
	_, err := svc.Propose(context.Background(), req)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrDepartmentMismatch))
}

func TestProposeMapsUniqueViolation(t *testing.T) {
	repo := &memScheduleRepo{createErr: fmt.Errorf("create schedule: %w", repository.ErrUniqueViolation)}
	svc := NewScheduleService(repo, defaultCatalog(), validator.New(), zap.NewNop())

	_, err := svc.Propose(context.Background(), slotRequest("MONDAY", "09:00", "10:00"))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrDuplicateSchedule))
}

// stallingScheduleRepo widens the check-then-write gap: the conflict scan
// returns a snapshot and then sleeps before handing control back, so two
// unserialized proposals would both see an empty room and both commit.
type stallingScheduleRepo struct {
	mu        sync.Mutex
	stall     time.Duration
	schedules []models.Schedule
	seq       int
}

func (r *stallingScheduleRepo) List(ctx context.Context, filter models.ScheduleFilter) ([]models.Schedule, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Schedule(nil), r.schedules...), len(r.schedules), nil
}

func (r *stallingScheduleRepo) FindByID(ctx context.Context, id string) (*models.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, schedule := range r.schedules {
		if schedule.ID == id {
			copied := schedule
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *stallingScheduleRepo) ListByRoomAndDay(ctx context.Context, room, dayOfWeek string) ([]models.Schedule, error) {
	r.mu.Lock()
	var list []models.Schedule
	for _, schedule := range r.schedules {
		if schedule.Room == room && schedule.DayOfWeek == dayOfWeek {
			list = append(list, schedule)
		}
	}
	r.mu.Unlock()
	time.Sleep(r.stall)
	return list, nil
}

func (r *stallingScheduleRepo) Create(ctx context.Context, schedule *models.Schedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	schedule.ID = fmt.Sprintf("sched%d", r.seq)
	r.schedules = append(r.schedules, *schedule)
	return nil
}

func (r *stallingScheduleRepo) Update(ctx context.Context, schedule *models.Schedule) error {
	return nil
}

func (r *stallingScheduleRepo) Delete(ctx context.Context, id string) error {
	return nil
}

func TestProposeSerializesSameRoomAndDay(t *testing.T) {
	repo := &stallingScheduleRepo{stall: 50 * time.Millisecond}
	svc := NewScheduleService(repo, defaultCatalog(), validator.New(), zap.NewNop())

	requests := []ProposeScheduleRequest{
		slotRequest("MONDAY", "09:00", "10:00"),
		slotRequest("MONDAY", "09:30", "10:30"),
	}

	errs := make(chan error, len(requests))
	var wg sync.WaitGroup
	for _, req := range requests {
		wg.Add(1)
		go func(req ProposeScheduleRequest) {
			defer wg.Done()
			_, err := svc.Propose(context.Background(), req)
			errs <- err
		}(req)
	}
	wg.Wait()
	close(errs)

	var committed, conflicts int
	for err := range errs {
		if err == nil {
			committed++
			continue
		}
		require.True(t, appErrors.Is(err, appErrors.ErrRoomTimeConflict))
		conflicts++
	}
	assert.Equal(t, 1, committed)
	assert.Equal(t, 1, conflicts)

	repo.mu.Lock()
	assert.Len(t, repo.schedules, 1)
	repo.mu.Unlock()
}

func TestUpdateIgnoresOwnSlot(t *testing.T) {
	svc, repo := newScheduleFixture()

	created, err := svc.Propose(context.Background(), slotRequest("MONDAY", "09:00", "10:00"))
	require.NoError(t, err)

	// Shifting the same slot by half an hour overlaps only itself.
	updated, err := svc.Update(context.Background(), created.ID, slotRequest("MONDAY", "09:30", "10:30"))
	require.NoError(t, err)
	assert.Equal(t, 570, updated.StartMinute)
	assert.Len(t, repo.schedules, 1)
}

func TestUpdateUnknownSchedule(t *testing.T) {
	svc, _ := newScheduleFixture()

	_, err := svc.Update(context.Background(), "ghost", slotRequest("MONDAY", "09:00", "10:00"))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}
