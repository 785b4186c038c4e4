package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-adp-api/internal/models"
	"github.com/noah-isme/exam-adp-api/internal/repository"
	appErrors "github.com/noah-isme/exam-adp-api/pkg/errors"
	"github.com/noah-isme/exam-adp-api/pkg/interval"
)

type scheduleRepository interface {
	List(ctx context.Context, filter models.ScheduleFilter) ([]models.Schedule, int, error)
	FindByID(ctx context.Context, id string) (*models.Schedule, error)
	ListByRoomAndDay(ctx context.Context, room, dayOfWeek string) ([]models.Schedule, error)
	Create(ctx context.Context, schedule *models.Schedule) error
	Update(ctx context.Context, schedule *models.Schedule) error
	Delete(ctx context.Context, id string) error
}

type departmentReader interface {
	FindClass(ctx context.Context, id string) (*models.Class, error)
	FindCourse(ctx context.Context, id string) (*models.Course, error)
}

// ProposeScheduleRequest describes payload for creating or updating a
// schedule. Times are wall-clock HH:MM.
type ProposeScheduleRequest struct {
	ClassID   string `json:"class_id" validate:"required"`
	CourseID  string `json:"course_id" validate:"required"`
	Room      string `json:"room" validate:"required"`
	DayOfWeek string `json:"day_of_week" validate:"required"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
}

// ScheduleService validates proposed weekly slots against the interval
// invariants and persists them. Check-then-write for one (room, day) key is
// serialized here; the database unique indexes are the backstop for keys
// this process has never seen.
type ScheduleService struct {
	repo      scheduleRepository
	catalog   departmentReader
	validator *validator.Validate
	logger    *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewScheduleService instantiates ScheduleService.
func NewScheduleService(repo scheduleRepository, catalog departmentReader, validate *validator.Validate, logger *zap.Logger) *ScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{
		repo:      repo,
		catalog:   catalog,
		validator: validate,
		logger:    logger,
		locks:     map[string]*sync.Mutex{},
	}
}

// List returns schedules with pagination metadata.
func (s *ScheduleService) List(ctx context.Context, filter models.ScheduleFilter) ([]models.Schedule, *models.Pagination, error) {
	schedules, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schedules")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return schedules, pagination, nil
}

// Propose validates and inserts a new schedule slot.
func (s *ScheduleService) Propose(ctx context.Context, req ProposeScheduleRequest) (*models.Schedule, error) {
	schedule, err := s.buildSchedule(ctx, req)
	if err != nil {
		return nil, err
	}

	unlock := s.lockKey(schedule.Room, schedule.DayOfWeek)
	defer unlock()

	if err := s.ensureNoOverlap(ctx, schedule, ""); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, schedule); err != nil {
		return nil, mapScheduleWriteErr(err)
	}
	return schedule, nil
}

// Update revalidates and modifies an existing slot.
func (s *ScheduleService) Update(ctx context.Context, id string, req ProposeScheduleRequest) (*models.Schedule, error) {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}

	schedule, err := s.buildSchedule(ctx, req)
	if err != nil {
		return nil, err
	}
	schedule.ID = existing.ID
	schedule.CreatedAt = existing.CreatedAt

	unlock := s.lockKey(schedule.Room, schedule.DayOfWeek)
	defer unlock()

	if err := s.ensureNoOverlap(ctx, schedule, existing.ID); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, schedule); err != nil {
		return nil, mapScheduleWriteErr(err)
	}
	return schedule, nil
}

// Delete removes a schedule slot.
func (s *ScheduleService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete schedule")
	}
	return nil
}

func (s *ScheduleService) buildSchedule(ctx context.Context, req ProposeScheduleRequest) (*models.Schedule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}

	day := strings.ToUpper(req.DayOfWeek)
	if !models.ValidDay(day) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown day of week")
	}

	start, err := interval.ParseClock(req.StartTime)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid start time")
	}
	end, err := interval.ParseClock(req.EndTime)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid end time")
	}
	if end <= start {
		return nil, appErrors.ErrInvalidInterval
	}

	class, err := s.catalog.FindClass(ctx, req.ClassID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	course, err := s.catalog.FindCourse(ctx, req.CourseID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if class.DepartmentID != course.DepartmentID {
		return nil, appErrors.ErrDepartmentMismatch
	}

	return &models.Schedule{
		ClassID:      req.ClassID,
		CourseID:     req.CourseID,
		DepartmentID: class.DepartmentID,
		Room:         req.Room,
		DayOfWeek:    day,
		StartMinute:  start,
		EndMinute:    end,
	}, nil
}

func (s *ScheduleService) ensureNoOverlap(ctx context.Context, schedule *models.Schedule, ignoreID string) error {
	existing, err := s.repo.ListByRoomAndDay(ctx, schedule.Room, schedule.DayOfWeek)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check schedule conflicts")
	}

	for _, item := range existing {
		if item.ID == ignoreID {
			continue
		}
		if interval.Overlaps(schedule.StartMinute, schedule.EndMinute, item.StartMinute, item.EndMinute) {
			domainErr := &models.ScheduleConflictError{
				Message: "room already booked for an overlapping interval",
				Conflict: models.ScheduleConflict{
					ScheduleID:  item.ID,
					ClassID:     item.ClassID,
					CourseID:    item.CourseID,
					Room:        item.Room,
					DayOfWeek:   item.DayOfWeek,
					StartMinute: item.StartMinute,
					EndMinute:   item.EndMinute,
				},
			}
			return appErrors.Wrap(domainErr, appErrors.ErrRoomTimeConflict.Code, appErrors.ErrRoomTimeConflict.Status, appErrors.ErrRoomTimeConflict.Message)
		}
	}
	return nil
}

// lockKey serializes proposals per (room, day). The returned func releases
// the key.
func (s *ScheduleService) lockKey(room, day string) func() {
	key := strings.ToUpper(room) + "|" + day
	s.mu.Lock()
	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

func mapScheduleWriteErr(err error) error {
	if errors.Is(err, repository.ErrUniqueViolation) {
		return appErrors.Wrap(err, appErrors.ErrDuplicateSchedule.Code, appErrors.ErrDuplicateSchedule.Status, appErrors.ErrDuplicateSchedule.Message)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write schedule")
}
