package services

import (
	"context"

	"go.uber.org/zap"

	"swapcourses-backend/application/ports"
	"swapcourses-backend/domain/core/aggregates"
	"swapcourses-backend/domain/core/entities"
	"swapcourses-backend/domain/core/valueobjects"
	pkgerrors "swapcourses-backend/pkg/errors"
	"swapcourses-backend/pkg/observability"
)

// CourseMapService drives the course planning operations: map
// lifecycle, semesters, and the schedule/unschedule flow with its
// prerequisite rules.
type CourseMapService struct {
	programs ports.ProgramRepository
	maps     ports.CourseMapRepository
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewCourseMapService creates the course map service.
func NewCourseMapService(
	programs ports.ProgramRepository,
	maps ports.CourseMapRepository,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *CourseMapService {
	return &CourseMapService{
		programs: programs,
		maps:     maps,
		metrics:  metrics,
		logger:   logger,
	}
}

// ListPrograms returns the catalog's programs.
func (s *CourseMapService) ListPrograms(ctx context.Context) ([]*entities.Program, error) {
	return s.programs.List(ctx)
}

// CreateCourseMap creates a map for the user over a program, seeding
// the eligibility state of every required course.
func (s *CourseMapService) CreateCourseMap(ctx context.Context, userID, name, programCode string) (*aggregates.CourseMap, error) {
	program, err := s.programs.GetByCode(ctx, programCode)
	if err != nil {
		return nil, err
	}

	m, err := aggregates.NewCourseMap(userID, name, program)
	if err != nil {
		return nil, err
	}
	if err := s.maps.Create(ctx, m); err != nil {
		return nil, err
	}

	s.metrics.IncrementCounter("CourseMapCreated", map[string]string{"Program": programCode})
	s.logger.Info("course map created",
		zap.String("mapID", m.ID().String()),
		zap.String("userID", userID),
		zap.String("program", programCode))
	return m, nil
}

// GetCourseMap returns one of the user's maps. A map owned by someone
// else is reported as not found, never as forbidden.
func (s *CourseMapService) GetCourseMap(ctx context.Context, userID string, mapID valueobjects.CourseMapID) (*aggregates.CourseMap, error) {
	m, err := s.maps.GetByID(ctx, mapID)
	if err != nil {
		return nil, err
	}
	if m.UserID() != userID {
		return nil, pkgerrors.NewNotFoundError("course map")
	}
	return m, nil
}

// ListCourseMaps returns every map the user owns.
func (s *CourseMapService) ListCourseMaps(ctx context.Context, userID string) ([]*aggregates.CourseMap, error) {
	return s.maps.GetByUserID(ctx, userID)
}

// DeleteCourseMap removes a map with everything in it.
func (s *CourseMapService) DeleteCourseMap(ctx context.Context, userID string, mapID valueobjects.CourseMapID) error {
	if _, err := s.GetCourseMap(ctx, userID, mapID); err != nil {
		return err
	}
	if err := s.maps.Delete(ctx, mapID); err != nil {
		return err
	}
	s.logger.Info("course map deleted",
		zap.String("mapID", mapID.String()),
		zap.String("userID", userID))
	return nil
}

// AddSemester appends the next semester to a map.
func (s *CourseMapService) AddSemester(ctx context.Context, userID string, mapID valueobjects.CourseMapID, season string, year int) (*entities.Semester, error) {
	m, err := s.GetCourseMap(ctx, userID, mapID)
	if err != nil {
		return nil, err
	}

	expectedVersion := m.Version()
	sem, err := m.AddSemester(season, year)
	if err != nil {
		return nil, err
	}
	if err := s.maps.AddSemester(ctx, mapID, sem, expectedVersion); err != nil {
		return nil, err
	}
	return sem, nil
}

// ListSemesters returns a map's semesters in order.
func (s *CourseMapService) ListSemesters(ctx context.Context, userID string, mapID valueobjects.CourseMapID) ([]*entities.Semester, error) {
	m, err := s.GetCourseMap(ctx, userID, mapID)
	if err != nil {
		return nil, err
	}
	return m.Semesters(), nil
}

// ScheduleCourse schedules a course into a semester, enforcing the
// prerequisite and credit-hour rules, and persists the whole delta
// atomically.
func (s *CourseMapService) ScheduleCourse(ctx context.Context, userID string, mapID valueobjects.CourseMapID, semesterID valueobjects.SemesterID, code valueobjects.CourseCode) error {
	m, err := s.GetCourseMap(ctx, userID, mapID)
	if err != nil {
		return err
	}

	change, err := m.ScheduleCourse(semesterID, code)
	if err != nil {
		return err
	}
	if err := s.maps.ApplyScheduling(ctx, change); err != nil {
		return err
	}

	s.metrics.IncrementCounter("CourseScheduled", nil)
	s.logger.Info("course scheduled",
		zap.String("mapID", mapID.String()),
		zap.String("course", code.String()),
		zap.String("semesterID", semesterID.String()))
	return nil
}

// UnscheduleCourse removes a course from a semester unless a taken
// course depends on it.
func (s *CourseMapService) UnscheduleCourse(ctx context.Context, userID string, mapID valueobjects.CourseMapID, semesterID valueobjects.SemesterID, code valueobjects.CourseCode) error {
	m, err := s.GetCourseMap(ctx, userID, mapID)
	if err != nil {
		return err
	}

	change, err := m.UnscheduleCourse(semesterID, code)
	if err != nil {
		return err
	}
	if err := s.maps.ApplyScheduling(ctx, change); err != nil {
		return err
	}

	s.metrics.IncrementCounter("CourseUnscheduled", nil)
	s.logger.Info("course unscheduled",
		zap.String("mapID", mapID.String()),
		zap.String("course", code.String()),
		zap.String("semesterID", semesterID.String()))
	return nil
}

// AvailableCourses lists what could be scheduled into a semester right
// now.
func (s *CourseMapService) AvailableCourses(ctx context.Context, userID string, mapID valueobjects.CourseMapID, semesterID valueobjects.SemesterID) ([]*entities.CourseCatalogEntry, error) {
	m, err := s.GetCourseMap(ctx, userID, mapID)
	if err != nil {
		return nil, err
	}
	return m.AvailableCourses(semesterID)
}

// CoursesInSemester lists the courses taken in a semester.
func (s *CourseMapService) CoursesInSemester(ctx context.Context, userID string, mapID valueobjects.CourseMapID, semesterID valueobjects.SemesterID) ([]*entities.CourseCatalogEntry, error) {
	m, err := s.GetCourseMap(ctx, userID, mapID)
	if err != nil {
		return nil, err
	}
	return m.CoursesInSemester(semesterID)
}
