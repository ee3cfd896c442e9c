package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"swapcourses-backend/domain/core/entities"
	"swapcourses-backend/domain/core/valueobjects"
	"swapcourses-backend/infrastructure/persistence/memory"
	pkgerrors "swapcourses-backend/pkg/errors"
	"swapcourses-backend/pkg/observability"
)

func seedProgram() *entities.Program {
	return &entities.Program{
		Code: "CS",
		Name: "Computer Science",
		Required: []*entities.CourseCatalogEntry{
			{Code: "MATH1", Name: "Calculus I", CreditHours: 3},
			{Code: "MATH2", Name: "Calculus II", CreditHours: 3, Prerequisites: []valueobjects.CourseCode{"MATH1"}},
			{Code: "CAPSTONE", Name: "Capstone Project", CreditHours: 3, PrerequisiteHours: 3},
		},
	}
}

func newCourseMapService(t *testing.T) (*CourseMapService, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	store.SeedProgram(seedProgram())
	metrics := observability.NewMetrics(nil, "Test", zap.NewNop())
	t.Cleanup(metrics.Close)
	svc := NewCourseMapService(store.Programs(), store.CourseMaps(), metrics, zap.NewNop())
	return svc, store
}

func TestCourseMapService_CreateCourseMap(t *testing.T) {
	svc, _ := newCourseMapService(t)
	ctx := context.Background()

	m, err := svc.CreateCourseMap(ctx, "alice", "fall plan", "CS")
	require.NoError(t, err)
	assert.Len(t, m.Containments(), 3)

	t.Run("duplicate name conflicts", func(t *testing.T) {
		_, err := svc.CreateCourseMap(ctx, "alice", "fall plan", "CS")
		assert.True(t, pkgerrors.IsConflict(err))
	})

	t.Run("same name for another user is fine", func(t *testing.T) {
		_, err := svc.CreateCourseMap(ctx, "bob", "fall plan", "CS")
		assert.NoError(t, err)
	})

	t.Run("unknown program", func(t *testing.T) {
		_, err := svc.CreateCourseMap(ctx, "alice", "other plan", "EE")
		assert.True(t, pkgerrors.IsNotFound(err))
	})
}

func TestCourseMapService_Ownership(t *testing.T) {
	svc, _ := newCourseMapService(t)
	ctx := context.Background()

	m, err := svc.CreateCourseMap(ctx, "alice", "fall plan", "CS")
	require.NoError(t, err)

	// Another user's map is invisible, not forbidden.
	_, err = svc.GetCourseMap(ctx, "bob", m.ID())
	assert.True(t, pkgerrors.IsNotFound(err))

	err = svc.DeleteCourseMap(ctx, "bob", m.ID())
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestCourseMapService_ScheduleFlow(t *testing.T) {
	svc, _ := newCourseMapService(t)
	ctx := context.Background()

	m, err := svc.CreateCourseMap(ctx, "alice", "fall plan", "CS")
	require.NoError(t, err)
	s0, err := svc.AddSemester(ctx, "alice", m.ID(), "fall", 2025)
	require.NoError(t, err)
	s1, err := svc.AddSemester(ctx, "alice", m.ID(), "spring", 2026)
	require.NoError(t, err)

	require.NoError(t, svc.ScheduleCourse(ctx, "alice", m.ID(), s0.ID, "MATH1"))

	// The persisted state drives the next decision.
	avail, err := svc.AvailableCourses(ctx, "alice", m.ID(), s1.ID)
	require.NoError(t, err)
	codes := make([]string, 0, len(avail))
	for _, c := range avail {
		codes = append(codes, c.Code.String())
	}
	assert.Equal(t, []string{"CAPSTONE", "MATH2"}, codes)

	err = svc.ScheduleCourse(ctx, "alice", m.ID(), s0.ID, "MATH2")
	assert.True(t, pkgerrors.IsValidation(err))

	require.NoError(t, svc.ScheduleCourse(ctx, "alice", m.ID(), s1.ID, "MATH2"))

	taken, err := svc.CoursesInSemester(ctx, "alice", m.ID(), s1.ID)
	require.NoError(t, err)
	require.Len(t, taken, 1)
	assert.Equal(t, "MATH2", taken[0].Code.String())

	t.Run("unschedule blocked then allowed", func(t *testing.T) {
		err := svc.UnscheduleCourse(ctx, "alice", m.ID(), s0.ID, "MATH1")
		assert.True(t, pkgerrors.IsValidation(err))

		require.NoError(t, svc.UnscheduleCourse(ctx, "alice", m.ID(), s1.ID, "MATH2"))
		require.NoError(t, svc.UnscheduleCourse(ctx, "alice", m.ID(), s0.ID, "MATH1"))
	})
}

func TestCourseMapService_StaleAggregateWrite(t *testing.T) {
	svc, store := newCourseMapService(t)
	ctx := context.Background()

	m, err := svc.CreateCourseMap(ctx, "alice", "fall plan", "CS")
	require.NoError(t, err)
	s0, err := svc.AddSemester(ctx, "alice", m.ID(), "fall", 2025)
	require.NoError(t, err)

	// A stale copy of the aggregate loses against the store's version
	// guard once the map has moved on.
	stale, err := store.CourseMaps().GetByID(ctx, m.ID())
	require.NoError(t, err)

	require.NoError(t, svc.ScheduleCourse(ctx, "alice", m.ID(), s0.ID, "MATH1"))

	change, err := stale.ScheduleCourse(s0.ID, "MATH1")
	require.NoError(t, err)
	err = store.CourseMaps().ApplyScheduling(ctx, change)
	assert.True(t, pkgerrors.IsStore(err))
}

func TestCourseMapService_ListSemesters(t *testing.T) {
	svc, _ := newCourseMapService(t)
	ctx := context.Background()

	m, err := svc.CreateCourseMap(ctx, "alice", "fall plan", "CS")
	require.NoError(t, err)
	_, err = svc.AddSemester(ctx, "alice", m.ID(), "fall", 2025)
	require.NoError(t, err)
	_, err = svc.AddSemester(ctx, "alice", m.ID(), "spring", 2026)
	require.NoError(t, err)

	sems, err := svc.ListSemesters(ctx, "alice", m.ID())
	require.NoError(t, err)
	require.Len(t, sems, 2)
	assert.Equal(t, 0, sems[0].Order)
	assert.Equal(t, 1, sems[1].Order)

	maps, err := svc.ListCourseMaps(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, maps, 1)
	assert.Equal(t, "fall plan", maps[0].Name())
}
