package aggregates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swapcourses-backend/domain/core/entities"
	"swapcourses-backend/domain/core/valueobjects"
	pkgerrors "swapcourses-backend/pkg/errors"
)

func testProgram() *entities.Program {
	return &entities.Program{
		Code: "CS",
		Name: "Computer Science",
		Required: []*entities.CourseCatalogEntry{
			{Code: "MATH1", Name: "Calculus I", CreditHours: 3},
			{Code: "MATH2", Name: "Calculus II", CreditHours: 3, Prerequisites: []valueobjects.CourseCode{"MATH1"}},
			{Code: "PHYS1", Name: "Physics I", CreditHours: 4, Prerequisites: []valueobjects.CourseCode{"MATH1"}},
			{Code: "ALGO", Name: "Algorithms", CreditHours: 3, Prerequisites: []valueobjects.CourseCode{"MATH2", "PHYS1"}},
			{Code: "CAPSTONE", Name: "Capstone Project", CreditHours: 3, PrerequisiteHours: 6},
		},
	}
}

// testMap returns a map over testProgram with three semesters of
// orders 0, 1 and 2.
func testMap(t *testing.T) (*CourseMap, []*entities.Semester) {
	t.Helper()
	m, err := NewCourseMap("user-1", "my plan", testProgram())
	require.NoError(t, err)

	var sems []*entities.Semester
	for _, in := range []struct {
		season string
		year   int
	}{{"fall", 2025}, {"spring", 2026}, {"fall", 2026}} {
		s, err := m.AddSemester(in.season, in.year)
		require.NoError(t, err)
		sems = append(sems, s)
	}
	return m, sems
}

func courseCodes(courses []*entities.CourseCatalogEntry) []string {
	out := make([]string, 0, len(courses))
	for _, c := range courses {
		out = append(out, c.Code.String())
	}
	return out
}

func TestNewCourseMap(t *testing.T) {
	t.Run("seeds containments from the program", func(t *testing.T) {
		m, err := NewCourseMap("user-1", "my plan", testProgram())
		require.NoError(t, err)

		assert.Equal(t, "user-1", m.UserID())
		assert.Equal(t, "my plan", m.Name())
		assert.Equal(t, "CS", m.ProgramCode())
		assert.Len(t, m.Containments(), 5)

		algo := m.Containment("ALGO")
		require.NotNil(t, algo)
		assert.False(t, algo.Taken)
		assert.Equal(t, 2, algo.Outdegree)
		assert.Equal(t, -1, algo.LastPrereqSemesterOrder)

		math1 := m.Containment("MATH1")
		require.NotNil(t, math1)
		assert.Equal(t, 0, math1.Outdegree)
	})

	t.Run("rejects empty name", func(t *testing.T) {
		_, err := NewCourseMap("user-1", "  ", testProgram())
		assert.True(t, pkgerrors.IsValidation(err))
	})

	t.Run("rejects empty user", func(t *testing.T) {
		_, err := NewCourseMap("", "my plan", testProgram())
		assert.True(t, pkgerrors.IsValidation(err))
	})
}

func TestCourseMap_AddSemester(t *testing.T) {
	m, err := NewCourseMap("user-1", "my plan", testProgram())
	require.NoError(t, err)

	s0, err := m.AddSemester("fall", 2025)
	require.NoError(t, err)
	s1, err := m.AddSemester("spring", 2026)
	require.NoError(t, err)

	assert.Equal(t, 0, s0.Order)
	assert.Equal(t, 1, s1.Order)
	assert.Equal(t, valueobjects.SeasonFall, s0.Season)

	_, err = m.AddSemester("monsoon", 2026)
	assert.True(t, pkgerrors.IsValidation(err))
	assert.Len(t, m.Semesters(), 2)
}

func TestCourseMap_ScheduleCourse(t *testing.T) {
	t.Run("prerequisite must be taken strictly earlier", func(t *testing.T) {
		m, sems := testMap(t)

		_, err := m.ScheduleCourse(sems[0].ID, "MATH1")
		require.NoError(t, err)

		// Same semester as its prerequisite: not eligible.
		_, err = m.ScheduleCourse(sems[0].ID, "MATH2")
		assert.True(t, pkgerrors.IsValidation(err))

		// Strictly later semester: fine.
		_, err = m.ScheduleCourse(sems[1].ID, "MATH2")
		assert.NoError(t, err)
	})

	t.Run("outdegree gates courses with open prerequisites", func(t *testing.T) {
		m, sems := testMap(t)

		_, err := m.ScheduleCourse(sems[1].ID, "MATH2")
		assert.True(t, pkgerrors.IsValidation(err))
		assert.Equal(t, 1, m.Containment("MATH2").Outdegree)
	})

	t.Run("scheduling updates untaken dependents only", func(t *testing.T) {
		m, sems := testMap(t)

		change, err := m.ScheduleCourse(sems[0].ID, "MATH1")
		require.NoError(t, err)

		// MATH1 itself plus dependents MATH2 and PHYS1.
		require.Len(t, change.Containments, 3)
		assert.True(t, m.Containment("MATH1").Taken)
		assert.Equal(t, sems[0].ID, m.Containment("MATH1").TakenIn)
		assert.Equal(t, 0, m.Containment("MATH2").Outdegree)
		assert.Equal(t, 0, m.Containment("MATH2").LastPrereqSemesterOrder)
		assert.Equal(t, 0, m.Containment("PHYS1").Outdegree)
		// ALGO does not depend on MATH1 directly.
		assert.Equal(t, 2, m.Containment("ALGO").Outdegree)
	})

	t.Run("double schedule is rejected", func(t *testing.T) {
		m, sems := testMap(t)

		_, err := m.ScheduleCourse(sems[0].ID, "MATH1")
		require.NoError(t, err)
		_, err = m.ScheduleCourse(sems[1].ID, "MATH1")
		assert.True(t, pkgerrors.IsValidation(err))
		// Dependents were decremented exactly once.
		assert.Equal(t, 0, m.Containment("MATH2").Outdegree)
	})

	t.Run("credit hour floor counts strictly earlier semesters", func(t *testing.T) {
		m, sems := testMap(t)

		_, err := m.ScheduleCourse(sems[0].ID, "MATH1")
		require.NoError(t, err)
		_, err = m.ScheduleCourse(sems[1].ID, "PHYS1")
		require.NoError(t, err)

		// Only MATH1's 3 hours precede semester 1; CAPSTONE needs 6.
		_, err = m.ScheduleCourse(sems[1].ID, "CAPSTONE")
		assert.True(t, pkgerrors.IsValidation(err))

		// By semester 2, MATH1 + PHYS1 give 7 hours.
		_, err = m.ScheduleCourse(sems[2].ID, "CAPSTONE")
		assert.NoError(t, err)
	})

	t.Run("unknown course and semester", func(t *testing.T) {
		m, sems := testMap(t)

		_, err := m.ScheduleCourse(sems[0].ID, "NOPE")
		assert.True(t, pkgerrors.IsValidation(err))

		_, err = m.ScheduleCourse(valueobjects.NewSemesterID(), "MATH1")
		assert.True(t, pkgerrors.IsNotFound(err))
	})

	t.Run("change carries version guard", func(t *testing.T) {
		m, sems := testMap(t)
		before := m.Version()

		change, err := m.ScheduleCourse(sems[0].ID, "MATH1")
		require.NoError(t, err)
		assert.Equal(t, before, change.ExpectedVersion)
		assert.Equal(t, before+1, change.NewVersion)
		assert.Equal(t, change.NewVersion, m.Version())
	})
}

func TestCourseMap_UnscheduleCourse(t *testing.T) {
	t.Run("blocked by taken dependents", func(t *testing.T) {
		m, sems := testMap(t)

		_, err := m.ScheduleCourse(sems[0].ID, "MATH1")
		require.NoError(t, err)
		_, err = m.ScheduleCourse(sems[1].ID, "MATH2")
		require.NoError(t, err)
		_, err = m.ScheduleCourse(sems[1].ID, "PHYS1")
		require.NoError(t, err)

		_, err = m.UnscheduleCourse(sems[0].ID, "MATH1")
		require.True(t, pkgerrors.IsValidation(err))

		appErr := pkgerrors.GetAppError(err)
		require.NotNil(t, appErr)
		assert.Equal(t, []string{"MATH2", "PHYS1"}, appErr.Details["blocking_courses"])

		// Nothing changed.
		assert.True(t, m.Containment("MATH1").Taken)
	})

	t.Run("round trip restores outdegree but not the high-water mark", func(t *testing.T) {
		m, sems := testMap(t)

		_, err := m.ScheduleCourse(sems[1].ID, "MATH1")
		require.NoError(t, err)
		assert.Equal(t, 1, m.Containment("MATH2").LastPrereqSemesterOrder)

		_, err = m.UnscheduleCourse(sems[1].ID, "MATH1")
		require.NoError(t, err)

		math1 := m.Containment("MATH1")
		assert.False(t, math1.Taken)
		assert.True(t, math1.TakenIn.IsZero())
		assert.Equal(t, 1, m.Containment("MATH2").Outdegree)
		// High-water mark survives the unschedule.
		assert.Equal(t, 1, m.Containment("MATH2").LastPrereqSemesterOrder)
	})

	t.Run("not found without a takes edge", func(t *testing.T) {
		m, sems := testMap(t)

		_, err := m.UnscheduleCourse(sems[0].ID, "MATH1")
		assert.True(t, pkgerrors.IsNotFound(err))

		// Wrong semester counts as no edge too.
		_, err = m.ScheduleCourse(sems[0].ID, "MATH1")
		require.NoError(t, err)
		_, err = m.UnscheduleCourse(sems[1].ID, "MATH1")
		assert.True(t, pkgerrors.IsNotFound(err))
	})
}

func TestCourseMap_AvailableCourses(t *testing.T) {
	m, sems := testMap(t)

	avail, err := m.AvailableCourses(sems[0].ID)
	require.NoError(t, err)
	// CAPSTONE has no prerequisites but needs 6 hours first.
	assert.Equal(t, []string{"MATH1"}, courseCodes(avail))

	_, err = m.ScheduleCourse(sems[0].ID, "MATH1")
	require.NoError(t, err)

	avail, err = m.AvailableCourses(sems[0].ID)
	require.NoError(t, err)
	assert.Empty(t, avail)

	avail, err = m.AvailableCourses(sems[1].ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"MATH2", "PHYS1"}, courseCodes(avail))

	_, err = m.ScheduleCourse(sems[1].ID, "MATH2")
	require.NoError(t, err)
	_, err = m.ScheduleCourse(sems[1].ID, "PHYS1")
	require.NoError(t, err)

	avail, err = m.AvailableCourses(sems[2].ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"ALGO", "CAPSTONE"}, courseCodes(avail))
}

func TestCourseMap_CoursesInSemester(t *testing.T) {
	m, sems := testMap(t)

	_, err := m.ScheduleCourse(sems[0].ID, "MATH1")
	require.NoError(t, err)
	_, err = m.ScheduleCourse(sems[1].ID, "MATH2")
	require.NoError(t, err)

	taken, err := m.CoursesInSemester(sems[1].ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"MATH2"}, courseCodes(taken))

	taken, err = m.CoursesInSemester(sems[2].ID)
	require.NoError(t, err)
	assert.Empty(t, taken)
}

func TestReconstructCourseMap(t *testing.T) {
	m, sems := testMap(t)
	_, err := m.ScheduleCourse(sems[0].ID, "MATH1")
	require.NoError(t, err)

	program := testProgram()
	rebuilt := ReconstructCourseMap(
		m.ID(), m.UserID(), m.Name(), m.ProgramCode(),
		program.Required, m.Containments(), m.Semesters(),
		time.Now().UTC(), m.Version(),
	)

	assert.Equal(t, m.ID(), rebuilt.ID())
	assert.Equal(t, m.Version(), rebuilt.Version())
	assert.True(t, rebuilt.Containment("MATH1").Taken)

	// The rebuilt map enforces the same rules.
	_, err = rebuilt.ScheduleCourse(sems[1].ID, "MATH2")
	assert.NoError(t, err)
	_, err = rebuilt.ScheduleCourse(sems[1].ID, "ALGO")
	assert.True(t, pkgerrors.IsValidation(err))
}
