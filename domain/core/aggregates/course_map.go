package aggregates

import (
	"sort"
	"strings"
	"time"

	"swapcourses-backend/domain/core/entities"
	"swapcourses-backend/domain/core/valueobjects"
	pkgerrors "swapcourses-backend/pkg/errors"
)

// CourseMap is a student's multi-semester plan over a program's
// required courses. It owns one Containment per required course and an
// append-only list of semesters, and enforces the prerequisite and
// credit-hour rules on every schedule/unschedule.
//
// Prerequisite references between courses are resolved by course code
// through the catalog index, never by direct pointers between
// containments.
type CourseMap struct {
	id          valueobjects.CourseMapID
	userID      string
	name        string
	programCode string

	catalog      map[valueobjects.CourseCode]*entities.CourseCatalogEntry
	containments map[valueobjects.CourseCode]*entities.Containment
	semesters    []*entities.Semester

	createdAt time.Time
	version   int
}

// SchedulingChange is the exact per-entity delta produced by one
// schedule or unschedule, handed to the repository to persist as a
// single atomic transaction. ExpectedVersion guards against concurrent
// mutation of the same map.
type SchedulingChange struct {
	MapID           valueobjects.CourseMapID
	ExpectedVersion int
	NewVersion      int

	// Containments holds the post-change state of every touched
	// containment, the scheduled course included.
	Containments []*entities.Containment
}

// NewCourseMap creates a map for a student over a program, seeding one
// containment per required course with outdegree equal to the course's
// prerequisite count.
func NewCourseMap(userID, name string, program *entities.Program) (*CourseMap, error) {
	if userID == "" {
		return nil, pkgerrors.NewValidationError("userID cannot be empty")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, pkgerrors.NewValidationError("course map name cannot be empty")
	}
	if program == nil {
		return nil, pkgerrors.NewNotFoundError("program")
	}

	m := &CourseMap{
		id:           valueobjects.NewCourseMapID(),
		userID:       userID,
		name:         name,
		programCode:  program.Code,
		catalog:      make(map[valueobjects.CourseCode]*entities.CourseCatalogEntry, len(program.Required)),
		containments: make(map[valueobjects.CourseCode]*entities.Containment, len(program.Required)),
		createdAt:    time.Now().UTC(),
		version:      1,
	}
	for _, course := range program.Required {
		m.catalog[course.Code] = course
		m.containments[course.Code] = entities.NewContainment(course)
	}
	return m, nil
}

// ReconstructCourseMap rebuilds a map from stored data. Semesters must
// arrive with their stored orders; they are sorted here.
func ReconstructCourseMap(
	id valueobjects.CourseMapID,
	userID, name, programCode string,
	courses []*entities.CourseCatalogEntry,
	containments []*entities.Containment,
	semesters []*entities.Semester,
	createdAt time.Time,
	version int,
) *CourseMap {
	m := &CourseMap{
		id:           id,
		userID:       userID,
		name:         name,
		programCode:  programCode,
		catalog:      make(map[valueobjects.CourseCode]*entities.CourseCatalogEntry, len(courses)),
		containments: make(map[valueobjects.CourseCode]*entities.Containment, len(containments)),
		semesters:    append([]*entities.Semester(nil), semesters...),
		createdAt:    createdAt,
		version:      version,
	}
	for _, c := range courses {
		m.catalog[c.Code] = c
	}
	for _, cont := range containments {
		m.containments[cont.CourseCode] = cont
	}
	sort.Slice(m.semesters, func(i, j int) bool { return m.semesters[i].Order < m.semesters[j].Order })
	return m
}

func (m *CourseMap) ID() valueobjects.CourseMapID { return m.id }
func (m *CourseMap) UserID() string               { return m.userID }
func (m *CourseMap) Name() string                 { return m.name }
func (m *CourseMap) ProgramCode() string          { return m.programCode }
func (m *CourseMap) CreatedAt() time.Time         { return m.createdAt }
func (m *CourseMap) Version() int                 { return m.version }

// Containment returns the eligibility state for a course, or nil when
// the course is not part of this map.
func (m *CourseMap) Containment(code valueobjects.CourseCode) *entities.Containment {
	return m.containments[code]
}

// Containments returns every containment in stable course-code order.
func (m *CourseMap) Containments() []*entities.Containment {
	out := make([]*entities.Containment, 0, len(m.containments))
	for _, c := range m.containments {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CourseCode < out[j].CourseCode })
	return out
}

// Course returns catalog data for a course in this map.
func (m *CourseMap) Course(code valueobjects.CourseCode) *entities.CourseCatalogEntry {
	return m.catalog[code]
}

// Semesters returns the semesters ordered by their order attribute.
func (m *CourseMap) Semesters() []*entities.Semester {
	return append([]*entities.Semester(nil), m.semesters...)
}

// SemesterByID looks up a semester in this map.
func (m *CourseMap) SemesterByID(id valueobjects.SemesterID) *entities.Semester {
	for _, s := range m.semesters {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// AddSemester appends a semester with order equal to the current count.
// Orders are never reused or reordered.
func (m *CourseMap) AddSemester(season string, year int) (*entities.Semester, error) {
	sem, err := entities.NewSemester(season, year, len(m.semesters))
	if err != nil {
		return nil, err
	}
	m.semesters = append(m.semesters, sem)
	m.version++
	return sem, nil
}

// ScheduleCourse schedules a course into a semester after the three
// ordered validations: containment exists and is untaken, the course is
// eligible relative to the semester's order, and enough credit hours
// were completed strictly before the semester. On success it flips the
// containment, records the takes edge, and updates every untaken
// dependent's counters, returning the full delta for atomic persistence.
func (m *CourseMap) ScheduleCourse(semesterID valueobjects.SemesterID, code valueobjects.CourseCode) (*SchedulingChange, error) {
	sem := m.SemesterByID(semesterID)
	if sem == nil {
		return nil, pkgerrors.NewNotFoundError("semester")
	}

	cont := m.containments[code]
	if cont == nil {
		return nil, pkgerrors.NewValidationError("course does not exist in course map")
	}
	if cont.Taken {
		return nil, pkgerrors.NewValidationError("course is already taken")
	}
	if !cont.EligibleFor(sem.Order) {
		return nil, pkgerrors.NewValidationError(
			"a prerequisite is not taken yet or was satisfied too late for this semester")
	}
	course := m.catalog[code]
	if hours := m.creditHoursBefore(sem.Order); hours < course.PrerequisiteHours {
		return nil, pkgerrors.NewValidationError(
			"credit hours completed in earlier semesters are below the course's prerequisite hours")
	}

	change := &SchedulingChange{
		MapID:           m.id,
		ExpectedVersion: m.version,
	}

	cont.Taken = true
	cont.TakenIn = semesterID
	change.Containments = append(change.Containments, cont)

	for _, depCode := range m.dependentsOf(code) {
		dep := m.containments[depCode]
		if dep.Taken {
			continue
		}
		dep.PrerequisiteTaken(sem.Order)
		change.Containments = append(change.Containments, dep)
	}

	m.version++
	change.NewVersion = m.version
	return change, nil
}

// UnscheduleCourse removes a course from a semester. It fails NotFound
// without a takes edge and ValidationError when a taken course depends
// on it; the error details list the blocking codes. The dependents'
// lastPrereqSemesterOrder is a high-water mark and is not reverted.
func (m *CourseMap) UnscheduleCourse(semesterID valueobjects.SemesterID, code valueobjects.CourseCode) (*SchedulingChange, error) {
	sem := m.SemesterByID(semesterID)
	if sem == nil {
		return nil, pkgerrors.NewNotFoundError("semester")
	}

	cont := m.containments[code]
	if cont == nil || !cont.Taken || cont.TakenIn != semesterID {
		return nil, pkgerrors.NewNotFoundError("course in semester")
	}

	var blocking []string
	for _, depCode := range m.dependentsOf(code) {
		if dep := m.containments[depCode]; dep.Taken {
			blocking = append(blocking, depCode.String())
		}
	}
	if len(blocking) > 0 {
		sort.Strings(blocking)
		return nil, pkgerrors.NewValidationError(
			"cannot remove course: it is a prerequisite for other taken courses, remove those first").
			WithDetails(map[string]interface{}{"blocking_courses": blocking})
	}

	change := &SchedulingChange{
		MapID:           m.id,
		ExpectedVersion: m.version,
	}

	cont.Taken = false
	cont.TakenIn = valueobjects.SemesterID{}
	change.Containments = append(change.Containments, cont)

	for _, depCode := range m.dependentsOf(code) {
		dep := m.containments[depCode]
		if dep.Taken {
			continue
		}
		dep.PrerequisiteReleased()
		change.Containments = append(change.Containments, dep)
	}

	m.version++
	change.NewVersion = m.version
	return change, nil
}

// AvailableCourses returns every course schedulable into the given
// semester: untaken, outdegree zero, prerequisites completed strictly
// before the semester, and prerequisite hours covered. Pure read.
func (m *CourseMap) AvailableCourses(semesterID valueobjects.SemesterID) ([]*entities.CourseCatalogEntry, error) {
	sem := m.SemesterByID(semesterID)
	if sem == nil {
		return nil, pkgerrors.NewNotFoundError("semester")
	}
	hours := m.creditHoursBefore(sem.Order)

	var out []*entities.CourseCatalogEntry
	for _, cont := range m.Containments() {
		if !cont.EligibleFor(sem.Order) {
			continue
		}
		course := m.catalog[cont.CourseCode]
		if course.PrerequisiteHours <= hours {
			out = append(out, course)
		}
	}
	return out, nil
}

// CoursesInSemester returns the courses taken in the given semester.
func (m *CourseMap) CoursesInSemester(semesterID valueobjects.SemesterID) ([]*entities.CourseCatalogEntry, error) {
	if m.SemesterByID(semesterID) == nil {
		return nil, pkgerrors.NewNotFoundError("semester")
	}
	var out []*entities.CourseCatalogEntry
	for _, cont := range m.Containments() {
		if cont.Taken && cont.TakenIn == semesterID {
			out = append(out, m.catalog[cont.CourseCode])
		}
	}
	return out, nil
}

// creditHoursBefore sums credit hours of courses taken in semesters
// ordered strictly before the given order.
func (m *CourseMap) creditHoursBefore(order int) int {
	orderByID := make(map[valueobjects.SemesterID]int, len(m.semesters))
	for _, s := range m.semesters {
		orderByID[s.ID] = s.Order
	}
	total := 0
	for _, cont := range m.containments {
		if !cont.Taken {
			continue
		}
		if o, ok := orderByID[cont.TakenIn]; ok && o < order {
			total += m.catalog[cont.CourseCode].CreditHours
		}
	}
	return total
}

// dependentsOf returns the codes of courses in this map listing code as
// a prerequisite, in stable order.
func (m *CourseMap) dependentsOf(code valueobjects.CourseCode) []valueobjects.CourseCode {
	var out []valueobjects.CourseCode
	for depCode, course := range m.catalog {
		if depCode == code {
			continue
		}
		if course.HasPrerequisite(code) {
			out = append(out, depCode)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
