package entities

import "swapcourses-backend/domain/core/valueobjects"

// Containment tracks a required course's eligibility state inside one
// course map.
//
// Outdegree counts this course's own prerequisites not yet taken in the
// map; it reaches zero when every prerequisite is taken.
// LastPrereqSemesterOrder is a high-water mark: the highest semester
// order at which any prerequisite was completed, -1 if none. It never
// decreases, even when a prerequisite is unscheduled.
type Containment struct {
	CourseCode              valueobjects.CourseCode
	Taken                   bool
	Outdegree               int
	LastPrereqSemesterOrder int

	// TakenIn is the semester the course is scheduled into, zero when
	// the course is not taken.
	TakenIn valueobjects.SemesterID
}

// NewContainment seeds the containment for a not-yet-taken course.
func NewContainment(course *CourseCatalogEntry) *Containment {
	return &Containment{
		CourseCode:              course.Code,
		Taken:                   false,
		Outdegree:               len(course.Prerequisites),
		LastPrereqSemesterOrder: -1,
	}
}

// EligibleFor reports whether the course may be scheduled into a
// semester with the given order, ignoring the credit-hour rule which
// needs map-wide state.
func (c *Containment) EligibleFor(semesterOrder int) bool {
	return !c.Taken && c.Outdegree == 0 && c.LastPrereqSemesterOrder < semesterOrder
}

// PrerequisiteTaken records that one of this course's prerequisites was
// scheduled into a semester with the given order.
func (c *Containment) PrerequisiteTaken(semesterOrder int) {
	c.Outdegree--
	if semesterOrder > c.LastPrereqSemesterOrder {
		c.LastPrereqSemesterOrder = semesterOrder
	}
}

// PrerequisiteReleased records that one of this course's prerequisites
// was unscheduled. The high-water mark is deliberately left alone.
func (c *Containment) PrerequisiteReleased() {
	c.Outdegree++
}
