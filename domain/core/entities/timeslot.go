package entities

import "swapcourses-backend/domain/core/valueobjects"

// Timeslot is a concrete class slot in the published timetable.
// Imported reference data; the swap engine only trades ids.
type Timeslot struct {
	ID         valueobjects.TimeslotID
	CourseCode valueobjects.CourseCode
	Group      string
	Day        string
	StartsAt   string
	EndsAt     string
}
