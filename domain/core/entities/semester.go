package entities

import (
	pkgerrors "swapcourses-backend/pkg/errors"

	"swapcourses-backend/domain/core/valueobjects"
)

// Semester is a term slot inside a course map. Order is assigned at
// creation as the count of existing semesters and never reused or
// reordered.
type Semester struct {
	ID     valueobjects.SemesterID
	Season valueobjects.Season
	Year   int
	Order  int
}

// NewSemester validates season and year and assigns the given order.
func NewSemester(season string, year, order int) (*Semester, error) {
	s, err := valueobjects.ParseSeason(season)
	if err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}
	if year < 1900 || year > 2999 {
		return nil, pkgerrors.NewValidationError("semester year out of range")
	}
	if order < 0 {
		return nil, pkgerrors.NewValidationError("semester order cannot be negative")
	}
	return &Semester{
		ID:     valueobjects.NewSemesterID(),
		Season: s,
		Year:   year,
		Order:  order,
	}, nil
}
