package valueobjects

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// CourseMapID identifies a student's course map.
type CourseMapID struct {
	value string
}

// NewCourseMapID creates a new random CourseMapID.
func NewCourseMapID() CourseMapID {
	return CourseMapID{value: uuid.New().String()}
}

// NewCourseMapIDFromString creates a CourseMapID from an existing string.
func NewCourseMapIDFromString(id string) (CourseMapID, error) {
	if !isValidUUID(id) {
		return CourseMapID{}, errors.New("course map ID must be a valid UUID")
	}
	return CourseMapID{value: id}, nil
}

func (id CourseMapID) String() string { return id.value }
func (id CourseMapID) IsZero() bool   { return id.value == "" }

// SemesterID identifies a semester within a course map.
type SemesterID struct {
	value string
}

// NewSemesterID creates a new random SemesterID.
func NewSemesterID() SemesterID {
	return SemesterID{value: uuid.New().String()}
}

// NewSemesterIDFromString creates a SemesterID from an existing string.
func NewSemesterIDFromString(id string) (SemesterID, error) {
	if !isValidUUID(id) {
		return SemesterID{}, errors.New("semester ID must be a valid UUID")
	}
	return SemesterID{value: id}, nil
}

func (id SemesterID) String() string { return id.value }
func (id SemesterID) IsZero() bool   { return id.value == "" }

// SwapRequestID identifies a swap request.
type SwapRequestID struct {
	value string
}

// NewSwapRequestID creates a new random SwapRequestID.
func NewSwapRequestID() SwapRequestID {
	return SwapRequestID{value: uuid.New().String()}
}

// NewSwapRequestIDFromString creates a SwapRequestID from an existing string.
func NewSwapRequestIDFromString(id string) (SwapRequestID, error) {
	if !isValidUUID(id) {
		return SwapRequestID{}, errors.New("swap request ID must be a valid UUID")
	}
	return SwapRequestID{value: id}, nil
}

func (id SwapRequestID) String() string { return id.value }
func (id SwapRequestID) IsZero() bool   { return id.value == "" }

// TimeslotID identifies a class timeslot. Timeslots are reference data
// owned by the timetable importer, so their ids are opaque strings
// rather than UUIDs minted here.
type TimeslotID string

func (id TimeslotID) String() string { return string(id) }
func (id TimeslotID) IsZero() bool   { return id == "" }

// CourseCode is a catalog course code, normalized to upper case.
type CourseCode string

// NewCourseCode normalizes a raw course code.
func NewCourseCode(raw string) (CourseCode, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if code == "" {
		return "", errors.New("course code cannot be empty")
	}
	return CourseCode(code), nil
}

func (c CourseCode) String() string { return string(c) }

func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
