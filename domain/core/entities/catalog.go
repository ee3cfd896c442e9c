package entities

import (
	"swapcourses-backend/domain/core/valueobjects"
)

// CourseCatalogEntry is immutable catalog reference data, shared
// read-only by every course map.
type CourseCatalogEntry struct {
	Code              valueobjects.CourseCode
	Name              string
	CreditHours       int
	PrerequisiteHours int
	Prerequisites     []valueobjects.CourseCode
}

// HasPrerequisite reports whether code is one of this course's
// prerequisites.
func (c *CourseCatalogEntry) HasPrerequisite(code valueobjects.CourseCode) bool {
	for _, p := range c.Prerequisites {
		if p == code {
			return true
		}
	}
	return false
}

// Program is a named curriculum owning a required-course set.
type Program struct {
	Code     string
	Name     string
	Required []*CourseCatalogEntry
}

// Course looks up a required course by code.
func (p *Program) Course(code valueobjects.CourseCode) *CourseCatalogEntry {
	for _, c := range p.Required {
		if c.Code == code {
			return c
		}
	}
	return nil
}
