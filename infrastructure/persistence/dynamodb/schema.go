package dynamodb

import "fmt"

// Single-table layout. Two global secondary indexes:
//
//	OfferIndex (GSI1): pending swap requests by offered timeslot, and
//	    timeslots by course.
//	UserIndex (GSI2): course maps and swap requests by owner.
const (
	skMeta = "META"

	pkProgramPrefix  = "PROGRAM#"
	skCoursePrefix   = "COURSE#"
	pkTimeslotPrefix = "TIMESLOT#"
	pkMapPrefix      = "MAP#"
	skContPrefix     = "CONT#"
	skSemPrefix      = "SEM#"
	pkRequestPrefix  = "REQ#"
	skMatchPrefix    = "MATCH#"
	pkUserPrefix     = "USER#"
	skMapNamePrefix  = "MAPNAME#"
	skOfferPrefix    = "OFFER#"

	gsiOfferPrefix  = "OFFER#"
	gsiCoursePrefix = "COURSE#"
	gsiUserPrefix   = "USER#"
)

func programPK(code string) string           { return pkProgramPrefix + code }
func courseSK(code string) string            { return skCoursePrefix + code }
func timeslotPK(id string) string            { return pkTimeslotPrefix + id }
func mapPK(id string) string                 { return pkMapPrefix + id }
func containmentSK(code string) string       { return skContPrefix + code }
func semesterSK(order int) string            { return fmt.Sprintf("%s%04d", skSemPrefix, order) }
func requestPK(id string) string             { return pkRequestPrefix + id }
func matchSK(otherID string) string          { return skMatchPrefix + otherID }
func userPK(userID string) string            { return pkUserPrefix + userID }
func mapNameSK(name string) string           { return skMapNamePrefix + name }
func offerGuardSK(slotID string) string      { return skOfferPrefix + slotID }
func offerIndexPK(slotID string) string      { return gsiOfferPrefix + slotID }
func courseIndexPK(code string) string       { return gsiCoursePrefix + code }
func userIndexPK(userID string) string       { return gsiUserPrefix + userID }
