package ports

import (
	"context"

	"swapcourses-backend/domain/core/aggregates"
	"swapcourses-backend/domain/core/entities"
	"swapcourses-backend/domain/core/valueobjects"
)

// ProgramRepository reads the immutable course catalog.
type ProgramRepository interface {
	// GetByCode retrieves a program with its full required-course list.
	GetByCode(ctx context.Context, code string) (*entities.Program, error)

	// List retrieves every program, required courses included.
	List(ctx context.Context) ([]*entities.Program, error)
}

// CourseMapRepository persists course map aggregates. Scheduling deltas
// are applied as one atomic transaction guarded by the map's version.
type CourseMapRepository interface {
	// Create persists a new map with all seeded containments. The
	// (user, name) pair is unique; a duplicate is a conflict.
	Create(ctx context.Context, m *aggregates.CourseMap) error

	// GetByID retrieves a fully hydrated map.
	GetByID(ctx context.Context, id valueobjects.CourseMapID) (*aggregates.CourseMap, error)

	// GetByUserID retrieves all maps owned by a user.
	GetByUserID(ctx context.Context, userID string) ([]*aggregates.CourseMap, error)

	// AddSemester appends a semester. expectedVersion is the map's
	// version before the append.
	AddSemester(ctx context.Context, mapID valueobjects.CourseMapID, sem *entities.Semester, expectedVersion int) error

	// ApplyScheduling persists a schedule or unschedule delta
	// atomically, failing when the map moved past ExpectedVersion.
	ApplyScheduling(ctx context.Context, change *aggregates.SchedulingChange) error

	// Delete removes a map with its semesters and containments.
	Delete(ctx context.Context, id valueobjects.CourseMapID) error
}

// TimeslotRepository reads the timeslot inventory.
type TimeslotRepository interface {
	// GetByID retrieves one timeslot.
	GetByID(ctx context.Context, id valueobjects.TimeslotID) (*entities.Timeslot, error)

	// GetByIDs retrieves several timeslots; a missing id is an error.
	GetByIDs(ctx context.Context, ids []valueobjects.TimeslotID) ([]*entities.Timeslot, error)

	// ListByCourse retrieves the timeslots of one course.
	ListByCourse(ctx context.Context, code valueobjects.CourseCode) ([]*entities.Timeslot, error)
}

// SwapRequestRepository persists swap requests and their match edges.
// Cluster deltas apply as one transaction guarded per request version.
type SwapRequestRepository interface {
	// Create persists a new pending request. A user may hold only one
	// request per offered timeslot; a duplicate is a conflict.
	Create(ctx context.Context, r *entities.SwapRequest) error

	// GetByID retrieves one request.
	GetByID(ctx context.Context, id valueobjects.SwapRequestID) (*entities.SwapRequest, error)

	// ListByUser retrieves a user's requests with their match edges,
	// so callers can resolve matched counterparts.
	ListByUser(ctx context.Context, userID string) ([]*entities.SwapRequest, []*entities.Match, error)

	// MatchesOf retrieves the edges touching one request.
	MatchesOf(ctx context.Context, id valueobjects.SwapRequestID) ([]*entities.Match, error)

	// LoadDiscoveryCluster loads the subject together with every
	// pending request offering one of the subject's wanted slots.
	LoadDiscoveryCluster(ctx context.Context, subjectID valueobjects.SwapRequestID) (*aggregates.MatchCluster, error)

	// LoadMatchCluster loads the subject, its matched counterparts,
	// and the counterparts' other edges.
	LoadMatchCluster(ctx context.Context, subjectID valueobjects.SwapRequestID) (*aggregates.MatchCluster, error)

	// ApplyCluster persists a cluster delta atomically. Updated request
	// state is read from the cluster; the delta carries the version
	// guards.
	ApplyCluster(ctx context.Context, cluster *aggregates.MatchCluster, change *aggregates.ClusterChange) error
}
