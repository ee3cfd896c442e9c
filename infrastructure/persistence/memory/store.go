package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"swapcourses-backend/application/ports"
	"swapcourses-backend/domain/core/aggregates"
	"swapcourses-backend/domain/core/entities"
	"swapcourses-backend/domain/core/valueobjects"
	pkgerrors "swapcourses-backend/pkg/errors"
)

// Store is an in-memory backing for every repository port, used by
// local development and the service tests. One mutex stands in for the
// transactional writes the DynamoDB implementation performs, so the
// same version guards apply. The port views returned by Programs,
// CourseMaps, Timeslots and SwapRequests all share it.
type Store struct {
	mu sync.RWMutex

	programs  map[string]*entities.Program
	timeslots map[valueobjects.TimeslotID]*entities.Timeslot

	maps     map[string]*courseMapRecord
	mapNames map[string]string // userID+"/"+name -> mapID

	requests map[string]*requestRecord
	matches  map[string]*entities.Match
}

type containmentRecord struct {
	code      valueobjects.CourseCode
	taken     bool
	outdegree int
	lastOrder int
	takenIn   valueobjects.SemesterID
}

type semesterRecord struct {
	id     valueobjects.SemesterID
	season valueobjects.Season
	year   int
	order  int
}

type courseMapRecord struct {
	id           string
	userID       string
	name         string
	programCode  string
	containments map[valueobjects.CourseCode]containmentRecord
	semesters    []semesterRecord
	createdAt    time.Time
	version      int
}

type requestRecord struct {
	id        string
	userID    string
	userEmail string
	status    valueobjects.SwapStatus
	offered   valueobjects.TimeslotID
	wanted    []valueobjects.TimeslotID
	createdAt time.Time
	updatedAt time.Time
	version   int
}

// NewStore creates an empty store. Seed catalog data with SeedProgram
// and SeedTimeslots before use.
func NewStore() *Store {
	return &Store{
		programs:  make(map[string]*entities.Program),
		timeslots: make(map[valueobjects.TimeslotID]*entities.Timeslot),
		maps:      make(map[string]*courseMapRecord),
		mapNames:  make(map[string]string),
		requests:  make(map[string]*requestRecord),
		matches:   make(map[string]*entities.Match),
	}
}

// SeedProgram registers a program and its required courses.
func (s *Store) SeedProgram(p *entities.Program) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.programs[p.Code] = p
}

// SeedTimeslots registers timeslots in the inventory.
func (s *Store) SeedTimeslots(slots ...*entities.Timeslot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ts := range slots {
		s.timeslots[ts.ID] = ts
	}
}

// Programs returns the program repository view.
func (s *Store) Programs() ports.ProgramRepository { return &programRepo{s} }

// CourseMaps returns the course map repository view.
func (s *Store) CourseMaps() ports.CourseMapRepository { return &courseMapRepo{s} }

// Timeslots returns the timeslot repository view.
func (s *Store) Timeslots() ports.TimeslotRepository { return &timeslotRepo{s} }

// SwapRequests returns the swap request repository view.
func (s *Store) SwapRequests() ports.SwapRequestRepository { return &swapRequestRepo{s} }

// --- ProgramRepository ---

type programRepo struct{ s *Store }

func (r *programRepo) GetByCode(ctx context.Context, code string) (*entities.Program, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.programs[code]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("program")
	}
	return p, nil
}

func (r *programRepo) List(ctx context.Context) ([]*entities.Program, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*entities.Program, 0, len(r.s.programs))
	for _, p := range r.s.programs {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// --- CourseMapRepository ---

type courseMapRepo struct{ s *Store }

func (r *courseMapRepo) Create(ctx context.Context, m *aggregates.CourseMap) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	nameKey := m.UserID() + "/" + m.Name()
	if _, exists := r.s.mapNames[nameKey]; exists {
		return pkgerrors.NewConflictError("a course map with this name already exists")
	}

	rec := &courseMapRecord{
		id:           m.ID().String(),
		userID:       m.UserID(),
		name:         m.Name(),
		programCode:  m.ProgramCode(),
		containments: make(map[valueobjects.CourseCode]containmentRecord),
		createdAt:    m.CreatedAt(),
		version:      m.Version(),
	}
	for _, c := range m.Containments() {
		rec.containments[c.CourseCode] = snapshotContainment(c)
	}
	for _, sem := range m.Semesters() {
		rec.semesters = append(rec.semesters, semesterRecord{sem.ID, sem.Season, sem.Year, sem.Order})
	}
	r.s.maps[rec.id] = rec
	r.s.mapNames[nameKey] = rec.id
	return nil
}

func (r *courseMapRepo) GetByID(ctx context.Context, id valueobjects.CourseMapID) (*aggregates.CourseMap, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	rec, ok := r.s.maps[id.String()]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("course map")
	}
	return r.s.rebuildMapLocked(rec)
}

func (r *courseMapRepo) GetByUserID(ctx context.Context, userID string) ([]*aggregates.CourseMap, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*aggregates.CourseMap
	for _, rec := range r.s.maps {
		if rec.userID != userID {
			continue
		}
		m, err := r.s.rebuildMapLocked(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out, nil
}

func (r *courseMapRepo) AddSemester(ctx context.Context, mapID valueobjects.CourseMapID, sem *entities.Semester, expectedVersion int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.maps[mapID.String()]
	if !ok {
		return pkgerrors.NewNotFoundError("course map")
	}
	if rec.version != expectedVersion {
		return versionConflict("add semester")
	}
	rec.semesters = append(rec.semesters, semesterRecord{sem.ID, sem.Season, sem.Year, sem.Order})
	rec.version = expectedVersion + 1
	return nil
}

func (r *courseMapRepo) ApplyScheduling(ctx context.Context, change *aggregates.SchedulingChange) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.maps[change.MapID.String()]
	if !ok {
		return pkgerrors.NewNotFoundError("course map")
	}
	if rec.version != change.ExpectedVersion {
		return versionConflict("apply scheduling")
	}
	for _, c := range change.Containments {
		rec.containments[c.CourseCode] = snapshotContainment(c)
	}
	rec.version = change.NewVersion
	return nil
}

func (r *courseMapRepo) Delete(ctx context.Context, id valueobjects.CourseMapID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.maps[id.String()]
	if !ok {
		return pkgerrors.NewNotFoundError("course map")
	}
	delete(r.s.maps, rec.id)
	delete(r.s.mapNames, rec.userID+"/"+rec.name)
	return nil
}

// --- TimeslotRepository ---

type timeslotRepo struct{ s *Store }

func (r *timeslotRepo) GetByID(ctx context.Context, id valueobjects.TimeslotID) (*entities.Timeslot, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ts, ok := r.s.timeslots[id]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("timeslot")
	}
	return ts, nil
}

func (r *timeslotRepo) GetByIDs(ctx context.Context, ids []valueobjects.TimeslotID) ([]*entities.Timeslot, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*entities.Timeslot, 0, len(ids))
	for _, id := range ids {
		ts, ok := r.s.timeslots[id]
		if !ok {
			return nil, pkgerrors.NewNotFoundError("timeslot")
		}
		out = append(out, ts)
	}
	return out, nil
}

func (r *timeslotRepo) ListByCourse(ctx context.Context, code valueobjects.CourseCode) ([]*entities.Timeslot, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*entities.Timeslot
	for _, ts := range r.s.timeslots {
		if ts.CourseCode == code {
			out = append(out, ts)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- SwapRequestRepository ---

type swapRequestRepo struct{ s *Store }

func (r *swapRequestRepo) Create(ctx context.Context, req *entities.SwapRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, rec := range r.s.requests {
		if rec.userID == req.UserID() && rec.offered == req.Offered() {
			return pkgerrors.NewConflictError("a swap request for this timeslot already exists")
		}
	}
	r.s.requests[req.ID().String()] = snapshotRequest(req)
	return nil
}

func (r *swapRequestRepo) GetByID(ctx context.Context, id valueobjects.SwapRequestID) (*entities.SwapRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	rec, ok := r.s.requests[id.String()]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("swap request")
	}
	return rebuildRequest(rec)
}

func (r *swapRequestRepo) ListByUser(ctx context.Context, userID string) ([]*entities.SwapRequest, []*entities.Match, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var rs []*entities.SwapRequest
	var ms []*entities.Match
	for _, rec := range r.s.requests {
		if rec.userID != userID {
			continue
		}
		req, err := rebuildRequest(rec)
		if err != nil {
			return nil, nil, err
		}
		rs = append(rs, req)
		for _, m := range r.s.matchesOfLocked(req.ID()) {
			ms = append(ms, copyMatch(m))
		}
	}
	sort.Slice(rs, func(i, j int) bool { return rs[i].ID().String() < rs[j].ID().String() })
	return rs, ms, nil
}

func (r *swapRequestRepo) MatchesOf(ctx context.Context, id valueobjects.SwapRequestID) ([]*entities.Match, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*entities.Match
	for _, m := range r.s.matchesOfLocked(id) {
		out = append(out, copyMatch(m))
	}
	return out, nil
}

func (r *swapRequestRepo) LoadDiscoveryCluster(ctx context.Context, subjectID valueobjects.SwapRequestID) (*aggregates.MatchCluster, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	subjectRec, ok := r.s.requests[subjectID.String()]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("swap request")
	}
	subject, err := rebuildRequest(subjectRec)
	if err != nil {
		return nil, err
	}

	rs := []*entities.SwapRequest{subject}
	for _, rec := range r.s.requests {
		if rec.id == subjectRec.id || rec.status != valueobjects.SwapStatusPending {
			continue
		}
		if !subject.Wants(rec.offered) {
			continue
		}
		req, err := rebuildRequest(rec)
		if err != nil {
			return nil, err
		}
		rs = append(rs, req)
	}
	return aggregates.NewMatchCluster(rs, nil)
}

func (r *swapRequestRepo) LoadMatchCluster(ctx context.Context, subjectID valueobjects.SwapRequestID) (*aggregates.MatchCluster, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if _, ok := r.s.requests[subjectID.String()]; !ok {
		return nil, pkgerrors.NewNotFoundError("swap request")
	}

	// Two hops: the subject's counterparts, then the counterparts'
	// other edges with their endpoints.
	ids := map[string]valueobjects.SwapRequestID{subjectID.String(): subjectID}
	edges := map[string]*entities.Match{}
	for _, m := range r.s.matchesOfLocked(subjectID) {
		edges[m.Key()] = m
		other := m.Other(subjectID)
		ids[other.String()] = other
		for _, mm := range r.s.matchesOfLocked(other) {
			edges[mm.Key()] = mm
			ids[mm.A.String()] = mm.A
			ids[mm.B.String()] = mm.B
		}
	}

	var rs []*entities.SwapRequest
	for key := range ids {
		rec, ok := r.s.requests[key]
		if !ok {
			return nil, pkgerrors.NewStoreError("load match cluster", errors.New("dangling match edge"))
		}
		req, err := rebuildRequest(rec)
		if err != nil {
			return nil, err
		}
		rs = append(rs, req)
	}
	var ms []*entities.Match
	for _, m := range edges {
		ms = append(ms, copyMatch(m))
	}
	return aggregates.NewMatchCluster(rs, ms)
}

func (r *swapRequestRepo) ApplyCluster(ctx context.Context, cluster *aggregates.MatchCluster, change *aggregates.ClusterChange) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	// Version guards first, nothing applies on any mismatch.
	for id, expected := range change.UpdatedRequests {
		rec, ok := r.s.requests[id.String()]
		if !ok || rec.version != expected {
			return versionConflict("apply cluster")
		}
	}
	for id, expected := range change.DeletedRequests {
		rec, ok := r.s.requests[id.String()]
		if !ok || rec.version != expected {
			return versionConflict("apply cluster")
		}
	}

	for id := range change.UpdatedRequests {
		req := cluster.Request(id)
		if req == nil {
			return pkgerrors.NewStoreError("apply cluster", errors.New("updated request missing from cluster"))
		}
		r.s.requests[id.String()] = snapshotRequest(req)
	}
	for id := range change.DeletedRequests {
		delete(r.s.requests, id.String())
	}
	for _, m := range change.RemovedMatches {
		delete(r.s.matches, m.Key())
	}
	for _, m := range change.CreatedMatches {
		r.s.matches[m.Key()] = copyMatch(m)
	}
	for _, m := range change.UpdatedMatches {
		r.s.matches[m.Key()] = copyMatch(m)
	}
	return nil
}

// --- helpers ---

func (s *Store) matchesOfLocked(id valueobjects.SwapRequestID) []*entities.Match {
	var out []*entities.Match
	for _, m := range s.matches {
		if m.Involves(id) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

func (s *Store) rebuildMapLocked(rec *courseMapRecord) (*aggregates.CourseMap, error) {
	program, ok := s.programs[rec.programCode]
	if !ok {
		return nil, pkgerrors.NewStoreError("rebuild course map", errors.New("program missing from catalog"))
	}

	id, err := valueobjects.NewCourseMapIDFromString(rec.id)
	if err != nil {
		return nil, pkgerrors.NewStoreError("rebuild course map", err)
	}
	conts := make([]*entities.Containment, 0, len(rec.containments))
	for _, c := range rec.containments {
		conts = append(conts, &entities.Containment{
			CourseCode:              c.code,
			Taken:                   c.taken,
			Outdegree:               c.outdegree,
			LastPrereqSemesterOrder: c.lastOrder,
			TakenIn:                 c.takenIn,
		})
	}
	sems := make([]*entities.Semester, 0, len(rec.semesters))
	for _, sr := range rec.semesters {
		sems = append(sems, &entities.Semester{ID: sr.id, Season: sr.season, Year: sr.year, Order: sr.order})
	}
	return aggregates.ReconstructCourseMap(
		id, rec.userID, rec.name, rec.programCode,
		program.Required, conts, sems, rec.createdAt, rec.version,
	), nil
}

func snapshotContainment(c *entities.Containment) containmentRecord {
	return containmentRecord{
		code:      c.CourseCode,
		taken:     c.Taken,
		outdegree: c.Outdegree,
		lastOrder: c.LastPrereqSemesterOrder,
		takenIn:   c.TakenIn,
	}
}

func snapshotRequest(r *entities.SwapRequest) *requestRecord {
	return &requestRecord{
		id:        r.ID().String(),
		userID:    r.UserID(),
		userEmail: r.UserEmail(),
		status:    r.Status(),
		offered:   r.Offered(),
		wanted:    r.Wanted(),
		createdAt: r.CreatedAt(),
		updatedAt: r.UpdatedAt(),
		version:   r.Version(),
	}
}

func rebuildRequest(rec *requestRecord) (*entities.SwapRequest, error) {
	id, err := valueobjects.NewSwapRequestIDFromString(rec.id)
	if err != nil {
		return nil, pkgerrors.NewStoreError("rebuild swap request", err)
	}
	return entities.ReconstructSwapRequest(
		id, rec.userID, rec.userEmail, rec.status, rec.offered,
		append([]valueobjects.TimeslotID(nil), rec.wanted...),
		rec.createdAt, rec.updatedAt, rec.version,
	), nil
}

func copyMatch(m *entities.Match) *entities.Match {
	cp := *m
	return &cp
}

func versionConflict(operation string) error {
	return pkgerrors.NewStoreError(operation, errors.New("version conflict: concurrent modification"))
}
