package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"swapcourses-backend/application/services"
	"swapcourses-backend/domain/core/aggregates"
	"swapcourses-backend/domain/core/entities"
	"swapcourses-backend/domain/core/valueobjects"
	"swapcourses-backend/infrastructure/config"
	"swapcourses-backend/pkg/auth"
	pkgerrors "swapcourses-backend/pkg/errors"
	"swapcourses-backend/pkg/utils"
)

// CourseMapHandler handles program and course-map HTTP requests.
type CourseMapHandler struct {
	service *services.CourseMapService
	dynamic *config.Watcher
	errors  *pkgerrors.ErrorHandler
	logger  *zap.Logger
}

// NewCourseMapHandler creates a new course-map handler.
func NewCourseMapHandler(
	service *services.CourseMapService,
	dynamic *config.Watcher,
	errorHandler *pkgerrors.ErrorHandler,
	logger *zap.Logger,
) *CourseMapHandler {
	return &CourseMapHandler{
		service: service,
		dynamic: dynamic,
		errors:  errorHandler,
		logger:  logger,
	}
}

// CreateCourseMapRequest is the request body for creating a course map.
type CreateCourseMapRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=120"`
	ProgramCode string `json:"programCode" validate:"required,min=1,max=40"`
}

// AddSemesterRequest is the request body for appending a semester.
type AddSemesterRequest struct {
	Season string `json:"season" validate:"required,oneof=fall spring summer"`
	Year   int    `json:"year" validate:"required,gte=1900"`
}

// ScheduleCourseRequest is the request body for placing a course.
type ScheduleCourseRequest struct {
	CourseCode string `json:"courseCode" validate:"required,min=1,max=40"`
}

// ProgramResponse is one catalog program.
type ProgramResponse struct {
	Code    string           `json:"code"`
	Name    string           `json:"name"`
	Courses []CourseResponse `json:"courses"`
}

// CourseResponse is one catalog course.
type CourseResponse struct {
	Code              string   `json:"code"`
	Name              string   `json:"name"`
	CreditHours       int      `json:"creditHours"`
	PrerequisiteHours int      `json:"prerequisiteHours"`
	Prerequisites     []string `json:"prerequisites"`
}

// SemesterResponse is one semester inside a course map.
type SemesterResponse struct {
	ID     string `json:"id"`
	Season string `json:"season"`
	Year   int    `json:"year"`
	Order  int    `json:"order"`
}

// CourseMapResponse is a course map with its semesters and placements.
type CourseMapResponse struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	ProgramCode string              `json:"programCode"`
	CreatedAt   time.Time           `json:"createdAt"`
	Semesters   []SemesterResponse  `json:"semesters"`
	Placements  []PlacementResponse `json:"placements"`
}

// PlacementResponse is one scheduled course.
type PlacementResponse struct {
	CourseCode string `json:"courseCode"`
	SemesterID string `json:"semesterId"`
}

// ListPrograms handles GET /programs.
func (h *CourseMapHandler) ListPrograms(w http.ResponseWriter, r *http.Request) {
	programs, err := h.service.ListPrograms(r.Context())
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	resp := make([]ProgramResponse, 0, len(programs))
	for _, p := range programs {
		resp = append(resp, toProgramResponse(p))
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"programs": resp})
}

// CreateCourseMap handles POST /course-maps.
func (h *CourseMapHandler) CreateCourseMap(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	var req CreateCourseMapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("invalid request body"))
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError(err.Error()))
		return
	}

	courseMap, err := h.service.CreateCourseMap(r.Context(), user.UserID, req.Name, req.ProgramCode)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toCourseMapResponse(courseMap))
}

// ListCourseMaps handles GET /course-maps.
func (h *CourseMapHandler) ListCourseMaps(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	maps, err := h.service.ListCourseMaps(r.Context(), user.UserID)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	resp := make([]CourseMapResponse, 0, len(maps))
	for _, m := range maps {
		resp = append(resp, toCourseMapResponse(m))
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"courseMaps": resp})
}

// GetCourseMap handles GET /course-maps/{mapId}.
func (h *CourseMapHandler) GetCourseMap(w http.ResponseWriter, r *http.Request) {
	user, mapID, err := h.mapScope(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	courseMap, err := h.service.GetCourseMap(r.Context(), user.UserID, mapID)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toCourseMapResponse(courseMap))
}

// DeleteCourseMap handles DELETE /course-maps/{mapId}.
func (h *CourseMapHandler) DeleteCourseMap(w http.ResponseWriter, r *http.Request) {
	user, mapID, err := h.mapScope(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	if err := h.service.DeleteCourseMap(r.Context(), user.UserID, mapID); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddSemester handles POST /course-maps/{mapId}/semesters.
func (h *CourseMapHandler) AddSemester(w http.ResponseWriter, r *http.Request) {
	user, mapID, err := h.mapScope(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	var req AddSemesterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("invalid request body"))
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError(err.Error()))
		return
	}

	limit := h.limits().MaxSemestersPerMap
	existing, err := h.service.ListSemesters(r.Context(), user.UserID, mapID)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	if len(existing) >= limit {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("semester limit reached").
			WithDetails(map[string]interface{}{"max_semesters": limit}))
		return
	}

	semester, err := h.service.AddSemester(r.Context(), user.UserID, mapID, req.Season, req.Year)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toSemesterResponse(semester))
}

// ListSemesters handles GET /course-maps/{mapId}/semesters.
func (h *CourseMapHandler) ListSemesters(w http.ResponseWriter, r *http.Request) {
	user, mapID, err := h.mapScope(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	semesters, err := h.service.ListSemesters(r.Context(), user.UserID, mapID)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	resp := make([]SemesterResponse, 0, len(semesters))
	for _, s := range semesters {
		resp = append(resp, toSemesterResponse(s))
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"semesters": resp})
}

// ScheduleCourse handles POST /course-maps/{mapId}/semesters/{semesterId}/courses.
func (h *CourseMapHandler) ScheduleCourse(w http.ResponseWriter, r *http.Request) {
	user, mapID, semesterID, err := h.semesterScope(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	var req ScheduleCourseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("invalid request body"))
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError(err.Error()))
		return
	}
	code, err := valueobjects.NewCourseCode(req.CourseCode)
	if err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError(err.Error()))
		return
	}

	if err := h.service.ScheduleCourse(r.Context(), user.UserID, mapID, semesterID, code); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"courseCode": code.String(),
		"semesterId": semesterID.String(),
	})
}

// UnscheduleCourse handles DELETE /course-maps/{mapId}/semesters/{semesterId}/courses/{courseCode}.
func (h *CourseMapHandler) UnscheduleCourse(w http.ResponseWriter, r *http.Request) {
	user, mapID, semesterID, err := h.semesterScope(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	code, err := valueobjects.NewCourseCode(chi.URLParam(r, "courseCode"))
	if err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError(err.Error()))
		return
	}

	if err := h.service.UnscheduleCourse(r.Context(), user.UserID, mapID, semesterID, code); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AvailableCourses handles GET /course-maps/{mapId}/semesters/{semesterId}/available.
func (h *CourseMapHandler) AvailableCourses(w http.ResponseWriter, r *http.Request) {
	user, mapID, semesterID, err := h.semesterScope(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	courses, err := h.service.AvailableCourses(r.Context(), user.UserID, mapID, semesterID)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"courses": toCourseResponses(courses)})
}

// CoursesInSemester handles GET /course-maps/{mapId}/semesters/{semesterId}/courses.
func (h *CourseMapHandler) CoursesInSemester(w http.ResponseWriter, r *http.Request) {
	user, mapID, semesterID, err := h.semesterScope(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	courses, err := h.service.CoursesInSemester(r.Context(), user.UserID, mapID, semesterID)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"courses": toCourseResponses(courses)})
}

func (h *CourseMapHandler) mapScope(r *http.Request) (auth.UserContext, valueobjects.CourseMapID, error) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		return auth.UserContext{}, valueobjects.CourseMapID{}, err
	}
	mapID, err := valueobjects.NewCourseMapIDFromString(chi.URLParam(r, "mapId"))
	if err != nil {
		return auth.UserContext{}, valueobjects.CourseMapID{}, pkgerrors.NewValidationError(err.Error())
	}
	return user, mapID, nil
}

func (h *CourseMapHandler) semesterScope(r *http.Request) (auth.UserContext, valueobjects.CourseMapID, valueobjects.SemesterID, error) {
	user, mapID, err := h.mapScope(r)
	if err != nil {
		return auth.UserContext{}, valueobjects.CourseMapID{}, valueobjects.SemesterID{}, err
	}
	semesterID, err := valueobjects.NewSemesterIDFromString(chi.URLParam(r, "semesterId"))
	if err != nil {
		return auth.UserContext{}, valueobjects.CourseMapID{}, valueobjects.SemesterID{}, pkgerrors.NewValidationError(err.Error())
	}
	return user, mapID, semesterID, nil
}

func (h *CourseMapHandler) limits() config.Limits {
	if h.dynamic != nil {
		return h.dynamic.Current().Limits
	}
	return config.DefaultDynamicConfig().Limits
}

func toProgramResponse(p *entities.Program) ProgramResponse {
	return ProgramResponse{
		Code:    p.Code,
		Name:    p.Name,
		Courses: toCourseResponses(p.Required),
	}
}

func toCourseResponses(courses []*entities.CourseCatalogEntry) []CourseResponse {
	resp := make([]CourseResponse, 0, len(courses))
	for _, c := range courses {
		prereqs := make([]string, 0, len(c.Prerequisites))
		for _, p := range c.Prerequisites {
			prereqs = append(prereqs, p.String())
		}
		resp = append(resp, CourseResponse{
			Code:              c.Code.String(),
			Name:              c.Name,
			CreditHours:       c.CreditHours,
			PrerequisiteHours: c.PrerequisiteHours,
			Prerequisites:     prereqs,
		})
	}
	return resp
}

func toSemesterResponse(s *entities.Semester) SemesterResponse {
	return SemesterResponse{
		ID:     s.ID.String(),
		Season: s.Season.String(),
		Year:   s.Year,
		Order:  s.Order,
	}
}

func toCourseMapResponse(m *aggregates.CourseMap) CourseMapResponse {
	semesters := make([]SemesterResponse, 0)
	for _, s := range m.Semesters() {
		semesters = append(semesters, toSemesterResponse(s))
	}
	placements := make([]PlacementResponse, 0)
	for _, c := range m.Containments() {
		if !c.Taken {
			continue
		}
		placements = append(placements, PlacementResponse{
			CourseCode: c.CourseCode.String(),
			SemesterID: c.TakenIn.String(),
		})
	}
	return CourseMapResponse{
		ID:          m.ID().String(),
		Name:        m.Name(),
		ProgramCode: m.ProgramCode(),
		CreatedAt:   m.CreatedAt(),
		Semesters:   semesters,
		Placements:  placements,
	}
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
