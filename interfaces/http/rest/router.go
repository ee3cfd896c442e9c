package rest

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"swapcourses-backend/infrastructure/config"
	"swapcourses-backend/interfaces/http/rest/handlers"
	"swapcourses-backend/interfaces/http/rest/middleware"
	"swapcourses-backend/pkg/auth"
	pkgerrors "swapcourses-backend/pkg/errors"
)

// Router creates and configures the HTTP router.
type Router struct {
	cfg              *config.Config
	courseMapHandler *handlers.CourseMapHandler
	swapHandler      *handlers.SwapHandler
	validator        *auth.JWTValidator
	logger           *zap.Logger
}

// NewRouter creates a new router instance.
func NewRouter(
	cfg *config.Config,
	courseMapHandler *handlers.CourseMapHandler,
	swapHandler *handlers.SwapHandler,
	validator *auth.JWTValidator,
	logger *zap.Logger,
) *Router {
	return &Router{
		cfg:              cfg,
		courseMapHandler: courseMapHandler,
		swapHandler:      swapHandler,
		validator:        validator,
		logger:           logger,
	}
}

// Setup configures all routes and middleware.
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))

	if rt.cfg.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"http://localhost:3000", "https://*.swapcourses.app"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	router.Get("/health", rt.healthCheck)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.authenticate())

		r.Get("/programs", rt.courseMapHandler.ListPrograms)

		r.Route("/course-maps", func(r chi.Router) {
			r.Post("/", rt.courseMapHandler.CreateCourseMap)
			r.Get("/", rt.courseMapHandler.ListCourseMaps)
			r.Get("/{mapId}", rt.courseMapHandler.GetCourseMap)
			r.Delete("/{mapId}", rt.courseMapHandler.DeleteCourseMap)

			r.Route("/{mapId}/semesters", func(r chi.Router) {
				r.Post("/", rt.courseMapHandler.AddSemester)
				r.Get("/", rt.courseMapHandler.ListSemesters)
				r.Get("/{semesterId}/available", rt.courseMapHandler.AvailableCourses)
				r.Get("/{semesterId}/courses", rt.courseMapHandler.CoursesInSemester)
				r.Post("/{semesterId}/courses", rt.courseMapHandler.ScheduleCourse)
				r.Delete("/{semesterId}/courses/{courseCode}", rt.courseMapHandler.UnscheduleCourse)
			})
		})

		r.Route("/swap-requests", func(r chi.Router) {
			r.Post("/", rt.swapHandler.CreateSwapRequest)
			r.Get("/", rt.swapHandler.ListSwapRequests)
			r.Get("/{requestId}", rt.swapHandler.GetSwapRequest)
			r.Put("/{requestId}", rt.swapHandler.UpdateSwapRequest)
			r.Post("/{requestId}/agree", rt.swapHandler.AgreeToSwap)
			r.Delete("/{requestId}", rt.swapHandler.DeleteSwapRequest)
		})
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(pkgerrors.ErrorResponse{
			Error:   true,
			Type:    string(pkgerrors.ErrorTypeNotFound),
			Message: "route not found",
		})
	})

	return router
}

// authenticate picks the identity source for the deployment mode. In
// Lambda the API Gateway authorizer has already validated the token.
func (rt *Router) authenticate() func(http.Handler) http.Handler {
	if rt.cfg.IsLambda {
		return middleware.AuthenticateFromGateway()
	}
	return middleware.Authenticate(rt.validator, rt.logger)
}

func (rt *Router) healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":      "healthy",
		"environment": rt.cfg.Environment,
	})
}
