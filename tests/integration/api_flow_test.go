package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"swapcourses-backend/application/services"
	"swapcourses-backend/domain/core/entities"
	"swapcourses-backend/domain/core/valueobjects"
	"swapcourses-backend/infrastructure/config"
	"swapcourses-backend/infrastructure/messaging/eventbridge"
	"swapcourses-backend/infrastructure/persistence/memory"
	"swapcourses-backend/interfaces/http/rest"
	"swapcourses-backend/interfaces/http/rest/handlers"
	"swapcourses-backend/pkg/auth"
	pkgerrors "swapcourses-backend/pkg/errors"
	"swapcourses-backend/pkg/observability"
)

const testSecret = "integration-test-secret"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	logger := zap.NewNop()

	store := memory.NewStore()
	mathCode, err := valueobjects.NewCourseCode("MATH1")
	require.NoError(t, err)
	calcCode, err := valueobjects.NewCourseCode("MATH2")
	require.NoError(t, err)
	store.SeedProgram(&entities.Program{
		Code: "CS",
		Name: "Computer Science",
		Required: []*entities.CourseCatalogEntry{
			{Code: mathCode, Name: "Calculus I", CreditHours: 3},
			{Code: calcCode, Name: "Calculus II", CreditHours: 3,
				Prerequisites: []valueobjects.CourseCode{mathCode}},
		},
	})
	store.SeedTimeslots(
		&entities.Timeslot{ID: "slot-a", CourseCode: mathCode, Group: "A", Day: "mon"},
		&entities.Timeslot{ID: "slot-b", CourseCode: mathCode, Group: "B", Day: "tue"},
	)

	metrics := observability.NewMetrics(nil, "IntegrationTest", logger)
	t.Cleanup(metrics.Close)

	courseMapService := services.NewCourseMapService(store.Programs(), store.CourseMaps(), metrics, logger)
	swapService := services.NewSwapService(store.SwapRequests(), store.Timeslots(), eventbridge.NopSink{}, metrics, logger)

	errorHandler := pkgerrors.NewErrorHandler(logger)
	courseMapHandler := handlers.NewCourseMapHandler(courseMapService, nil, errorHandler, logger)
	swapHandler := handlers.NewSwapHandler(swapService, nil, errorHandler, logger)

	validator, err := auth.NewJWTValidator(auth.JWTConfig{
		SecretKey: testSecret,
		Issuer:    "swapcourses",
	})
	require.NoError(t, err)

	cfg := &config.Config{
		Environment:    "test",
		StorageBackend: "memory",
		EnableCORS:     false,
	}
	router := rest.NewRouter(cfg, courseMapHandler, swapHandler, validator, logger)

	server := httptest.NewServer(router.Setup())
	t.Cleanup(server.Close)
	return server
}

func mintToken(t *testing.T, userID, email string) string {
	t.Helper()
	claims := auth.Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    "swapcourses",
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwtlib.NewNumericDate(time.Now()),
		},
	}
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func doJSON(t *testing.T, server *httptest.Server, method, path, token string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := server.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]interface{}
	if resp.ContentLength != 0 && resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	}
	return resp, decoded
}

func TestHealthEndpointNeedsNoToken(t *testing.T) {
	server := newTestServer(t)

	resp, body := doJSON(t, server, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])
}

func TestRequestsWithoutTokenAreRejected(t *testing.T) {
	server := newTestServer(t)

	resp, body := doJSON(t, server, http.MethodGet, "/api/v1/programs", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "UNAUTHORIZED", body["error"])

	resp, _ = doJSON(t, server, http.MethodGet, "/api/v1/programs", "not-a-token", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCourseMapLifecycle(t *testing.T) {
	server := newTestServer(t)
	token := mintToken(t, "student-1", "student-1@example.edu")

	resp, body := doJSON(t, server, http.MethodGet, "/api/v1/programs", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, body["programs"], 1)

	resp, body = doJSON(t, server, http.MethodPost, "/api/v1/course-maps", token, map[string]string{
		"name":        "my plan",
		"programCode": "CS",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	mapID, ok := body["id"].(string)
	require.True(t, ok)

	base := "/api/v1/course-maps/" + mapID

	resp, body = doJSON(t, server, http.MethodPost, base+"/semesters", token, map[string]interface{}{
		"season": "fall",
		"year":   2026,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	firstSemester := body["id"].(string)

	resp, body = doJSON(t, server, http.MethodPost, base+"/semesters", token, map[string]interface{}{
		"season": "spring",
		"year":   2027,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	secondSemester := body["id"].(string)

	// MATH2 needs MATH1 in a strictly earlier semester.
	resp, body = doJSON(t, server, http.MethodPost,
		fmt.Sprintf("%s/semesters/%s/courses", base, firstSemester), token,
		map[string]string{"courseCode": "MATH2"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, true, body["error"])

	resp, _ = doJSON(t, server, http.MethodPost,
		fmt.Sprintf("%s/semesters/%s/courses", base, firstSemester), token,
		map[string]string{"courseCode": "MATH1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, server, http.MethodPost,
		fmt.Sprintf("%s/semesters/%s/courses", base, secondSemester), token,
		map[string]string{"courseCode": "MATH2"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = doJSON(t, server, http.MethodGet, base, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["placements"], 2)

	// Another user cannot see the map.
	otherToken := mintToken(t, "student-2", "student-2@example.edu")
	resp, _ = doJSON(t, server, http.MethodGet, base, otherToken, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSwapNegotiationOverHTTP(t *testing.T) {
	server := newTestServer(t)
	alice := mintToken(t, "alice", "alice@example.edu")
	bob := mintToken(t, "bob", "bob@example.edu")

	resp, body := doJSON(t, server, http.MethodPost, "/api/v1/swap-requests", alice, map[string]interface{}{
		"offered": "slot-a",
		"wanted":  []string{"slot-b"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	aliceRequest := body["id"].(string)
	assert.Equal(t, "pending", body["status"])

	resp, body = doJSON(t, server, http.MethodPost, "/api/v1/swap-requests", bob, map[string]interface{}{
		"offered": "slot-b",
		"wanted":  []string{"slot-a"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	bobRequest := body["id"].(string)

	// Reciprocal wants, so both sides are now matched.
	resp, body = doJSON(t, server, http.MethodGet, "/api/v1/swap-requests/"+aliceRequest, alice, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "waiting-for-agreement", body["status"])
	matches := body["matches"].([]interface{})
	require.Len(t, matches, 1)
	match := matches[0].(map[string]interface{})
	assert.Equal(t, bobRequest, match["counterpartRequestId"])
	assert.Equal(t, "bob@example.edu", match["counterpartEmail"])

	resp, body = doJSON(t, server, http.MethodPost, "/api/v1/swap-requests/"+aliceRequest+"/agree", alice,
		map[string]string{"counterpartRequestId": bobRequest})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "agreed", body["status"])

	resp, body = doJSON(t, server, http.MethodPost, "/api/v1/swap-requests/"+bobRequest+"/agree", bob,
		map[string]string{"counterpartRequestId": aliceRequest})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "agreed", body["status"])

	resp, body = doJSON(t, server, http.MethodGet, "/api/v1/swap-requests/"+bobRequest, bob, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	matches = body["matches"].([]interface{})
	require.Len(t, matches, 1)
	assert.Equal(t, "agreed", matches[0].(map[string]interface{})["status"])

	// Users only see their own requests.
	resp, _ = doJSON(t, server, http.MethodGet, "/api/v1/swap-requests/"+bobRequest, alice, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSwapRequestValidationOverHTTP(t *testing.T) {
	server := newTestServer(t)
	token := mintToken(t, "carol", "carol@example.edu")

	t.Run("empty wanted set", func(t *testing.T) {
		resp, _ := doJSON(t, server, http.MethodPost, "/api/v1/swap-requests", token, map[string]interface{}{
			"offered": "slot-a",
			"wanted":  []string{},
		})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("wanted set over dynamic limit", func(t *testing.T) {
		wanted := make([]string, 11)
		for i := range wanted {
			wanted[i] = fmt.Sprintf("slot-%d", i)
		}
		resp, body := doJSON(t, server, http.MethodPost, "/api/v1/swap-requests", token, map[string]interface{}{
			"offered": "slot-a",
			"wanted":  wanted,
		})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		details := body["details"].(map[string]interface{})
		assert.Equal(t, float64(10), details["max_wanted_slots"])
	})

	t.Run("unknown timeslot", func(t *testing.T) {
		resp, _ := doJSON(t, server, http.MethodPost, "/api/v1/swap-requests", token, map[string]interface{}{
			"offered": "slot-a",
			"wanted":  []string{"no-such-slot"},
		})
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}
