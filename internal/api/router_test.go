package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curbwatch/parking-backend-go/internal/config"
	"github.com/curbwatch/parking-backend-go/internal/database"
	"github.com/curbwatch/parking-backend-go/internal/detection"
	"github.com/curbwatch/parking-backend-go/internal/feed"
	"github.com/curbwatch/parking-backend-go/internal/handler"
	"github.com/curbwatch/parking-backend-go/internal/models"
	"github.com/curbwatch/parking-backend-go/internal/repository"
	"github.com/curbwatch/parking-backend-go/internal/resolver"
	"github.com/curbwatch/parking-backend-go/internal/service"
	"github.com/curbwatch/parking-backend-go/internal/snapshot"
)

const testSecret = "test-secret"

func testRouter(t *testing.T) (*gin.Engine, *service.DetectionService) {
	t.Helper()

	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := zerolog.Nop()
	locationFeed := feed.NewLocationFeed()
	motionFeed := feed.NewMotionFeed()
	scheduleRepo := repository.NewScheduleRepository(db)
	snapshots := snapshot.NewStore(db)

	cfg := &config.Config{JWTSecret: testSecret}
	engineCfg := detection.DefaultConfig()

	newEngine := func() *detection.Engine {
		return detection.NewEngine(engineCfg, detection.Dependencies{
			Location:  locationFeed,
			Motion:    motionFeed,
			Schedules: scheduleRepo,
			Snapshots: snapshots,
			Resolver:  resolver.NewSideResolver(log),
			Logger:    log,
		})
	}

	detectionService := service.NewDetectionService(newEngine, log)
	t.Cleanup(detectionService.StopMonitoring)

	r := SetupRouter(cfg, log, Handlers{
		Signals:   handler.NewSignalHandler(detectionService, locationFeed, motionFeed),
		Detection: handler.NewDetectionHandler(detectionService),
		Schedules: handler.NewScheduleHandler(service.NewScheduleService(scheduleRepo)),
	})
	return r, detectionService
}

func deviceToken(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "device-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthNeedsNoAuth(t *testing.T) {
	r, _ := testRouter(t)

	w := doJSON(t, r, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPIRejectsMissingToken(t *testing.T) {
	r, _ := testRouter(t)

	w := doJSON(t, r, http.MethodGet, "/api/v1/detection/state", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAPIRejectsBadToken(t *testing.T) {
	r, _ := testRouter(t)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "device-1"})
	signed, err := token.SignedString([]byte("wrong-secret"))
	require.NoError(t, err)

	w := doJSON(t, r, http.MethodGet, "/api/v1/detection/state", signed, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDetectionLifecycleOverAPI(t *testing.T) {
	r, _ := testRouter(t)
	token := deviceToken(t)

	w := doJSON(t, r, http.MethodGet, "/api/v1/detection/state", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"monitoring":false`)

	w = doJSON(t, r, http.MethodPost, "/api/v1/detection/start", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/v1/detection/state", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"monitoring":true`)
	assert.Contains(t, w.Body.String(), string(models.StateIdle))

	w = doJSON(t, r, http.MethodPost, "/api/v1/detection/stop", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestSignalIngestion(t *testing.T) {
	r, svc := testRouter(t)
	token := deviceToken(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/detection/start", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/v1/signals/connection", token, map[string]interface{}{
		"kind":   "CONNECT",
		"method": "CARPLAY",
		"at":     time.Now().UTC().Format(time.RFC3339),
	})
	assert.Equal(t, http.StatusAccepted, w.Code)

	require.Eventually(t, func() bool { return svc.State() == models.StateConnected },
		2*time.Second, 5*time.Millisecond)

	w = doJSON(t, r, http.MethodPost, "/api/v1/signals/location", token, map[string]interface{}{
		"lat":       37.7755,
		"lon":       -122.4194,
		"speed_mps": 11.2,
		"at":        time.Now().UTC().Format(time.RFC3339),
	})
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/v1/signals/motion", token, map[string]interface{}{
		"walking":    true,
		"confidence": "HIGH",
		"at":         time.Now().UTC().Format(time.RFC3339),
	})
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestSignalsConflictWhileStopped(t *testing.T) {
	r, _ := testRouter(t)
	token := deviceToken(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/signals/connection", token, map[string]interface{}{
		"kind":   "CONNECT",
		"method": "CARPLAY",
		"at":     time.Now().UTC().Format(time.RFC3339),
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSignalValidation(t *testing.T) {
	r, _ := testRouter(t)
	token := deviceToken(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/signals/connection", token, map[string]interface{}{
		"kind": "CONNECT",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/v1/signals/motion", token, map[string]interface{}{
		"walking": true,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLatestParkingNotFound(t *testing.T) {
	r, _ := testRouter(t)
	token := deviceToken(t)

	w := doJSON(t, r, http.MethodGet, "/api/v1/parking/latest", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSchedulesNear(t *testing.T) {
	r, _ := testRouter(t)
	token := deviceToken(t)

	w := doJSON(t, r, http.MethodGet, "/api/v1/schedules/near?lat=37.7755&lon=-122.4194", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":0`)

	w = doJSON(t, r, http.MethodGet, "/api/v1/schedules/near", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	r, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/detection/state", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
