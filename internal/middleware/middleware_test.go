package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-planner/internal/models"
	"github.com/noah-isme/course-planner/internal/service"
)

func newAuthRouter(t *testing.T) (*gin.Engine, *service.BridgeAuthService) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	auth, err := service.NewBridgeAuthService(service.BridgeAuthConfig{TokenTTL: time.Hour}, nil)
	require.NoError(t, err)

	r := gin.New()
	r.POST("/api/v1/operations/:operation", BridgeAuth(auth), func(c *gin.Context) {
		claims, ok := c.Get(ContextSessionKey)
		require.True(t, ok)
		c.String(http.StatusOK, claims.(*models.BridgeClaims).SessionID)
	})
	return r, auth
}

func TestBridgeAuthAcceptsIssuedToken(t *testing.T) {
	r, auth := newAuthRouter(t)
	token, err := auth.Issue()
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/operations/GET_LOG_ENTRIES", nil)
	req.Header.Set("Authorization", "Bearer "+token.Token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, token.SessionID, w.Body.String())
}

func TestBridgeAuthRejectsMissingOrBadTokens(t *testing.T) {
	r, _ := newAuthRouter(t)

	for name, header := range map[string]string{
		"missing":    "",
		"not bearer": "Basic Zm9vOmJhcg==",
		"garbage":    "Bearer nope",
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/operations/GET_LOG_ENTRIES", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), "UNAUTHORIZED")
		})
	}
}

func TestMetricsRecordsOperation(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()

	r := gin.New()
	r.Use(Metrics(metrics))
	r.POST("/api/v1/operations/:operation", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	req := httptest.NewRequest(http.MethodPost, "/api/v1/operations/CLEAN_SCHEDULES", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	count, err := testutil.GatherAndCount(metrics.Registry(), "planner_bridge_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
