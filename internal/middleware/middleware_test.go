package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/library-admin/internal/model"
	apperrors "github.com/jwalitptl/library-admin/pkg/errors"
	"github.com/jwalitptl/library-admin/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(ContextRequestID)) })

	keep := "0b7c51c4-3c1e-4d53-9f3a-3c1a2b84e0aa"
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderXRequestID, keep)
	r.ServeHTTP(w, req)
	assert.Equal(t, keep, w.Header().Get(HeaderXRequestID))
	assert.Equal(t, keep, w.Body.String())

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderXRequestID, "not a uuid")
	r.ServeHTTP(w, req)
	assert.NotEqual(t, "not a uuid", w.Header().Get(HeaderXRequestID))
	assert.Len(t, w.Header().Get(HeaderXRequestID), 36)
}

func TestErrorHandler_MapsKinds(t *testing.T) {
	tests := []struct {
		err    error
		status int
		msg    string
	}{
		{apperrors.TransitionPrecondition("book code is required"), http.StatusUnprocessableEntity, "book code is required"},
		{apperrors.TransitionConflict("busy"), http.StatusConflict, "busy"},
		{apperrors.PermissionUnresolved("no code"), http.StatusForbidden, "no code"},
		{apperrors.AuthMissing("login required", nil), http.StatusUnauthorized, "login required"},
		{apperrors.RemoteRejected(400, "Kitob topilmadi"), http.StatusBadGateway, "Kitob topilmadi"},
		{apperrors.NetworkFailure(errors.New("dial tcp: refused")), http.StatusServiceUnavailable, "dial tcp: refused"},
		{apperrors.NotFound("unknown view"), http.StatusNotFound, "unknown view"},
		{apperrors.InvalidRequest("invalid order id"), http.StatusBadRequest, "invalid order id"},
		{errors.New("boom"), http.StatusInternalServerError, "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			r := gin.New()
			r.Use(RequestID(), ErrorHandler(logger.Nop()))
			r.GET("/", func(c *gin.Context) { _ = c.Error(tt.err) })

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.msg)
		})
	}
}

func TestErrorHandler_MetaBecomesData(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), ErrorHandler(logger.Nop()))
	r.POST("/", func(c *gin.Context) {
		_ = c.Error(apperrors.TransitionPrecondition("book code is required")).
			SetMeta([]ValidationError{{Field: "book_code", Message: "Field must not be blank"}})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "error", body.Status)
	assert.Equal(t, "transition_precondition", body.Kind)
	assert.NotEmpty(t, body.TraceID)
	assert.Contains(t, w.Body.String(), `"field":"book_code"`)
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Recovery(logger.Nop()))
	r.GET("/", func(c *gin.Context) { panic("kaboom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 1, Burst: 2})
	r := gin.New()
	r.Use(rl.RateLimit())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestSizeLimit(t *testing.T) {
	r := gin.New()
	r.Use(SizeLimit(8))
	r.POST("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"book_code":"x"}`)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS(DefaultCORSConfig()))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_AllowList(t *testing.T) {
	r := gin.New()
	r.Use(CORS(CORSConfig{AllowOrigins: []string{"http://ui.local"}, MaxAge: time.Minute}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://ui.local")
	r.ServeHTTP(w, req)
	assert.Equal(t, "http://ui.local", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "60", w.Header().Get("Access-Control-Max-Age"))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://evil.local")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRegisterValidators_NotBlank(t *testing.T) {
	RegisterValidators()
	RegisterValidators()

	r := gin.New()
	r.POST("/", func(c *gin.Context) {
		var req model.BookCodeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			fields, ok := ValidationErrors(err)
			require.True(t, ok)
			c.JSON(http.StatusBadRequest, fields)
			return
		}
		c.Status(http.StatusOK)
	})

	for body, want := range map[string]int{
		`{"book_code":"BK-1"}`: http.StatusOK,
		`{"book_code":"   "}`:  http.StatusBadRequest,
		`{}`:                   http.StatusBadRequest,
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))
		assert.Equal(t, want, w.Code, body)
		if want == http.StatusBadRequest {
			assert.Contains(t, w.Body.String(), "book_code")
		}
	}
}
