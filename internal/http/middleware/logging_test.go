package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/salescrm/crm-api/internal/auth"
	"github.com/salescrm/crm-api/internal/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRequestID(t *testing.T) {
	var seen string
	h := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = middleware.RequestIDFromContext(r.Context())
	}))

	t.Run("generated when absent", func(t *testing.T) {
		w := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))

		_, err := uuid.Parse(seen)
		require.NoError(t, err)
		assert.Equal(t, seen, w.Header().Get(middleware.RequestIDHeader))
	})

	t.Run("incoming id is reused", func(t *testing.T) {
		id := uuid.NewString()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(middleware.RequestIDHeader, id)
		w := serve(h, req)

		assert.Equal(t, id, seen)
		assert.Equal(t, id, w.Header().Get(middleware.RequestIDHeader))
	})

	t.Run("malformed id is replaced", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(middleware.RequestIDHeader, "<script>")
		serve(h, req)

		assert.NotEqual(t, "<script>", seen)
		_, err := uuid.Parse(seen)
		assert.NoError(t, err)
	})
}

func TestLogging(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(core)

	tenantID := uuid.New()
	userID := uuid.New()
	filter := middleware.NewTenantFilterMiddleware(&fakeTenants{}, zap.NewNop())

	status := http.StatusOK
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte("{}"))
	})
	authenticate := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := auth.WithUserContext(r.Context(), &auth.UserContext{UserID: userID, TenantID: tenantID})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
	h := middleware.RequestID(middleware.Logging(log)(authenticate(filter.Filter(final))))

	serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/sellers", nil))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.InfoLevel, entry.Level)

	fields := entry.ContextMap()
	assert.Equal(t, int64(http.StatusOK), fields["status_code"])
	assert.Equal(t, userID.String(), fields["user_id"])
	assert.Equal(t, tenantID.String(), fields["tenant_id"])
	assert.Equal(t, int64(2), fields["response_size"])

	t.Run("client errors log as warnings", func(t *testing.T) {
		status = http.StatusNotFound
		serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/sellers/x", nil))

		assert.Equal(t, zapcore.WarnLevel, logs.All()[1].Level)
	})

	t.Run("server errors log as errors", func(t *testing.T) {
		status = http.StatusInternalServerError
		serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/sellers", nil))

		assert.Equal(t, zapcore.ErrorLevel, logs.All()[2].Level)
	})
}

func TestRecovery(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	h := middleware.RequestID(middleware.Recovery(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))

	w := serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/customers", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal server error")
	require.Equal(t, 1, logs.FilterMessage("panic recovered").Len())

	t.Run("aborted handlers keep panicking", func(t *testing.T) {
		h := middleware.Recovery(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic(http.ErrAbortHandler)
		}))

		assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
			serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
		})
	})
}
