package httputil_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockflow/stockflow-backend/pkg/httputil"
	"github.com/stockflow/stockflow-backend/pkg/tenant"
)

func TestTenantMiddleware(t *testing.T) {
	var gotTenantID string
	var called bool
	handler := httputil.TenantMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		gotTenantID, _ = tenant.TenantID(r.Context())
	}))

	t.Run("valid tenant UUID passes through", func(t *testing.T) {
		called = false
		req := httptest.NewRequest("GET", "/api/v1/stock/movements", nil)
		req.Header.Set("X-Tenant-ID", "a3d1f7b2-4c6e-4a90-8f21-9b5c2e7d1a44")
		rr := httptest.NewRecorder()

		handler.ServeHTTP(rr, req)

		require.True(t, called)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "a3d1f7b2-4c6e-4a90-8f21-9b5c2e7d1a44", gotTenantID)
	})

	t.Run("missing header rejected", func(t *testing.T) {
		called = false
		req := httptest.NewRequest("GET", "/api/v1/stock/movements", nil)
		rr := httptest.NewRecorder()

		handler.ServeHTTP(rr, req)

		assert.False(t, called)
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("non-UUID header rejected", func(t *testing.T) {
		// The tenant ID ends up interpolated into SET LOCAL statements, so
		// anything that is not a UUID must be stopped at the door.
		for _, header := range []string{
			"not-a-uuid",
			"42'; DROP TABLE products; --",
			"a3d1f7b2-4c6e-4a90-8f21",
		} {
			called = false
			req := httptest.NewRequest("GET", "/api/v1/stock/movements", nil)
			req.Header.Set("X-Tenant-ID", header)
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)

			assert.False(t, called, "handler must not run for %q", header)
			assert.Equal(t, http.StatusForbidden, rr.Code)
		}
	})

	t.Run("health endpoint exempt", func(t *testing.T) {
		called = false
		req := httptest.NewRequest("GET", "/health", nil)
		rr := httptest.NewRecorder()

		handler.ServeHTTP(rr, req)

		assert.True(t, called)
		assert.Equal(t, http.StatusOK, rr.Code)
	})
}
