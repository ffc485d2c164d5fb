package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitalwatch/internal/metrics"
	"vitalwatch/internal/models"
)

func TestLogging_RequestID(t *testing.T) {
	var seen string
	h := Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", seen, "incoming request id is kept")
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestLogging_MetricsUseRoutePattern(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /patients/{id}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	h := Logging(mux)

	counter := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "GET /patients/{id}", "200")
	before := testutil.ToFloat64(counter)

	for _, id := range []string{"1", "2", "3"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/patients/"+id, nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	assert.Equal(t, before+3, testutil.ToFloat64(counter))
}

func TestRecovery(t *testing.T) {
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), Logging, Recovery)

	before := testutil.ToFloat64(metrics.PanicsRecovered.WithLabelValues("http_handler"))

	rec := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.PanicsRecovered.WithLabelValues("http_handler")))
}

func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}), mw("a"), mw("b"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"a", "b", "handler"}, order)
}

func TestScope(t *testing.T) {
	resolve := func(role models.Role, actorID string) (models.Scope, error) {
		switch role {
		case models.RoleAdmin, models.RoleDoctor:
			return models.AllPatients(), nil
		case models.RoleCaretaker:
			return models.OnlyPatients("p-" + actorID), nil
		}
		return models.Scope{}, errors.New("unknown role")
	}

	var got Actor
	h := Scope(resolve)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ActorFrom(r.Context())
	}))

	tests := []struct {
		name     string
		headers  map[string]string
		wantCode int
		want     Actor
	}{
		{
			name:     "no headers acts as admin",
			wantCode: http.StatusOK,
			want:     Actor{Role: models.RoleAdmin, Scope: models.AllPatients()},
		},
		{
			name:     "caretaker is scoped",
			headers:  map[string]string{ActorRoleHeader: "Caretaker", ActorIDHeader: "3", ActorNameHeader: "Alice Johnson"},
			wantCode: http.StatusOK,
			want:     Actor{ID: "3", Name: "Alice Johnson", Role: models.RoleCaretaker, Scope: models.OnlyPatients("p-3")},
		},
		{
			name:     "unknown role is rejected",
			headers:  map[string]string{ActorRoleHeader: "janitor"},
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got = Actor{}
			req := httptest.NewRequest(http.MethodGet, "/patients", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode == http.StatusOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestActorFrom_Default(t *testing.T) {
	a := ActorFrom(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	assert.Equal(t, models.RoleAdmin, a.Role)
	assert.True(t, a.Scope.Allows("anyone"))
}
