package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitalwatch/internal/engine"
	"vitalwatch/internal/handlers"
	"vitalwatch/internal/models"
	"vitalwatch/internal/store"
)

var t0 = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

type seqIDs struct{ n int }

func (s *seqIDs) NewID(time.Time) string {
	s.n++
	return fmt.Sprintf("a%d", s.n)
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	reg, err := store.NewRegistry(engine.SeedPatients(t0), engine.SeedCaretakers())
	require.NoError(t, err)
	alerts := store.NewAlertStore(store.DefaultAlertCapacity)
	alerts.Insert(engine.SeedAlerts(t0, &seqIDs{}))

	e, err := engine.New(engine.Config{
		Registry: reg,
		Alerts:   alerts,
		Clock:    engine.NewManualClock(t0.Add(time.Hour)),
	})
	require.NoError(t, err)

	mux := http.NewServeMux()
	handlers.NewAPI(handlers.Config{Engine: e}).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, baseURL string, actor Actor) *Client {
	t.Helper()
	c, err := New(Config{BaseURL: baseURL, Timeout: 2 * time.Second, Actor: actor})
	require.NoError(t, err)
	return c
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	_, err = New(Config{BaseURL: "http://[::1"})
	assert.Error(t, err)
}

func TestListPatients(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	all, err := newClient(t, srv.URL, Actor{}).ListPatients(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 4)

	bob := newClient(t, srv.URL, Actor{ID: "4", Name: "Bob Wilson", Role: models.RoleCaretaker})
	scoped, err := bob.ListPatients(ctx, "")
	require.NoError(t, err)
	require.Len(t, scoped, 2)
	assert.Equal(t, "2", scoped[0].ID)
	assert.Equal(t, "3", scoped[1].ID)

	found, err := bob.ListPatients(ctx, "heart")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Robert Johnson", found[0].Name)
}

func TestPatient_NotFound(t *testing.T) {
	srv := newTestServer(t)
	alice := newClient(t, srv.URL, Actor{ID: "3", Role: models.RoleCaretaker})

	_, err := alice.Patient(context.Background(), "3")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrNotFound)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "patient not found", apiErr.Message)
}

func TestListAlerts(t *testing.T) {
	srv := newTestServer(t)
	c := newClient(t, srv.URL, Actor{})
	ctx := context.Background()

	active, err := c.ListAlerts(ctx, AlertQuery{Status: "active"})
	require.NoError(t, err)
	assert.Len(t, active, 2)

	limited, err := c.ListAlerts(ctx, AlertQuery{PatientIDs: []string{"1", "2"}, Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "a2", limited[0].ID)

	_, err = c.ListAlerts(ctx, AlertQuery{Status: "closed"})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestResolveAlert(t *testing.T) {
	srv := newTestServer(t)
	c := newClient(t, srv.URL, Actor{ID: engine.SeedDoctorID, Name: engine.SeedDoctorName, Role: models.RoleDoctor})
	ctx := context.Background()

	a, err := c.ResolveAlert(ctx, "a1", "Checked leads", "")
	require.NoError(t, err)
	require.NotNil(t, a.Resolution)
	assert.Equal(t, engine.SeedDoctorName, a.Resolution.ResolvedBy)

	again, err := c.ResolveAlert(ctx, "a1", "Checked again", "Someone else")
	assert.ErrorIs(t, err, models.ErrAlreadyResolved)
	require.NotNil(t, again.Resolution)
	assert.Equal(t, "Checked leads", again.Resolution.ActionTaken)

	_, err = c.ResolveAlert(ctx, "a2", "", "")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestAddRemark(t *testing.T) {
	srv := newTestServer(t)
	c := newClient(t, srv.URL, Actor{ID: "3", Name: "Alice Johnson", Role: models.RoleCaretaker})

	r, err := c.AddRemark(context.Background(), "1", handlers.RemarkRequest{Content: "Ate lunch", Kind: "observation"})
	require.NoError(t, err)
	assert.Equal(t, "Alice Johnson", r.AuthorName)
	assert.Equal(t, models.RemarkObservation, r.Kind)

	_, err = c.AddRemark(context.Background(), "3", handlers.RemarkRequest{Content: "x"})
	assert.ErrorIs(t, err, models.ErrNotFound, "patient 3 is outside Alice's scope")
}

func TestSummary(t *testing.T) {
	srv := newTestServer(t)

	s, err := newClient(t, srv.URL, Actor{}).Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, s.Patients)
	assert.Equal(t, 2, s.ActiveAlerts)
	assert.Equal(t, 1, s.ResolvedAlerts)
	assert.Equal(t, 3, s.TotalAlerts)
}

func TestTransportError(t *testing.T) {
	srv := newTestServer(t)
	url := srv.URL
	srv.Close()

	_, err := newClient(t, url, Actor{}).Summary(context.Background())
	require.Error(t, err)
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}
