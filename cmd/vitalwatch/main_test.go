package main

import (
	"bytes"
	"encoding/json"
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

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", out)
}

func TestPatientsList(t *testing.T) {
	srv := newTestServer(t)

	out, err := run(t, "--server", srv.URL, "patients", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "John Doe")
	assert.Contains(t, out, "Mary Williams")

	out, err = run(t, "--server", srv.URL, "--role", "caretaker", "--actor-id", "4", "patients", "list", "-q", "diabetes", "--json")
	require.NoError(t, err)
	var patients []models.Patient
	require.NoError(t, json.Unmarshal([]byte(out), &patients))
	require.Len(t, patients, 1)
	assert.Equal(t, "Jane Smith", patients[0].Name)
}

func TestAlertsListAndResolve(t *testing.T) {
	srv := newTestServer(t)

	out, err := run(t, "--server", srv.URL, "--json", "alerts", "list", "--status", "active")
	require.NoError(t, err)
	var active []models.Alert
	require.NoError(t, json.Unmarshal([]byte(out), &active))
	assert.Len(t, active, 2)

	out, err = run(t, "--server", srv.URL, "--actor-name", "Dr. X", "alerts", "resolve", "a1", "--action", "Checked leads")
	require.NoError(t, err)
	assert.Equal(t, "resolved a1 by Dr. X\n", out)

	_, err = run(t, "--server", srv.URL, "alerts", "resolve", "a1", "--action", "Again")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already resolved by Dr. X")

	_, err = run(t, "--server", srv.URL, "alerts", "resolve", "a2")
	assert.Error(t, err, "--action is required")
}

func TestRemarksAdd(t *testing.T) {
	srv := newTestServer(t)

	out, err := run(t, "--server", srv.URL, "--actor-id", "3", "--actor-name", "Alice Johnson",
		"remarks", "add", "2", "Resting comfortably", "--kind", "observation")
	require.NoError(t, err)
	assert.Contains(t, out, "added observation remark")

	_, err = run(t, "--server", srv.URL, "remarks", "add", "2", "  ")
	assert.Error(t, err)
}

func TestSummary(t *testing.T) {
	srv := newTestServer(t)

	out, err := run(t, "--server", srv.URL, "summary")
	require.NoError(t, err)
	assert.Contains(t, out, "patients: 4")
	assert.Contains(t, out, "active alerts: 2 (0 critical)")
}

func TestAlertsList_Table(t *testing.T) {
	srv := newTestServer(t)

	out, err := run(t, "--server", srv.URL, "alerts", "list", "--status", "resolved")
	require.NoError(t, err)
	assert.Contains(t, out, "RESOLVED BY")
	assert.Contains(t, out, engine.SeedDoctorName)

	out, err = run(t, "--server", srv.URL, "alerts", "list", "--patient", "4")
	require.NoError(t, err)
	assert.Contains(t, out, "No alerts.")
	assert.NotContains(t, out, "PATIENT")
}

func TestPatientsList_NoMatches(t *testing.T) {
	srv := newTestServer(t)

	out, err := run(t, "--server", srv.URL, "patients", "list", "-q", "nobody-has-this")
	require.NoError(t, err)
	assert.Contains(t, out, "No patients.")
}
