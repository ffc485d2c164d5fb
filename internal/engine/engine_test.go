package engine

import (
	"context"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitalwatch/internal/metrics"
	"vitalwatch/internal/models"
	"vitalwatch/internal/simulator"
	"vitalwatch/internal/store"
)

var t0 = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

// steady returns a patient whose vitals are normal except the heart rate,
// which sits at hr. With a negligible variance the vitals barely move, so
// every tick classifies the same way.
func steady(id string, hr float64) models.Patient {
	return models.Patient{
		ID:   id,
		Name: "Patient " + id,
		CurrentVitals: models.VitalSnapshot{
			HeartRate:              hr,
			BloodPressureSystolic:  120,
			BloodPressureDiastolic: 80,
			SpO2:                   98,
			Temperature:            36.5,
			Timestamp:              t0,
		},
	}
}

type testOpts struct {
	patients []models.Patient
	capacity int
	events   chan *models.AlertEvent
	clock    Clock
	obs      []Observer
	variance float64
}

func newTestEngine(t *testing.T, o testOpts) *Engine {
	t.Helper()

	if o.patients == nil {
		o.patients = SeedPatients(t0)
	}
	if o.capacity == 0 {
		o.capacity = store.DefaultAlertCapacity
	}
	if o.clock == nil {
		o.clock = NewManualClock(t0)
	}

	reg, err := store.NewRegistry(o.patients, SeedCaretakers())
	require.NoError(t, err)

	cfg := Config{
		Registry: reg,
		Alerts:   store.NewAlertStore(o.capacity),
		Simulator: simulator.New(simulator.Config{
			Rand:     rand.New(rand.NewSource(42)),
			Variance: o.variance,
		}),
		Clock:     o.clock,
		Interval:  time.Second,
		Node:      "test-node",
		Observers: o.obs,
	}
	if o.events != nil {
		cfg.Events = o.events
	}

	e, err := New(cfg)
	require.NoError(t, err)
	return e
}

func TestNew_RequiresRegistry(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestNew_Defaults(t *testing.T) {
	reg, err := store.NewRegistry(SeedPatients(t0), nil)
	require.NoError(t, err)

	e, err := New(Config{Registry: reg})
	require.NoError(t, err)
	assert.Equal(t, DefaultInterval, e.Interval())
	assert.Equal(t, store.DefaultAlertCapacity, e.alerts.Capacity())
	assert.False(t, e.Running())
}

func TestStep_AdvancesEveryPatient(t *testing.T) {
	e := newTestEngine(t, testOpts{})
	before := e.Patients(models.AllPatients())

	now := t0.Add(5 * time.Second)
	res, err := e.Step(now)
	require.NoError(t, err)
	assert.Equal(t, len(before), res.Patients)
	assert.Equal(t, now, res.At)

	after := e.Patients(models.AllPatients())
	require.Len(t, after, len(before))
	for i, p := range after {
		assert.Equal(t, before[i].ID, p.ID, "patient order is stable")
		assert.Len(t, p.VitalHistory, len(before[i].VitalHistory)+1)
		assert.Equal(t, now, p.LastUpdated)
		assert.Equal(t, p.CurrentVitals, p.VitalHistory[len(p.VitalHistory)-1])
		assert.NoError(t, p.CurrentVitals.Validate())
	}
}

func TestStep_AlertsFollowClassification(t *testing.T) {
	e := newTestEngine(t, testOpts{})

	for i := 1; i <= 20; i++ {
		res, err := e.Step(t0.Add(time.Duration(i) * 5 * time.Second))
		require.NoError(t, err)

		for _, p := range e.Patients(models.AllPatients()) {
			want := e.classifier.Classify(p.CurrentVitals)
			var got []models.Alert
			for _, a := range res.Alerts {
				if a.PatientID == p.ID {
					got = append(got, a)
				}
			}
			require.Len(t, got, len(want), "patient %s tick %d", p.ID, i)
			for j := range want {
				assert.Equal(t, want[j].Kind, got[j].Vital)
				assert.Equal(t, want[j].Severity, got[j].Severity)
				assert.Equal(t, want[j].Value, got[j].Value)
				assert.False(t, got[j].Resolved)
				assert.Equal(t, res.At, got[j].OccurredAt)
			}
		}
	}
}

func TestStep_BatchOrderAndAtomicInsert(t *testing.T) {
	e := newTestEngine(t, testOpts{
		patients: []models.Patient{steady("a", 150), steady("b", 50), steady("c", 75)},
		variance: 1e-9,
	})

	res, err := e.Step(t0.Add(time.Second))
	require.NoError(t, err)
	require.Len(t, res.Alerts, 2)
	assert.Equal(t, "a", res.Alerts[0].PatientID)
	assert.Equal(t, "b", res.Alerts[1].PatientID)

	// 150 is past the widened band; 50 is low but inside it.
	assert.Equal(t, models.SeverityCritical, res.Alerts[0].Severity)
	assert.Equal(t, models.SeverityWarning, res.Alerts[1].Severity)

	stored := e.Alerts(store.AlertFilter{})
	require.Len(t, stored, 2)
	assert.Equal(t, res.Alerts[0].ID, stored[0].ID)
	assert.Equal(t, res.Alerts[1].ID, stored[1].ID)
}

func TestStep_StoreCapacityKeepsNewest(t *testing.T) {
	e := newTestEngine(t, testOpts{
		patients: []models.Patient{steady("a", 150)},
		capacity: 5,
		variance: 1e-9,
	})

	var newest []string
	evicted := 0
	for i := 1; i <= 7; i++ {
		res, err := e.Step(t0.Add(time.Duration(i) * time.Second))
		require.NoError(t, err)
		require.Len(t, res.Alerts, 1)
		newest = append([]string{res.Alerts[0].ID}, newest...)
		evicted += res.Evicted
		assert.LessOrEqual(t, len(e.Alerts(store.AlertFilter{})), 5)
	}

	var got []string
	for _, a := range e.Alerts(store.AlertFilter{}) {
		got = append(got, a.ID)
	}
	assert.Equal(t, newest[:5], got)
	assert.Equal(t, 2, evicted)
}

func TestStep_EmitsEventsWithoutBlocking(t *testing.T) {
	events := make(chan *models.AlertEvent, 1)
	e := newTestEngine(t, testOpts{
		patients: []models.Patient{steady("a", 150), steady("b", 150)},
		events:   events,
		variance: 1e-9,
	})

	dropped := testutil.ToFloat64(metrics.EventsDroppedTotal)

	res, err := e.Step(t0.Add(time.Second))
	require.NoError(t, err)
	require.Len(t, res.Alerts, 2)

	require.Len(t, events, 1)
	ev := <-events
	assert.Equal(t, models.EventAlertCreated, ev.Type)
	assert.Equal(t, res.Alerts[0].ID, ev.Alert.ID)
	assert.Equal(t, "a", ev.PartitionKey)
	assert.Equal(t, "test-node", ev.Node)

	assert.Equal(t, dropped+1, testutil.ToFloat64(metrics.EventsDroppedTotal))
}

func TestStep_RefusedAfterStop(t *testing.T) {
	e := newTestEngine(t, testOpts{})
	e.Stop()

	before := e.Patients(models.AllPatients())
	_, err := e.Step(t0.Add(time.Second))
	assert.ErrorIs(t, err, ErrStopped)
	assert.Equal(t, before, e.Patients(models.AllPatients()))
	assert.Empty(t, e.Alerts(store.AlertFilter{}))
}

func TestStart_TicksAndStops(t *testing.T) {
	clock := NewManualClock(t0)
	ticks := make(chan TickResult, 4)
	e := newTestEngine(t, testOpts{
		clock: clock,
		obs: []Observer{ObserverFunc(func(_ context.Context, _ *Engine, res TickResult) {
			ticks <- res
		})},
	})

	require.NoError(t, e.Start(context.Background()))
	assert.True(t, e.Running())
	assert.ErrorIs(t, e.Start(context.Background()), ErrAlreadyRunning)

	for i := 1; i <= 3; i++ {
		at := t0.Add(time.Duration(i) * time.Second)
		clock.Tick(at)
		select {
		case res := <-ticks:
			assert.Equal(t, at, res.At)
		case <-time.After(2 * time.Second):
			t.Fatalf("tick %d was not applied", i)
		}
	}

	e.Stop()
	assert.False(t, e.Running())
	assert.ErrorIs(t, e.Start(context.Background()), ErrStopped)

	for _, p := range e.Patients(models.AllPatients()) {
		assert.Len(t, p.VitalHistory, 3)
	}
}

func TestStart_ContextCancelStopsTicks(t *testing.T) {
	clock := NewManualClock(t0)
	e := newTestEngine(t, testOpts{clock: clock})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, e.Start(ctx))
	cancel()
	e.Stop()

	for _, p := range e.Patients(models.AllPatients()) {
		assert.Empty(t, p.VitalHistory)
	}
}

func TestStart_ParentCancelClearsRunning(t *testing.T) {
	clock := NewManualClock(t0)
	ticks := make(chan TickResult, 1)
	e := newTestEngine(t, testOpts{
		clock: clock,
		obs: []Observer{ObserverFunc(func(_ context.Context, _ *Engine, res TickResult) {
			ticks <- res
		})},
	})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, e.Start(ctx))
	cancel()

	require.Eventually(t, func() bool { return !e.Running() }, 2*time.Second, 5*time.Millisecond,
		"schedule ended with its context")

	// A fresh schedule can be started once the old one is gone.
	require.NoError(t, e.Start(context.Background()))
	assert.True(t, e.Running())

	at := t0.Add(time.Second)
	clock.Tick(at)
	select {
	case res := <-ticks:
		assert.Equal(t, at, res.At)
	case <-time.After(2 * time.Second):
		t.Fatal("restarted schedule did not tick")
	}

	e.Stop()
	assert.False(t, e.Running())
}

func TestObserver_PanicIsRecovered(t *testing.T) {
	clock := NewManualClock(t0)
	var calls atomic.Int32
	done := make(chan struct{}, 1)

	e := newTestEngine(t, testOpts{
		clock: clock,
		obs: []Observer{
			ObserverFunc(func(context.Context, *Engine, TickResult) { panic("boom") }),
			ObserverFunc(func(context.Context, *Engine, TickResult) {
				calls.Add(1)
				done <- struct{}{}
			}),
		},
	})

	require.NoError(t, e.Start(context.Background()))
	defer e.Stop()

	clock.Tick(t0.Add(time.Second))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("second observer was not called")
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestSeed_IsValid(t *testing.T) {
	patients := SeedPatients(t0)
	reg, err := store.NewRegistry(patients, SeedCaretakers())
	require.NoError(t, err)
	assert.Equal(t, 4, reg.Len())

	seeded := SeedAlerts(t0, nil)
	require.Len(t, seeded, 3)
	for i := 1; i < len(seeded); i++ {
		assert.True(t, seeded[i-1].OccurredAt.After(seeded[i].OccurredAt), "seed alerts are newest first")
	}
	for _, a := range seeded {
		_, err := reg.Get(a.PatientID)
		assert.NoError(t, err)
	}
	assert.True(t, seeded[2].Resolved)
	assert.Equal(t, SeedDoctorName, seeded[2].Resolution.ResolvedBy)
}

func TestEmit_SkippedAfterStop(t *testing.T) {
	events := make(chan *models.AlertEvent, 4)
	e := newTestEngine(t, testOpts{
		patients: []models.Patient{steady("a", 150)},
		events:   events,
		variance: 1e-9,
	})

	res, err := e.Step(t0.Add(time.Second))
	require.NoError(t, err)
	require.Len(t, res.Alerts, 1)
	require.Len(t, events, 1)

	e.Stop()
	close(events)

	_, err = e.ResolveAlert(res.Alerts[0].ID, "checked", "Dr. X")
	require.NoError(t, err)
	assert.Len(t, events, 1, "no event after stop")
}
