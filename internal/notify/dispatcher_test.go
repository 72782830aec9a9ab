package notify

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veydev/autocare/internal/models"
	"github.com/veydev/autocare/internal/store"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakeRelay records sent messages and optionally fails.
type fakeRelay struct {
	sent []string
	fail bool
}

func (f *fakeRelay) Send(_ context.Context, _ int64, text string) error {
	if f.fail {
		return errors.New("relay unreachable")
	}
	f.sent = append(f.sent, text)
	return nil
}

// fakeDispatchStore is an in-memory DispatchCollection.
type fakeDispatchStore struct {
	states map[string]models.DispatchState
}

func newFakeDispatchStore() *fakeDispatchStore {
	return &fakeDispatchStore{states: make(map[string]models.DispatchState)}
}

func (f *fakeDispatchStore) FindDispatchState(_ context.Context, userID, vehicleID string) (*models.DispatchState, error) {
	state, ok := f.states[userID+"/"+vehicleID]
	if !ok {
		return nil, fmt.Errorf("dispatch state not found")
	}
	return &state, nil
}

func (f *fakeDispatchStore) UpsertDispatchState(_ context.Context, state models.DispatchState) error {
	f.states[state.UserID+"/"+state.VehicleID] = state
	return nil
}

func testUserAndVehicle() (*models.User, *models.Vehicle) {
	user := &models.User{ID: primitive.NewObjectID(), Email: "t@example.com", TelegramID: 42}
	vehicle := &models.Vehicle{ID: primitive.NewObjectID(), Make: "Toyota", Model: "Camry", Plate: "AB123CD"}
	return user, vehicle
}

func urgentAlerts() []models.MaintenanceAlert {
	return []models.MaintenanceAlert{
		{Description: "oil change", Severity: models.SeverityCritical, DistanceRemaining: -500, DaysRemaining: -12},
		{Description: "brake fluid", Severity: models.SeverityWarning, DistanceRemaining: 1200, DaysRemaining: 20},
	}
}

func newTestDispatcher(t *testing.T, relay Relay, dispatch *fakeDispatchStore) *Dispatcher {
	t.Helper()
	cache := store.Open(filepath.Join(t.TempDir(), "state.json"))
	d := NewDispatcher(relay, dispatch, cache)
	d.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return d
}

func TestDispatcher_SendsAndRecordsTimestamp(t *testing.T) {
	relay := &fakeRelay{}
	dispatchStore := newFakeDispatchStore()
	d := newTestDispatcher(t, relay, dispatchStore)

	user, vehicle := testUserAndVehicle()
	sent, err := d.Notify(context.Background(), user, vehicle, urgentAlerts(), models.DefaultNotificationSettings())
	require.NoError(t, err)
	assert.True(t, sent)
	require.Len(t, relay.sent, 1)
	assert.Contains(t, relay.sent[0], "Toyota Camry (AB123CD)")
	assert.Contains(t, relay.sent[0], "oil change: 500 km overdue")
	assert.Contains(t, relay.sent[0], "brake fluid: due in 1200 km")

	state, err := dispatchStore.FindDispatchState(context.Background(), user.ID.Hex(), vehicle.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, d.now(), state.LastDispatchAt)

	// Second evaluation inside the 24h window stays silent.
	sent, err = d.Notify(context.Background(), user, vehicle, urgentAlerts(), models.DefaultNotificationSettings())
	require.NoError(t, err)
	assert.False(t, sent)
	assert.Len(t, relay.sent, 1)
}

func TestDispatcher_FailureKeepsTimestampClear(t *testing.T) {
	relay := &fakeRelay{fail: true}
	dispatchStore := newFakeDispatchStore()
	d := newTestDispatcher(t, relay, dispatchStore)

	user, vehicle := testUserAndVehicle()
	sent, err := d.Notify(context.Background(), user, vehicle, urgentAlerts(), models.DefaultNotificationSettings())
	assert.Error(t, err)
	assert.False(t, sent)

	_, err = dispatchStore.FindDispatchState(context.Background(), user.ID.Hex(), vehicle.ID.Hex())
	assert.Error(t, err)

	// Relay recovers; retry succeeds immediately.
	relay.fail = false
	sent, err = d.Notify(context.Background(), user, vehicle, urgentAlerts(), models.DefaultNotificationSettings())
	require.NoError(t, err)
	assert.True(t, sent)
}

func TestDispatcher_NothingUrgent(t *testing.T) {
	relay := &fakeRelay{}
	d := newTestDispatcher(t, relay, newFakeDispatchStore())

	user, vehicle := testUserAndVehicle()
	calm := []models.MaintenanceAlert{{Description: "air filter", Severity: models.SeverityOK}}
	sent, err := d.Notify(context.Background(), user, vehicle, calm, models.DefaultNotificationSettings())
	require.NoError(t, err)
	assert.False(t, sent)
	assert.Empty(t, relay.sent)
}

func TestDispatcher_NoTelegramChatLinked(t *testing.T) {
	relay := &fakeRelay{}
	d := newTestDispatcher(t, relay, newFakeDispatchStore())

	user, vehicle := testUserAndVehicle()
	user.TelegramID = 0
	sent, err := d.Notify(context.Background(), user, vehicle, urgentAlerts(), models.DefaultNotificationSettings())
	require.NoError(t, err)
	assert.False(t, sent)
	assert.Empty(t, relay.sent)
}

// flakyDispatchStore serves reads but refuses writes, like a store that
// dropped its connection after the last successful upsert.
type flakyDispatchStore struct {
	*fakeDispatchStore
}

func (f *flakyDispatchStore) UpsertDispatchState(_ context.Context, _ models.DispatchState) error {
	return errors.New("remote store unavailable")
}

func TestDispatcher_StaleRemoteDoesNotReopenWindow(t *testing.T) {
	relay := &fakeRelay{}
	dispatchStore := &flakyDispatchStore{newFakeDispatchStore()}
	cache := store.Open(filepath.Join(t.TempDir(), "state.json"))
	d := NewDispatcher(relay, dispatchStore, cache)
	d.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }

	user, vehicle := testUserAndVehicle()

	// Remote knows about a dispatch from well outside the window.
	dispatchStore.states[user.ID.Hex()+"/"+vehicle.ID.Hex()] = models.DispatchState{
		UserID:         user.ID.Hex(),
		VehicleID:      vehicle.ID.Hex(),
		LastDispatchAt: d.now().Add(-48 * time.Hour),
	}

	sent, err := d.Notify(context.Background(), user, vehicle, urgentAlerts(), models.DefaultNotificationSettings())
	require.NoError(t, err)
	require.True(t, sent)
	require.Len(t, relay.sent, 1)

	// The remote upsert failed, so the remote timestamp is still the stale
	// one. The local cache is newer and must keep the window shut.
	sent, err = d.Notify(context.Background(), user, vehicle, urgentAlerts(), models.DefaultNotificationSettings())
	require.NoError(t, err)
	assert.False(t, sent)
	assert.Len(t, relay.sent, 1)
}

func TestDispatcher_LocalCacheHonoredWhenRemoteEmpty(t *testing.T) {
	relay := &fakeRelay{}
	cache := store.Open(filepath.Join(t.TempDir(), "state.json"))
	d := NewDispatcher(relay, newFakeDispatchStore(), cache)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }

	user, vehicle := testUserAndVehicle()
	require.NoError(t, cache.SaveDispatch(user.ID.Hex(), vehicle.ID.Hex(), now.Add(-23*time.Hour)))

	sent, err := d.Notify(context.Background(), user, vehicle, urgentAlerts(), models.DefaultNotificationSettings())
	require.NoError(t, err)
	assert.False(t, sent)
}
