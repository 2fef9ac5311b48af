package presenter

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/evtrack/fleetlogger/internal/models"
	"github.com/evtrack/fleetlogger/internal/registry"
	"github.com/stretchr/testify/require"
)

type fakeTokenRefresher struct{ err error }

func (f *fakeTokenRefresher) RequestRefresh(ctx context.Context) error { return f.err }

type fakeSettingsStore struct {
	settings models.Settings
	saveErr  error
}

func (f *fakeSettingsStore) LoadSettings() (models.Settings, error) { return f.settings, nil }
func (f *fakeSettingsStore) SaveSettings(s models.Settings) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.settings = s
	return nil
}

func newTestServer(tokens TokenRefresher, settings SettingsStore) *Server {
	reg := registry.New(registry.EnvVars{}, models.DefaultSettings(), models.AuthResponse{})
	return NewServer(reg, NewBoard(), tokens, settings, nil, "secret")
}

func TestDispatchStartStopLogging(t *testing.T) {
	s := newTestServer(nil, &fakeSettingsStore{})

	resp := s.dispatch(context.Background(), command{ID: "1", Name: "StartLogging"})
	require.True(t, resp.Status)
	require.True(t, s.reg.LoggingEnabled.Get())

	resp = s.dispatch(context.Background(), command{ID: "2", Name: "StopLogging"})
	require.True(t, resp.Status)
	require.False(t, s.reg.LoggingEnabled.Get())
}

func TestDispatchRefreshTokenFailure(t *testing.T) {
	s := newTestServer(&fakeTokenRefresher{err: errors.New("upstream down")}, &fakeSettingsStore{})

	resp := s.dispatch(context.Background(), command{ID: "3", Name: "RefreshToken"})
	require.False(t, resp.Status)
	require.Equal(t, "upstream down", resp.Reason)
}

func TestDispatchRefreshTokenNilManager(t *testing.T) {
	s := newTestServer(nil, &fakeSettingsStore{})

	resp := s.dispatch(context.Background(), command{ID: "4", Name: "RefreshToken"})
	require.False(t, resp.Status)
}

func TestDispatchGetAndSetSettings(t *testing.T) {
	store := &fakeSettingsStore{settings: models.DefaultSettings()}
	s := newTestServer(nil, store)

	resp := s.dispatch(context.Background(), command{ID: "5", Name: "GetSettings"})
	require.True(t, resp.Status)

	newSettings := models.DefaultSettings()
	newSettings.LoggingPeriodMs = 2500
	args, err := json.Marshal(newSettings)
	require.NoError(t, err)

	resp = s.dispatch(context.Background(), command{ID: "6", Name: "SetSettings", Args: args})
	require.True(t, resp.Status)
	require.Equal(t, int32(2500), s.reg.LoggingPeriodMs.Get())
	require.Equal(t, int32(2500), store.settings.LoggingPeriodMs)
}

func TestDispatchSetSettingsInvalidPayload(t *testing.T) {
	s := newTestServer(nil, &fakeSettingsStore{})

	resp := s.dispatch(context.Background(), command{ID: "7", Name: "SetSettings", Args: json.RawMessage(`not-json`)})
	require.False(t, resp.Status)
}

func TestDispatchUnknownCommand(t *testing.T) {
	s := newTestServer(nil, &fakeSettingsStore{})

	resp := s.dispatch(context.Background(), command{ID: "8", Name: "Teleport"})
	require.False(t, resp.Status)
	require.Contains(t, resp.Reason, "Teleport")
}
