package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/evtrack/fleetlogger/internal/crypto"
	"github.com/evtrack/fleetlogger/internal/models"
	"github.com/evtrack/fleetlogger/internal/registry"
	"github.com/stretchr/testify/require"
)

type fakeTeslaClient struct {
	refreshResp models.AuthResponse
	refreshErr  error
}

func (f *fakeTeslaClient) Vehicles(ctx context.Context) ([]string, error) { return nil, nil }
func (f *fakeTeslaClient) FetchSnapshot(ctx context.Context, vehicleID string) (*models.VehicleSnapshot, error) {
	return nil, nil
}
func (f *fakeTeslaClient) RefreshToken(ctx context.Context, refreshToken string) (models.AuthResponse, error) {
	return f.refreshResp, f.refreshErr
}

type fakeTokenStore struct {
	saved   models.Token
	loadErr error
}

func (f *fakeTokenStore) LoadToken() (models.Token, error) { return models.Token{}, f.loadErr }
func (f *fakeTokenStore) SaveToken(tok models.Token) error  { f.saved = tok; return nil }

func testRegistry() *registry.Registry {
	return registry.New(registry.EnvVars{EncryptionKey: "a reasonably long passphrase used only for tests!!"},
		models.DefaultSettings(), models.AuthResponse{})
}

func TestBootstrapWithNoStoredCredentialIsANoop(t *testing.T) {
	reg := testRegistry()
	tm := NewTokenManager(&fakeTeslaClient{}, reg, &fakeTokenStore{}, nil)

	require.NoError(t, tm.Bootstrap())
	require.Equal(t, "", reg.AccessToken.Get())
}

func TestBootstrapDecryptsStoredCredential(t *testing.T) {
	reg := testRegistry()
	key, err := crypto.LoadKey(reg.EncryptionKey.Get())
	require.NoError(t, err)

	accessCt, accessIV, err := crypto.Encrypt("access-123", key)
	require.NoError(t, err)
	refreshCt, refreshIV, err := crypto.Encrypt("refresh-456", key)
	require.NoError(t, err)

	store := &fakeTokenStore{}
	store.saved = models.Token{
		AccessToken: accessCt, AccessTokenIV: accessIV,
		RefreshToken: refreshCt, RefreshTokenIV: refreshIV,
	}
	loader := &loadingTokenStore{tok: store.saved}
	tm := NewTokenManager(&fakeTeslaClient{}, reg, loader, nil)

	require.NoError(t, tm.Bootstrap())
	require.Equal(t, "access-123", reg.AccessToken.Get())
	require.Equal(t, "refresh-456", reg.RefreshToken.Get())
}

type loadingTokenStore struct {
	tok models.Token
}

func (l *loadingTokenStore) LoadToken() (models.Token, error) { return l.tok, nil }
func (l *loadingTokenStore) SaveToken(tok models.Token) error  { l.tok = tok; return nil }

func TestStoreRefreshTokenPersistsNewCredential(t *testing.T) {
	reg := testRegistry()
	store := &loadingTokenStore{}
	tm := NewTokenManager(&fakeTeslaClient{refreshResp: models.AuthResponse{
		AccessToken: "new-access", RefreshToken: "new-refresh", TokenType: "Bearer",
	}}, reg, store, nil)

	require.NoError(t, tm.StoreRefreshToken(context.Background(), "seed-refresh-token"))
	require.Equal(t, "new-access", reg.AccessToken.Get())
	require.Equal(t, "new-refresh", reg.RefreshToken.Get())
	require.NotEmpty(t, store.tok.AccessToken)
}

func TestDoRefreshFailsWithoutRefreshToken(t *testing.T) {
	reg := testRegistry()
	tm := NewTokenManager(&fakeTeslaClient{}, reg, &loadingTokenStore{}, nil)

	err := tm.doRefresh(context.Background())
	require.Error(t, err)
}

func TestRequestRefreshRoundTripsThroughRun(t *testing.T) {
	reg := testRegistry()
	reg.RefreshToken.Set("seed")
	store := &loadingTokenStore{}
	client := &fakeTeslaClient{refreshResp: models.AuthResponse{AccessToken: "a", RefreshToken: "b"}}
	tm := NewTokenManager(client, reg, store, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tm.Run(ctx)

	require.NoError(t, tm.RequestRefresh(ctx))
	require.Equal(t, "a", reg.AccessToken.Get())
}

func TestRequestRefreshPropagatesUpstreamError(t *testing.T) {
	reg := testRegistry()
	reg.RefreshToken.Set("seed")
	client := &fakeTeslaClient{refreshErr: errors.New("unauthorized")}
	tm := NewTokenManager(client, reg, &loadingTokenStore{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tm.Run(ctx)

	err := tm.RequestRefresh(ctx)
	require.Error(t, err)
}
