// Package auth implements the Token manager (§4.7): it bootstraps the stored vehicle
// API credential into the registry and serializes refreshes of it. The presenter's
// observer session gate (admin bootstrap account and JWT sessions) lives in
// internal/presenter/session.go, not here.
package auth

import (
	"context"
	"fmt"
	"log"

	"github.com/evtrack/fleetlogger/internal/apperr"
	"github.com/evtrack/fleetlogger/internal/crypto"
	"github.com/evtrack/fleetlogger/internal/metrics"
	"github.com/evtrack/fleetlogger/internal/models"
	"github.com/evtrack/fleetlogger/internal/registry"
	"github.com/evtrack/fleetlogger/internal/tesla"
)

// TokenStore is the narrow persistence surface the token manager needs; backed by
// *store.Persister so it remains the only component holding a database handle.
type TokenStore interface {
	LoadToken() (models.Token, error)
	SaveToken(models.Token) error
}

// RefreshRequest is one request to refresh the upstream credential, carrying the
// channel the caller expects the outcome on.
type RefreshRequest struct {
	Result chan<- error
}

// TokenManager owns startup decryption of the stored credential and every
// subsequent refresh, whether triggered by the Presenter's `refresh-token` command
// or by a TokenExpired condition observed by the Sample source.
type TokenManager struct {
	client  tesla.Client
	reg     *registry.Registry
	store   TokenStore
	metrics *metrics.Metrics
	refresh chan RefreshRequest
}

// NewTokenManager wires the token manager to its collaborators. refresh has a small
// buffer so a TokenExpired condition from the poller and a manual refresh command
// from the presenter never deadlock each other. m may be nil.
func NewTokenManager(client tesla.Client, reg *registry.Registry, store TokenStore, m *metrics.Metrics) *TokenManager {
	return &TokenManager{client: client, reg: reg, store: store, metrics: m, refresh: make(chan RefreshRequest, 4)}
}

// Bootstrap decrypts the most recently stored credential (if any) into the
// registry so the poller can start with a valid access token.
func (tm *TokenManager) Bootstrap() error {
	tok, err := tm.store.LoadToken()
	if err != nil {
		return err
	}
	if len(tok.AccessToken) == 0 {
		log.Println("[token-manager] no stored credential yet, waiting for --token")
		return nil
	}

	key, err := crypto.LoadKey(tm.reg.EncryptionKey.Get())
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.FatalConfig, err)
	}

	access, err := crypto.Decrypt(tok.AccessToken, key, tok.AccessTokenIV)
	if err != nil {
		return fmt.Errorf("%w: decrypting stored access token: %v", apperr.FatalConfig, err)
	}
	refreshTok, err := crypto.Decrypt(tok.RefreshToken, key, tok.RefreshTokenIV)
	if err != nil {
		return fmt.Errorf("%w: decrypting stored refresh token: %v", apperr.FatalConfig, err)
	}

	tm.reg.AccessToken.Set(access)
	tm.reg.RefreshToken.Set(refreshTok)
	log.Println("[token-manager] restored credential from store")
	return nil
}

// StoreRefreshToken seeds a brand-new refresh token (the CLI's --token flag) and
// immediately performs one refresh so the access token is usable on first run.
func (tm *TokenManager) StoreRefreshToken(ctx context.Context, refreshToken string) error {
	tm.reg.RefreshToken.Set(refreshToken)
	return tm.doRefresh(ctx)
}

// RequestRefresh is the synchronous entry point used by the Presenter's
// `refresh-token` command and by the poller's TokenExpired handling.
func (tm *TokenManager) RequestRefresh(ctx context.Context) error {
	result := make(chan error, 1)
	select {
	case tm.refresh <- RefreshRequest{Result: result}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run is the task loop: it blocks on refresh requests and performs each serially,
// since a concurrent pair of refreshes against the same refresh token would race.
func (tm *TokenManager) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case req := <-tm.refresh:
			err := tm.doRefresh(ctx)
			select {
			case req.Result <- err:
			default:
			}
		}
	}
}

func (tm *TokenManager) doRefresh(ctx context.Context) error {
	refreshTok := tm.reg.RefreshToken.Get()
	if refreshTok == "" {
		return fmt.Errorf("%w: no refresh token available", apperr.FatalConfig)
	}

	resp, err := tm.client.RefreshToken(ctx, refreshTok)
	if err != nil {
		log.Printf("[token-manager] refresh failed: %v", err)
		if tm.metrics != nil {
			tm.metrics.TokenRefreshTotal.WithLabelValues("error").Inc()
		}
		return err
	}

	key, err := crypto.LoadKey(tm.reg.EncryptionKey.Get())
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.FatalConfig, err)
	}

	tok, err := encryptTokenSet(key, resp)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.PersistenceFailure, err)
	}
	if err := tm.store.SaveToken(tok); err != nil {
		return err
	}

	tm.reg.AccessToken.Set(resp.AccessToken)
	tm.reg.RefreshToken.Set(resp.RefreshToken)
	if tm.metrics != nil {
		tm.metrics.TokenRefreshTotal.WithLabelValues("ok").Inc()
	}
	log.Println("[token-manager] refreshed and persisted credential")
	return nil
}

func encryptTokenSet(key []byte, resp models.AuthResponse) (models.Token, error) {
	accessCt, accessIV, err := crypto.Encrypt(resp.AccessToken, key)
	if err != nil {
		return models.Token{}, err
	}
	refreshCt, refreshIV, err := crypto.Encrypt(resp.RefreshToken, key)
	if err != nil {
		return models.Token{}, err
	}
	idCt, idIV, err := crypto.Encrypt(resp.IDToken, key)
	if err != nil {
		return models.Token{}, err
	}

	return models.Token{
		AccessToken:    accessCt,
		AccessTokenIV:  accessIV,
		RefreshToken:   refreshCt,
		RefreshTokenIV: refreshIV,
		IDToken:        idCt,
		IDTokenIV:      idIV,
		TokenType:      resp.TokenType,
	}, nil
}
