package store

import (
	"database/sql"
	"fmt"

	"github.com/evtrack/fleetlogger/internal/apperr"
	"github.com/evtrack/fleetlogger/internal/models"
)

// LoadToken returns the most recently updated credential row, grounded on
// original_source/chipmunk/src/database/tables/token.rs's db_get_last.
func (p *Persister) LoadToken() (models.Token, error) {
	var tok models.Token
	err := p.db.Get(&tok, `SELECT * FROM tokens ORDER BY updated_at DESC LIMIT 1`)
	if err == sql.ErrNoRows {
		return models.Token{}, nil
	}
	if err != nil {
		return models.Token{}, fmt.Errorf("%w: loading token: %v", apperr.PersistenceFailure, err)
	}
	return tok, nil
}

// SaveToken inserts a fresh credential row. Every refresh writes a new row rather
// than updating in place, matching the original's insert-only token history.
func (p *Persister) SaveToken(tok models.Token) error {
	_, err := p.db.Exec(`
		INSERT INTO tokens (access_token, access_token_iv, refresh_token, refresh_token_iv,
			id_token, id_token_iv, access_token_expires_at, token_type, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8, now())`,
		tok.AccessToken, tok.AccessTokenIV, tok.RefreshToken, tok.RefreshTokenIV,
		tok.IDToken, tok.IDTokenIV, tok.AccessTokenExpiresAt, tok.TokenType,
	)
	if err != nil {
		return fmt.Errorf("%w: saving token: %v", apperr.PersistenceFailure, err)
	}
	return nil
}

// LoadSettings returns the single settings row, or models.DefaultSettings() if none
// has been written yet.
func (p *Persister) LoadSettings() (models.Settings, error) {
	var s models.Settings
	err := p.db.Get(&s, `SELECT * FROM settings ORDER BY id DESC LIMIT 1`)
	if err == sql.ErrNoRows {
		return models.DefaultSettings(), nil
	}
	if err != nil {
		return models.Settings{}, fmt.Errorf("%w: loading settings: %v", apperr.PersistenceFailure, err)
	}
	return s, nil
}

// SaveSettings upserts the single settings row (id=1).
func (p *Persister) SaveSettings(s models.Settings) error {
	_, err := p.db.Exec(`
		INSERT INTO settings (id, logging_period_ms, log_at_startup, preferred_range, unit_of_length, unit_of_temperature)
		VALUES (1,$1,$2,$3,$4,$5)
		ON CONFLICT (id) DO UPDATE SET
			logging_period_ms=$1, log_at_startup=$2, preferred_range=$3, unit_of_length=$4, unit_of_temperature=$5`,
		s.LoggingPeriodMs, s.LogAtStartup, s.PreferredRange, s.UnitOfLength, s.UnitOfTemperature,
	)
	if err != nil {
		return fmt.Errorf("%w: saving settings: %v", apperr.PersistenceFailure, err)
	}
	return nil
}
