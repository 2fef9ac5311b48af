package store

import (
	"database/sql"
	"fmt"

	"github.com/evtrack/fleetlogger/internal/apperr"
	"github.com/evtrack/fleetlogger/internal/models"
)

// GetAdminByUsername looks up the single operator account by username, grounded
// on the teacher's handlers/auth.go Login query.
func (p *Persister) GetAdminByUsername(username string) (models.AdminUser, error) {
	var u models.AdminUser
	err := p.db.Get(&u, `SELECT * FROM admin_users WHERE username = $1`, username)
	if err == sql.ErrNoRows {
		return models.AdminUser{}, apperr.NotFound
	}
	if err != nil {
		return models.AdminUser{}, fmt.Errorf("%w: loading admin user: %v", apperr.PersistenceFailure, err)
	}
	return u, nil
}

// CountAdmins reports how many operator accounts exist, used to decide whether
// bootstrap needs to create the first one.
func (p *Persister) CountAdmins() (int, error) {
	var n int
	if err := p.db.Get(&n, `SELECT count(*) FROM admin_users`); err != nil {
		return 0, fmt.Errorf("%w: counting admin users: %v", apperr.PersistenceFailure, err)
	}
	return n, nil
}

// CreateAdmin inserts the bootstrap operator account. passwordHash is already a
// bcrypt hash; this method never sees the plaintext password.
func (p *Persister) CreateAdmin(username, passwordHash string) error {
	_, err := p.db.Exec(`INSERT INTO admin_users (username, password_hash) VALUES ($1, $2)`, username, passwordHash)
	if err != nil {
		return fmt.Errorf("%w: creating admin user: %v", apperr.PersistenceFailure, err)
	}
	return nil
}

// UpdateAdminPassword overwrites the stored password hash.
func (p *Persister) UpdateAdminPassword(id int32, passwordHash string) error {
	_, err := p.db.Exec(`UPDATE admin_users SET password_hash = $1, updated_at = now() WHERE id = $2`, passwordHash, id)
	if err != nil {
		return fmt.Errorf("%w: updating admin password: %v", apperr.PersistenceFailure, err)
	}
	return nil
}

// LogAdminAction writes one audit row, mirroring the teacher's
// AuthHandler.logToDatabase. Failures are not propagated: an audit-log write
// failing must never block the action it is recording.
func (p *Persister) LogAdminAction(action, details, ip string) {
	_, err := p.db.Exec(`INSERT INTO admin_logs (action, details, ip_address) VALUES ($1, $2, $3)`, action, details, ip)
	if err != nil {
		fmt.Printf("[admin-log] failed to write audit row: %v\n", err)
	}
}
