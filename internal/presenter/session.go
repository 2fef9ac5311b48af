package presenter

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/evtrack/fleetlogger/internal/apperr"
	"github.com/evtrack/fleetlogger/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const sessionTTL = 30 * 24 * time.Hour

// adminCtxKey is the context key the auth middleware attaches the caller's admin
// user id under, mirroring the teacher's middleware.UserIDKey.
type adminCtxKey struct{}

// AdminStore is the persistence surface the observer session gate needs.
type AdminStore interface {
	GetAdminByUsername(username string) (models.AdminUser, error)
	CountAdmins() (int, error)
	CreateAdmin(username, passwordHash string) error
	UpdateAdminPassword(id int32, passwordHash string) error
	LogAdminAction(action, details, ip string)
}

// BootstrapAdmin creates the single operator account on first run if none exists
// yet, named after the teacher's own seed-admin convention but driven by
// ADMIN_USERNAME/ADMIN_PASSWORD instead of a hardcoded default. Exported for
// cmd/fleetlogger to call once at startup, ahead of serving any HTTP traffic.
func BootstrapAdmin(store AdminStore, username, password string) error {
	count, err := store.CountAdmins()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	if username == "" || password == "" {
		return fmt.Errorf("%w: no admin account exists and ADMIN_USERNAME/ADMIN_PASSWORD are unset", apperr.FatalConfig)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("%w: hashing bootstrap admin password: %v", apperr.FatalConfig, err)
	}
	if err := store.CreateAdmin(username, string(hash)); err != nil {
		return err
	}
	log.Printf("[auth] bootstrapped admin account %q", username)
	return nil
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// handleLogin mirrors the teacher's AuthHandler.Login: bcrypt-verify, issue a
// 30-day JWT, and record an admin_logs audit row either way.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	user, err := s.admins.GetAdminByUsername(req.Username)
	if err != nil {
		log.Printf("[auth] login failed: unknown user %q from %s", req.Username, ip)
		s.admins.LogAdminAction("Login Failed", fmt.Sprintf("unknown user %q", req.Username), ip)
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		log.Printf("[auth] login failed: wrong password for %q from %s", req.Username, ip)
		s.admins.LogAdminAction("Login Failed", fmt.Sprintf("wrong password for %q", req.Username), ip)
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  user.ID,
		"username": user.Username,
		"exp":      time.Now().Add(sessionTTL).Unix(),
	})
	signed, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		http.Error(w, "failed to generate token", http.StatusInternalServerError)
		return
	}

	log.Printf("[auth] login success: %q from %s", user.Username, ip)
	s.admins.LogAdminAction("Login Success", fmt.Sprintf("user %q logged in", user.Username), ip)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(loginResponse{Token: signed})
}

// authMiddleware rejects requests without a valid bearer JWT, attaching the admin
// id to the request context for handlers (and the WebSocket upgrade) to read.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		raw := header[len(prefix):]

		token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
			return []byte(s.jwtSecret), nil
		})
		if err != nil || !token.Valid {
			http.Error(w, "invalid or expired token", http.StatusUnauthorized)
			return
		}

		claims, _ := token.Claims.(jwt.MapClaims)
		ctx := context.WithValue(r.Context(), adminCtxKey{}, claims["user_id"])
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}
