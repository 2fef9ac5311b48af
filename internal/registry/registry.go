package registry

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/evtrack/fleetlogger/internal/apperr"
	"github.com/evtrack/fleetlogger/internal/models"
)

// EnvVars are the environment-sourced settings read once at startup, mirroring
// spec §6.
type EnvVars struct {
	EncryptionKey      string
	DatabaseURL        string
	CarDataDatabaseURL string
	HTTPPort           uint16
	JWTSecret          string
	TeslaBaseURL       string
	TeslaOAuthURL      string
	TeslaClientID      string
	GeocodeBaseURL     string
	AdminUsername      string
	AdminPassword      string
}

const defaultHTTPPort = 3072

// Defaults for the out-of-scope external collaborators (§6 names only their
// interfaces, not their endpoints); these are optional knobs for the concrete
// implementations this module adds, never part of the required env surface.
const (
	defaultTeslaBaseURL  = "https://owner-api.teslamotors.com"
	defaultTeslaOAuthURL = "https://auth.tesla.com/oauth2/v3/token"
	defaultAdminUsername = "admin"
)

// LoadEnvVars reads DATABASE_URL, TOKEN_ENCRYPTION_KEY, CAR_DATA_DATABASE_URL and
// HTTP_PORT from the environment, plus JWT_SECRET and the optional client/admin
// settings (TESLA_API_BASE_URL, TESLA_OAUTH_URL, TESLA_CLIENT_ID, NOMINATIM_BASE_URL,
// ADMIN_USERNAME, ADMIN_PASSWORD). TOKEN_ENCRYPTION_KEY, DATABASE_URL and JWT_SECRET
// are required; the rest are optional, with a default where one is defined.
func LoadEnvVars() (EnvVars, error) {
	encryptionKey := os.Getenv("TOKEN_ENCRYPTION_KEY")
	if encryptionKey == "" {
		return EnvVars{}, fmt.Errorf("%w: please provide TOKEN_ENCRYPTION_KEY", apperr.FatalConfig)
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return EnvVars{}, fmt.Errorf("%w: please provide DATABASE_URL", apperr.FatalConfig)
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return EnvVars{}, fmt.Errorf("%w: please provide JWT_SECRET", apperr.FatalConfig)
	}

	httpPort := uint16(defaultHTTPPort)
	if raw, ok := os.LookupEnv("HTTP_PORT"); ok {
		parsed, err := strconv.ParseUint(raw, 10, 16)
		if err != nil {
			log.Printf("[config] invalid HTTP_PORT %q: %v, using default %d", raw, err, defaultHTTPPort)
		} else {
			httpPort = uint16(parsed)
		}
	}

	teslaBaseURL := os.Getenv("TESLA_API_BASE_URL")
	if teslaBaseURL == "" {
		teslaBaseURL = defaultTeslaBaseURL
	}
	teslaOAuthURL := os.Getenv("TESLA_OAUTH_URL")
	if teslaOAuthURL == "" {
		teslaOAuthURL = defaultTeslaOAuthURL
	}
	adminUsername := os.Getenv("ADMIN_USERNAME")
	if adminUsername == "" {
		adminUsername = defaultAdminUsername
	}

	return EnvVars{
		EncryptionKey:      encryptionKey,
		DatabaseURL:        databaseURL,
		CarDataDatabaseURL: os.Getenv("CAR_DATA_DATABASE_URL"),
		HTTPPort:           httpPort,
		JWTSecret:          jwtSecret,
		TeslaBaseURL:       teslaBaseURL,
		TeslaOAuthURL:      teslaOAuthURL,
		TeslaClientID:      os.Getenv("TESLA_CLIENT_ID"),
		GeocodeBaseURL:     os.Getenv("NOMINATIM_BASE_URL"),
		AdminUsername:      adminUsername,
		AdminPassword:      os.Getenv("ADMIN_PASSWORD"),
	}, nil
}

// Registry is the process-wide mutable configuration surface (§4.1). Every tunable
// is its own lockable, observable Field so that readers and writers never contend
// across unrelated fields.
type Registry struct {
	LoggingEnabled     *Field[bool]
	LoggingPeriodMs    *Field[int32]
	AccessToken        *Field[string]
	RefreshToken       *Field[string]
	EncryptionKey      *Field[string]
	DatabaseURL        *Field[string]
	CarDataDatabaseURL *Field[string]
	HTTPPort           *Field[uint16]
	PreferredRange     *Field[models.PreferredRange]
}

// New builds a Registry from environment variables, the Settings the caller loaded
// from the store at startup, and an initial token pair (the access/refresh fields
// may be empty; the token manager installs the stored credential later).
func New(env EnvVars, settings models.Settings, tokens models.AuthResponse) *Registry {
	return &Registry{
		LoggingEnabled:     NewField(settings.LogAtStartup),
		LoggingPeriodMs:    NewField(settings.LoggingPeriodMs),
		AccessToken:        NewField(tokens.AccessToken),
		RefreshToken:       NewField(tokens.RefreshToken),
		EncryptionKey:      NewField(env.EncryptionKey),
		DatabaseURL:        NewField(env.DatabaseURL),
		CarDataDatabaseURL: NewField(env.CarDataDatabaseURL),
		HTTPPort:           NewField(env.HTTPPort),
		PreferredRange:     NewField(settings.PreferredRange),
	}
}
