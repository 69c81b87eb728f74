package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	Port        int    `envconfig:"PORT" default:"8080"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	Version     string `envconfig:"VERSION" default:"dev"`
	BcryptCost  int    `envconfig:"BCRYPT_COST" default:"12"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	JWTSecret      string        `envconfig:"JWT_SECRET" required:"true"`
	JWTIssuer      string        `envconfig:"JWT_ISSUER" default:"trackwise"`
	TokenTTL       time.Duration `envconfig:"TOKEN_TTL" default:"15m"`
	TokenCheckUser bool          `envconfig:"TOKEN_CHECK_USER" default:"true"`

	SessionCookie string        `envconfig:"SESSION_COOKIE" default:"trackwise_session"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"24h"`
	SessionSecure bool          `envconfig:"SESSION_SECURE" default:"false"`

	// BootstrapAdminEmail is used for the first user when the users table is empty.
	BootstrapAdminEmail string `envconfig:"BOOTSTRAP_ADMIN_EMAIL" default:"admin@trackwise.local"`

	// ScopeDenyInactiveMembers makes the project guard refuse members whose
	// membership row is inactive. Off by default: inactive members keep read access.
	ScopeDenyInactiveMembers bool `envconfig:"SCOPE_DENY_INACTIVE_MEMBERS" default:"false"`

	RequestTimeout     time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	LoginRatePerSecond int           `envconfig:"LOGIN_RATE_PER_SECOND" default:"5"`
	LoginRateBurst     int           `envconfig:"LOGIN_RATE_BURST" default:"10"`
}

// Load reads configuration from environment variables into a Config struct.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
