// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// WAFFLE's CoreConfig covers ports, TLS, log level and request limits.
// Everything ImpactHub itself needs lives here and is passed to every
// lifecycle hook.
type AppConfig struct {
	// MongoDB
	MongoURI         string
	MongoDatabase    string
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Bearer tokens
	JWTSecret string
	JWTExpiry time.Duration
	JWTIssuer string

	// Roles allowed to register an NGO.
	NGORegisterRoles []string

	// Redis backs the login rate limiter when RedisAddr is set; otherwise
	// counters are kept in memory per process.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	CORSAllowedOrigins []string

	// Login attempts allowed per window, per client IP and per email.
	LoginRateIP    int
	LoginRateEmail int

	// Audit destinations: all, db, log or off.
	AuditLogAuth  string
	AuditLogAdmin string

	// BootstrapAdminEmail names an existing account promoted to ADMIN at
	// startup. Blank disables it.
	BootstrapAdminEmail string

	// Handler deadlines; zero keeps the built-in defaults.
	TimeoutShort  time.Duration
	TimeoutMedium time.Duration
	TimeoutLong   time.Duration

	CascadeResumeInterval time.Duration
	MetricsEnabled        bool
}
