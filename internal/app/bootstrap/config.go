// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"time"

	"github.com/dalemusser/impacthub/internal/app/system/auditlog"
	"github.com/dalemusser/impacthub/internal/app/system/normalize"
	"github.com/dalemusser/impacthub/internal/domain/models"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// devJWTSecret is accepted only when WAFFLE runs in the dev environment.
const devJWTSecret = "dev-only-change-me-please-0123456789ABCDEF"

// minJWTSecretLen is the shortest secret accepted outside dev.
const minJWTSecretLen = 32

// appConfigKeys defines the configuration keys for ImpactHub.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, jwt_secret, etc.
//   - Environment variables: IMPACTHUB_MONGO_URI, IMPACTHUB_JWT_SECRET, etc.
//   - Command-line flags: --mongo_uri, --jwt_secret, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "impacthub", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size"},

	{Name: "jwt_secret", Default: devJWTSecret, Desc: "HMAC secret for bearer tokens (at least 32 characters outside dev)"},
	{Name: "jwt_expiry", Default: "168h", Desc: "Bearer token lifetime (e.g., 24h, 168h)"},
	{Name: "jwt_issuer", Default: "impacthub", Desc: "Bearer token issuer"},

	{Name: "ngo_register_roles", Default: "USER,NGO_ADMIN,ADMIN", Desc: "Comma-separated roles allowed to register an NGO"},

	{Name: "redis_addr", Default: "", Desc: "Redis address for shared login rate limiting (blank = in-memory)"},
	{Name: "redis_password", Default: "", Desc: "Redis password"},
	{Name: "redis_db", Default: 0, Desc: "Redis database number"},

	{Name: "cors_allowed_origins", Default: "*", Desc: "Comma-separated origins allowed by CORS"},

	{Name: "login_rate_ip", Default: 10, Desc: "Login attempts per client IP per minute"},
	{Name: "login_rate_email", Default: 5, Desc: "Login attempts per email per 5 minutes"},

	{Name: "audit_log_auth", Default: "all", Desc: "Auth event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_admin", Default: "all", Desc: "Admin event logging: 'all' (db+log), 'db', 'log', or 'off'"},

	{Name: "bootstrap_admin_email", Default: "", Desc: "Email of an existing user promoted to ADMIN on startup"},

	{Name: "timeout_short", Default: "5s", Desc: "Deadline for single-document operations"},
	{Name: "timeout_medium", Default: "10s", Desc: "Deadline for list queries and registration"},
	{Name: "timeout_long", Default: "30s", Desc: "Deadline for cascading deletes"},

	{Name: "cascade_resume_interval", Default: "1m", Desc: "How often interrupted cascading deletes are rolled forward"},
	{Name: "metrics_enabled", Default: true, Desc: "Expose Prometheus metrics on /metrics"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// Precedence is flags > env > files > defaults. Core keys use the WAFFLE_
// prefix and app keys use IMPACTHUB_.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "IMPACTHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		JWTSecret: appValues.String("jwt_secret"),
		JWTExpiry: appValues.Duration("jwt_expiry", 7*24*time.Hour),
		JWTIssuer: appValues.String("jwt_issuer"),

		NGORegisterRoles: normalize.CSV(appValues.String("ngo_register_roles")),

		RedisAddr:     appValues.String("redis_addr"),
		RedisPassword: appValues.String("redis_password"),
		RedisDB:       appValues.Int("redis_db"),

		CORSAllowedOrigins: normalize.CSV(appValues.String("cors_allowed_origins")),

		LoginRateIP:    appValues.Int("login_rate_ip"),
		LoginRateEmail: appValues.Int("login_rate_email"),

		AuditLogAuth:  appValues.String("audit_log_auth"),
		AuditLogAdmin: appValues.String("audit_log_admin"),

		BootstrapAdminEmail: normalize.Email(appValues.String("bootstrap_admin_email")),

		TimeoutShort:  appValues.Duration("timeout_short", 5*time.Second),
		TimeoutMedium: appValues.Duration("timeout_medium", 10*time.Second),
		TimeoutLong:   appValues.Duration("timeout_long", 30*time.Second),

		CascadeResumeInterval: appValues.Duration("cascade_resume_interval", time.Minute),
		MetricsEnabled:        appValues.Bool("metrics_enabled"),
	}

	for i, role := range appCfg.NGORegisterRoles {
		appCfg.NGORegisterRoles[i] = normalize.Role(role)
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation before any
// backend is contacted.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	if appCfg.MongoDatabase == "" {
		return fmt.Errorf("mongo_database is required")
	}

	if appCfg.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is required")
	}
	if coreCfg.Env != "dev" {
		if appCfg.JWTSecret == devJWTSecret {
			return fmt.Errorf("jwt_secret must be changed from the development default")
		}
		if len(appCfg.JWTSecret) < minJWTSecretLen {
			return fmt.Errorf("jwt_secret must be at least %d characters", minJWTSecretLen)
		}
	}
	if appCfg.JWTExpiry <= 0 {
		return fmt.Errorf("jwt_expiry must be positive")
	}

	if len(appCfg.NGORegisterRoles) == 0 {
		return fmt.Errorf("ngo_register_roles must name at least one role")
	}
	for _, role := range appCfg.NGORegisterRoles {
		if !models.IsValidRole(role) {
			return fmt.Errorf("ngo_register_roles: unknown role %q", role)
		}
	}

	if appCfg.LoginRateIP <= 0 || appCfg.LoginRateEmail <= 0 {
		return fmt.Errorf("login_rate_ip and login_rate_email must be positive")
	}
	for key, v := range map[string]string{"audit_log_auth": appCfg.AuditLogAuth, "audit_log_admin": appCfg.AuditLogAdmin} {
		if !auditlog.ValidSetting(v) {
			return fmt.Errorf("%s must be one of all, db, log, off (got %q)", key, v)
		}
	}
	if appCfg.CascadeResumeInterval <= 0 {
		return fmt.Errorf("cascade_resume_interval must be positive")
	}

	return nil
}
