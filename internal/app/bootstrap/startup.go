// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/impacthub/internal/app/policy/accesspolicy"
	auditstore "github.com/dalemusser/impacthub/internal/app/store/audit"
	userstore "github.com/dalemusser/impacthub/internal/app/store/users"
	"github.com/dalemusser/impacthub/internal/app/system/auditlog"
	"github.com/dalemusser/impacthub/internal/app/system/cascade"
	"github.com/dalemusser/impacthub/internal/app/system/ratelimit"
	"github.com/dalemusser/impacthub/internal/app/system/timeouts"
	"github.com/dalemusser/impacthub/internal/app/system/txn"
	"github.com/dalemusser/impacthub/internal/app/system/workers"
	"github.com/dalemusser/impacthub/internal/domain/models"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// cascadeGrace is how long a journal entry must sit untouched before the
// resume worker treats its cascade as interrupted.
const cascadeGrace = 2 * time.Minute

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	timeouts.Configure(timeouts.Config{
		Short:  appCfg.TimeoutShort,
		Medium: appCfg.TimeoutMedium,
		Long:   appCfg.TimeoutLong,
	})
	accesspolicy.SetRoles(accesspolicy.NGORegister, appCfg.NGORegisterRoles)

	if deps.svc == nil {
		return errors.New("startup: DBDeps was not created by ConnectDB")
	}
	svc := deps.svc
	svc.runner = txn.New(deps.MongoClient, logger)
	svc.cascades = cascade.New(deps.MongoDatabase, svc.runner, logger)
	svc.audit = auditlog.New(auditstore.New(deps.MongoDatabase), logger, auditlog.Config{
		Auth:  appCfg.AuditLogAuth,
		Admin: appCfg.AuditLogAdmin,
	})
	svc.limiter = newLoginLimiter(appCfg, deps, logger)

	if err := ensureAdmin(ctx, deps.MongoDatabase, svc.audit, appCfg.BootstrapAdminEmail, logger); err != nil {
		return err
	}

	svc.resume = workers.NewCascadeResume(svc.cascades, logger, appCfg.CascadeResumeInterval, cascadeGrace)
	svc.resume.Start()

	return nil
}

func newLoginLimiter(appCfg AppConfig, deps DBDeps, logger *zap.Logger) *ratelimit.LoginLimiter {
	cfg := ratelimit.DefaultLoginConfig()
	cfg.IPLimit = appCfg.LoginRateIP
	cfg.EmailLimit = appCfg.LoginRateEmail
	if deps.Redis != nil {
		return ratelimit.NewRedisLoginLimiter(deps.Redis, cfg, logger)
	}
	return ratelimit.NewLoginLimiter(cfg, logger)
}

// ensureAdmin promotes the account registered under email to a verified
// ADMIN. The account must already exist; a missing account is logged and
// skipped so a fresh deployment can start, sign the admin up, and restart.
func ensureAdmin(ctx context.Context, db *mongo.Database, audit *auditlog.Logger, email string, logger *zap.Logger) error {
	if email == "" {
		return nil
	}

	users := userstore.New(db)
	u, err := users.GetActiveByEmail(ctx, email)
	if errors.Is(err, mongo.ErrNoDocuments) {
		logger.Warn("bootstrap admin account not found; sign up first", zap.String("email", email))
		return nil
	}
	if err != nil {
		logger.Error("bootstrap admin lookup failed", zap.String("email", email), zap.Error(err))
		return err
	}

	if u.Role == models.RoleAdmin && u.Verified {
		logger.Info("bootstrap admin already present", zap.String("email", email))
		return nil
	}

	role := models.RoleAdmin
	verified := true
	if _, err := users.UpdateByAdmin(ctx, u.ID, userstore.AdminUpdate{Role: &role, Verified: &verified}); err != nil {
		logger.Error("bootstrap admin promotion failed", zap.String("email", email), zap.Error(err))
		return err
	}

	logger.Info("bootstrap admin promoted",
		zap.String("email", email),
		zap.String("previous_role", u.Role))
	audit.AdminBootstrapped(ctx, u.ID, email)
	return nil
}
