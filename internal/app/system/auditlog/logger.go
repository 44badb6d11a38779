// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"
	"strings"

	"github.com/dalemusser/impacthub/internal/app/store/audit"
	"github.com/dalemusser/impacthub/internal/app/system/ratelimit"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Destinations accepted by Config fields.
const (
	All = "all" // MongoDB + zap
	DB  = "db"  // MongoDB only
	Log = "log" // zap only
	Off = "off"
)

// Config holds audit logging configuration.
type Config struct {
	// Auth controls logging for authentication events (signup, login, password).
	Auth string
	// Admin controls logging for admin actions (user management, NGO
	// verification, reports).
	Admin string
}

// Logger provides convenience methods for logging audit events.
// It logs to both MongoDB (via audit.Store) and structured logs (via zap).
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

// ValidSetting reports whether s is a recognised destination.
func ValidSetting(s string) bool {
	switch strings.ToLower(s) {
	case All, DB, Log, Off:
		return true
	}
	return false
}

// logToZap logs the event to zap with consistent structure.
func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
		zap.String("ip", event.IP),
	}

	if event.UserID != nil {
		fields = append(fields, zap.String("user_id", event.UserID.Hex()))
	}
	if event.ActorID != nil {
		fields = append(fields, zap.String("actor_id", event.ActorID.Hex()))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event based on configuration.
// If the logger is nil, this is a no-op (allows tests to use nil audit logger).
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategoryAuth:
		setting = l.config.Auth
	case audit.CategoryAdmin:
		setting = l.config.Admin
	default:
		setting = All
	}
	setting = strings.ToLower(setting)

	if setting == Off {
		return
	}
	if setting == All || setting == Log {
		l.logToZap(event)
	}
	if (setting == All || setting == DB) && l.store != nil {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

func authEvent(r *http.Request, eventType string, user *primitive.ObjectID, success bool) audit.Event {
	return audit.Event{
		Category:  audit.CategoryAuth,
		EventType: eventType,
		UserID:    user,
		IP:        ratelimit.ClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   success,
	}
}

func adminEvent(r *http.Request, eventType string, actor primitive.ObjectID, target *primitive.ObjectID, details map[string]string) audit.Event {
	return audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: eventType,
		UserID:    target,
		ActorID:   &actor,
		IP:        ratelimit.ClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
		Details:   details,
	}
}

// --- Authentication Events ---

// Signup logs a new self-service account.
func (l *Logger) Signup(ctx context.Context, r *http.Request, userID primitive.ObjectID, email string) {
	e := authEvent(r, audit.EventSignup, &userID, true)
	e.Details = map[string]string{"email": email}
	l.Log(ctx, e)
}

// LoginSuccess logs a successful login.
func (l *Logger) LoginSuccess(ctx context.Context, r *http.Request, userID primitive.ObjectID, email string) {
	e := authEvent(r, audit.EventLoginSuccess, &userID, true)
	e.Details = map[string]string{"email": email}
	l.Log(ctx, e)
}

// LoginFailedUserNotFound logs a failed login for an unknown email.
func (l *Logger) LoginFailedUserNotFound(ctx context.Context, r *http.Request, attemptedEmail string) {
	e := authEvent(r, audit.EventLoginFailedUserNotFound, nil, false)
	e.FailureReason = "user not found"
	e.Details = map[string]string{"attempted_email": attemptedEmail}
	l.Log(ctx, e)
}

// LoginFailedWrongPassword logs a failed login due to wrong password.
func (l *Logger) LoginFailedWrongPassword(ctx context.Context, r *http.Request, userID primitive.ObjectID, email string) {
	e := authEvent(r, audit.EventLoginFailedWrongPassword, &userID, false)
	e.FailureReason = "wrong password"
	e.Details = map[string]string{"email": email}
	l.Log(ctx, e)
}

// LoginFailedRateLimit logs a login refused by the limiter. limitType is
// "ip" or "email".
func (l *Logger) LoginFailedRateLimit(ctx context.Context, r *http.Request, email, limitType string) {
	e := authEvent(r, audit.EventLoginFailedRateLimit, nil, false)
	e.FailureReason = "rate limited"
	e.Details = map[string]string{"attempted_email": email, "limit_type": limitType}
	l.Log(ctx, e)
}

// PasswordChanged logs a self-service password change.
func (l *Logger) PasswordChanged(ctx context.Context, r *http.Request, userID primitive.ObjectID) {
	l.Log(ctx, authEvent(r, audit.EventPasswordChanged, &userID, true))
}

// --- Admin Events ---

// UserPromoted logs USER -> NGO_ADMIN.
func (l *Logger) UserPromoted(ctx context.Context, r *http.Request, actorID, targetID primitive.ObjectID) {
	l.Log(ctx, adminEvent(r, audit.EventUserPromoted, actorID, &targetID, nil))
}

// NGOAdminVerified logs an NGO admin approval.
func (l *Logger) NGOAdminVerified(ctx context.Context, r *http.Request, actorID, targetID primitive.ObjectID) {
	l.Log(ctx, adminEvent(r, audit.EventNGOAdminVerified, actorID, &targetID, nil))
}

// UserUpdated logs an admin edit; fields lists what changed.
func (l *Logger) UserUpdated(ctx context.Context, r *http.Request, actorID, targetID primitive.ObjectID, fields string) {
	l.Log(ctx, adminEvent(r, audit.EventUserUpdated, actorID, &targetID, map[string]string{"fields_changed": fields}))
}

// UserDeleted logs an admin soft-delete.
func (l *Logger) UserDeleted(ctx context.Context, r *http.Request, actorID, targetID primitive.ObjectID, role string) {
	l.Log(ctx, adminEvent(r, audit.EventUserDeleted, actorID, &targetID, map[string]string{"role": role}))
}

// PasswordReset logs an admin-forced password reset.
func (l *Logger) PasswordReset(ctx context.Context, r *http.Request, actorID, targetID primitive.ObjectID) {
	l.Log(ctx, adminEvent(r, audit.EventPasswordReset, actorID, &targetID, nil))
}

// NGOVerified logs a manual or report-driven NGO verification.
func (l *Logger) NGOVerified(ctx context.Context, r *http.Request, actorID, ngoID primitive.ObjectID, via string) {
	l.Log(ctx, adminEvent(r, audit.EventNGOVerified, actorID, nil, map[string]string{"ngo_id": ngoID.Hex(), "via": via}))
}

// NGODeleted logs an NGO soft-delete with its cascade.
func (l *Logger) NGODeleted(ctx context.Context, r *http.Request, actorID, ngoID primitive.ObjectID) {
	l.Log(ctx, adminEvent(r, audit.EventNGODeleted, actorID, nil, map[string]string{"ngo_id": ngoID.Hex()}))
}

// ReportChanged logs a report create, update or delete.
func (l *Logger) ReportChanged(ctx context.Context, r *http.Request, eventType string, actorID, reportID, ngoID primitive.ObjectID) {
	l.Log(ctx, adminEvent(r, eventType, actorID, nil, map[string]string{
		"report_id": reportID.Hex(),
		"ngo_id":    ngoID.Hex(),
	}))
}

// AdminBootstrapped logs the startup promotion of the configured admin.
// There is no request, so IP is empty.
func (l *Logger) AdminBootstrapped(ctx context.Context, userID primitive.ObjectID, email string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventAdminBootstrapped,
		UserID:    &userID,
		Success:   true,
		Details:   map[string]string{"email": email},
	})
}
