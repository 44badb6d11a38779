// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/dalemusser/impacthub/internal/app/system/auditlog"
	"github.com/dalemusser/impacthub/internal/app/system/cascade"
	"github.com/dalemusser/impacthub/internal/app/system/ratelimit"
	"github.com/dalemusser/impacthub/internal/app/system/txn"
	"github.com/dalemusser/impacthub/internal/app/system/workers"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database/back-end dependencies for the app.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	// Redis is nil when redis_addr is blank.
	Redis redis.UniversalClient

	// svc is allocated by ConnectDB and filled by Startup. WAFFLE passes
	// DBDeps by value, so the pointer is what lets Shutdown reach the
	// background worker that Startup began.
	svc *services
}

// services are the long-lived collaborators shared by every feature.
type services struct {
	runner   *txn.Runner
	cascades *cascade.Engine
	audit    *auditlog.Logger
	limiter  *ratelimit.LoginLimiter
	resume   *workers.CascadeResume
}
