// Package txn runs multi-document writes inside a MongoDB transaction when
// the deployment supports it.
//
// Standalone servers (typical in local development) cannot run transactions.
// Runner detects that on first use and from then on runs the work directly,
// relying on each step being idempotent.
package txn

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Runner executes units of work, transactionally when possible.
type Runner struct {
	client      *mongo.Client
	log         *zap.Logger
	unsupported atomic.Bool
}

// New creates a Runner for client. A nil client always runs work directly.
func New(client *mongo.Client, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{client: client, log: log}
}

// Transactional reports whether the Runner still believes transactions work.
func (r *Runner) Transactional() bool {
	return r.client != nil && !r.unsupported.Load()
}

// Run executes fn. Inside a transaction fn receives the session context and
// every write it makes commits or aborts together. Errors returned by fn
// abort the transaction and are returned unchanged.
func (r *Runner) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	if !r.Transactional() {
		return fn(ctx)
	}

	sess, err := r.client.StartSession()
	if err != nil {
		if IsNotSupported(err) {
			r.markUnsupported(err)
			return fn(ctx)
		}
		return err
	}
	defer sess.EndSession(ctx)

	var fnErr error
	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		fnErr = fn(sc)
		return nil, fnErr
	})
	if err == nil {
		return nil
	}

	// Domain errors from fn pass through; only driver-level refusals to run
	// a transaction trigger the direct fallback.
	if IsNotSupported(err) && !isDomainError(fnErr) {
		r.markUnsupported(err)
		return fn(ctx)
	}
	return err
}

func (r *Runner) markUnsupported(err error) {
	if r.unsupported.CompareAndSwap(false, true) {
		r.log.Warn("transactions not supported by this deployment; running writes without a transaction",
			zap.Error(err))
	}
}

// isDomainError reports whether err came from application logic rather
// than the driver.
func isDomainError(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) {
		return false
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		return false
	}
	var se mongo.ServerError
	return !errors.As(err, &se)
}

// IsNotSupported reports whether err means the server cannot run a
// transaction: IllegalOperation (20), NoSuchTransaction-on-standalone (51),
// OperationNotSupportedInTransaction (263), or an error message carrying
// at least two tell-tale phrases.
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) {
		switch ce.Code {
		case 20, 51, 263:
			return true
		}
	}

	s := strings.ToLower(err.Error())
	hits := 0
	for _, kw := range []string{"transaction", "replica set", "session", "not supported", "illegal operation"} {
		if strings.Contains(s, kw) {
			hits++
		}
	}
	return hits >= 2
}
