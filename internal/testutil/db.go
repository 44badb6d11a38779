package testutil

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/impacthub/internal/app/system/indexes"
	"github.com/dalemusser/impacthub/internal/app/system/validators"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnvMongoURI points tests at an existing MongoDB instead of a container.
const EnvMongoURI = "IMPACTHUB_TEST_MONGO_URI"

const mongoImage = "mongo:7"

var (
	clientOnce sync.Once
	client     *mongo.Client
	clientErr  error
)

// TestContext returns a context with a timeout suitable for a single test.
func TestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// SetupTestDB returns a fresh, empty database dropped when the test ends.
// It uses IMPACTHUB_TEST_MONGO_URI if set, otherwise starts a single-node
// replica set container once per test binary. Tests are skipped when
// neither is available.
func SetupTestDB(t *testing.T) *mongo.Database {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping MongoDB test in -short mode")
	}

	c, err := sharedClient()
	if err != nil {
		t.Skipf("MongoDB not available: %v", err)
	}

	db := c.Database(fmt.Sprintf("impacthub_test_%s", primitive.NewObjectID().Hex()))
	t.Cleanup(func() {
		ctx, cancel := TestContext()
		defer cancel()
		_ = db.Drop(ctx)
	})
	return db
}

// EnsureSchema applies the collection validators and indexes production
// runs at startup, so domain writes in tests meet the same $jsonSchema rules.
func EnsureSchema(t *testing.T, db *mongo.Database) {
	t.Helper()
	ctx, cancel := TestContext()
	defer cancel()
	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("validators.EnsureAll failed: %v", err)
	}
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("indexes.EnsureAll failed: %v", err)
	}
}

// SetupTestClient returns the shared client, for tests that need sessions.
func SetupTestClient(t *testing.T) *mongo.Client {
	t.Helper()
	c, err := sharedClient()
	if err != nil {
		t.Skipf("MongoDB not available: %v", err)
	}
	return c
}

func sharedClient() (*mongo.Client, error) {
	clientOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		uri := os.Getenv(EnvMongoURI)
		if uri == "" {
			uri, clientErr = startContainer(ctx)
			if clientErr != nil {
				return
			}
		}

		client, clientErr = mongo.Connect(ctx, options.Client().ApplyURI(uri))
		if clientErr != nil {
			return
		}
		clientErr = client.Ping(ctx, nil)
	})
	return client, clientErr
}

// startContainer launches MongoDB with a replica set so transactions work.
// The container is reaped by testcontainers' ryuk when the binary exits.
func startContainer(ctx context.Context) (uri string, err error) {
	defer func() {
		// testcontainers panics when no Docker daemon is reachable.
		if r := recover(); r != nil {
			err = fmt.Errorf("start mongodb container: %v", r)
		}
	}()

	container, err := mongodb.Run(ctx, mongoImage, mongodb.WithReplicaSet("rs0"))
	if err != nil {
		if container != nil {
			_ = testcontainers.TerminateContainer(container)
		}
		return "", fmt.Errorf("start mongodb container: %w", err)
	}
	uri, err = container.ConnectionString(ctx)
	if err != nil {
		_ = testcontainers.TerminateContainer(container)
		return "", err
	}
	return uri, nil
}
