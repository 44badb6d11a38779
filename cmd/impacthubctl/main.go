// Command impacthubctl performs operator tasks directly against the
// ImpactHub database: creating the first admin account and promoting an
// existing user.
//
// Connection settings come from IMPACTHUB_MONGO_URI and
// IMPACTHUB_MONGO_DATABASE, loaded from .env when present.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const usage = `Usage: impacthubctl <command> [flags]

Commands:
  create-admin  -name NAME -email EMAIL -password PASSWORD
  promote       -email EMAIL
`

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err := run(os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, "impacthubctl:", err)
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(command string, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch command {
	case "create-admin":
		fs := flag.NewFlagSet("create-admin", flag.ContinueOnError)
		name := fs.String("name", "", "display name")
		email := fs.String("email", "", "login email")
		password := fs.String("password", "", "initial password")
		if err := fs.Parse(args); err != nil {
			return errUsage
		}
		in := adminInput{Name: *name, Email: *email, Password: *password}
		if err := in.validate(); err != nil {
			return err
		}
		return withDB(ctx, func(db *mongo.Database) error {
			u, err := createAdmin(ctx, db, in)
			if err != nil {
				return err
			}
			fmt.Printf("created admin %s (%s)\n", u.Email, u.ID.Hex())
			return nil
		})

	case "promote":
		fs := flag.NewFlagSet("promote", flag.ContinueOnError)
		email := fs.String("email", "", "email of the user to promote")
		if err := fs.Parse(args); err != nil {
			return errUsage
		}
		if *email == "" {
			return fmt.Errorf("%w: -email is required", errUsage)
		}
		return withDB(ctx, func(db *mongo.Database) error {
			u, err := promoteAdmin(ctx, db, *email)
			if err != nil {
				return err
			}
			fmt.Printf("promoted %s to ADMIN\n", u.Email)
			return nil
		})
	}

	return fmt.Errorf("%w: unknown command %q", errUsage, command)
}

func withDB(ctx context.Context, fn func(db *mongo.Database) error) error {
	uri := envOr("IMPACTHUB_MONGO_URI", "mongodb://localhost:27017")
	name := envOr("IMPACTHUB_MONGO_DATABASE", "impacthub")

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return fmt.Errorf("connect mongo: %w", err)
	}
	defer func() { _ = client.Disconnect(context.Background()) }()

	if err := client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("ping mongo: %w", err)
	}
	return fn(client.Database(name))
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
