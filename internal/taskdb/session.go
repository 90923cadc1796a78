// Package taskdb reads calculation records and their GridFS payloads from the
// VASP task database described by a db.json credentials file.
package taskdb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matflow/wkshp/internal/config"
	"github.com/matflow/wkshp/internal/monitoring"
)

// Session is an open client scoped to the database and task collection named
// in a credentials file.
type Session struct {
	Client     *mongo.Client
	DB         *mongo.Database
	Collection *mongo.Collection
	Creds      *config.Credentials
}

// Close disconnects the underlying client.
func (s *Session) Close(ctx context.Context) error {
	if s == nil || s.Client == nil {
		return nil
	}
	return s.Client.Disconnect(ctx)
}

// OpenDatabase connects to the host and database in dbFile without
// authenticating.
func OpenDatabase(ctx context.Context, dbFile string) (*Session, error) {
	creds, err := config.LoadCredentials(dbFile)
	if err != nil {
		return nil, err
	}
	return Connect(ctx, creds, false)
}

// TaskCollection connects like OpenDatabase and authenticates with the
// admin_user/admin_password pair when the file carries one.
func TaskCollection(ctx context.Context, dbFile string) (*Session, error) {
	creds, err := config.LoadCredentials(dbFile)
	if err != nil {
		return nil, err
	}
	return Connect(ctx, creds, creds.HasAdmin())
}

// Connect opens a client for creds. When auth is set the admin credentials
// are verified against the named database.
func Connect(ctx context.Context, creds *config.Credentials, auth bool) (*Session, error) {
	monitoring.Logf("taskdb: connecting to %s database=%s collection=%s auth=%t",
		creds.URI(), creds.Database, creds.Collection, auth)

	client, err := mongo.Connect(ctx, clientOptions(creds, auth))
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", creds.URI(), err)
	}

	db := client.Database(creds.Database)
	return &Session{
		Client:     client,
		DB:         db,
		Collection: db.Collection(creds.Collection),
		Creds:      creds,
	}, nil
}

func clientOptions(creds *config.Credentials, auth bool) *options.ClientOptions {
	opts := options.Client().ApplyURI(creds.URI())
	if auth {
		opts.SetAuth(options.Credential{
			AuthSource: creds.Database,
			Username:   creds.AdminName(),
			Password:   creds.AdminPassword,
		})
	}
	return opts
}
