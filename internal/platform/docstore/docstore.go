// Package docstore opens the MongoDB database that holds courses and
// templates.
package docstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const connectTimeout = 10 * time.Second

// DocStore wraps a MongoDB client and its database handle.
type DocStore struct {
	Client *mongo.Client
	DB     *mongo.Database
}

// ClientOptions validates a MongoDB URI and returns client options.
func ClientOptions(uri string) (*options.ClientOptions, error) {
	if uri == "" {
		return nil, fmt.Errorf("docstore URI is empty")
	}
	opts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(connectTimeout).
		SetServerSelectionTimeout(connectTimeout)
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid docstore URI: %w", err)
	}
	return opts, nil
}

// Open connects to uri, pings the primary and selects database.
func Open(ctx context.Context, uri, database string) (*DocStore, error) {
	if database == "" {
		return nil, fmt.Errorf("docstore database name is empty")
	}
	opts, err := ClientOptions(uri)
	if err != nil {
		return nil, err
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connecting to docstore: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("pinging docstore: %w", err)
	}

	slog.Info("docstore connected", "database", database, "hosts", opts.Hosts)
	return &DocStore{Client: client, DB: client.Database(database)}, nil
}

// Close disconnects the client.
func (d *DocStore) Close(ctx context.Context) error {
	return d.Client.Disconnect(ctx)
}

// HealthCheck verifies the primary is reachable.
func (d *DocStore) HealthCheck(ctx context.Context) error {
	return d.Client.Ping(ctx, readpref.Primary())
}
