// Package mongo implements the db.Store contract on MongoDB.
//
// Playlists embed their ordered song IDs; the schema is expressed as indexes
// created by Migrate.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/justestif/listify/internal/db"
)

const (
	usersCollection     = "users"
	songsCollection     = "songs"
	playlistsCollection = "playlists"
)

// DB wraps a MongoDB client bound to one database.
type DB struct {
	client   *mongo.Client
	database *mongo.Database
}

var _ db.Store = (*DB)(nil)

// New connects to uri and selects database.
func New(ctx context.Context, uri, database string) (*DB, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}

	// Verify connection
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongo: %w", err)
	}

	return &DB{client: client, database: client.Database(database)}, nil
}

// Close disconnects the client.
func (d *DB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return d.client.Disconnect(ctx)
}

// Ping checks that the server is reachable.
func (d *DB) Ping(ctx context.Context) error {
	return d.client.Ping(ctx, nil)
}

// Database returns the selected database.
func (d *DB) Database() *mongo.Database {
	return d.database
}

// Users returns a UserRepository.
func (d *DB) Users() db.UserRepository {
	return &UserRepository{coll: d.database.Collection(usersCollection)}
}

// Playlists returns a PlaylistRepository.
func (d *DB) Playlists() db.PlaylistRepository {
	return &PlaylistRepository{
		coll:  d.database.Collection(playlistsCollection),
		songs: d.database.Collection(songsCollection),
	}
}

// Songs returns a SongRepository.
func (d *DB) Songs() db.SongRepository {
	return &SongRepository{coll: d.database.Collection(songsCollection)}
}

// Migrate creates the indexes the repositories rely on. It is idempotent.
func (d *DB) Migrate(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		usersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		playlistsCollection: {
			{
				Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "name", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		songsCollection: {
			{
				Keys: bson.D{{Key: "external_id", Value: 1}},
				Options: options.Index().
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"external_id": bson.M{"$gt": ""}}),
			},
			{Keys: bson.D{{Key: "title", Value: 1}}},
		},
	}

	for name, models := range indexes {
		if _, err := d.database.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("creating %s indexes: %w", name, err)
		}
	}
	return nil
}

// newID returns a time-ordered UUID so _id breaks created_at ties in insertion order.
func newID(id string) string {
	if id != "" {
		return id
	}
	v7, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return v7.String()
}

// now is truncated to the millisecond precision BSON dates keep.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return db.ErrNotFound
	}
	return err
}
