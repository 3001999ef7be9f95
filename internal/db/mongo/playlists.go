package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/justestif/listify/internal/db"
)

type playlistDoc struct {
	ID          string    `bson:"_id"`
	UserID      string    `bson:"user_id"`
	Name        string    `bson:"name"`
	Description string    `bson:"description"`
	SongIDs     []string  `bson:"song_ids"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

func (d playlistDoc) model() db.Playlist {
	songIDs := d.SongIDs
	if songIDs == nil {
		songIDs = []string{}
	}
	return db.Playlist{
		ID:          d.ID,
		UserID:      d.UserID,
		Name:        d.Name,
		Description: d.Description,
		SongIDs:     songIDs,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

// PlaylistRepository handles playlist persistence.
type PlaylistRepository struct {
	coll  *mongo.Collection
	songs *mongo.Collection
}

// Create inserts a new playlist with its initial songs.
func (r *PlaylistRepository) Create(ctx context.Context, playlist *db.Playlist) error {
	songIDs := playlist.SongIDs
	if songIDs == nil {
		songIDs = []string{}
	}
	if err := r.requireSongs(ctx, songIDs...); err != nil {
		return err
	}

	ts := now()
	doc := playlistDoc{
		ID:          newID(playlist.ID),
		UserID:      playlist.UserID,
		Name:        playlist.Name,
		Description: playlist.Description,
		SongIDs:     songIDs,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return db.ErrDuplicate
		}
		return fmt.Errorf("inserting playlist: %w", err)
	}
	playlist.ID = doc.ID
	playlist.SongIDs = songIDs
	playlist.CreatedAt = ts
	playlist.UpdatedAt = ts
	return nil
}

// GetForUser retrieves a playlist by ID if it belongs to userID.
func (r *PlaylistRepository) GetForUser(ctx context.Context, id, userID string) (*db.Playlist, error) {
	return r.findOne(ctx, bson.M{"_id": id, "user_id": userID})
}

// GetByName retrieves the owner's playlist with exactly this name.
func (r *PlaylistRepository) GetByName(ctx context.Context, userID, name string) (*db.Playlist, error) {
	return r.findOne(ctx, bson.M{"user_id": userID, "name": name})
}

// List returns one page of the owner's playlists, newest first.
func (r *PlaylistRepository) List(ctx context.Context, params db.ListParams) ([]db.Playlist, int, error) {
	filter := bson.M{"user_id": params.UserID}
	if params.Search != "" {
		filter["name"] = bson.M{"$regex": regexp.QuoteMeta(params.Search), "$options": "i"}
	}

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("counting playlists: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(params.Offset)).
		SetLimit(int64(params.Limit))
	playlists, err := r.find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	return playlists, int(total), nil
}

// ListByUser returns all of the owner's playlists in creation order.
func (r *PlaylistRepository) ListByUser(ctx context.Context, userID string) ([]db.Playlist, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	return r.find(ctx, bson.M{"user_id": userID}, opts)
}

// Update writes the playlist's name and description.
func (r *PlaylistRepository) Update(ctx context.Context, playlist *db.Playlist) error {
	ts := now()
	result, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": playlist.ID, "user_id": playlist.UserID},
		bson.M{"$set": bson.M{
			"name":        playlist.Name,
			"description": playlist.Description,
			"updated_at":  ts,
		}},
	)
	if mongo.IsDuplicateKeyError(err) {
		return db.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("updating playlist: %w", err)
	}
	if result.MatchedCount == 0 {
		return db.ErrNotFound
	}
	playlist.UpdatedAt = ts
	return nil
}

// Delete removes a playlist owned by userID.
func (r *PlaylistRepository) Delete(ctx context.Context, id, userID string) error {
	result, err := r.coll.DeleteOne(ctx, bson.M{"_id": id, "user_id": userID})
	if err != nil {
		return fmt.Errorf("deleting playlist: %w", err)
	}
	if result.DeletedCount == 0 {
		return db.ErrNotFound
	}
	return nil
}

// AddSong appends songID to the end of the playlist. The $ne guard makes the
// membership check and the push a single atomic update.
func (r *PlaylistRepository) AddSong(ctx context.Context, id, songID string) error {
	if err := r.requireSongs(ctx, songID); err != nil {
		return err
	}

	result, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "song_ids": bson.M{"$ne": songID}},
		bson.M{
			"$push": bson.M{"song_ids": songID},
			"$set":  bson.M{"updated_at": now()},
		},
	)
	if err != nil {
		return fmt.Errorf("adding song to playlist: %w", err)
	}
	if result.MatchedCount > 0 {
		return nil
	}

	exists, err := r.coll.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("checking playlist: %w", err)
	}
	if exists == 0 {
		return db.ErrNotFound
	}
	return db.ErrDuplicate
}

// RemoveSong drops songID from the playlist.
func (r *PlaylistRepository) RemoveSong(ctx context.Context, id, songID string) error {
	result, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "song_ids": songID},
		bson.M{
			"$pull": bson.M{"song_ids": songID},
			"$set":  bson.M{"updated_at": now()},
		},
	)
	if err != nil {
		return fmt.Errorf("removing song from playlist: %w", err)
	}
	if result.MatchedCount == 0 {
		return db.ErrNotFound
	}
	return nil
}

// requireSongs returns db.ErrNotFound unless every id names an existing song.
func (r *PlaylistRepository) requireSongs(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	n, err := r.songs.CountDocuments(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return fmt.Errorf("checking songs: %w", err)
	}
	if int(n) != len(ids) {
		return db.ErrNotFound
	}
	return nil
}

func (r *PlaylistRepository) findOne(ctx context.Context, filter bson.M) (*db.Playlist, error) {
	var doc playlistDoc
	err := notFound(r.coll.FindOne(ctx, filter).Decode(&doc))
	if errors.Is(err, db.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("querying playlist: %w", err)
	}
	playlist := doc.model()
	return &playlist, nil
}

func (r *PlaylistRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]db.Playlist, error) {
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("querying playlists: %w", err)
	}
	var docs []playlistDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decoding playlists: %w", err)
	}

	playlists := make([]db.Playlist, len(docs))
	for i, doc := range docs {
		playlists[i] = doc.model()
	}
	return playlists, nil
}
