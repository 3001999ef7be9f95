package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/justestif/listify/internal/db"
)

type songDoc struct {
	ID          string    `bson:"_id"`
	Title       string    `bson:"title"`
	Artists     []string  `bson:"artists"`
	Album       string    `bson:"album"`
	Duration    int       `bson:"duration"`
	Cover       string    `bson:"cover"`
	ExternalID  string    `bson:"external_id"`
	ExternalURL string    `bson:"external_url"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

func (d songDoc) model() db.Song {
	artists := d.Artists
	if artists == nil {
		artists = []string{}
	}
	return db.Song{
		ID:          d.ID,
		Title:       d.Title,
		Artists:     artists,
		Album:       d.Album,
		Duration:    d.Duration,
		Cover:       d.Cover,
		ExternalID:  d.ExternalID,
		ExternalURL: d.ExternalURL,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

// SongRepository handles song persistence.
type SongRepository struct {
	coll *mongo.Collection
}

// Create inserts a new song.
func (r *SongRepository) Create(ctx context.Context, song *db.Song) error {
	artists := song.Artists
	if artists == nil {
		artists = []string{}
	}
	ts := now()
	doc := songDoc{
		ID:          newID(song.ID),
		Title:       song.Title,
		Artists:     artists,
		Album:       song.Album,
		Duration:    song.Duration,
		Cover:       song.Cover,
		ExternalID:  song.ExternalID,
		ExternalURL: song.ExternalURL,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return db.ErrDuplicate
		}
		return fmt.Errorf("inserting song: %w", err)
	}
	song.ID = doc.ID
	song.Artists = artists
	song.CreatedAt = ts
	song.UpdatedAt = ts
	return nil
}

// Get retrieves a song by ID.
func (r *SongRepository) Get(ctx context.Context, id string) (*db.Song, error) {
	return r.findOne(ctx, bson.M{"_id": id}, nil)
}

// GetMany retrieves every song whose ID is in ids.
func (r *SongRepository) GetMany(ctx context.Context, ids []string) ([]db.Song, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	cursor, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("querying songs: %w", err)
	}
	var docs []songDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decoding songs: %w", err)
	}

	songs := make([]db.Song, len(docs))
	for i, doc := range docs {
		songs[i] = doc.model()
	}
	return songs, nil
}

// FindByExternalID retrieves the song imported from an external catalog entry.
func (r *SongRepository) FindByExternalID(ctx context.Context, externalID string) (*db.Song, error) {
	if externalID == "" {
		return nil, db.ErrNotFound
	}
	return r.findOne(ctx, bson.M{"external_id": externalID}, nil)
}

// FindByTitleArtists retrieves the oldest song with this exact title whose
// artists contain all of artists.
func (r *SongRepository) FindByTitleArtists(ctx context.Context, title string, artists []string) (*db.Song, error) {
	filter := bson.M{"title": title}
	// $all with an empty list matches nothing
	if len(artists) > 0 {
		filter["artists"] = bson.M{"$all": artists}
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	return r.findOne(ctx, filter, opts)
}

func (r *SongRepository) findOne(ctx context.Context, filter bson.M, opts *options.FindOneOptions) (*db.Song, error) {
	var doc songDoc
	err := notFound(r.coll.FindOne(ctx, filter, opts).Decode(&doc))
	if errors.Is(err, db.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("querying song: %w", err)
	}
	song := doc.model()
	return &song, nil
}
