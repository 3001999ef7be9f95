package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/justestif/listify/internal/db"
)

type userDoc struct {
	ID           string    `bson:"_id"`
	Name         string    `bson:"name"`
	Email        string    `bson:"email"`
	PasswordHash string    `bson:"password_hash"`
	Image        string    `bson:"image"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

func (d userDoc) model() *db.User {
	return &db.User{
		ID:           d.ID,
		Name:         d.Name,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		Image:        d.Image,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

// UserRepository handles user persistence.
type UserRepository struct {
	coll *mongo.Collection
}

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, user *db.User) error {
	ts := now()
	doc := userDoc{
		ID:           newID(user.ID),
		Name:         user.Name,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		Image:        user.Image,
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return db.ErrDuplicate
		}
		return fmt.Errorf("inserting user: %w", err)
	}
	user.ID = doc.ID
	user.CreatedAt = ts
	user.UpdatedAt = ts
	return nil
}

// Get retrieves a user by ID.
func (r *UserRepository) Get(ctx context.Context, id string) (*db.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// GetByEmail retrieves a user by email address.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*db.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*db.User, error) {
	var doc userDoc
	err := notFound(r.coll.FindOne(ctx, filter).Decode(&doc))
	if errors.Is(err, db.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return doc.model(), nil
}
