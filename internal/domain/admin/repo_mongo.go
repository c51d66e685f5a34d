package admin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const userCollection = "users"

type userDoc struct {
	ID           string    `bson:"_id"`
	FullName     string    `bson:"Fullname"`
	Username     string    `bson:"username"`
	PasswordHash string    `bson:"password"`
	Token        string    `bson:"token"`
	CreatedAt    time.Time `bson:"createdAt"`
}

// UserRepoMongo stores operators in the users collection.
type UserRepoMongo struct {
	collection *mongo.Collection
}

func NewUserRepoMongo(database *mongo.Database) *UserRepoMongo {
	return &UserRepoMongo{collection: database.Collection(userCollection)}
}

func (r *UserRepoMongo) Initialize(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("UniqueUsername"),
	})
	if err != nil {
		return fmt.Errorf("create user index: %w", err)
	}
	return nil
}

func (r *UserRepoMongo) Create(ctx context.Context, u *User) error {
	u.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	_, err := r.collection.InsertOne(ctx, userDoc{
		ID:           u.ID.String(),
		FullName:     u.FullName,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		Token:        u.Token,
		CreatedAt:    u.CreatedAt,
	})
	if mongo.IsDuplicateKeyError(err) {
		return ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("insert admin user: %w", err)
	}
	return nil
}

func (r *UserRepoMongo) GetByUsername(ctx context.Context, username string) (*User, error) {
	var doc userDoc
	err := r.collection.FindOne(ctx, bson.M{"username": username}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get admin user: %w", err)
	}
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("decode user id %q: %w", doc.ID, err)
	}
	return &User{
		ID:           id,
		FullName:     doc.FullName,
		Username:     doc.Username,
		PasswordHash: doc.PasswordHash,
		Token:        doc.Token,
		CreatedAt:    doc.CreatedAt,
	}, nil
}
