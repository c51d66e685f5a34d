package center

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	centerCollection = "centercodes"
	indexUniqueName  = "UniqueCenterName"
	indexUniqueCode  = "UniqueCenterCode"
)

type centerDoc struct {
	ID        string    `bson:"_id"`
	Name      string    `bson:"centerName"`
	Code      string    `bson:"centerCode"`
	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

func (d *centerDoc) toCenter() (*Center, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("decode center id %q: %w", d.ID, err)
	}
	return &Center{ID: id, Name: d.Name, Code: d.Code, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt}, nil
}

// RepoMongo stores centers in a single collection.
type RepoMongo struct {
	collection *mongo.Collection
}

func NewRepoMongo(database *mongo.Database) *RepoMongo {
	return &RepoMongo{collection: database.Collection(centerCollection)}
}

// Initialize creates the unique indexes Create relies on.
func (r *RepoMongo) Initialize(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "centerName", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(indexUniqueName),
		},
		{
			Keys:    bson.D{{Key: "centerCode", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(indexUniqueCode),
		},
	})
	if err != nil {
		return fmt.Errorf("create center indexes: %w", err)
	}
	return nil
}

func (r *RepoMongo) Create(ctx context.Context, c *Center) error {
	now := time.Now().UTC().Truncate(time.Millisecond)
	c.ID = uuid.New()
	c.CreatedAt, c.UpdatedAt = now, now

	_, err := r.collection.InsertOne(ctx, centerDoc{
		ID: c.ID.String(), Name: c.Name, Code: c.Code, CreatedAt: now, UpdatedAt: now,
	})
	if mongo.IsDuplicateKeyError(err) {
		return duplicateKeyError(err)
	}
	if err != nil {
		return fmt.Errorf("insert center: %w", err)
	}
	return nil
}

// duplicateKeyError maps a duplicate key error to the index that fired. The
// server names the index in the message.
func duplicateKeyError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, indexUniqueName):
		return ErrNameTaken
	case strings.Contains(msg, indexUniqueCode):
		return ErrCodeTaken
	default:
		return fmt.Errorf("insert center: %w", err)
	}
}

func (r *RepoMongo) GetByCode(ctx context.Context, code string) (*Center, error) {
	var doc centerDoc
	err := r.collection.FindOne(ctx, bson.M{"centerCode": code}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get center %s: %w", code, err)
	}
	return doc.toCenter()
}

func (r *RepoMongo) List(ctx context.Context) ([]*Center, error) {
	cursor, err := r.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "centerName", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list centers: %w", err)
	}
	defer cursor.Close(ctx)

	centers := []*Center{}
	for cursor.Next(ctx) {
		var doc centerDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode center: %w", err)
		}
		c, err := doc.toCenter()
		if err != nil {
			return nil, err
		}
		centers = append(centers, c)
	}
	return centers, cursor.Err()
}
