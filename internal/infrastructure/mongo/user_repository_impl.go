package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/oksasatya/go-shop-account/internal/domain/entity"
	"github.com/oksasatya/go-shop-account/internal/domain/repository"
	"github.com/oksasatya/go-shop-account/pkg/apperror"
)

type UserRepository struct {
	coll *mongo.Collection
}

func NewUserRepository(db *mongo.Database, collection string) *UserRepository {
	return &UserRepository{coll: db.Collection(collection)}
}

// EnsureIndexes creates the unique email index and the reset token lookup index.
func (r *UserRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "resetPasswordToken", Value: 1}}, Options: options.Index().SetSparse(true)},
	})
	return err
}

func (r *UserRepository) Create(ctx context.Context, u *entity.User) error {
	doc, err := toDocument(u)
	if err != nil {
		return err
	}
	doc.ID = primitive.NewObjectID()
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperror.ErrConflict
		}
		return err
	}
	u.ID = doc.ID.Hex()
	return nil
}

func (r *UserRepository) Update(ctx context.Context, u *entity.User) error {
	doc, err := toDocument(u)
	if err != nil {
		return apperror.ErrNotFound
	}
	res, err := r.coll.UpdateByID(ctx, doc.ID, updateSet(doc))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperror.ErrConflict
		}
		return err
	}
	if res.MatchedCount == 0 {
		return apperror.ErrNotFound
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string, opts ...repository.ReadOption) (*entity.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperror.ErrNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid}, repository.ApplyReadOptions(opts...))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string, opts ...repository.ReadOption) (*entity.User, error) {
	return r.findOne(ctx, bson.M{"email": email}, repository.ApplyReadOptions(opts...))
}

func (r *UserRepository) GetByResetToken(ctx context.Context, tokenHash string) (*entity.User, error) {
	if tokenHash == "" {
		return nil, apperror.ErrNotFound
	}
	return r.findOne(ctx, bson.M{"resetPasswordToken": tokenHash}, repository.ReadOptions{})
}

func (r *UserRepository) List(ctx context.Context, f repository.ListFilter) ([]*entity.User, error) {
	fo := options.Find().
		SetProjection(projectionFor(repository.ReadOptions{})).
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64(f.Offset))
	if f.Limit > 0 {
		fo.SetLimit(int64(f.Limit))
	}
	cur, err := r.coll.Find(ctx, bson.M{}, fo)
	if err != nil {
		return nil, err
	}
	defer func() { _ = cur.Close(ctx) }()

	out := make([]*entity.User, 0)
	for cur.Next(ctx) {
		var doc userDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, fromDocument(doc))
	}
	return out, cur.Err()
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return apperror.ErrNotFound
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return apperror.ErrNotFound
	}
	return nil
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M, o repository.ReadOptions) (*entity.User, error) {
	fo := options.FindOne()
	if p := projectionFor(o); p != nil {
		fo.SetProjection(p)
	}
	var doc userDocument
	if err := r.coll.FindOne(ctx, filter, fo).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.ErrNotFound
		}
		return nil, err
	}
	return fromDocument(doc), nil
}

// Connect dials MongoDB and verifies the connection with a ping.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

var _ repository.UserRepository = (*UserRepository)(nil)
