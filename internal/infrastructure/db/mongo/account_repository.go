package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/99minutos/accounts-api/internal/core/domain"
	"github.com/99minutos/accounts-api/internal/core/ports"
)

const (
	accountCollection = "users"
	defaultOpTimeout  = 5 * time.Second
)

// AccountRepository is the MongoDB credential store. Username and email
// uniqueness is enforced by unique indexes, see EnsureIndexes.
type AccountRepository struct {
	coll      *mongo.Collection
	opTimeout time.Duration
	now       func() time.Time
}

// NewAccountRepository bounds every store call by opTimeout
// (defaultOpTimeout when <= 0).
func NewAccountRepository(db *mongo.Database, opTimeout time.Duration) *AccountRepository {
	if opTimeout <= 0 {
		opTimeout = defaultOpTimeout
	}
	return &AccountRepository{
		coll:      db.Collection(accountCollection),
		opTimeout: opTimeout,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (r *AccountRepository) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.opTimeout)
}

type mongoAccount struct {
	ID           primitive.ObjectID `bson:"_id"`
	Username     string             `bson:"username"`
	Email        string             `bson:"email"`
	PasswordHash string             `bson:"password_hash"`
	Role         string             `bson:"role"`
	CreatedAt    time.Time          `bson:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at"`
}

func (m *mongoAccount) toDomain() *domain.Account {
	return &domain.Account{
		ID:           m.ID.Hex(),
		Username:     m.Username,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Role:         domain.Role(m.Role),
		CreatedAt:    m.CreatedAt.UTC(),
		UpdatedAt:    m.UpdatedAt.UTC(),
	}
}

// EnsureIndexes creates the unique username and email indexes.
func (r *AccountRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uniq_username")},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uniq_email")},
	}

	if _, err := r.coll.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("create account indexes: %w", err)
	}
	return nil
}

func (r *AccountRepository) Create(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	now := r.now().Truncate(time.Millisecond)
	doc := mongoAccount{
		ID:           primitive.NewObjectID(),
		Username:     account.Username,
		Email:        account.Email,
		PasswordHash: account.PasswordHash,
		Role:         string(account.Role),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrDuplicateAccount
		}
		return nil, fmt.Errorf("insert account: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *AccountRepository) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *AccountRepository) FindByUsername(ctx context.Context, username string) (*domain.Account, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

func (r *AccountRepository) findOne(ctx context.Context, filter bson.M) (*domain.Account, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	var doc mongoAccount
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	return doc.toDomain(), nil
}

// ListUsernames returns every username in insertion order.
func (r *AccountRepository) ListUsernames(ctx context.Context) ([]string, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	opts := options.Find().
		SetProjection(bson.M{"username": 1}).
		SetSort(bson.D{{Key: "_id", Value: 1}})

	cursor, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer cursor.Close(ctx)

	names := make([]string, 0)
	for cursor.Next(ctx) {
		var doc struct {
			Username string `bson:"username"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode account: %w", err)
		}
		names = append(names, doc.Username)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("list accounts cursor: %w", err)
	}
	return names, nil
}

// Update applies changes in a single findAndModify, so a duplicate email
// leaves the document untouched.
func (r *AccountRepository) Update(ctx context.Context, username string, changes ports.AccountChanges) (*domain.Account, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	set := bson.M{"updated_at": r.now().Truncate(time.Millisecond)}
	if changes.Email != nil {
		set["email"] = *changes.Email
	}
	if changes.PasswordHash != nil {
		set["password_hash"] = *changes.PasswordHash
	}
	if changes.Role != nil {
		set["role"] = string(*changes.Role)
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc mongoAccount
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"username": username}, bson.M{"$set": set}, opts).Decode(&doc)
	if err != nil {
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			return nil, domain.ErrUserNotFound
		case mongo.IsDuplicateKeyError(err):
			return nil, domain.ErrDuplicateAccount
		}
		return nil, fmt.Errorf("update account: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *AccountRepository) Delete(ctx context.Context, username string) error {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	res, err := r.coll.DeleteOne(ctx, bson.M{"username": username})
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}
