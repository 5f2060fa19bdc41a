package repo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"

	"github.com/tazhibayda/account-service/internal/domain"
)

var (
	ErrDuplicateEmail = errors.New("email already exists")
	ErrNotFound       = errors.New("user not found")
)

// Default projection: credential and reset fields never leave the store
// unless explicitly requested for verification.
var publicProjection = bson.M{
	"password_hash":    0,
	"reset_token_hash": 0,
	"reset_expires_at": 0,
}

func (s *Store) users() *mongo.Collection { return s.DB.Collection("users") }

func isDuplicateKey(err error) bool {
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	var ce mongo.CommandError
	return errors.As(err, &ce) && ce.Code == 11000
}

func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	if _, err := s.users().InsertOne(ctx, u); err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateEmail
		}
		return err
	}
	return nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.findOne(ctx, bson.M{"email": email}, false)
}

// FindUserByEmailWithPassword includes the stored hash; only the signin path
// needs it.
func (s *Store) FindUserByEmailWithPassword(ctx context.Context, email string) (*domain.User, error) {
	return s.findOne(ctx, bson.M{"email": email}, true)
}

func (s *Store) FindUserByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
	return s.findOne(ctx, bson.M{"_id": id}, false)
}

func (s *Store) FindUserByIDWithPassword(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
	return s.findOne(ctx, bson.M{"_id": id}, true)
}

func (s *Store) findOne(ctx context.Context, filter bson.M, withPassword bool) (*domain.User, error) {
	opts := options.FindOne()
	if !withPassword {
		opts.SetProjection(publicProjection)
	}
	var u domain.User
	err := s.users().FindOne(ctx, filter, opts).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateProfile applies the given field set and returns the updated record
// without credential fields.
func (s *Store) UpdateProfile(ctx context.Context, id primitive.ObjectID, set bson.M) (*domain.User, error) {
	set["updated_at"] = time.Now().UTC()

	res := s.users().FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().
			SetReturnDocument(options.After).
			SetProjection(publicProjection),
	)
	var u domain.User
	if err := res.Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		if isDuplicateKey(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	return &u, nil
}

func (s *Store) UpdatePassword(ctx context.Context, id primitive.ObjectID, passwordHash string) error {
	res, err := s.users().UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"password_hash": passwordHash,
			"updated_at":    time.Now().UTC(),
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetResetToken stores the reset pair. Both fields go in together; a
// subsequent request simply overwrites the pair.
func (s *Store) SetResetToken(ctx context.Context, id primitive.ObjectID, tokenHash string, expiresAt time.Time) error {
	sp, ctx := tracer.StartSpanFromContext(ctx, "mongo.user.set_reset_token",
		tracer.Tag("user_id", id.Hex()),
	)
	defer sp.Finish()

	res, err := s.users().UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"reset_token_hash": tokenHash,
			"reset_expires_at": expiresAt.UTC(),
			"updated_at":       time.Now().UTC(),
		}},
	)
	if err != nil {
		sp.SetTag("error", err)
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ResetPasswordByTokenHash consumes a reset token in one round-trip: the
// filter requires a matching hash with an unexpired pair, the update swaps
// the password hash and unsets both reset fields. ErrNotFound covers invalid,
// expired, and already-used tokens alike.
func (s *Store) ResetPasswordByTokenHash(ctx context.Context, tokenHash, passwordHash string) (*domain.User, error) {
	sp, ctx := tracer.StartSpanFromContext(ctx, "mongo.user.consume_reset_token")
	defer sp.Finish()

	now := time.Now().UTC()
	res := s.users().FindOneAndUpdate(ctx,
		bson.M{
			"reset_token_hash": tokenHash,
			"reset_expires_at": bson.M{"$gt": now},
		},
		bson.M{
			"$set": bson.M{
				"password_hash": passwordHash,
				"updated_at":    now,
			},
			"$unset": bson.M{
				"reset_token_hash": "",
				"reset_expires_at": "",
			},
		},
		options.FindOneAndUpdate().
			SetReturnDocument(options.After).
			SetProjection(publicProjection),
	)
	var u domain.User
	if err := res.Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		sp.SetTag("error", err)
		return nil, err
	}
	return &u, nil
}

// DeleteUser removes the record and returns it, so the caller can clean up
// the remote avatar asset.
func (s *Store) DeleteUser(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
	res := s.users().FindOneAndDelete(ctx, bson.M{"_id": id})
	var u domain.User
	if err := res.Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}
