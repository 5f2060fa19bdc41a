package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"              json:"id"`
	Email        string             `bson:"email"                      json:"email"`
	PasswordHash string             `bson:"password_hash,omitempty"    json:"-"`
	Name         string             `bson:"name"                       json:"name"`
	Role         string             `bson:"role"                       json:"role"`
	Bio          string             `bson:"bio"                        json:"bio"`
	AvatarURL    string             `bson:"avatar_url"                 json:"avatar_url"`
	// Reset pair: either both set and unexpired, or both absent.
	ResetTokenHash string     `bson:"reset_token_hash,omitempty" json:"-"`
	ResetExpiresAt *time.Time `bson:"reset_expires_at,omitempty" json:"-"`
	CreatedAt      time.Time  `bson:"created_at"                 json:"created_at"`
	UpdatedAt      time.Time  `bson:"updated_at"                 json:"updated_at"`
}
