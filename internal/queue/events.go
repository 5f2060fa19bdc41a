package queue

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Routing keys on the account events exchange.
const (
	KeyUserRegistered     = "user.registered"
	KeyUserResetRequested = "user.reset_requested"
	KeyUserDeleted        = "user.deleted"
)

type UserRegistered struct {
	UserID primitive.ObjectID `json:"user_id"`
	Email  string             `json:"email"`
	Name   string             `json:"name"`
}

// PasswordResetRequested carries the plaintext reset token to the notifier.
// This is the only place the plaintext leaves the service; the HTTP response
// never includes it.
type PasswordResetRequested struct {
	UserID    primitive.ObjectID `json:"user_id"`
	Email     string             `json:"email"`
	Name      string             `json:"name"`
	Token     string             `json:"token"`
	ExpiresAt time.Time          `json:"expires_at"`
}

type UserDeleted struct {
	UserID primitive.ObjectID `json:"user_id"`
	Email  string             `json:"email"`
}
