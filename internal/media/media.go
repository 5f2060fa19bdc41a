package media

import "context"

// Storage is the remote media host the account service stores avatars on.
type Storage interface {
	// Upload stores the file and returns its public URL.
	Upload(ctx context.Context, filename, contentType string, data []byte) (string, error)
	// Delete removes the asset identified by the key derived from its URL.
	Delete(ctx context.Context, key string) error
}
