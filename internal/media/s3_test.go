package media_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tazhibayda/account-service/internal/media"
)

func TestKeyFromURL(t *testing.T) {
	cases := []struct{ url, want string }{
		{"http://localhost:9000/avatars/8d6b1f2e", "8d6b1f2e"},
		{"https://media.example.com/avatars/8d6b1f2e.jpg", "8d6b1f2e"},
		{"https://res.cloudinary.com/demo/image/upload/v1/hkhzrxz1jnscqqqruszd.jpg", "hkhzrxz1jnscqqqruszd"},
		{"plainkey", "plainkey"},
		{"", ""},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, media.KeyFromURL(tc.url), tc.url)
	}
}
