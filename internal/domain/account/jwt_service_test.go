package account

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danghamo/accountd/internal/domain/shared"
)

func TestJWTService(t *testing.T) {
	service := NewJWTService("test-secret-key", "accountd-test", time.Hour, "/data")

	t.Run("should round-trip a signed-in identity", func(t *testing.T) {
		token, err := service.GenerateToken("u1", "Ada")
		require.NoError(t, err)

		id, err := service.IdentityFromToken(token)

		require.NoError(t, err)
		assert.Equal(t, "u1", id.Key())
		assert.Equal(t, "Ada", id.Name())
		assert.True(t, id.SignedIn())
		assert.Equal(t, "/data", id.FilesRoot())
	})

	t.Run("should reject tokens signed with another secret", func(t *testing.T) {
		other := NewJWTService("another-secret", "accountd-test", time.Hour, "/data")
		token, err := other.GenerateToken("u1", "Ada")
		require.NoError(t, err)

		_, err = service.IdentityFromToken(token)

		require.Error(t, err)
		assert.True(t, shared.IsCode(err, shared.ErrCodeInvalidToken))
	})

	t.Run("should reject expired tokens", func(t *testing.T) {
		expired := NewJWTService("test-secret-key", "accountd-test", -time.Minute, "/data")
		token, err := expired.GenerateToken("u1", "Ada")
		require.NoError(t, err)

		_, err = service.ValidateToken(token)

		assert.True(t, shared.IsCode(err, shared.ErrCodeInvalidToken))
	})

	t.Run("should not turn the fallback key into a signed-in identity", func(t *testing.T) {
		token, err := service.GenerateToken(NonSignedInKey, "mallory")
		require.NoError(t, err)

		_, err = service.IdentityFromToken(token)

		require.Error(t, err)
		assert.True(t, shared.IsCode(err, shared.ErrCodeInvalidInput))
	})

	t.Run("should refuse to issue tokens without a key", func(t *testing.T) {
		_, err := service.GenerateToken("", "Nobody")

		assert.True(t, shared.IsCode(err, shared.ErrCodeInvalidInput))
	})
}
