package token

import (
	"testing"

	"github.com/golang-jwt/jwt/v4"
	"github.com/linknest/linknest-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParseRefresh(t *testing.T) {
	issuer := NewJWTIssuer("test-secret")
	user := models.User{ID: "user-1", Email: "alice@example.com", IsActive: true}

	pair, err := issuer.Issue(user)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.Access)
	assert.NotEmpty(t, pair.Refresh)
	assert.NotEqual(t, pair.Access, pair.Refresh)

	sub, err := issuer.ParseRefresh(pair.Refresh)
	require.NoError(t, err)
	assert.Equal(t, "user-1", sub)
}

func TestParseRefreshRejectsAccessTokens(t *testing.T) {
	issuer := NewJWTIssuer("test-secret")

	pair, err := issuer.Issue(models.User{ID: "user-1", Email: "alice@example.com"})
	require.NoError(t, err)

	_, err = issuer.ParseRefresh(pair.Access)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRefreshRejectsWrongSecret(t *testing.T) {
	issuer := NewJWTIssuer("test-secret")
	other := NewJWTIssuer("other-secret")

	pair, err := issuer.Issue(models.User{ID: "user-1"})
	require.NoError(t, err)

	_, err = other.ParseRefresh(pair.Refresh)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRefreshRejectsGarbage(t *testing.T) {
	issuer := NewJWTIssuer("test-secret")

	_, err := issuer.ParseRefresh("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAccessTokenClaims(t *testing.T) {
	issuer := NewJWTIssuer("test-secret")

	pair, err := issuer.Issue(models.User{ID: "user-1", Email: "alice@example.com"})
	require.NoError(t, err)

	parsed, err := jwt.Parse(pair.Access, func(token *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)

	claims, ok := parsed.Claims.(jwt.MapClaims)
	require.True(t, ok)
	assert.Equal(t, "user-1", claims["sub"])
	assert.Equal(t, "alice@example.com", claims["email"])
	assert.NotContains(t, claims, "typ")
}
