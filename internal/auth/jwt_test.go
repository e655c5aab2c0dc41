package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManager() *JWTManager {
	return NewJWTManager(JWTConfig{
		AccessSecret:  "access-secret-for-tests-0123456789",
		AccessExpiry:  15 * time.Minute,
		RefreshSecret: "refresh-secret-for-tests-012345678",
		RefreshExpiry: 240 * time.Hour,
		Issuer:        "vidtube",
	})
}

func TestAccessToken_RoundTrip(t *testing.T) {
	m := testManager()

	token, err := m.GenerateAccessToken("u-1", "alice@example.com", "alice", "Alice Liddell")
	require.NoError(t, err)

	claims, err := m.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "Alice Liddell", claims.FullName)
	assert.Equal(t, "u-1", claims.Subject)
	assert.Equal(t, "vidtube", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), claims.ExpiresAt.Time, 5*time.Second)
}

func TestRefreshToken_RoundTrip(t *testing.T) {
	m := testManager()

	token, err := m.GenerateRefreshToken("u-1")
	require.NoError(t, err)

	claims, err := m.ValidateRefreshToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
}

func TestTokens_UniquePerIssue(t *testing.T) {
	m := testManager()

	a, err := m.GenerateRefreshToken("u-1")
	require.NoError(t, err)
	b, err := m.GenerateRefreshToken("u-1")
	require.NoError(t, err)

	assert.NotEqual(t, a, b, "tokens issued in the same second must differ")
}

func TestValidate_SecretsAreNotInterchangeable(t *testing.T) {
	m := testManager()

	refresh, err := m.GenerateRefreshToken("u-1")
	require.NoError(t, err)
	_, err = m.ValidateAccessToken(refresh)
	assert.ErrorIs(t, err, ErrInvalidToken)

	access, err := m.GenerateAccessToken("u-1", "a@b.c", "a", "A")
	require.NoError(t, err)
	_, err = m.ValidateRefreshToken(access)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidate_Expired(t *testing.T) {
	m := NewJWTManager(JWTConfig{
		AccessSecret:  "access-secret-for-tests-0123456789",
		AccessExpiry:  -time.Minute,
		RefreshSecret: "refresh-secret-for-tests-012345678",
		RefreshExpiry: -time.Minute,
	})

	access, err := m.GenerateAccessToken("u-1", "a@b.c", "a", "A")
	require.NoError(t, err)
	_, err = m.ValidateAccessToken(access)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	refresh, err := m.GenerateRefreshToken("u-1")
	require.NoError(t, err)
	_, err = m.ValidateRefreshToken(refresh)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestValidate_Tampered(t *testing.T) {
	m := testManager()

	token, err := m.GenerateAccessToken("u-1", "a@b.c", "a", "A")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	_, err = m.ValidateAccessToken(tampered)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidate_RejectsOtherAlgorithms(t *testing.T) {
	m := testManager()

	claims := &Claims{UserID: "u-1", RegisteredClaims: m.registered("u-1", time.Minute)}
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = m.ValidateAccessToken(none)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidate_WrongIssuer(t *testing.T) {
	other := NewJWTManager(JWTConfig{
		AccessSecret: "access-secret-for-tests-0123456789",
		AccessExpiry: time.Minute,
		Issuer:       "someone-else",
	})
	token, err := other.GenerateAccessToken("u-1", "a@b.c", "a", "A")
	require.NoError(t, err)

	_, err = testManager().ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidate_Garbage(t *testing.T) {
	m := testManager()
	for _, tok := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := m.ValidateAccessToken(tok)
		assert.ErrorIs(t, err, ErrInvalidToken, "token %q", tok)
	}
}

func TestValidate_MissingIDClaim(t *testing.T) {
	m := testManager()

	claims := &Claims{RegisteredClaims: m.registered("", time.Minute)}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.accessSecret)
	require.NoError(t, err)

	_, err = m.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
