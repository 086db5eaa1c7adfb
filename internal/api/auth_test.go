package api

import (
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/hospital-portal-scheduling/internal/policy"
)

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func TestTokenRoundTrip(t *testing.T) {
	token, err := NewToken(testJWT, policy.Actor{UserID: 42, Role: policy.RoleStaff}, time.Minute)
	require.NoError(t, err)

	actor, err := ParseToken(testJWT, token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), actor.UserID)
	assert.Equal(t, policy.RoleStaff, actor.Role)
}

func TestParseToken_Rejects(t *testing.T) {
	expired, err := NewToken(testJWT, patientActor, -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(testJWT, expired)
	assert.Error(t, err)

	wrongKey, err := NewToken(JWTConfig{Secret: []byte("other"), Issuer: testJWT.Issuer}, patientActor, time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(testJWT, wrongKey)
	assert.Error(t, err)

	wrongIssuer, err := NewToken(JWTConfig{Secret: testJWT.Secret, Issuer: "someone-else"}, patientActor, time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(testJWT, wrongIssuer)
	assert.Error(t, err)

	badRole := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "5",
			Issuer:    testJWT.Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
		Role: "Doctor",
	})
	signed, err := badRole.SignedString(testJWT.Secret)
	require.NoError(t, err)
	_, err = ParseToken(testJWT, signed)
	assert.Error(t, err)
}
