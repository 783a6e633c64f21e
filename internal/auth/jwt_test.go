package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestTokenRoundTrip(t *testing.T) {
	req := require.New(t)

	userID := uuid.New()
	token, err := GenerateToken(userID, "alice", true, testSecret, time.Hour)
	req.NoError(err)

	claims, err := ParseToken(token, testSecret)
	req.NoError(err)
	req.Equal(userID, claims.UserID)
	req.Equal("alice", claims.Username)
	req.True(claims.IsStaff)
	req.Equal("parley", claims.Issuer)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken(uuid.New(), "alice", false, testSecret, time.Hour)
	req.NoError(err)

	_, err = ParseToken(token, "other-secret")
	req.Error(err)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken(uuid.New(), "alice", false, testSecret, -time.Minute)
	req.NoError(err)

	_, err = ParseToken(token, testSecret)
	req.Error(err)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := ParseToken("not.a.token", testSecret)
	require.Error(t, err)
}
