package service

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-planner/internal/models"
	appErrors "github.com/noah-isme/course-planner/pkg/errors"
)

func TestBridgeAuthIssueAndVerify(t *testing.T) {
	svc, err := NewBridgeAuthService(BridgeAuthConfig{Secret: "s3cret", TokenTTL: time.Hour}, nil)
	require.NoError(t, err)

	token, err := svc.Issue()
	require.NoError(t, err)
	assert.NotEmpty(t, token.SessionID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), token.ExpiresAt, 5*time.Second)

	claims, err := svc.Verify(token.Token)
	require.NoError(t, err)
	assert.Equal(t, token.SessionID, claims.SessionID)
	assert.Equal(t, BridgeIssuer, claims.Issuer)
}

func TestBridgeAuthRejectsForeignAndExpiredTokens(t *testing.T) {
	svc, err := NewBridgeAuthService(BridgeAuthConfig{Secret: "s3cret", TokenTTL: time.Minute}, nil)
	require.NoError(t, err)

	other, err := NewBridgeAuthService(BridgeAuthConfig{}, nil)
	require.NoError(t, err)
	foreign, err := other.Issue()
	require.NoError(t, err)
	_, err = svc.Verify(foreign.Token)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	token, err := svc.Issue()
	require.NoError(t, err)
	svc.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = svc.Verify(token.Token)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	_, err = svc.Verify("not-a-token")
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestBridgeAuthRejectsWrongAudienceAndAlgorithm(t *testing.T) {
	svc, err := NewBridgeAuthService(BridgeAuthConfig{Secret: "s3cret"}, nil)
	require.NoError(t, err)

	claims := &models.BridgeClaims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    BridgeIssuer,
		Audience:  jwt.ClaimStrings{"someone-else"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("s3cret"))
	require.NoError(t, err)
	_, err = svc.Verify(signed)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	claims.Audience = jwt.ClaimStrings{BridgeAudience}
	signed, err = jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("s3cret"))
	require.NoError(t, err)
	_, err = svc.Verify(signed)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestBridgeAuthWriteToken(t *testing.T) {
	svc, err := NewBridgeAuthService(BridgeAuthConfig{}, nil)
	require.NoError(t, err)
	token, err := svc.Issue()
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "data")
	path, err := svc.WriteToken(dir, token)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var stored models.BridgeToken
	require.NoError(t, json.Unmarshal(raw, &stored))
	assert.Equal(t, token.Token, stored.Token)
}
