package service

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/course-planner/internal/models"
	appErrors "github.com/noah-isme/course-planner/pkg/errors"
)

const (
	BridgeIssuer    = "course-planner"
	BridgeAudience  = "bridge"
	BridgeTokenFile = "bridge-token.json"
)

// BridgeAuthConfig holds the signing settings of the bridge token.
type BridgeAuthConfig struct {
	Secret   string
	TokenTTL time.Duration
}

// BridgeAuthService mints and verifies the HS256 token guarding the loopback bridge.
type BridgeAuthService struct {
	secret []byte
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// NewBridgeAuthService constructs the service. An empty secret is replaced by
// 32 random bytes, so tokens do not outlive the process.
func NewBridgeAuthService(cfg BridgeAuthConfig, logger *zap.Logger) (*BridgeAuthService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 12 * time.Hour
	}
	secret := []byte(cfg.Secret)
	if len(secret) == 0 {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("generate bridge secret: %w", err)
		}
		secret = []byte(base64.RawURLEncoding.EncodeToString(buf))
	}
	return &BridgeAuthService{secret: secret, ttl: cfg.TokenTTL, logger: logger, now: time.Now}, nil
}

// Issue mints a new bridge token.
func (s *BridgeAuthService) Issue() (*models.BridgeToken, error) {
	issuedAt := s.now().UTC()
	expiresAt := issuedAt.Add(s.ttl)
	sessionID := uuid.NewString()
	claims := &models.BridgeClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    BridgeIssuer,
			Subject:   sessionID,
			Audience:  jwt.ClaimStrings{BridgeAudience},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign bridge token: %w", err)
	}
	return &models.BridgeToken{Token: signed, SessionID: sessionID, ExpiresAt: expiresAt}, nil
}

// Verify parses and validates a bridge token returning the claims.
func (s *BridgeAuthService) Verify(tokenString string) (*models.BridgeClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.BridgeClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithIssuer(BridgeIssuer),
		jwt.WithAudience(BridgeAudience),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid bridge token")
	}

	claims, ok := token.Claims.(*models.BridgeClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid bridge token claims")
	}
	return claims, nil
}

// WriteToken stores the token as JSON in dir, readable by the owner only,
// and returns the file path.
func (s *BridgeAuthService) WriteToken(dir string, token *models.BridgeToken) (string, error) {
	if token == nil {
		return "", fmt.Errorf("bridge token is nil")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create token directory: %w", err)
	}
	payload, err := json.Marshal(token)
	if err != nil {
		return "", fmt.Errorf("encode bridge token: %w", err)
	}
	path := filepath.Join(dir, BridgeTokenFile)
	if err := os.WriteFile(path, payload, 0o600); err != nil {
		return "", fmt.Errorf("write bridge token: %w", err)
	}
	s.logger.Info("bridge token written", zap.String("path", path), zap.Time("expires_at", token.ExpiresAt))
	return path, nil
}
