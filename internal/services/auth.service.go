package services

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const tokenIssuer = "scopeboard"

// AuthService manages JWT tokens for editors of dashboard settings
type AuthService struct {
	secretKey   string
	tokenExpiry time.Duration
}

// EditorClaims represents the JWT claims structure
type EditorClaims struct {
	Editor string `json:"editor"`
	jwt.RegisteredClaims
}

// NewAuthService initializes the authentication service. Without a
// configured secret a random one is generated and persisted to keyFile so
// tokens survive restarts.
func NewAuthService(secretKey, keyFile string, tokenExpiry time.Duration, logger *zap.Logger) (*AuthService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	secretKey = strings.TrimSpace(secretKey)
	if secretKey == "" {
		if keyFile == "" {
			homeDir, _ := os.UserHomeDir()
			if homeDir == "" {
				homeDir = os.TempDir()
			}
			keyFile = filepath.Join(homeDir, ".scopeboard-secret-key")
		}

		if data, err := os.ReadFile(keyFile); err == nil && len(strings.TrimSpace(string(data))) >= 32 {
			secretKey = strings.TrimSpace(string(data))
			logger.Info("loaded persisted secret key", zap.String("file", keyFile))
		} else {
			randomBytes := make([]byte, 32)
			if _, err := rand.Read(randomBytes); err != nil {
				return nil, fmt.Errorf("generate secret key: %w", err)
			}
			secretKey = hex.EncodeToString(randomBytes)
			if err := os.WriteFile(keyFile, []byte(secretKey), 0600); err != nil {
				logger.Warn("could not persist secret key", zap.String("file", keyFile), zap.Error(err))
			} else {
				logger.Info("generated and persisted secret key", zap.String("file", keyFile))
			}
		}
	}

	// HMAC-SHA256 wants at least 32 bytes
	if len(secretKey) < 32 {
		return nil, fmt.Errorf("secret key is only %d bytes, need at least 32", len(secretKey))
	}
	if tokenExpiry == 0 {
		tokenExpiry = 24 * time.Hour
	}

	return &AuthService{secretKey: secretKey, tokenExpiry: tokenExpiry}, nil
}

// GenerateToken creates a new JWT token for an editor
func (a *AuthService) GenerateToken(editor string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(a.tokenExpiry)

	claims := EditorClaims{
		Editor: editor,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(a.secretKey))
	if err != nil {
		return "", time.Time{}, err
	}

	return tokenString, expiresAt, nil
}

// ValidateToken verifies and parses a JWT token
func (a *AuthService) ValidateToken(tokenString string) (*EditorClaims, error) {
	claims := &EditorClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(a.secretKey), nil
	}, jwt.WithIssuer(tokenIssuer))

	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return claims, nil
}
