package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hirelane/proctor-backend/internal/config"
	"github.com/hirelane/proctor-backend/internal/model"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

// Common auth errors.
var (
	ErrInvalidAccessCode = errors.New("invalid access code")
)

// Claims extends JWT standard claims with the candidate session fields.
type Claims struct {
	jwt.RegisteredClaims
	InvitationID uuid.UUID `json:"invitation_id"`
	TestID       uuid.UUID `json:"test_id"`
	Email        string    `json:"email"`
}

// AuthService mints and validates candidate session tokens. Claiming an
// invitation twice replaces the previous session: only the most recent
// token's JTI is honored, so a reload keeps working while a second device
// silently invalidates the first.
type AuthService struct {
	cfg *config.Config
	rdb *redis.Client
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg *config.Config, rdb *redis.Client) *AuthService {
	return &AuthService{cfg: cfg, rdb: rdb}
}

// HashAccessCode hashes an invitation access code with the configured bcrypt cost.
func (s *AuthService) HashAccessCode(code string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.cfg.BcryptCost)
	return string(hash), err
}

// CheckAccessCode compares a plaintext access code against a bcrypt hash.
// An empty stored hash means the invitation carries no access code.
func (s *AuthService) CheckAccessCode(hash, code string) error {
	if hash == "" {
		return nil
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)); err != nil {
		return ErrInvalidAccessCode
	}
	return nil
}

// MintSessionToken creates a JWT for a claimed invitation and registers the
// session JTI in Redis.
func (s *AuthService) MintSessionToken(ctx context.Context, inv *model.Invitation) (string, error) {
	jti := uuid.New().String()
	now := time.Now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   inv.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.SessionTokenTTL)),
		},
		InvitationID: inv.ID,
		TestID:       inv.TestID,
		Email:        inv.CandidateEmail,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	sessionKey := config.CacheKey.CandidateSessionKey(inv.ID.String())
	if err := s.rdb.Set(ctx, sessionKey, jti, s.cfg.SessionTokenTTL).Err(); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}

	return signed, nil
}

// ValidateToken parses and validates a JWT, returning the claims.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	return claims, nil
}

// ValidateSession checks that the token's JTI matches the most recent claim.
func (s *AuthService) ValidateSession(ctx context.Context, invitationID uuid.UUID, jti string) error {
	sessionKey := config.CacheKey.CandidateSessionKey(invitationID.String())
	stored, err := s.rdb.Get(ctx, sessionKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return errors.New("no active session")
		}
		return fmt.Errorf("check session: %w", err)
	}
	if stored != jti {
		return errors.New("session invalidated")
	}
	return nil
}
