package identity

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Roles a participant token can carry.
const (
	RoleHost = "host"
	RoleTeam = "team"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Claims bind a participant to one session. A token for one code cannot be
// replayed against another.
type Claims struct {
	ParticipantID uuid.UUID `json:"participant_id"`
	SessionCode   string    `json:"session_code"`
	DisplayName   string    `json:"display_name"`
	Role          string    `json:"role"`
	jwt.RegisteredClaims
}

// TokenConfig holds signing configuration for participant tokens.
type TokenConfig struct {
	Secret []byte
	TTL    time.Duration // default: 12 hours, outliving any session
	Issuer string
}

// Manager mints and validates session-scoped participant tokens.
type Manager struct {
	secret []byte
	ttl    time.Duration
	issuer string
}

// NewManager creates a token manager.
func NewManager(cfg TokenConfig) *Manager {
	if cfg.TTL == 0 {
		cfg.TTL = 12 * time.Hour
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "classrally"
	}

	return &Manager{
		secret: cfg.Secret,
		ttl:    cfg.TTL,
		issuer: cfg.Issuer,
	}
}

// Participant is the identity a token is minted for.
type Participant struct {
	ID          uuid.UUID
	SessionCode string
	DisplayName string
	Role        string
}

// Mint creates a signed token for the participant.
func (m *Manager) Mint(p Participant) (string, error) {
	now := time.Now()
	claims := Claims{
		ParticipantID: p.ID,
		SessionCode:   p.SessionCode,
		DisplayName:   p.DisplayName,
		Role:          p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   p.ID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Validate parses a token and checks its signature and lifetime.
func (m *Manager) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Role != RoleHost && claims.Role != RoleTeam {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// ValidateFor validates a token and additionally checks the session binding.
func (m *Manager) ValidateFor(tokenString, sessionCode string) (*Claims, error) {
	claims, err := m.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.SessionCode != sessionCode {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
