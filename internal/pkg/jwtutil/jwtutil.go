// Package jwtutil issues and parses the access/refresh tokens used
// throughout the service. The claims carry the fields of manshu's
// JwtUtils under the JSON keys uid, username, role, org_tags
// (comma-joined) and primary_org_tag, alongside jti, the token id used
// as the session handle in internal/cache.SessionStore.
package jwtutil

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid or expired token")

type Claims struct {
	TokenID       string
	UserID        uint
	Username      string
	Role          string
	OrgTags       []string
	PrimaryOrgTag string
	ExpiresAt     time.Time
}

type customClaims struct {
	TokenID       string `json:"jti"`
	UserID        uint   `json:"uid"`
	Username      string `json:"username"`
	Role          string `json:"role"`
	OrgTags       string `json:"org_tags"`
	PrimaryOrgTag string `json:"primary_org_tag"`
	jwt.RegisteredClaims
}

// GenerateToken mints a signed token carrying the session's identity
// and authorization claims. tokenID is used verbatim as the session
// handle everywhere else in the service.
func GenerateToken(secret string, expiration time.Duration, tokenID string, userID uint, username, role string, orgTags []string, primaryOrgTag string) (string, error) {
	now := time.Now()
	claims := customClaims{
		TokenID:       tokenID,
		UserID:        userID,
		Username:      username,
		Role:          role,
		OrgTags:       strings.Join(orgTags, ","),
		PrimaryOrgTag: primaryOrgTag,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiration)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token failed: %w", err)
	}
	return signed, nil
}

func ParseToken(secret, raw string) (*Claims, error) {
	var parsed customClaims
	token, err := jwt.ParseWithClaims(raw, &parsed, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	var expiresAt time.Time
	if parsed.ExpiresAt != nil {
		expiresAt = parsed.ExpiresAt.Time
	}

	return &Claims{
		TokenID:       parsed.TokenID,
		UserID:        parsed.UserID,
		Username:      parsed.Username,
		Role:          parsed.Role,
		OrgTags:       splitNonEmpty(parsed.OrgTags),
		PrimaryOrgTag: parsed.PrimaryOrgTag,
		ExpiresAt:     expiresAt,
	}, nil
}

// NewTokenID mints a process-unique token identifier. Grounded on the
// same "clock value plus counter" shape manshu's JwtUtils uses for
// generateTokenId, without reaching for a UUID dependency the corpus
// doesn't carry for this purpose.
func NewTokenID(seq uint64) string {
	return "tok_" + strconv.FormatInt(time.Now().UnixNano(), 36) + "_" + strconv.FormatUint(seq, 36)
}

func splitNonEmpty(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
