// Package identity resolves session credentials into an authenticated
// user id and role.
package identity

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "github.com/ak652231/TraceQ-sub001/pkg/domain"
	dErrors "github.com/ak652231/TraceQ-sub001/pkg/domain-errors"
)

// Claims are the session token claims.
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Identity is a verified session.
type Identity struct {
	UserID    id.UserID
	Role      id.Role
	TokenID   string
	ExpiresAt time.Time
}

// Tokens signs and verifies HS256 session tokens.
type Tokens struct {
	signingKey []byte
	issuer     string
}

func NewTokens(signingKey, issuer string) *Tokens {
	return &Tokens{
		signingKey: []byte(signingKey),
		issuer:     issuer,
	}
}

// Issue mints a session token. Accounts are managed by the identity provider;
// this exists for operators and tests.
func (t *Tokens) Issue(userID id.UserID, role id.Role, expiresIn time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: userID.String(),
		Role:   role.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    t.issuer,
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(t.signingKey)
}

// Verify checks signature, issuer and expiry and resolves the identity.
//
// Errors: CodeUnauthorized for every rejected token.
func (t *Tokens) Verify(tokenString string) (*Identity, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		return t.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}

	userID, err := id.ParseUserID(claims.UserID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token subject")
	}
	role, err := id.ParseRole(claims.Role)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token role")
	}
	return &Identity{
		UserID:    userID,
		Role:      role,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
