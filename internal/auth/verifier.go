package auth

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"

	"quiz-arena-service/internal/domain"
)

// Verifier turns an opaque credential into a verified identity.
type Verifier interface {
	Verify(credential string) (domain.Identity, error)
}

// JWTVerifier validates HMAC-signed tokens carrying sub/name/active claims.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

func (v *JWTVerifier) Verify(credential string) (domain.Identity, error) {
	token, err := jwt.Parse(credential, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return domain.Identity{}, domain.ErrNotAuthenticated
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return domain.Identity{}, domain.ErrNotAuthenticated
	}

	userID, _ := claims["sub"].(string)
	if userID == "" {
		return domain.Identity{}, domain.ErrNotAuthenticated
	}
	displayName, _ := claims["name"].(string)
	if displayName == "" {
		displayName = userID
	}
	active := true
	if flag, ok := claims["active"].(bool); ok {
		active = flag
	}
	if !active {
		return domain.Identity{}, domain.ErrNotAuthenticated
	}

	return domain.Identity{UserID: userID, DisplayName: displayName, IsActive: active}, nil
}

// StaticVerifier maps fixed credentials to identities (tests and demos).
type StaticVerifier struct {
	identities map[string]domain.Identity
}

func NewStaticVerifier(identities map[string]domain.Identity) *StaticVerifier {
	return &StaticVerifier{identities: identities}
}

func (v *StaticVerifier) Verify(credential string) (domain.Identity, error) {
	identity, ok := v.identities[credential]
	if !ok || !identity.IsActive {
		return domain.Identity{}, domain.ErrNotAuthenticated
	}
	return identity, nil
}
