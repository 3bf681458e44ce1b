package auth

import (
	"errors"
	"fmt"

	"github.com/amoreldmija/hospital/models"
	"github.com/amoreldmija/hospital/services"
	"github.com/golang-jwt/jwt/v5"
)

// tokenSigner issues and parses HS256 session tokens. The token id (jti) is
// the session row id.
type tokenSigner struct {
	secret []byte
	issuer string
}

func newTokenSigner(secret []byte, issuer string) *tokenSigner {
	return &tokenSigner{secret: secret, issuer: issuer}
}

func (s *tokenSigner) sign(session *models.AuthSession) (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:    s.issuer,
		Subject:   session.UID,
		ID:        session.ID,
		IssuedAt:  jwt.NewNumericDate(session.CreatedAt),
		ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// parse verifies the signature and issuer. Expiry is enforced only when
// checkExpiry is set.
func (s *tokenSigner) parse(token string, checkExpiry bool) (*jwt.RegisteredClaims, error) {
	if token == "" {
		return nil, services.ErrInvalidToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
	}
	if checkExpiry {
		opts = append(opts, jwt.WithExpirationRequired())
	} else {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, services.ErrTokenExpired
		}
		return nil, services.NewDomainError(services.ErrorTypeAuthentication, "invalid session token", err)
	}

	switch {
	case claims.Issuer != s.issuer:
		return nil, services.NewDomainError(services.ErrorTypeAuthentication, "invalid session token", fmt.Errorf("issuer %q", claims.Issuer))
	case claims.Subject == "" || claims.ID == "":
		return nil, services.NewDomainError(services.ErrorTypeAuthentication, "invalid session token", errors.New("missing sub or jti"))
	}
	return claims, nil
}
