package registration

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "mentora/pkg/domain-errors"
)

// tokenPurpose scopes the status token so it cannot be replayed against any
// other endpoint that accepts JWTs.
const tokenPurpose = "registration_status"

// Claims carried by the status token. The subject is the user id; no other
// state is embedded, which keeps the token valid regardless of how far the
// saga has progressed.
type Claims struct {
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// TokenService mints and verifies the stateless registration status token.
type TokenService struct {
	signingKey []byte
	ttl        time.Duration
	now        func() time.Time
}

func NewTokenService(signingKey string, ttl time.Duration) *TokenService {
	return &TokenService{
		signingKey: []byte(signingKey),
		ttl:        ttl,
		now:        time.Now,
	}
}

// Mint issues a status token for the given user.
func (s *TokenService) Mint(userID uuid.UUID) (string, error) {
	now := s.now()
	claims := Claims{
		Purpose: tokenPurpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(s.signingKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "sign status token")
	}
	return signed, nil
}

// Verify checks the token's signature, expiry, and purpose, returning the
// user id it was minted for.
func (s *TokenService) Verify(token string) (uuid.UUID, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return s.signingKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid status token")
	}
	if claims.Purpose != tokenPurpose {
		return uuid.Nil, dErrors.New(dErrors.CodeUnauthorized, "token purpose mismatch")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid token subject")
	}
	return userID, nil
}
