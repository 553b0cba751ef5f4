package account

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/danghamo/accountd/internal/domain/shared"
)

// JWTClaims carries the account an external identity source signed in
type JWTClaims struct {
	AccountKey string `json:"account_key"`
	Name       string `json:"name"`
	jwt.RegisteredClaims
}

// JWTService turns tokens issued by the identity source into signed-in identities
type JWTService struct {
	secretKey      []byte
	issuer         string
	expiryDuration time.Duration
	filesRoot      string
}

// NewJWTService creates a new JWT service
func NewJWTService(secretKey string, issuer string, expiryDuration time.Duration, filesRoot string) *JWTService {
	return &JWTService{
		secretKey:      []byte(secretKey),
		issuer:         issuer,
		expiryDuration: expiryDuration,
		filesRoot:      filesRoot,
	}
}

// GenerateToken issues a token for an account key and display name
func (s *JWTService) GenerateToken(accountKey, name string) (string, error) {
	if accountKey == "" {
		return "", shared.ErrInvalidInput("Account key cannot be empty")
	}

	now := time.Now()
	claims := JWTClaims{
		AccountKey: accountKey,
		Name:       name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   accountKey,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiryDuration)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secretKey)
}

// ValidateToken validates a JWT token and returns the claims
func (s *JWTService) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(s.issuer))
	if err != nil {
		return nil, shared.WrapDomainError(err, shared.ErrCodeInvalidToken, "Invalid or expired token")
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, shared.NewDomainError(shared.ErrCodeInvalidToken, "Invalid token claims")
	}

	return claims, nil
}

// IdentityFromToken validates a token and returns the signed-in identity it names
func (s *JWTService) IdentityFromToken(tokenString string) (Identity, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return Identity{}, err
	}

	return NewIdentity(claims.AccountKey, claims.Name, true, WithFilesRoot(s.filesRoot))
}
