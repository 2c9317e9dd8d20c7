// Package auth talks to GitHub and signs the session cookie.
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. GET /login → GitHubProvider.AuthURL redirects the browser to GitHub
//  2. GitHub calls back /login/authorized with a code (or an error)
//  3. GitHubProvider.Exchange trades the code for an access token
//  4. GitHubProvider.ResolveIdentity fetches the login behind the token
//  5. MembershipVerifier.Verify checks the login against the organization
//  6. Only then does the session package persist a session and set a cookie
//     holding a JWT whose subject is the session ID
//
// WHY A JWT FOR THE COOKIE?
// The cookie only carries the session ID. Signing it means a forged or
// tampered cookie is rejected before any database lookup, and the expiry is
// enforced by the token itself. The access token never leaves the server.
//
// WHY NOT A FULLY STATELESS JWT?
// A stateless token cannot be revoked: logout or a failed membership check
// would leave a valid cookie behind until it expired. Here the JWT is only
// the envelope. The session row is the source of truth, so deleting the row
// ends the session even while the signature is still good.
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: algorithm + token type → {"alg":"HS256","typ":"JWT"}
//	- Payload: claims → {"sub":"<session id>","iss":"closet-organizer","exp":1234567890}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "closet-organizer"

// TokenService signs and validates session cookies.
//
// It holds the HMAC secret used for both operations. The same secret also
// feeds the token Sealer through HKDF, so rotating APP_SECRET_KEY logs
// everyone out and makes every stored access token unreadable at once.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService with the given secret and lifetime.
// The secret should be at least 32 bytes of random data in production.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: session secret must be at least 16 characters")
	}
	if ttl <= 0 {
		return nil, errors.New("auth: session TTL must be positive")
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// TTL is the lifetime of tokens issued by Generate.
func (s *TokenService) TTL() time.Duration { return s.ttl }

// claims is the JWT payload. Only registered claims are used:
//   - sub: the session ID (never the GitHub login or token)
//   - iss: fixed, so a token minted by another app sharing the secret is refused
//   - iat/exp: issue and expiry time; exp is required on validation
type claims struct {
	jwt.RegisteredClaims
}

// Generate signs a token for sessionID that expires after the configured TTL.
func (s *TokenService) Generate(sessionID string) (string, error) {
	return s.GenerateWithDuration(sessionID, s.ttl)
}

// GenerateWithDuration signs a token with a custom expiry. Tests use it to
// mint already-expired tokens.
func (s *TokenService) GenerateWithDuration(sessionID string, d time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a token and returns the session ID in "sub".
//
// Only HS256 is accepted, which rules out alg=none and key-confusion tokens.
func (s *TokenService) Validate(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("auth: token expired")
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("auth: invalid token claims")
	}

	if c.Subject == "" {
		return "", fmt.Errorf("auth: token has no subject")
	}

	return c.Subject, nil
}
