package usertoken

import (
	"errors"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const defaultLeeway = 30 * time.Second

// Inspector reads claims from bearer tokens issued by the remote API without
// verifying them. The console holds no signing keys; the API stays the only
// authority on token validity. Inspection is only used to drop a persisted
// session whose token has visibly expired.
type Inspector struct {
	leeway time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

// NewInspector creates an inspector. leeway <= 0 uses a 30s default.
func NewInspector(leeway time.Duration) *Inspector {
	if leeway <= 0 {
		leeway = defaultLeeway
	}
	return &Inspector{
		leeway: leeway,
		now:    time.Now,
		parser: jwt.NewParser(),
	}
}

// ExpiresAt returns the exp claim. ok is false for opaque (non-JWT) tokens
// and JWTs without exp.
func (i *Inspector) ExpiresAt(token string) (time.Time, bool) {
	token = strings.TrimSpace(token)
	if strings.Count(token, ".") != 2 {
		return time.Time{}, false
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := i.parser.ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// Subject returns the sub claim, if any.
func (i *Inspector) Subject(token string) string {
	claims := jwt.RegisteredClaims{}
	if _, _, err := i.parser.ParseUnverified(strings.TrimSpace(token), &claims); err != nil {
		return ""
	}
	return strings.TrimSpace(claims.Subject)
}

// ErrExpired is returned by Check for tokens past their exp claim.
var ErrExpired = errors.New("token expired")

// Check returns ErrExpired when token is a JWT whose expiry (plus leeway) has
// passed. Opaque tokens always pass.
func (i *Inspector) Check(token string) error {
	exp, ok := i.ExpiresAt(token)
	if !ok {
		return nil
	}
	if i.now().After(exp.Add(i.leeway)) {
		return ErrExpired
	}
	return nil
}
