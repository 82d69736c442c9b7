// Package auth implements the single-admin login: password check, signed
// session tokens and the cookie that carries them.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// CookieName is the session cookie set on login.
const CookieName = "auth-token"

const (
	hashCost  = 12
	issuer    = "techblog"
	roleAdmin = "admin"
)

var (
	ErrNoSecret     = errors.New("token signing secret not set")
	ErrInvalidToken = errors.New("invalid token")
)

// User is the authenticated identity.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// IsAdmin reports whether u holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == roleAdmin
}

type claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Options configures an Authenticator.
type Options struct {
	// Password is either plain text or a bcrypt hash.
	Password     string
	Secret       string
	TTL          time.Duration
	Email        string
	SecureCookie bool
}

// Authenticator checks credentials and issues session tokens.
type Authenticator struct {
	opts Options
	now  func() time.Time
}

// New creates an Authenticator. A signing secret is required.
func New(opts Options) (*Authenticator, error) {
	if opts.Secret == "" {
		return nil, ErrNoSecret
	}
	if opts.TTL <= 0 {
		opts.TTL = 7 * 24 * time.Hour
	}
	return &Authenticator{opts: opts, now: time.Now}, nil
}

// Admin returns the admin identity.
func (a *Authenticator) Admin() User {
	return User{ID: "admin-001", Username: "admin", Email: a.opts.Email, Role: roleAdmin}
}

// VerifyPassword compares password against the configured one. An unset
// password never matches.
func (a *Authenticator) VerifyPassword(password string) bool {
	want := a.opts.Password
	if want == "" || password == "" {
		return false
	}
	if isBcrypt(want) {
		return bcrypt.CompareHashAndPassword([]byte(want), []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(password)) == 1
}

func isBcrypt(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

// HashPassword returns a bcrypt hash suitable for the admin password variable.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), hashCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// IssueToken signs a token for u that expires after the configured TTL.
func (a *Authenticator) IssueToken(u User) (string, error) {
	now := a.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Username: u.Username,
		Role:     u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.opts.TTL)),
		},
	})
	signed, err := token.SignedString([]byte(a.opts.Secret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// ParseToken validates a token and returns its user.
func (a *Authenticator) ParseToken(raw string) (*User, error) {
	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(t *jwt.Token) (any, error) {
		return []byte(a.opts.Secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if c.Subject == "" || c.Username == "" || c.Role == "" {
		return nil, fmt.Errorf("%w: missing claims", ErrInvalidToken)
	}
	return &User{ID: c.Subject, Username: c.Username, Email: a.opts.Email, Role: c.Role}, nil
}

// SetCookie stores token in the session cookie.
func (a *Authenticator) SetCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, a.cookie(token, int(a.opts.TTL.Seconds())))
}

// ClearCookie expires the session cookie.
func (a *Authenticator) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, a.cookie("", -1))
}

func (a *Authenticator) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   a.opts.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	}
}

// UserFromRequest returns the user carried by the request's session cookie,
// or nil when there is none or it does not validate.
func (a *Authenticator) UserFromRequest(r *http.Request) *User {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return nil
	}
	u, err := a.ParseToken(c.Value)
	if err != nil {
		return nil
	}
	return u
}

type ctxKey struct{}

// WithUser attaches u to ctx.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// FromContext returns the user attached by WithUser, if any.
func FromContext(ctx context.Context) *User {
	u, _ := ctx.Value(ctxKey{}).(*User)
	return u
}
