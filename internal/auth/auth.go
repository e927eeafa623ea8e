// Package auth resolves the verified user behind a request.
//
// Sign-in happens elsewhere; this package only checks the credential a client
// presents and puts the resulting user id on the request context.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/supabase-community/gotrue-go"
)

var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInvalidConfig    = errors.New("invalid identity configuration")
	ErrInvalidDriver    = errors.New("invalid identity driver")
	errMissingBearer    = fmt.Errorf("%w: missing bearer token", ErrUnauthorized)
	errMissingUserIDHdr = fmt.Errorf("%w: missing %s header", ErrUnauthorized, UserIDHeader)
)

const (
	DriverHeader   = "header"
	DriverSupabase = "supabase"

	// UserIDHeader carries a pre-verified user id when the header driver is used.
	UserIDHeader = "X-User-ID"

	maxUserIDLength = 128
)

// Verifier yields the user id behind a request or an error wrapping ErrUnauthorized.
type Verifier interface {
	Verify(r *http.Request) (string, error)
}

type options struct {
	supabaseURL    string
	supabaseAPIKey string
	logger         *slog.Logger
}

// Option configures NewVerifier.
type Option func(*options)

// WithSupabase sets the project URL and anon key for the supabase driver.
func WithSupabase(url, apiKey string) Option {
	return func(o *options) {
		o.supabaseURL = strings.TrimRight(url, "/")
		o.supabaseAPIKey = apiKey
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// NewVerifier returns the verifier for driver.
func NewVerifier(driver string, opts ...Option) (Verifier, error) {
	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}

	switch driver {
	case DriverHeader, "":
		return HeaderVerifier{}, nil
	case DriverSupabase:
		if o.supabaseURL == "" || o.supabaseAPIKey == "" {
			return nil, fmt.Errorf("%w: supabase url and api key are required", ErrInvalidConfig)
		}
		return &SupabaseVerifier{
			authURL: o.supabaseURL + "/auth/v1",
			apiKey:  o.supabaseAPIKey,
			logger:  o.logger.With("component", "auth"),
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidDriver, driver)
	}
}

// HeaderVerifier trusts the X-User-ID header. Only for development and tests,
// or behind a proxy that sets the header itself.
type HeaderVerifier struct{}

func (HeaderVerifier) Verify(r *http.Request) (string, error) {
	id := strings.TrimSpace(r.Header.Get(UserIDHeader))
	if id == "" {
		return "", errMissingUserIDHdr
	}
	if len(id) > maxUserIDLength {
		return "", fmt.Errorf("%w: user id too long", ErrUnauthorized)
	}
	return id, nil
}

// SupabaseVerifier checks a Supabase access token against the GoTrue /user endpoint.
type SupabaseVerifier struct {
	authURL string
	apiKey  string
	logger  *slog.Logger
}

func (v *SupabaseVerifier) Verify(r *http.Request) (string, error) {
	token, ok := bearerToken(r)
	if !ok {
		return "", errMissingBearer
	}

	client := gotrue.New("", v.apiKey).
		WithCustomGoTrueURL(v.authURL).
		WithToken(token)

	user, err := client.GetUser()
	if err != nil {
		v.logger.Debug("token rejected", "error", err)
		return "", fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return user.ID.String(), nil
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(h[len(prefix):])
	return token, token != ""
}

type contextKey struct{}

// WithUser returns a context carrying userID.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKey{}, userID)
}

// UserFromContext returns the user id set by RequireUser.
func UserFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(contextKey{}).(string)
	return id, ok && id != ""
}

// RequireUser rejects requests the verifier cannot attribute to a user.
func RequireUser(v Verifier, logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := v.Verify(r)
		if err != nil {
			logger.Debug("unauthorized request", "path", r.URL.Path, "error", err)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized"})
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), userID)))
	})
}
