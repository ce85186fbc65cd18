// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Options configures a Validator. Exactly one of Secret and JWKSURL must
// be set.
type Options struct {
	// Secret is the HS256 signing secret.
	Secret string

	// JWKSURL is fetched and cached for asymmetric keys.
	JWKSURL string

	// RefreshInterval is the minimum JWKS refresh interval. Default: 15m.
	RefreshInterval time.Duration

	// Issuer and Audience are checked when non-empty.
	Issuer   string
	Audience string

	// Clock overrides the validation time source.
	Clock func() time.Time

	// HTTPClient fetches the JWKS. Default: http.DefaultClient.
	HTTPClient HTTPClient
}

// HTTPClient is the client used to fetch key sets.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// getClient adapts an HTTPClient to the Get-only client the JWKS cache
// fetches with.
type getClient struct {
	HTTPClient
}

func (c getClient) Get(url string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

// Validator validates JWTs and extracts Claims.
type Validator struct {
	secret  jwk.Key
	cache   *jwk.Cache
	jwksURL string
	opts    Options
}

// NewValidator creates a Validator. With JWKSURL set, the key set is
// fetched once to validate the configuration.
func NewValidator(ctx context.Context, opts Options) (*Validator, error) {
	switch {
	case opts.Secret != "" && opts.JWKSURL != "":
		return nil, fmt.Errorf("only one of secret and jwks_url may be set")
	case opts.Secret == "" && opts.JWKSURL == "":
		return nil, fmt.Errorf("secret or jwks_url is required")
	}

	v := &Validator{opts: opts}

	if opts.Secret != "" {
		key, err := jwk.FromRaw([]byte(opts.Secret))
		if err != nil {
			return nil, fmt.Errorf("failed to build HMAC key: %w", err)
		}
		v.secret = key
		return v, nil
	}

	interval := opts.RefreshInterval
	if interval == 0 {
		interval = 15 * time.Minute
	}

	registerOpts := []jwk.RegisterOption{jwk.WithMinRefreshInterval(interval)}
	if opts.HTTPClient != nil {
		registerOpts = append(registerOpts, jwk.WithHTTPClient(getClient{opts.HTTPClient}))
	}

	cache := jwk.NewCache(ctx)
	if err := cache.Register(opts.JWKSURL, registerOpts...); err != nil {
		return nil, fmt.Errorf("failed to register JWKS URL: %w", err)
	}
	if _, err := cache.Refresh(ctx, opts.JWKSURL); err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS from %s: %w", opts.JWKSURL, err)
	}
	v.cache = cache
	v.jwksURL = opts.JWKSURL
	return v, nil
}

// Validate verifies the signature, expiry, issuer and audience of a token
// and returns its claims.
func (v *Validator) Validate(ctx context.Context, tokenString string) (*Claims, error) {
	parseOpts := []jwt.ParseOption{
		jwt.WithValidate(true),
		jwt.WithAcceptableSkew(30 * time.Second),
	}
	if v.opts.Issuer != "" {
		parseOpts = append(parseOpts, jwt.WithIssuer(v.opts.Issuer))
	}
	if v.opts.Audience != "" {
		parseOpts = append(parseOpts, jwt.WithAudience(v.opts.Audience))
	}
	if v.opts.Clock != nil {
		parseOpts = append(parseOpts, jwt.WithClock(jwt.ClockFunc(v.opts.Clock)))
	}

	if v.secret != nil {
		parseOpts = append(parseOpts, jwt.WithKey(jwa.HS256, v.secret))
	} else {
		keyset, err := v.cache.Get(ctx, v.jwksURL)
		if err != nil {
			return nil, fmt.Errorf("failed to get JWKS: %w", err)
		}
		parseOpts = append(parseOpts, jwt.WithKeySet(keyset))
	}

	token, err := jwt.Parse([]byte(tokenString), parseOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if token.Subject() == "" {
		return nil, fmt.Errorf("%w: sub", ErrMissingClaims)
	}

	return claimsFromToken(ctx, token), nil
}

var registeredClaims = map[string]bool{
	jwt.SubjectKey:    true,
	jwt.IssuerKey:     true,
	jwt.AudienceKey:   true,
	jwt.ExpirationKey: true,
	jwt.IssuedAtKey:   true,
	jwt.NotBeforeKey:  true,
	jwt.JwtIDKey:      true,
	"email":           true,
	"role":            true,
}

func claimsFromToken(ctx context.Context, token jwt.Token) *Claims {
	claims := &Claims{
		Subject: token.Subject(),
		Custom:  make(map[string]any),
	}

	if email, ok := token.Get("email"); ok {
		claims.Email, _ = email.(string)
	}
	if role, ok := token.Get("role"); ok {
		claims.Role, _ = role.(string)
	}
	if meta, ok := token.Get("app_metadata"); ok {
		if m, ok := meta.(map[string]any); ok {
			if role, ok := m["role"].(string); ok && role != "" {
				claims.Role = role
			}
		}
	}

	for iter := token.Iterate(ctx); iter.Next(ctx); {
		pair := iter.Pair()
		key, ok := pair.Key.(string)
		if !ok || registeredClaims[key] {
			continue
		}
		claims.Custom[key] = pair.Value
	}

	return claims
}
