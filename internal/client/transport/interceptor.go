// Package transport is the portal API client: an http.RoundTripper that
// attaches the session's credentials and reacts to rejected ones, and a typed
// Client for the /auth endpoints.
package transport

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/youthcouncil/portal/internal/client/session"
)

const (
	DefaultAPIPrefix = "/api"
	HeaderActiveRole = "X-Active-Role"
)

// Interceptor decorates every outgoing request with the stored bearer token
// and active role. A 401 response clears the stored session before it is
// handed back to the caller.
type Interceptor struct {
	Base         http.RoundTripper
	Durable      session.Store
	SessionScope session.Store
	// APIPrefix is collapsed when it appears twice at the start of a path.
	APIPrefix string
	// OnUnauthorized runs after the stores were cleared, typically
	// Manager.Reload.
	OnUnauthorized func()
	Log            zerolog.Logger
}

func (t *Interceptor) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	out.URL.Path = collapsePrefix(out.URL.Path, t.prefix())
	if out.URL.RawPath != "" {
		out.URL.RawPath = collapsePrefix(out.URL.RawPath, t.prefix())
	}

	if out.Header.Get("Authorization") == "" {
		if token := t.token(); token != "" {
			out.Header.Set("Authorization", "Bearer "+token)
		}
	}
	if out.Header.Get(HeaderActiveRole) == "" && t.Durable != nil {
		if role, ok, _ := t.Durable.Get(session.KeyActiveRole); ok && role != "" {
			out.Header.Set(HeaderActiveRole, role)
		}
	}

	resp, err := t.base().RoundTrip(out)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		t.clear(out)
	}
	return resp, nil
}

func (t *Interceptor) clear(req *http.Request) {
	if t.SessionScope != nil {
		if err := t.SessionScope.Delete(session.KeyAuthUser); err != nil {
			t.Log.Warn().Err(err).Msg("clear session scope")
		}
	}
	if t.Durable != nil {
		if err := t.Durable.Delete(session.KeyAuthUser, session.KeyActiveRole); err != nil {
			t.Log.Warn().Err(err).Msg("clear durable session")
		}
	}
	t.Log.Info().Str("path", req.URL.Path).Msg("session rejected by server, signed out")
	if t.OnUnauthorized != nil {
		t.OnUnauthorized()
	}
}

// token prefers the session scope over the durable one.
func (t *Interceptor) token() string {
	for _, s := range []session.Store{t.SessionScope, t.Durable} {
		if s == nil {
			continue
		}
		raw, ok, err := s.Get(session.KeyAuthUser)
		if err != nil || !ok {
			continue
		}
		var stored struct {
			Token string `json:"token"`
		}
		if json.Unmarshal([]byte(raw), &stored) == nil && stored.Token != "" {
			return stored.Token
		}
	}
	return ""
}

func (t *Interceptor) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Interceptor) prefix() string {
	if t.APIPrefix == "" {
		return DefaultAPIPrefix
	}
	return "/" + strings.Trim(t.APIPrefix, "/")
}

// collapsePrefix rewrites /api/api/x to /api/x, however many times the
// prefix was repeated.
func collapsePrefix(path, prefix string) string {
	double := prefix + prefix
	for path == double || strings.HasPrefix(path, double+"/") {
		path = path[len(prefix):]
	}
	return path
}
