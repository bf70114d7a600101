package guard

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/youthcouncil/portal/internal/client/session"
	"github.com/youthcouncil/portal/internal/client/transport"
	"github.com/youthcouncil/portal/internal/core/domain"
)

func snap(p *domain.Principal, active string) session.Snapshot {
	return session.Snapshot{Principal: p, ActiveRole: active}
}

var (
	superOfficial = &domain.Principal{ID: "1", UserType: domain.UserTypeOfficial, Roles: []string{domain.RoleSuperOfficial}}
	roleless      = &domain.Principal{ID: "2", UserType: domain.UserTypeOfficial, Roles: []string{}}
	youthMember   = &domain.Principal{ID: "3", UserType: domain.UserTypeYouth, Roles: []string{domain.RoleYouth}}
)

func TestGuestOnly(t *testing.T) {
	cases := []struct {
		name string
		s    session.Snapshot
		want Decision
	}{
		{"signed out renders", snap(nil, ""), Decision{Action: Render}},
		{"signed in with role goes home", snap(superOfficial, domain.RoleSuperOfficial), Decision{Action: Redirect, To: PathHome}},
		{"signed in without role renders", snap(roleless, ""), Decision{Action: Render}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := GuestOnly(tc.s); got != tc.want {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestAuthenticated(t *testing.T) {
	cases := []struct {
		name    string
		s       session.Snapshot
		path    string
		allowed []string
		want    Decision
	}{
		{"signed out keeps origin", snap(nil, ""), "/events", nil, Decision{Action: Redirect, To: PathLogin, From: "/events"}},
		{"no roles goes to setup", snap(roleless, ""), "/events", nil, Decision{Action: Redirect, To: PathRoleSetup, From: "/events"}},
		{"no roles on setup renders", snap(roleless, ""), PathRoleSetup, nil, Decision{Action: Render}},
		{"any role renders", snap(youthMember, domain.RoleYouth), "/events", nil, Decision{Action: Render}},
		{"allowed role renders", snap(superOfficial, domain.RoleSuperOfficial), "/officials", []string{domain.RoleSuperOfficial}, Decision{Action: Render}},
		{"other role goes home", snap(youthMember, domain.RoleYouth), "/officials", []string{domain.RoleSuperOfficial}, Decision{Action: Redirect, To: PathHome}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Authenticated(tc.s, tc.path, tc.allowed...); got != tc.want {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestAuthenticated_AfterServerRejectsSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
	}))
	defer srv.Close()

	durable, scope := session.NewMemoryStore(), session.NewMemoryStore()
	mgr := session.NewManager(durable, scope)
	if err := mgr.SetPrincipal(&domain.Principal{ID: "3", UserType: domain.UserTypeYouth, Token: "expired"}); err != nil {
		t.Fatalf("set principal: %v", err)
	}
	if got := Authenticated(mgr.Snapshot(), "/events"); got.Action != Render {
		t.Fatalf("expected render before 401, got %+v", got)
	}

	it := &transport.Interceptor{
		Base:           srv.Client().Transport,
		Durable:        durable,
		SessionScope:   scope,
		OnUnauthorized: mgr.Reload,
	}
	client := transport.NewClient(srv.URL+"/api", &http.Client{Transport: it}, zerolog.Nop())
	if _, err := client.Me(context.Background()); err == nil {
		t.Fatalf("expected 401 error")
	}

	for _, s := range []session.Store{durable, scope} {
		if _, ok, _ := s.Get(session.KeyAuthUser); ok {
			t.Fatalf("principal still stored")
		}
	}
	if _, ok, _ := durable.Get(session.KeyActiveRole); ok {
		t.Fatalf("active role still stored")
	}
	got := Authenticated(mgr.Snapshot(), "/events")
	if got.Action != Redirect || got.To != PathLogin {
		t.Fatalf("expected redirect to login, got %+v", got)
	}
}
