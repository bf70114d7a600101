package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestPrincipal_NormalizeYouthAlwaysYouth(t *testing.T) {
	p := &Principal{ID: "5", UserType: UserTypeYouth, Roles: []string{"super_official"}}
	p.Normalize()

	if len(p.Roles) != 1 || p.Roles[0] != RoleYouth {
		t.Fatalf("expected [youth], got %v", p.Roles)
	}
	if got := p.DefaultActiveRole(); got != RoleYouth {
		t.Fatalf("expected youth active role, got %q", got)
	}
}

func TestPrincipal_NormalizeOfficialDropsUnknownRoles(t *testing.T) {
	p := &Principal{UserType: UserTypeOfficial, Roles: []string{"natural_official", "youth", "natural_official", "super_official"}}
	p.Normalize()

	want := []string{RoleNaturalOfficial, RoleSuperOfficial}
	if len(p.Roles) != len(want) {
		t.Fatalf("expected %v, got %v", want, p.Roles)
	}
	for i := range want {
		if p.Roles[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, p.Roles)
		}
	}
	if p.DefaultActiveRole() != RoleNaturalOfficial {
		t.Fatalf("expected first role as default, got %q", p.DefaultActiveRole())
	}
}

func TestPrincipal_UnmarshalLooseShapes(t *testing.T) {
	var p Principal
	if err := json.Unmarshal([]byte(`{"id":5,"userType":"official","role":"super_official","firstName":"Ana","lastName":"Cruz"}`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.ID != "5" {
		t.Fatalf("expected id 5, got %q", p.ID)
	}
	if len(p.Roles) != 1 || p.Roles[0] != RoleSuperOfficial {
		t.Fatalf("expected role coerced to list, got %v", p.Roles)
	}
	if p.Name != "Ana Cruz" {
		t.Fatalf("expected derived name, got %q", p.Name)
	}
}

func TestPrincipal_UnmarshalEmptyRole(t *testing.T) {
	var p Principal
	if err := json.Unmarshal([]byte(`{"id":"a1","userType":"youth","role":[]}`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.Roles == nil || len(p.Roles) != 0 {
		t.Fatalf("expected empty non-nil roles, got %#v", p.Roles)
	}
}

func TestPrincipal_Permits(t *testing.T) {
	p := &Principal{UserType: UserTypeOfficial, Roles: []string{RoleNaturalOfficial}}
	if !p.Permits(RoleNaturalOfficial) {
		t.Fatalf("expected natural_official permitted")
	}
	if p.Permits(RoleSuperOfficial) {
		t.Fatalf("expected super_official rejected")
	}
	var nilP *Principal
	if nilP.Permits(RoleYouth) {
		t.Fatalf("nil principal must permit nothing")
	}
}

func TestPasswordPolicy_Check(t *testing.T) {
	policy := DefaultPasswordPolicy()

	cases := map[string]bool{
		"Secret1!":      true,
		"short1!":       false,
		"nouppercase1!": false,
		"NOLOWER1!":     false,
		"NoDigits!!":    false,
		"NoSymbol12":    false,

		"Aa1!" + strings.Repeat("x", 68): true,
		"Aa1!" + strings.Repeat("x", 69): false,
		// 28 characters but 76 bytes
		"Aa1!" + strings.Repeat("€", 24): false,
	}
	for pw, ok := range cases {
		err := policy.Check(pw)
		if ok && err != nil {
			t.Fatalf("%q: unexpected error %v", pw, err)
		}
		if !ok && !errors.Is(err, ErrWeakPassword) {
			t.Fatalf("%q: expected ErrWeakPassword, got %v", pw, err)
		}
	}
}

func TestTokenPurpose_TTL(t *testing.T) {
	if PurposeVerifyEmail.TTL().Hours() != 24 {
		t.Fatalf("verify ttl: %v", PurposeVerifyEmail.TTL())
	}
	if PurposeResetPassword.TTL().Hours() != 1 {
		t.Fatalf("reset ttl: %v", PurposeResetPassword.TTL())
	}
}
