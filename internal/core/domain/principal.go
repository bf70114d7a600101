package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Principal is the authenticated identity handed to clients after login and
// persisted by them between runs.
//
// Invariant after Normalize: a youth principal holds exactly the role
// "youth"; an official principal holds only official role tags.
type Principal struct {
	ID       string   `json:"id"`
	UserType UserType `json:"userType"`
	Name     string   `json:"name,omitempty"`
	Email    string   `json:"email,omitempty"`
	Verified bool     `json:"verified"`
	Roles    []string `json:"role"`
	Token    string   `json:"token,omitempty"`
}

// Normalize coerces the role list into the shape implied by the user type.
func (p *Principal) Normalize() {
	switch p.UserType {
	case UserTypeYouth:
		p.Roles = []string{RoleYouth}
	case UserTypeOfficial:
		p.Roles = NormalizeOfficialRoles(p.Roles)
	default:
		if p.Roles == nil {
			p.Roles = []string{}
		}
	}
	p.Email = strings.TrimSpace(p.Email)
}

// DefaultActiveRole is the role selected when no valid choice was persisted.
func (p *Principal) DefaultActiveRole() string {
	if p == nil {
		return ""
	}
	if p.UserType == UserTypeYouth {
		return RoleYouth
	}
	if len(p.Roles) > 0 {
		return p.Roles[0]
	}
	return ""
}

// Permits reports whether role may be the principal's active role.
func (p *Principal) Permits(role string) bool {
	if p == nil || role == "" {
		return false
	}
	return ContainsRole(p.Roles, role)
}

// Clone returns a deep copy.
func (p *Principal) Clone() *Principal {
	if p == nil {
		return nil
	}
	c := *p
	c.Roles = append([]string(nil), p.Roles...)
	return &c
}

// UnmarshalJSON accepts the loose shapes older clients persisted: a numeric
// id and a role given as a single string instead of a list.
func (p *Principal) UnmarshalJSON(data []byte) error {
	type wire struct {
		ID        json.RawMessage `json:"id"`
		UserType  UserType        `json:"userType"`
		Name      string          `json:"name"`
		FirstName string          `json:"firstName"`
		LastName  string          `json:"lastName"`
		Email     string          `json:"email"`
		Verified  bool            `json:"verified"`
		Role      json.RawMessage `json:"role"`
		Token     string          `json:"token"`
	}
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	id, err := rawToString(w.ID)
	if err != nil {
		return fmt.Errorf("principal id: %w", err)
	}
	roles, err := rawToRoles(w.Role)
	if err != nil {
		return fmt.Errorf("principal role: %w", err)
	}

	name := w.Name
	if name == "" {
		name = strings.TrimSpace(w.FirstName + " " + w.LastName)
	}

	*p = Principal{
		ID:       id,
		UserType: w.UserType,
		Name:     name,
		Email:    w.Email,
		Verified: w.Verified,
		Roles:    roles,
		Token:    w.Token,
	}
	return nil
}

func rawToString(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		err := json.Unmarshal(raw, &s)
		return s, err
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}

func rawToRoles(raw json.RawMessage) ([]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []string{}, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		if s == "" {
			return []string{}, nil
		}
		return []string{s}, nil
	}
	var roles []string
	if err := json.Unmarshal(raw, &roles); err != nil {
		return nil, err
	}
	if roles == nil {
		roles = []string{}
	}
	return roles, nil
}
