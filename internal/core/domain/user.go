package domain

import "time"

// UserType discriminates the two kinds of accounts the portal knows about.
type UserType string

const (
	UserTypeYouth    UserType = "youth"
	UserTypeOfficial UserType = "official"
)

// Valid reports whether t is a known user type.
func (t UserType) Valid() bool {
	return t == UserTypeYouth || t == UserTypeOfficial
}

// YouthProfile holds the demographic details collected at youth self-registration.
type YouthProfile struct {
	Purok                 string `json:"purok" bson:"purok"`
	Birthdate             string `json:"birthdate" bson:"birthdate"`
	Sex                   string `json:"sex" bson:"sex"`
	CivilStatus           string `json:"civil_status" bson:"civil_status"`
	ContactNumber         string `json:"contact_number" bson:"contact_number"`
	YouthClassification   string `json:"youth_classification" bson:"youth_classification"`
	EducationalBackground string `json:"educational_background" bson:"educational_background"`
	WorkStatus            string `json:"work_status" bson:"work_status"`
	RegisteredVoter       bool   `json:"registered_voter" bson:"registered_voter"`
	VotedLastElection     bool   `json:"voted_last_election" bson:"voted_last_election"`
}

// User models a registered account, youth member or official.
type User struct {
	ID            string        `json:"id"`
	UserType      UserType      `json:"user_type"`
	FirstName     string        `json:"first_name"`
	MiddleName    string        `json:"middle_name,omitempty"`
	LastName      string        `json:"last_name"`
	Email         string        `json:"email"`
	PasswordHash  string        `json:"-"`
	Verified      bool          `json:"verified"`
	Roles         []string      `json:"roles"`
	Profile       *YouthProfile `json:"profile,omitempty"`
	AttachmentKey string        `json:"attachment_key,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// DisplayName joins the user's first and last name.
func (u *User) DisplayName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Principal converts the stored record into its wire shape without a token.
func (u *User) Principal() *Principal {
	p := &Principal{
		ID:       u.ID,
		UserType: u.UserType,
		Name:     u.DisplayName(),
		Email:    u.Email,
		Verified: u.Verified,
		Roles:    append([]string(nil), u.Roles...),
	}
	p.Normalize()
	return p
}
