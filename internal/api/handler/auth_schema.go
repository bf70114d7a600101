package handler

import "github.com/youthcouncil/portal/internal/core/domain"

// --- Request types ---

type loginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type officialSignupRequest struct {
	FirstName       string `json:"firstName"       validate:"required"`
	LastName        string `json:"lastName"        validate:"required"`
	Email           string `json:"email"           validate:"required,email"`
	Password        string `json:"password"        validate:"required,password"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
	Position        string `json:"position"`
}

// youthSignupRequest is bound from a multipart form; the JSON tags let the
// same payload arrive as JSON when no attachment is sent.
type youthSignupRequest struct {
	FirstName             string `json:"firstName"             form:"firstName"             validate:"required"`
	MiddleName            string `json:"middleName"            form:"middleName"`
	LastName              string `json:"lastName"              form:"lastName"              validate:"required"`
	Email                 string `json:"email"                 form:"email"                 validate:"required,email"`
	Password              string `json:"password"              form:"password"              validate:"required,password"`
	ConfirmPassword       string `json:"confirmPassword"       form:"confirmPassword"       validate:"required,eqfield=Password"`
	Purok                 string `json:"purok"                 form:"purok"                 validate:"required"`
	Birthdate             string `json:"birthdate"             form:"birthdate"             validate:"required,datetime=2006-01-02"`
	Sex                   string `json:"sex"                   form:"sex"`
	CivilStatus           string `json:"civilStatus"           form:"civilStatus"`
	ContactNumber         string `json:"contactNumber"         form:"contactNumber"`
	YouthClassification   string `json:"youthClassification"   form:"youthClassification"`
	EducationalBackground string `json:"educationalBackground" form:"educationalBackground"`
	WorkStatus            string `json:"workStatus"            form:"workStatus"`
	RegisteredVoter       bool   `json:"registeredVoter"       form:"registeredVoter"`
	VotedLastElection     bool   `json:"votedLastElection"     form:"votedLastElection"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type verifyEmailRequest struct {
	Token string `json:"token" validate:"required"`
}

type resetWithTokenRequest struct {
	Token           string `json:"token"           validate:"required"`
	Password        string `json:"password"        validate:"required,password"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	Password        string `json:"password"        validate:"required,password"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

type assignRolesRequest struct {
	Roles []string `json:"roles" validate:"required,dive,oneof=super_official natural_official"`
}

// --- Response types ---

type userResponse struct {
	User *domain.Principal `json:"user"`
}

type messageResponse struct {
	Message string `json:"message"`
	// Token is only present for forgot-password outside production when
	// reset-token echo is enabled.
	Token string `json:"token,omitempty"`
}

// errorResponse documents the error envelope rendered by the central handler.
type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}
