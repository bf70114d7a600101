package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/youthcouncil/portal/internal/api/middleware"
	"github.com/youthcouncil/portal/internal/core/domain"
	"github.com/youthcouncil/portal/internal/core/ports"
)

const strongPassword = "Sup3r$ecret"

type stubAuthService struct {
	loginFn         func(ctx context.Context, email, password string) (*domain.Principal, error)
	logoutFn        func(ctx context.Context, claims *ports.TokenClaims) error
	meFn            func(ctx context.Context, userID string) (*domain.Principal, error)
	registerYouthFn func(ctx context.Context, in ports.RegisterYouthInput) (*domain.Principal, error)
	registerOffFn   func(ctx context.Context, in ports.RegisterOfficialInput) (*domain.Principal, error)
	sendVerifyFn    func(ctx context.Context, email string) error
	verifyFn        func(ctx context.Context, token string) (bool, error)
	forgotFn        func(ctx context.Context, email string) (*ports.ForgotPasswordResult, error)
	resetFn         func(ctx context.Context, token, password, confirm string) error
	changeFn        func(ctx context.Context, in ports.ChangePasswordInput) error
	assignFn        func(ctx context.Context, userID string, roles []string) (*domain.Principal, error)
}

func (s *stubAuthService) Login(ctx context.Context, email, password string) (*domain.Principal, error) {
	return s.loginFn(ctx, email, password)
}

func (s *stubAuthService) Logout(ctx context.Context, claims *ports.TokenClaims) error {
	return s.logoutFn(ctx, claims)
}

func (s *stubAuthService) Me(ctx context.Context, userID string) (*domain.Principal, error) {
	return s.meFn(ctx, userID)
}

func (s *stubAuthService) RegisterYouth(ctx context.Context, in ports.RegisterYouthInput) (*domain.Principal, error) {
	return s.registerYouthFn(ctx, in)
}

func (s *stubAuthService) RegisterOfficial(ctx context.Context, in ports.RegisterOfficialInput) (*domain.Principal, error) {
	return s.registerOffFn(ctx, in)
}

func (s *stubAuthService) SendVerification(ctx context.Context, email string) error {
	return s.sendVerifyFn(ctx, email)
}

func (s *stubAuthService) VerifyEmail(ctx context.Context, token string) (bool, error) {
	return s.verifyFn(ctx, token)
}

func (s *stubAuthService) ForgotPassword(ctx context.Context, email string) (*ports.ForgotPasswordResult, error) {
	return s.forgotFn(ctx, email)
}

func (s *stubAuthService) ResetPasswordWithToken(ctx context.Context, token, password, confirm string) error {
	return s.resetFn(ctx, token, password, confirm)
}

func (s *stubAuthService) ChangePassword(ctx context.Context, in ports.ChangePasswordInput) error {
	return s.changeFn(ctx, in)
}

func (s *stubAuthService) AssignRoles(ctx context.Context, userID string, roles []string) (*domain.Principal, error) {
	return s.assignFn(ctx, userID, roles)
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator(domain.DefaultPasswordPolicy())
	return e
}

func jsonContext(e *echo.Echo, method, path, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func fieldsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *domain.ValidationError, got %T: %v", err, err)
	}
	return verr.Fields
}

func TestAuthHandler_Login_Success(t *testing.T) {
	e := newEcho()
	stub := &stubAuthService{
		loginFn: func(ctx context.Context, email, password string) (*domain.Principal, error) {
			if email != "alice@example.com" || password != "secret" {
				t.Fatalf("unexpected args: %s %s", email, password)
			}
			return &domain.Principal{ID: "u-1", UserType: domain.UserTypeYouth, Roles: []string{"youth"}, Token: "token123"}, nil
		},
	}
	handler := NewAuthHandler(stub)

	c, rec := jsonContext(e, http.MethodPost, "/api/auth/login", `{"email":"alice@example.com","password":"secret"}`)
	if err := handler.Login(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	user, ok := resp["user"].(map[string]any)
	if !ok || user["token"] != "token123" || user["userType"] != "youth" {
		t.Fatalf("unexpected user payload: %+v", resp)
	}
	roles, ok := user["role"].([]any)
	if !ok || len(roles) != 1 || roles[0] != "youth" {
		t.Fatalf("role must be an array, got %v", user["role"])
	}
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	e := newEcho()
	stub := &stubAuthService{
		loginFn: func(ctx context.Context, email, password string) (*domain.Principal, error) {
			return nil, domain.ErrInvalidCredentials
		},
	}

	c, _ := jsonContext(e, http.MethodPost, "/api/auth/login", `{"email":"alice@example.com","password":"bad"}`)
	if err := NewAuthHandler(stub).Login(c); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthHandler_Login_ValidationFields(t *testing.T) {
	e := newEcho()
	stub := &stubAuthService{
		loginFn: func(ctx context.Context, email, password string) (*domain.Principal, error) {
			t.Fatalf("should not be called")
			return nil, nil
		},
	}

	c, _ := jsonContext(e, http.MethodPost, "/api/auth/login", `{"email":"not-an-email"}`)
	fields := fieldsOf(t, NewAuthHandler(stub).Login(c))
	if fields["email"] == "" || fields["password"] != "password is required" {
		t.Fatalf("unexpected fields: %v", fields)
	}
}

func TestAuthHandler_Login_InvalidPayload(t *testing.T) {
	e := newEcho()
	stub := &stubAuthService{
		loginFn: func(ctx context.Context, email, password string) (*domain.Principal, error) {
			t.Fatalf("should not be called")
			return nil, nil
		},
	}

	c, _ := jsonContext(e, http.MethodPost, "/api/auth/login", "{")
	err := NewAuthHandler(stub).Login(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestAuthHandler_SignupOfficial(t *testing.T) {
	e := newEcho()
	stub := &stubAuthService{
		registerOffFn: func(ctx context.Context, in ports.RegisterOfficialInput) (*domain.Principal, error) {
			if in.Email != "ana@example.com" || in.Position != "Chairperson" || in.Confirm != strongPassword {
				t.Fatalf("unexpected input: %+v", in)
			}
			return &domain.Principal{ID: "o-1", UserType: domain.UserTypeOfficial, Roles: []string{}}, nil
		},
	}

	body := `{"firstName":"Ana","lastName":"Reyes","email":"ana@example.com","password":"` + strongPassword +
		`","confirmPassword":"` + strongPassword + `","position":"Chairperson"}`
	c, rec := jsonContext(e, http.MethodPost, "/api/auth/adminSignup", body)
	if err := NewAuthHandler(stub).SignupOfficial(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
}

func TestAuthHandler_SignupOfficial_PasswordRules(t *testing.T) {
	e := newEcho()
	stub := &stubAuthService{
		registerOffFn: func(ctx context.Context, in ports.RegisterOfficialInput) (*domain.Principal, error) {
			t.Fatalf("should not be called")
			return nil, nil
		},
	}

	body := `{"firstName":"Ana","lastName":"Reyes","email":"ana@example.com","password":"weakpass","confirmPassword":"other"}`
	c, _ := jsonContext(e, http.MethodPost, "/api/auth/adminSignup", body)
	fields := fieldsOf(t, NewAuthHandler(stub).SignupOfficial(c))
	if !strings.Contains(fields["password"], "upper-case") {
		t.Fatalf("password message = %q", fields["password"])
	}
	if fields["confirmPassword"] != domain.ErrPasswordMismatch.Error() {
		t.Fatalf("confirmPassword message = %q", fields["confirmPassword"])
	}
}

func TestAuthHandler_SignupYouth_Multipart(t *testing.T) {
	e := newEcho()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range map[string]string{
		"firstName":       "Juan",
		"lastName":        "Cruz",
		"email":           "juan@example.com",
		"password":        strongPassword,
		"confirmPassword": strongPassword,
		"purok":           "Purok 2",
		"birthdate":       "2005-06-01",
		"registeredVoter": "true",
	} {
		_ = mw.WriteField(k, v)
	}
	fw, _ := mw.CreateFormFile("attachment", "id.png")
	_, _ = fw.Write([]byte("\x89PNG\r\n\x1a\n"))
	_ = mw.Close()

	var gotAttachment []byte
	stub := &stubAuthService{
		registerYouthFn: func(ctx context.Context, in ports.RegisterYouthInput) (*domain.Principal, error) {
			if in.Profile.Purok != "Purok 2" || !in.Profile.RegisteredVoter {
				t.Fatalf("unexpected profile: %+v", in.Profile)
			}
			if in.Attachment == nil || in.Attachment.Filename != "id.png" {
				t.Fatalf("attachment not forwarded: %+v", in.Attachment)
			}
			gotAttachment, _ = io.ReadAll(in.Attachment.Body)
			return &domain.Principal{ID: "y-1", UserType: domain.UserTypeYouth, Roles: []string{"youth"}}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", &body)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := NewAuthHandler(stub).SignupYouth(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if !bytes.HasPrefix(gotAttachment, []byte("\x89PNG")) {
		t.Fatalf("attachment body not readable by the service")
	}
}

func TestAuthHandler_SignupYouth_JSONWithoutAttachment(t *testing.T) {
	e := newEcho()
	stub := &stubAuthService{
		registerYouthFn: func(ctx context.Context, in ports.RegisterYouthInput) (*domain.Principal, error) {
			if in.Attachment != nil {
				t.Fatalf("unexpected attachment")
			}
			return &domain.Principal{ID: "y-1", UserType: domain.UserTypeYouth}, nil
		},
	}

	body := `{"firstName":"Juan","lastName":"Cruz","email":"juan@example.com","password":"` + strongPassword +
		`","confirmPassword":"` + strongPassword + `","purok":"Purok 2","birthdate":"2005-06-01"}`
	c, rec := jsonContext(e, http.MethodPost, "/api/auth/signup", body)
	if err := NewAuthHandler(stub).SignupYouth(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
}

func TestAuthHandler_VerifyEmail(t *testing.T) {
	cases := []struct {
		name    string
		already bool
		err     error
		want    string
	}{
		{"fresh", false, nil, "Email verified. You can now log in."},
		{"already verified", true, nil, "Email already verified."},
		{"bad token", false, domain.ErrInvalidToken, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newEcho()
			stub := &stubAuthService{
				verifyFn: func(ctx context.Context, token string) (bool, error) {
					return tc.already, tc.err
				},
			}
			c, rec := jsonContext(e, http.MethodPost, "/api/auth/verify-email", `{"token":"abc"}`)
			err := NewAuthHandler(stub).VerifyEmail(c)
			if tc.err != nil {
				if !errors.Is(err, tc.err) {
					t.Fatalf("expected %v, got %v", tc.err, err)
				}
				return
			}
			var resp messageResponse
			_ = json.Unmarshal(rec.Body.Bytes(), &resp)
			if resp.Message != tc.want {
				t.Fatalf("message = %q, want %q", resp.Message, tc.want)
			}
		})
	}
}

func TestAuthHandler_ForgotPassword_EchoesToken(t *testing.T) {
	e := newEcho()
	stub := &stubAuthService{
		forgotFn: func(ctx context.Context, email string) (*ports.ForgotPasswordResult, error) {
			return &ports.ForgotPasswordResult{Message: "sent", Token: "tkn"}, nil
		},
	}
	c, rec := jsonContext(e, http.MethodPost, "/api/auth/forgot-password", `{"email":"a@example.com"}`)
	if err := NewAuthHandler(stub).ForgotPassword(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var resp messageResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Token != "tkn" {
		t.Fatalf("expected token in response, got %+v", resp)
	}
}

func TestAuthHandler_ChangePassword_WrongCurrent(t *testing.T) {
	e := newEcho()
	stub := &stubAuthService{
		changeFn: func(ctx context.Context, in ports.ChangePasswordInput) error {
			if in.UserID != "u-1" {
				t.Fatalf("user id from claims not used: %q", in.UserID)
			}
			return domain.ErrInvalidCredentials
		},
	}

	body := `{"currentPassword":"old","password":"` + strongPassword + `","confirmPassword":"` + strongPassword + `"}`
	c, _ := jsonContext(e, http.MethodPost, "/api/auth/reset-password", body)
	c.Set(middleware.CtxClaims, &ports.TokenClaims{UserID: "u-1"})

	fields := fieldsOf(t, NewAuthHandler(stub).ChangePassword(c))
	if fields["currentPassword"] == "" {
		t.Fatalf("expected currentPassword field error, got %v", fields)
	}
}

func TestAuthHandler_ChangePassword_RequiresClaims(t *testing.T) {
	e := newEcho()
	c, _ := jsonContext(e, http.MethodPost, "/api/auth/reset-password", `{}`)

	err := NewAuthHandler(&stubAuthService{}).ChangePassword(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestAuthHandler_Logout(t *testing.T) {
	e := newEcho()
	var revoked string
	stub := &stubAuthService{
		logoutFn: func(ctx context.Context, claims *ports.TokenClaims) error {
			revoked = claims.JTI
			return nil
		},
	}
	c, rec := jsonContext(e, http.MethodPost, "/api/auth/logout", "")
	c.Set(middleware.CtxClaims, &ports.TokenClaims{UserID: "u-1", JTI: "j-1"})

	if err := NewAuthHandler(stub).Logout(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if revoked != "j-1" || rec.Code != http.StatusOK {
		t.Fatalf("logout did not revoke: jti=%q code=%d", revoked, rec.Code)
	}
}

func TestAuthHandler_AssignRoles(t *testing.T) {
	e := newEcho()
	stub := &stubAuthService{
		assignFn: func(ctx context.Context, userID string, roles []string) (*domain.Principal, error) {
			if userID != "o-7" || len(roles) != 1 || roles[0] != domain.RoleNaturalOfficial {
				t.Fatalf("unexpected args: %s %v", userID, roles)
			}
			return &domain.Principal{ID: userID, UserType: domain.UserTypeOfficial, Roles: roles}, nil
		},
	}

	c, rec := jsonContext(e, http.MethodPut, "/api/officials/o-7/roles", `{"roles":["natural_official"]}`)
	c.SetParamNames("id")
	c.SetParamValues("o-7")

	if err := NewAuthHandler(stub).AssignRoles(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAuthHandler_AssignRoles_RejectsUnknownTag(t *testing.T) {
	e := newEcho()
	c, _ := jsonContext(e, http.MethodPut, "/api/officials/o-7/roles", `{"roles":["mayor"]}`)
	c.SetParamNames("id")
	c.SetParamValues("o-7")

	fieldsOf(t, NewAuthHandler(&stubAuthService{}).AssignRoles(c))
}
