package workflow

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/youthcouncil/portal/internal/client/session"
	"github.com/youthcouncil/portal/internal/client/transport"
	"github.com/youthcouncil/portal/internal/core/domain"
)

const goodPassword = "Secret1!"

var policy = domain.DefaultPasswordPolicy()

// --- stubs ---

type stubAPI struct {
	signupOfficialFn func(req transport.OfficialSignupRequest) (*domain.Principal, error)
	signupYouthFn    func(req transport.YouthSignupRequest) (*domain.Principal, error)
	sendVerifyFn     func(email string) (string, error)
	forgotFn         func(email string) (*transport.ForgotPasswordResponse, error)
	resetFn          func(token, password, confirm string) (string, error)
	loginFn          func(email, password string) (*domain.Principal, error)
	logoutFn         func() error

	resetCalls int
}

func (s *stubAPI) SignupOfficial(_ context.Context, req transport.OfficialSignupRequest) (*domain.Principal, error) {
	return s.signupOfficialFn(req)
}

func (s *stubAPI) SignupYouth(_ context.Context, req transport.YouthSignupRequest) (*domain.Principal, error) {
	return s.signupYouthFn(req)
}

func (s *stubAPI) SendVerification(_ context.Context, email string) (string, error) {
	return s.sendVerifyFn(email)
}

func (s *stubAPI) ForgotPassword(_ context.Context, email string) (*transport.ForgotPasswordResponse, error) {
	return s.forgotFn(email)
}

func (s *stubAPI) ResetPasswordWithToken(_ context.Context, token, password, confirm string) (string, error) {
	s.resetCalls++
	return s.resetFn(token, password, confirm)
}

func (s *stubAPI) Login(_ context.Context, email, password string) (*domain.Principal, error) {
	return s.loginFn(email, password)
}

func (s *stubAPI) Logout(context.Context) error { return s.logoutFn() }

// --- registration wizard ---

func TestWizard_HappyPath(t *testing.T) {
	var sent transport.OfficialSignupRequest
	api := &stubAPI{signupOfficialFn: func(req transport.OfficialSignupRequest) (*domain.Principal, error) {
		sent = req
		return &domain.Principal{ID: "o-1", UserType: domain.UserTypeOfficial, Roles: []string{}}, nil
	}}
	w := NewWizard(api, policy)

	if err := w.SubmitProfile(OfficialProfile{FirstName: "Ana", LastName: "Cruz", Email: "ana@example.com", Position: "Chair"}); err != nil {
		t.Fatalf("profile: %v", err)
	}
	if _, ok := w.Step().(CollectingCredentials); !ok {
		t.Fatalf("expected credentials step, got %s", StepName(w.Step()))
	}
	if err := w.Submit(context.Background(), Credentials{Password: goodPassword, ConfirmPassword: goodPassword, AcceptTerms: true}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	done, ok := w.Step().(Submitted)
	if !ok || done.Principal.ID != "o-1" {
		t.Fatalf("expected submitted, got %#v", w.Step())
	}
	if sent.Email != "ana@example.com" || sent.Position != "Chair" || sent.ConfirmPassword != goodPassword {
		t.Fatalf("accumulated form not posted: %+v", sent)
	}
}

func TestWizard_CredentialsRejectedLocally(t *testing.T) {
	api := &stubAPI{signupOfficialFn: func(transport.OfficialSignupRequest) (*domain.Principal, error) {
		t.Fatalf("server must not be called")
		return nil, nil
	}}
	w := NewWizard(api, policy)
	_ = w.SubmitProfile(OfficialProfile{FirstName: "Ana", LastName: "Cruz", Email: "ana@example.com"})

	err := w.Submit(context.Background(), Credentials{Password: goodPassword, ConfirmPassword: "Other1!x", AcceptTerms: false})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Fields["confirmPassword"] == "" || verr.Fields["acceptTerms"] == "" {
		t.Fatalf("expected mismatch and terms errors, got %v", verr.Fields)
	}
	if _, ok := w.Step().(CollectingCredentials); !ok {
		t.Fatalf("step must not advance")
	}
}

func TestWizard_ServerFailureKeepsStep(t *testing.T) {
	api := &stubAPI{signupOfficialFn: func(transport.OfficialSignupRequest) (*domain.Principal, error) {
		return nil, &transport.APIError{Status: http.StatusConflict, Message: "user already exists"}
	}}
	w := NewWizard(api, policy)
	_ = w.SubmitProfile(OfficialProfile{FirstName: "Ana", LastName: "Cruz", Email: "ana@example.com"})

	err := w.Submit(context.Background(), Credentials{Password: goodPassword, ConfirmPassword: goodPassword, AcceptTerms: true})
	if transport.UserMessage(err) != "user already exists" {
		t.Fatalf("expected server text, got %v", err)
	}
	if _, ok := w.Step().(CollectingCredentials); !ok {
		t.Fatalf("step must not advance on failure")
	}
}

func TestSubmitProfile_WrongStepAndMissingFields(t *testing.T) {
	w := NewWizard(&stubAPI{}, policy)

	if err := w.SubmitProfile(OfficialProfile{FirstName: "Ana"}); err == nil {
		t.Fatalf("expected validation error")
	}
	_ = w.SubmitProfile(OfficialProfile{FirstName: "Ana", LastName: "Cruz", Email: "ana@example.com"})
	if err := w.SubmitProfile(OfficialProfile{}); !errors.Is(err, ErrUnexpectedStep) {
		t.Fatalf("expected ErrUnexpectedStep, got %v", err)
	}
}

// --- youth signup ---

func validYouth() YouthSignup {
	return YouthSignup{
		FirstName:       "Juan",
		LastName:        "Cruz",
		Email:           "juan@example.com",
		Password:        goodPassword,
		ConfirmPassword: goodPassword,
		Purok:           "Purok 1",
		Birthdate:       "2005-06-01",
	}
}

func TestRegisterYouth_SignsUpThenRequestsVerification(t *testing.T) {
	var calls []string
	api := &stubAPI{
		signupYouthFn: func(req transport.YouthSignupRequest) (*domain.Principal, error) {
			calls = append(calls, "signup:"+req.Email)
			return &domain.Principal{ID: "y-1", UserType: domain.UserTypeYouth}, nil
		},
		sendVerifyFn: func(email string) (string, error) {
			calls = append(calls, "verify:"+email)
			return "sent", nil
		},
	}

	res, err := RegisterYouth(context.Background(), api, validYouth(), policy, zerolog.Nop())
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if !res.VerificationSent || res.Principal.ID != "y-1" {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(calls) != 2 || calls[0] != "signup:juan@example.com" || calls[1] != "verify:juan@example.com" {
		t.Fatalf("unexpected call order %v", calls)
	}
}

func TestRegisterYouth_VerificationFailureIsReported(t *testing.T) {
	api := &stubAPI{
		signupYouthFn: func(transport.YouthSignupRequest) (*domain.Principal, error) {
			return &domain.Principal{ID: "y-1", UserType: domain.UserTypeYouth}, nil
		},
		sendVerifyFn: func(string) (string, error) { return "", errors.New("network down") },
	}

	res, err := RegisterYouth(context.Background(), api, validYouth(), policy, zerolog.Nop())
	if err != nil {
		t.Fatalf("registration itself succeeded, got %v", err)
	}
	if res.VerificationSent || res.VerificationError == nil {
		t.Fatalf("expected verification failure in result, got %+v", res)
	}
}

func TestYouthSignup_Validate(t *testing.T) {
	f := validYouth()
	f.Birthdate = "06/01/2005"
	f.Password = "short"

	var verr *domain.ValidationError
	if err := f.Validate(policy); !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Fields["birthdate"] == "" || verr.Fields["password"] == "" {
		t.Fatalf("unexpected fields %v", verr.Fields)
	}
}

func TestRegisterYouth_ServerFieldErrors(t *testing.T) {
	api := &stubAPI{signupYouthFn: func(transport.YouthSignupRequest) (*domain.Principal, error) {
		return nil, &transport.APIError{Status: http.StatusBadRequest, Message: "email must be a valid email", Fields: map[string]string{"email": "email must be a valid email"}}
	}}

	_, err := RegisterYouth(context.Background(), api, validYouth(), policy, zerolog.Nop())
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || verr.Fields["email"] == "" {
		t.Fatalf("expected field errors, got %v", err)
	}
}

// --- password reset ---

func TestResetFlow_AdvancesOnlyOnServerSuccess(t *testing.T) {
	fail := true
	api := &stubAPI{
		forgotFn: func(email string) (*transport.ForgotPasswordResponse, error) {
			if fail {
				return nil, errors.New("timeout")
			}
			return &transport.ForgotPasswordResponse{Message: "check your inbox", Token: "tok"}, nil
		},
		resetFn: func(string, string, string) (string, error) { return "Password updated.", nil },
	}
	f := NewResetFlow(api, policy)

	if err := f.SubmitEmail(context.Background(), "x@y.com"); err == nil {
		t.Fatalf("expected failure")
	}
	if f.Step != AwaitingEmail || f.Message != transport.FallbackMessage {
		t.Fatalf("expected to stay with fallback message, got %s %q", f.Step, f.Message)
	}

	fail = false
	if err := f.SubmitEmail(context.Background(), "x@y.com"); err != nil {
		t.Fatalf("submit email: %v", err)
	}
	if f.Step != AwaitingNewPassword || f.Token != "tok" {
		t.Fatalf("expected new password step, got %s token=%q", f.Step, f.Token)
	}

	if err := f.SubmitNewPassword(context.Background(), goodPassword, goodPassword); err != nil {
		t.Fatalf("submit password: %v", err)
	}
	if f.Step != Done || f.Message != "Password updated." {
		t.Fatalf("expected done, got %s %q", f.Step, f.Message)
	}
}

func TestResetFlow_MismatchNeverCallsServer(t *testing.T) {
	api := &stubAPI{
		forgotFn: func(string) (*transport.ForgotPasswordResponse, error) {
			return &transport.ForgotPasswordResponse{Message: "ok"}, nil
		},
		resetFn: func(string, string, string) (string, error) { return "", nil },
	}
	f := NewResetFlow(api, policy)
	_ = f.SubmitEmail(context.Background(), "x@y.com")
	f.Token = "emailed-token"

	err := f.SubmitNewPassword(context.Background(), goodPassword, "Secret2!")
	if err == nil {
		t.Fatalf("expected mismatch error")
	}
	if api.resetCalls != 0 {
		t.Fatalf("reset endpoint called %d times", api.resetCalls)
	}
	if f.Step != AwaitingNewPassword || f.Message != domain.ErrPasswordMismatch.Error() {
		t.Fatalf("unexpected state %s %q", f.Step, f.Message)
	}
}

func TestResetFlow_ServerRejectionKeepsStep(t *testing.T) {
	api := &stubAPI{
		forgotFn: func(string) (*transport.ForgotPasswordResponse, error) {
			return &transport.ForgotPasswordResponse{Message: "ok", Token: "t"}, nil
		},
		resetFn: func(string, string, string) (string, error) {
			return "", &transport.APIError{Status: http.StatusBadRequest, Message: "invalid or expired token"}
		},
	}
	f := NewResetFlow(api, policy)
	_ = f.SubmitEmail(context.Background(), "x@y.com")

	if err := f.SubmitNewPassword(context.Background(), goodPassword, goodPassword); err == nil {
		t.Fatalf("expected error")
	}
	if f.Step != AwaitingNewPassword || f.Message != "invalid or expired token" {
		t.Fatalf("unexpected state %s %q", f.Step, f.Message)
	}
}

// --- login ---

func TestLogin_YouthScenarioAgainstServer(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/auth/login" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"user":{"userType":"youth","id":5,"role":[]}}`)
	}))
	defer srv.Close()

	durable := session.NewMemoryStore()
	mgr := session.NewManager(durable, session.NewMemoryStore())
	client := transport.NewClient(srv.URL+"/api", srv.Client(), zerolog.Nop())

	p, err := Login(context.Background(), client, mgr, "a@b.com", "Secret1!")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if gotBody != `{"email":"a@b.com","password":"Secret1!"}` {
		t.Fatalf("unexpected body %s", gotBody)
	}
	if p.ID != "5" || mgr.Principal().ID != "5" || mgr.Principal().UserType != domain.UserTypeYouth {
		t.Fatalf("principal not stored: %+v", mgr.Principal())
	}
	if mgr.ActiveRole() != domain.RoleYouth {
		t.Fatalf("expected youth active role, got %q", mgr.ActiveRole())
	}
	if v, _, _ := durable.Get(session.KeyActiveRole); v != domain.RoleYouth {
		t.Fatalf("active role not persisted: %q", v)
	}
}

func TestLogout_ClearsEvenWhenServerFails(t *testing.T) {
	mgr := session.NewManager(session.NewMemoryStore(), session.NewMemoryStore())
	_ = mgr.SetPrincipal(&domain.Principal{ID: "1", UserType: domain.UserTypeYouth})

	api := &stubAPI{logoutFn: func() error { return errors.New("offline") }}
	if err := Logout(context.Background(), api, mgr, zerolog.Nop()); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if mgr.Snapshot().Authenticated() {
		t.Fatalf("expected signed out")
	}
}
