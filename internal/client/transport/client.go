package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/youthcouncil/portal/internal/core/domain"
)

// FallbackMessage is shown when a failure carries no server text.
const FallbackMessage = "Something went wrong. Please try again."

const maxResponseBytes = 1 << 20

// APIError is a non-2xx response from the portal API.
type APIError struct {
	Status  int
	Message string
	Fields  map[string]string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.Status)
	}
	return fmt.Sprintf("api error: status %d: %s", e.Status, e.Message)
}

// UserMessage returns the text to show a person for err: the server's
// message when there is one, the fallback otherwise.
func UserMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return FallbackMessage
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

type OfficialSignupRequest struct {
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	Position        string `json:"position,omitempty"`
}

// FilePart is a file sent with a multipart form.
type FilePart struct {
	Name string
	Body io.Reader
}

type YouthSignupRequest struct {
	FirstName             string
	MiddleName            string
	LastName              string
	Email                 string
	Password              string
	ConfirmPassword       string
	Purok                 string
	Birthdate             string
	Sex                   string
	CivilStatus           string
	ContactNumber         string
	YouthClassification   string
	EducationalBackground string
	WorkStatus            string
	RegisteredVoter       bool
	VotedLastElection     bool
	Attachment            *FilePart
}

func (r YouthSignupRequest) fields() [][2]string {
	return [][2]string{
		{"firstName", r.FirstName},
		{"middleName", r.MiddleName},
		{"lastName", r.LastName},
		{"email", r.Email},
		{"password", r.Password},
		{"confirmPassword", r.ConfirmPassword},
		{"purok", r.Purok},
		{"birthdate", r.Birthdate},
		{"sex", r.Sex},
		{"civilStatus", r.CivilStatus},
		{"contactNumber", r.ContactNumber},
		{"youthClassification", r.YouthClassification},
		{"educationalBackground", r.EducationalBackground},
		{"workStatus", r.WorkStatus},
		{"registeredVoter", strconv.FormatBool(r.RegisteredVoter)},
		{"votedLastElection", strconv.FormatBool(r.VotedLastElection)},
	}
}

// ForgotPasswordResponse carries the reset token only when the server runs
// with reset-token echo enabled.
type ForgotPasswordResponse struct {
	Message string `json:"message"`
	Token   string `json:"token,omitempty"`
}

type userEnvelope struct {
	User *domain.Principal `json:"user"`
}

type messageEnvelope struct {
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
}

// Client calls the portal API. Wrap its http.Client transport with an
// Interceptor to carry the session.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

func NewClient(baseURL string, hc *http.Client, log zerolog.Logger) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc, log: log}
}

func (c *Client) Login(ctx context.Context, email, password string) (*domain.Principal, error) {
	var out userEnvelope
	body := map[string]string{"email": email, "password": password}
	if err := c.postJSON(ctx, "/auth/login", body, &out); err != nil {
		return nil, err
	}
	if out.User == nil {
		return nil, fmt.Errorf("login: response without user")
	}
	return out.User, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.postJSON(ctx, "/auth/logout", struct{}{}, nil)
}

func (c *Client) Me(ctx context.Context) (*domain.Principal, error) {
	var out userEnvelope
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, "", &out); err != nil {
		return nil, err
	}
	return out.User, nil
}

func (c *Client) SignupOfficial(ctx context.Context, req OfficialSignupRequest) (*domain.Principal, error) {
	var out userEnvelope
	if err := c.postJSON(ctx, "/auth/adminSignup", req, &out); err != nil {
		return nil, err
	}
	return out.User, nil
}

// SignupYouth posts the registration as multipart/form-data so an optional
// supporting document can travel with it.
func (c *Client) SignupYouth(ctx context.Context, req YouthSignupRequest) (*domain.Principal, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range req.fields() {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, fmt.Errorf("encode form: %w", err)
		}
	}
	if req.Attachment != nil {
		part, err := w.CreateFormFile("attachment", req.Attachment.Name)
		if err != nil {
			return nil, fmt.Errorf("encode attachment: %w", err)
		}
		if _, err := io.Copy(part, req.Attachment.Body); err != nil {
			return nil, fmt.Errorf("encode attachment: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("encode form: %w", err)
	}

	var out userEnvelope
	if err := c.do(ctx, http.MethodPost, "/auth/signup", &buf, w.FormDataContentType(), &out); err != nil {
		return nil, err
	}
	return out.User, nil
}

func (c *Client) SendVerification(ctx context.Context, email string) (string, error) {
	return c.message(ctx, "/auth/send-verification", map[string]string{"email": email})
}

func (c *Client) VerifyEmail(ctx context.Context, token string) (string, error) {
	return c.message(ctx, "/auth/verify-email", map[string]string{"token": token})
}

func (c *Client) ForgotPassword(ctx context.Context, email string) (*ForgotPasswordResponse, error) {
	var out ForgotPasswordResponse
	if err := c.postJSON(ctx, "/auth/forgot-password", map[string]string{"email": email}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ResetPasswordWithToken(ctx context.Context, token, password, confirm string) (string, error) {
	return c.message(ctx, "/auth/reset-password-token", map[string]string{
		"token":           token,
		"password":        password,
		"confirmPassword": confirm,
	})
}

func (c *Client) ChangePassword(ctx context.Context, current, password, confirm string) (string, error) {
	return c.message(ctx, "/auth/reset-password", map[string]string{
		"currentPassword": current,
		"password":        password,
		"confirmPassword": confirm,
	})
}

func (c *Client) AssignRoles(ctx context.Context, userID string, roles []string) (*domain.Principal, error) {
	payload, err := json.Marshal(map[string][]string{"roles": roles})
	if err != nil {
		return nil, err
	}
	var out userEnvelope
	path := "/officials/" + url.PathEscape(userID) + "/roles"
	if err := c.do(ctx, http.MethodPut, path, bytes.NewReader(payload), "application/json", &out); err != nil {
		return nil, err
	}
	return out.User, nil
}

func (c *Client) message(ctx context.Context, path string, body any) (string, error) {
	var out messageEnvelope
	if err := c.postJSON(ctx, path, body, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(payload), "application/json", out)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("method", method).Str("path", path).Msg("request failed")
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var env errorEnvelope
		if json.Unmarshal(data, &env) == nil {
			apiErr.Message = env.Error
			apiErr.Fields = env.Fields
		}
		// A rejected login form is expected; its text goes straight to the user.
		if !(resp.StatusCode == http.StatusBadRequest && isLoginPath(path)) {
			c.log.Warn().
				Int("status", resp.StatusCode).
				Str("method", method).
				Str("path", path).
				Str("error", apiErr.Message).
				Msg("api request rejected")
		}
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func isLoginPath(path string) bool {
	return strings.HasSuffix(path, "/auth/login") || strings.HasSuffix(path, "/auth/signin")
}
