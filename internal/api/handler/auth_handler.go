package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/youthcouncil/portal/internal/api/metrics"
	"github.com/youthcouncil/portal/internal/core/domain"
	"github.com/youthcouncil/portal/internal/core/ports"
)

var errInvalidPayload = echo.NewHTTPError(http.StatusBadRequest, "invalid payload")

type AuthHandler struct {
	authService ports.AuthService
}

func NewAuthHandler(authService ports.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// bindValid binds and validates req; binding failures never reach the service.
func bindValid(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return errInvalidPayload
	}
	return c.Validate(req)
}

// Login authenticates a user and returns the principal with its bearer token.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  userResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}

	principal, err := h.authService.Login(c.Request().Context(), req.Email, req.Password)
	switch {
	case err == nil:
		metrics.LoginsTotal.WithLabelValues("success").Inc()
	case errors.Is(err, domain.ErrInvalidCredentials):
		metrics.LoginsTotal.WithLabelValues("invalid_credentials").Inc()
		return err
	default:
		metrics.LoginsTotal.WithLabelValues("error").Inc()
		return err
	}

	return c.JSON(http.StatusOK, userResponse{User: principal})
}

// Logout revokes the bearer token used for the request.
//
// @Summary      Logout
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  messageResponse
// @Failure      401  {object}  errorResponse
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	claims, err := ctxClaims(c)
	if err != nil {
		return err
	}
	if err := h.authService.Logout(c.Request().Context(), claims); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Logged out."})
}

// Me returns the authenticated principal without a token.
//
// @Summary      Current user
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  userResponse
// @Failure      401  {object}  errorResponse
// @Router       /auth/me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	claims, err := ctxClaims(c)
	if err != nil {
		return err
	}
	principal, err := h.authService.Me(c.Request().Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		}
		return err
	}
	return c.JSON(http.StatusOK, userResponse{User: principal})
}

// SignupYouth registers a youth member from a multipart form with an
// optional "attachment" file.
//
// @Summary      Youth self-registration
// @Tags         auth
// @Accept       multipart/form-data
// @Produce      json
// @Param        body        formData  youthSignupRequest  true   "Registration form"
// @Param        attachment  formData  file                false  "Supporting document (pdf, jpeg or png, 5 MiB max)"
// @Success      201         {object}  userResponse
// @Failure      400         {object}  errorResponse
// @Failure      409         {object}  errorResponse
// @Router       /auth/signup [post]
func (h *AuthHandler) SignupYouth(c echo.Context) error {
	var req youthSignupRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}

	in := ports.RegisterYouthInput{
		FirstName:  req.FirstName,
		MiddleName: req.MiddleName,
		LastName:   req.LastName,
		Email:      req.Email,
		Password:   req.Password,
		Confirm:    req.ConfirmPassword,
		Profile: domain.YouthProfile{
			Purok:                 req.Purok,
			Birthdate:             req.Birthdate,
			Sex:                   req.Sex,
			CivilStatus:           req.CivilStatus,
			ContactNumber:         req.ContactNumber,
			YouthClassification:   req.YouthClassification,
			EducationalBackground: req.EducationalBackground,
			WorkStatus:            req.WorkStatus,
			RegisteredVoter:       req.RegisteredVoter,
			VotedLastElection:     req.VotedLastElection,
		},
	}

	fh, err := c.FormFile("attachment")
	switch {
	case err == nil:
		f, err := fh.Open()
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "unreadable attachment")
		}
		defer f.Close()
		in.Attachment = &ports.Attachment{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get(echo.HeaderContentType),
			Size:        fh.Size,
			Body:        f,
		}
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable attachment")
	}

	principal, err := h.authService.RegisterYouth(c.Request().Context(), in)
	if err != nil {
		return err
	}
	metrics.RegistrationsTotal.WithLabelValues(string(domain.UserTypeYouth)).Inc()
	return c.JSON(http.StatusCreated, userResponse{User: principal})
}

// SignupOfficial registers an official. The account has no roles until a
// super official assigns them.
//
// @Summary      Official registration
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      officialSignupRequest  true  "Registration details"
// @Success      201   {object}  userResponse
// @Failure      400   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /auth/adminSignup [post]
func (h *AuthHandler) SignupOfficial(c echo.Context) error {
	var req officialSignupRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}

	principal, err := h.authService.RegisterOfficial(c.Request().Context(), ports.RegisterOfficialInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
		Confirm:   req.ConfirmPassword,
		Position:  req.Position,
	})
	if err != nil {
		return err
	}
	metrics.RegistrationsTotal.WithLabelValues(string(domain.UserTypeOfficial)).Inc()
	return c.JSON(http.StatusCreated, userResponse{User: principal})
}

// SendVerification emails a fresh verification link. The response does not
// reveal whether the address is registered.
//
// @Summary      Send verification email
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      emailRequest  true  "Email address"
// @Success      200   {object}  messageResponse
// @Failure      400   {object}  errorResponse
// @Router       /auth/send-verification [post]
func (h *AuthHandler) SendVerification(c echo.Context) error {
	var req emailRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	if err := h.authService.SendVerification(c.Request().Context(), req.Email); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "If the address belongs to an unverified account, a verification email is on its way."})
}

// VerifyEmail exchanges a verification token.
//
// @Summary      Verify email
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      verifyEmailRequest  true  "Verification token"
// @Success      200   {object}  messageResponse
// @Failure      400   {object}  errorResponse
// @Router       /auth/verify-email [post]
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	var req verifyEmailRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	already, err := h.authService.VerifyEmail(c.Request().Context(), req.Token)
	if err != nil {
		return err
	}
	msg := "Email verified. You can now log in."
	if already {
		msg = "Email already verified."
	}
	return c.JSON(http.StatusOK, messageResponse{Message: msg})
}

// ForgotPassword starts a password reset.
//
// @Summary      Forgot password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      emailRequest  true  "Email address"
// @Success      200   {object}  messageResponse
// @Failure      400   {object}  errorResponse
// @Router       /auth/forgot-password [post]
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req emailRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	res, err := h.authService.ForgotPassword(c.Request().Context(), req.Email)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: res.Message, Token: res.Token})
}

// ResetPasswordWithToken sets a new password using an emailed reset token.
//
// @Summary      Reset password with token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      resetWithTokenRequest  true  "Token and new password"
// @Success      200   {object}  messageResponse
// @Failure      400   {object}  errorResponse
// @Router       /auth/reset-password-token [post]
func (h *AuthHandler) ResetPasswordWithToken(c echo.Context) error {
	var req resetWithTokenRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	if err := h.authService.ResetPasswordWithToken(c.Request().Context(), req.Token, req.Password, req.ConfirmPassword); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Password updated. You can now log in."})
}

// ChangePassword changes the authenticated user's password.
//
// @Summary      Change password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      changePasswordRequest  true  "Current and new password"
// @Success      200   {object}  messageResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Router       /auth/reset-password [post]
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	claims, err := ctxClaims(c)
	if err != nil {
		return err
	}
	var req changePasswordRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	err = h.authService.ChangePassword(c.Request().Context(), ports.ChangePasswordInput{
		UserID:          claims.UserID,
		CurrentPassword: req.CurrentPassword,
		Password:        req.Password,
		Confirm:         req.ConfirmPassword,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			return domain.NewValidationError("currentPassword", "current password is incorrect")
		}
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Password updated."})
}

// AssignRoles sets an official's role tags.
//
// @Summary      Assign official roles
// @Tags         officials
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string              true  "Official user id"
// @Param        body  body      assignRolesRequest  true  "Role tags"
// @Success      200   {object}  userResponse
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Router       /officials/{id}/roles [put]
func (h *AuthHandler) AssignRoles(c echo.Context) error {
	var req assignRolesRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	principal, err := h.authService.AssignRoles(c.Request().Context(), c.Param("id"), req.Roles)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, userResponse{User: principal})
}
