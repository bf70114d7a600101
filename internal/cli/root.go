// Package cli implements portalctl, a terminal client for the youth council
// portal that keeps its session in a file shared between invocations.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/youthcouncil/portal/internal/client/session"
	"github.com/youthcouncil/portal/internal/client/transport"
	"github.com/youthcouncil/portal/internal/core/domain"
	"github.com/youthcouncil/portal/internal/infrastructure/config"
	"github.com/youthcouncil/portal/pkg/logger"
)

const requestTimeout = 30 * time.Second

// app is the state shared by every command of one invocation.
type app struct {
	flagAPIURL      string
	flagSessionFile string
	flagLogLevel    string

	log     zerolog.Logger
	policy  domain.PasswordPolicy
	durable *session.FileStore
	mgr     *session.Manager
	api     *transport.Client
	in      *bufio.Reader
}

// NewRootCmd creates the root cobra command for portalctl.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "portalctl",
		Short: "Youth council portal client",
		Long:  "portalctl signs in to the youth council portal, manages the active role and drives registration, verification and password flows.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&a.flagAPIURL, "api-url", "", "Portal API base URL (or PORTAL_API_URL env)")
	root.PersistentFlags().StringVar(&a.flagSessionFile, "session-file", "", "Session file (or PORTAL_SESSION_FILE env, default ~/.portal/session.json)")
	root.PersistentFlags().StringVar(&a.flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")

	root.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newRoleCmd(a),
		newRegisterCmd(a),
		newVerifyCmd(a),
		newSendVerificationCmd(a),
		newForgotCmd(a),
		newResetCmd(a),
		newPasswdCmd(a),
		newAssignRolesCmd(a),
		newWatchCmd(a),
		newRouteCmd(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.LoadClient(cmd.Context())
	if err != nil {
		return err
	}
	if a.flagAPIURL != "" {
		cfg.APIURL = a.flagAPIURL
	}
	if a.flagSessionFile != "" {
		cfg.SessionFile = a.flagSessionFile
	}
	if a.flagLogLevel != "" {
		cfg.LogLevel = a.flagLogLevel
	}
	if cfg.SessionFile == "" {
		if cfg.SessionFile, err = session.DefaultFilePath(); err != nil {
			return err
		}
	}

	a.log = logger.New(logger.Options{Level: cfg.LogLevel, Pretty: true, Output: cmd.ErrOrStderr(), Service: "portalctl"})
	a.policy = domain.PasswordPolicy{MinLength: cfg.PasswordMinLength}
	a.in = bufio.NewReader(cmd.InOrStdin())

	a.durable = session.NewFileStore(cfg.SessionFile)
	scope := session.NewMemoryStore()
	a.mgr = session.NewManager(a.durable, scope, session.WithLogger(a.log))

	it := &transport.Interceptor{
		Durable:        a.durable,
		SessionScope:   scope,
		APIPrefix:      apiPrefix(cfg.APIURL),
		OnUnauthorized: a.mgr.Reload,
		Log:            a.log,
	}
	a.api = transport.NewClient(cfg.APIURL, &http.Client{Transport: it, Timeout: requestTimeout}, a.log)

	a.log.Debug().Str("api_url", cfg.APIURL).Str("session_file", cfg.SessionFile).Msg("portalctl configured")
	return nil
}

// apiPrefix returns the first path segment of the API base URL, e.g. "/api".
func apiPrefix(apiURL string) string {
	u, err := url.Parse(apiURL)
	if err != nil {
		return transport.DefaultAPIPrefix
	}
	first := strings.SplitN(strings.Trim(u.Path, "/"), "/", 2)[0]
	if first == "" {
		return transport.DefaultAPIPrefix
	}
	return "/" + first
}

// prompt returns value if set, otherwise reads a line from stdin.
func (a *app) prompt(w io.Writer, label, value string) (string, error) {
	if value != "" {
		return value, nil
	}
	fmt.Fprintf(w, "%s: ", label)
	line, err := a.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimSpace(line), nil
}

func (a *app) ctx(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), requestTimeout)
}

// userError prefixes err with the text a person should see.
func userError(err error) error {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return verr
	}
	return fmt.Errorf("%s (%w)", transport.UserMessage(err), err)
}
