package commands

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net"
	"net/http"
	"time"

	"github.com/benvon/schedule-builder/internal/services/oidc"
	"github.com/benvon/schedule-builder/internal/storage"
	"github.com/benvon/schedule-builder/internal/syncer"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	callbackPath = "/callback"
	loginTimeout = 5 * time.Minute
)

func newLoginCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Log in and sync this device's schedule to your account",
		Long:  "Opens an OIDC authorization code login (with PKCE) through the API's identity provider. On the first login, a schedule built on this device is moved into an empty account.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx := cmd.Context()
			a, err := openEnv(opts)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, a.close(ctx)) }()

			if a.cfg.APIURL == "" {
				return errors.New("api_url is not configured; set it in the config file or SCHEDULE_API_URL")
			}

			lc, err := storage.NewHTTPRecordStore(a.cfg.APIURL, nil, a.logger).LoginConfig(ctx)
			if err != nil {
				return fmt.Errorf("failed to get login configuration: %w", err)
			}

			ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", a.cfg.CallbackPort))
			if err != nil {
				return fmt.Errorf("failed to listen for the login callback: %w", err)
			}
			redirectURI := fmt.Sprintf("http://localhost:%d%s", ln.Addr().(*net.TCPAddr).Port, callbackPath)

			client := oidc.NewClientFromLoginConfig(lc, redirectURI)
			state := uuid.NewString()
			verifier := oidc.NewVerifierString()

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Open this URL in your browser to log in:")
			fmt.Fprintf(out, "\n  %s\n\n", client.AuthCodeURL(state, verifier))
			fmt.Fprintln(out, "Waiting for the login to finish...")

			waitCtx, cancel := context.WithTimeout(ctx, loginTimeout)
			defer cancel()
			code, err := waitForCode(waitCtx, ln, state)
			if err != nil {
				return err
			}

			tok, err := client.ExchangeCode(ctx, code, verifier)
			if err != nil {
				return fmt.Errorf("failed to exchange authorization code: %w", err)
			}

			records := storage.NewHTTPRecordStore(a.cfg.APIURL, oauth2.StaticTokenSource(tok), a.logger)
			user, err := records.Me(ctx)
			if err != nil {
				return fmt.Errorf("login succeeded but the API rejected the token: %w", err)
			}

			sess := &session{
				UserID:      user.ID.String(),
				Email:       user.Email,
				Token:       tok,
				LoginConfig: *lc,
				RedirectURI: redirectURI,
			}
			if err := saveSession(ctx, a.kv, sess); err != nil {
				return err
			}

			// Loading the account now moves any device data up while this command runs
			a.ctrl = syncer.New(
				storage.NewLocalStore(a.kv, a.migrator, a.logger),
				a.remoteFactory(records),
				syncer.WithLogger(a.logger),
				syncer.WithDebounce(a.cfg.Debounce),
				syncer.WithMigrator(a.migrator),
			)
			if err := a.ctrl.Start(ctx, &syncer.Identity{UserID: sess.UserID, Email: sess.Email}); err != nil {
				return err
			}

			fmt.Fprintf(out, "Logged in as %s\n", user.DisplayName())
			if st := a.ctrl.Status(); st.SyncError != nil {
				fmt.Fprintf(out, "Warning: your schedule could not be synced yet: %v\n", st.SyncError)
			}
			return nil
		},
	}
}

func newLogoutCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the account on this device and start a fresh local schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx := cmd.Context()
			a, err := openEnv(opts)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, a.close(ctx)) }()

			sess, err := loadSession(ctx, a.kv)
			if err != nil {
				a.logger.Warn("session_unreadable", zap.Error(err))
			}

			a.ctrl = syncer.New(storage.NewLocalStore(a.kv, a.migrator, a.logger), nil, syncer.WithLogger(a.logger))
			if err := a.ctrl.SignOut(ctx); err != nil {
				return err
			}
			if err := deleteSession(ctx, a.kv); err != nil {
				return fmt.Errorf("failed to remove session: %w", err)
			}

			if sess != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Logged out %s\n", sess.Email)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Not logged in; local data cleared")
			}
			return nil
		},
	}
}

// waitForCode serves the OAuth2 redirect on ln until a request with the
// expected state arrives, then returns its authorization code
func waitForCode(ctx context.Context, ln net.Listener, state string) (string, error) {
	type result struct {
		code string
		err  error
	}
	results := make(chan result, 1)

	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var res result
		switch {
		case q.Get("state") != state:
			http.Error(w, "Login state mismatch. Start again with 'planner login'.", http.StatusBadRequest)
			return
		case q.Get("error") != "":
			res.err = fmt.Errorf("login failed: %s %s", q.Get("error"), q.Get("error_description"))
		case q.Get("code") == "":
			res.err = errors.New("login callback carried no authorization code")
		default:
			res.code = q.Get("code")
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if res.err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = fmt.Fprintf(w, "<p>%s</p>", html.EscapeString(res.err.Error()))
		} else {
			_, _ = fmt.Fprint(w, "<p>Logged in. You can close this window.</p>")
		}
		select {
		case results <- res:
		default:
		}
	})

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() { _ = srv.Serve(ln) }()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	select {
	case res := <-results:
		return res.code, res.err
	case <-ctx.Done():
		return "", fmt.Errorf("timed out waiting for login: %w", ctx.Err())
	}
}
