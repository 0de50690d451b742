package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Corphon/ScriptBreakdown/internal/models"
	"github.com/Corphon/ScriptBreakdown/internal/store"
)

// passwordFrom prefers the flag, then BREAKDOWN_PASSWORD
func passwordFrom(flag string) string {
	if flag != "" {
		return flag
	}
	return os.Getenv("BREAKDOWN_PASSWORD")
}

func printSession(cmd *cobra.Command, opts *options, sess models.Session) error {
	out := cmd.OutOrStdout()
	if opts.asJSON {
		return printJSON(out, sess)
	}
	if !sess.LoggedIn || sess.User == nil {
		fmt.Fprintln(out, "Not logged in")
		return nil
	}
	fmt.Fprintf(out, "Logged in as %s <%s>\n", sess.User.Username, sess.User.Email)
	return nil
}

func newLoginCmd(opts *options) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and save the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			password = passwordFrom(password)
			if email == "" || password == "" {
				return fmt.Errorf("--email and --password are required")
			}
			return opts.run(cmd, func(ctx context.Context, s *store.Store) error {
				if !s.Login(ctx, email, password) {
					return failure(s, "login failed")
				}
				return printSession(cmd, opts, s.Session())
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password (or set BREAKDOWN_PASSWORD)")
	return cmd
}

func newRegisterCmd(opts *options) *cobra.Command {
	var req models.RegisterRequest

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and log in",
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Password = passwordFrom(req.Password)
			if req.Email == "" || req.Password == "" {
				return fmt.Errorf("--email and --password are required")
			}
			if req.Username == "" {
				req.Username = req.Email
			}
			return opts.run(cmd, func(ctx context.Context, s *store.Store) error {
				if !s.Register(ctx, req) {
					return failure(s, "registration failed")
				}
				return printSession(cmd, opts, s.Session())
			})
		},
	}
	cmd.Flags().StringVar(&req.Email, "email", "", "Account email")
	cmd.Flags().StringVar(&req.Username, "username", "", "Username (defaults to the email)")
	cmd.Flags().StringVar(&req.Password, "password", "", "Account password (or set BREAKDOWN_PASSWORD)")
	cmd.Flags().StringVar(&req.FullName, "full-name", "", "Display name")
	return cmd
}

func newLogoutCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and forget the saved token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, s *store.Store) error {
				s.Logout(ctx)
				fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
				return nil
			})
		},
	}
}

func newWhoamiCmd(opts *options) *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the saved session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, s *store.Store) error {
				if refresh && s.IsLoggedIn() {
					if s.Profile(ctx) == nil {
						return failure(s, "profile request failed")
					}
				}
				return printSession(cmd, opts, s.Session())
			})
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Reload the profile from the remote service")
	return cmd
}
