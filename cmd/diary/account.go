// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StudentDiary Contributors

package main

import (
	"context"
	"strings"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/studentdiary/diary/internal/auth"
)

type registerConfig struct {
	req auth.RegisterRequest
}

func newRegisterCmd(app *cliApp) *cobra.Command {
	cfg := &registerConfig{}

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withService(cmd, func(ctx context.Context, svc AuthService) error {
				res, err := svc.Register(ctx, cfg.req)
				if err != nil {
					return err
				}
				return report(cmd, res)
			})
		},
	}

	cmd.Flags().StringVar(&cfg.req.Username, "username", "", "account username")
	cmd.Flags().StringVar(&cfg.req.Email, "email", "", "account email")
	cmd.Flags().StringVar(&cfg.req.Password, "password", "", "account password")
	cmd.Flags().StringVar(&cfg.req.ConfirmPassword, "confirm-password", "", "password confirmation")
	cmd.Flags().StringVar(&cfg.req.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&cfg.req.LastName, "last-name", "", "last name")

	return cmd
}

type loginConfig struct {
	username string
	password string
}

func newLoginCmd(app *cliApp) *cobra.Command {
	cfg := &loginConfig{}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Check credentials against the lockout policy",
		Long: `Verify a username and password. Three consecutive failures lock the
account for 15 minutes. On success the profile and session identity are printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withService(cmd, func(ctx context.Context, svc AuthService) error {
				res, err := svc.Login(ctx, cfg.username, cfg.password)
				if err != nil {
					return err
				}
				if !res.OK {
					return resultError(res.Result)
				}
				cmd.Println(res.Message)
				cmd.Printf("session: user_id=%d username=%s\n", res.Identity.UserID, res.Identity.Username)
				printProfile(cmd, res.Profile)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&cfg.username, "username", "", "account username")
	cmd.Flags().StringVar(&cfg.password, "password", "", "account password")

	return cmd
}

func newForgotPasswordCmd(app *cliApp) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "forgot-password",
		Short: "Issue a password reset token",
		Long: `Issue a one-hour password reset token for the account with the given
email. The token is written to stdout in place of an email.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withService(cmd, func(ctx context.Context, svc AuthService) error {
				res, err := svc.ForgotPassword(ctx, email)
				if err != nil {
					return err
				}
				return report(cmd, res)
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")

	return cmd
}

type resetPasswordConfig struct {
	token    string
	password string
}

func newResetPasswordCmd(app *cliApp) *cobra.Command {
	cfg := &resetPasswordConfig{}

	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Set a new password with a reset token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withService(cmd, func(ctx context.Context, svc AuthService) error {
				res, err := svc.ResetPassword(ctx, cfg.token, cfg.password)
				if err != nil {
					return err
				}
				return report(cmd, res)
			})
		},
	}

	cmd.Flags().StringVar(&cfg.token, "token", "", "reset token")
	cmd.Flags().StringVar(&cfg.password, "password", "", "new password")

	return cmd
}

// report prints a successful result or converts a failed one to an error.
func report(cmd *cobra.Command, res auth.Result) error {
	if !res.OK {
		return resultError(res)
	}
	cmd.Println(res.Message)
	return nil
}

// resultError turns a failed result into an error coded by its kind.
func resultError(res auth.Result) error {
	return oops.Code(strings.ToUpper(string(res.Kind))).Errorf("%s", res.Message)
}

func printProfile(cmd *cobra.Command, p *auth.Profile) {
	if p == nil {
		return
	}
	cmd.Printf("id:         %d\n", p.ID)
	cmd.Printf("username:   %s\n", p.Username)
	cmd.Printf("email:      %s\n", p.Email)
	cmd.Printf("first name: %s\n", p.FirstName)
	cmd.Printf("last name:  %s\n", p.LastName)
	cmd.Printf("picture:    %s\n", p.ProfilePicturePath)
	cmd.Printf("created:    %s\n", p.CreatedAt.UTC().Format(time.RFC3339))
}
