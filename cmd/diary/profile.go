// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StudentDiary Contributors

package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/studentdiary/diary/internal/auth"
)

func newProfileCmd(app *cliApp) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or change a user's profile",
	}

	cmd.AddCommand(newProfileShowCmd(app))
	cmd.AddCommand(newProfileUpdateCmd(app))
	cmd.AddCommand(newProfilePictureCmd(app))

	return cmd
}

func newProfileShowCmd(app *cliApp) *cobra.Command {
	var userID int64

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print a user's profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withService(cmd, func(ctx context.Context, svc AuthService) error {
				res, err := svc.GetProfile(ctx, userID)
				if err != nil {
					return err
				}
				if !res.OK {
					return resultError(res.Result)
				}
				printProfile(cmd, res.Profile)
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&userID, "user-id", 0, "user id")
	_ = cmd.MarkFlagRequired("user-id")

	return cmd
}

type profileUpdateConfig struct {
	userID int64
	upd    auth.ProfileUpdate
}

func newProfileUpdateCmd(app *cliApp) *cobra.Command {
	cfg := &profileUpdateConfig{}

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Change names or email; blank values are left as they are",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withService(cmd, func(ctx context.Context, svc AuthService) error {
				res, err := svc.UpdateProfile(ctx, cfg.userID, cfg.upd)
				if err != nil {
					return err
				}
				return report(cmd, res)
			})
		},
	}

	cmd.Flags().Int64Var(&cfg.userID, "user-id", 0, "user id")
	cmd.Flags().StringVar(&cfg.upd.FirstName, "first-name", "", "new first name")
	cmd.Flags().StringVar(&cfg.upd.LastName, "last-name", "", "new last name")
	cmd.Flags().StringVar(&cfg.upd.Email, "email", "", "new email")
	_ = cmd.MarkFlagRequired("user-id")

	return cmd
}

func newProfilePictureCmd(app *cliApp) *cobra.Command {
	var (
		userID int64
		path   string
	)

	cmd := &cobra.Command{
		Use:   "picture",
		Short: "Record the stored path of a user's profile picture",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withService(cmd, func(ctx context.Context, svc AuthService) error {
				res, err := svc.UpdateProfilePicture(ctx, userID, path)
				if err != nil {
					return err
				}
				return report(cmd, res)
			})
		},
	}

	cmd.Flags().Int64Var(&userID, "user-id", 0, "user id")
	cmd.Flags().StringVar(&path, "path", "", "picture path")
	_ = cmd.MarkFlagRequired("user-id")
	_ = cmd.MarkFlagRequired("path")

	return cmd
}
