// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StudentDiary Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/studentdiary/diary/internal/config"
)

// NewRootCmd creates the root command for the diary CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(Deps{})
}

func newRootCmd(deps Deps) *cobra.Command {
	deps = deps.withDefaults()
	app := &cliApp{deps: deps}

	cmd := &cobra.Command{
		Use:   "diary",
		Short: "StudentDiary account administration",
		Long: `diary manages StudentDiary accounts: registration, login with
lockout, password reset and profile maintenance, plus the database schema.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&app.configFile, "config", "", "config file path")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(newMigrateCmd(app))
	cmd.AddCommand(newRegisterCmd(app))
	cmd.AddCommand(newLoginCmd(app))
	cmd.AddCommand(newForgotPasswordCmd(app))
	cmd.AddCommand(newResetPasswordCmd(app))
	cmd.AddCommand(newProfileCmd(app))

	return cmd
}
