package main

import (
	"fmt"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/stitchapp/stitch/internal/auth"
	"github.com/stitchapp/stitch/internal/config"
	"github.com/stitchapp/stitch/internal/db"
	"github.com/stitchapp/stitch/internal/models"
	"golang.org/x/term"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Administer accounts",
	}
	cmd.AddCommand(newUserPasswdCmd())
	return cmd
}

// newUserPasswdCmd resets an account password from the terminal. The new
// password is read without echo.
func newUserPasswdCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "passwd <username>",
		Short: "Reset an account password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			gormDB, err := db.Connect(cfg.DB)
			if err != nil {
				return err
			}

			username := args[0]
			var user models.User
			if err := gormDB.Where("username = ?", username).First(&user).Error; err != nil {
				return fmt.Errorf("user: %q not found", username)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "New password for %s: ", username)
			raw, err := term.ReadPassword(int(syscall.Stdin))
			fmt.Fprintln(cmd.OutOrStdout())
			if err != nil {
				return fmt.Errorf("user: read password: %w", err)
			}
			if len(raw) == 0 {
				return fmt.Errorf("user: password must not be empty")
			}

			hash, err := auth.HashPassword(string(raw))
			if err != nil {
				return err
			}
			if err := gormDB.Model(&user).Update("password_hash", hash).Error; err != nil {
				return fmt.Errorf("user: update password: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "password updated for %s\n", username)
			return nil
		},
	}
}
