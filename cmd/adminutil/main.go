package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sudo-init-do/bidroom/internal/config"
	"github.com/sudo-init-do/bidroom/internal/db"
	"github.com/sudo-init-do/bidroom/internal/models"
	"github.com/sudo-init-do/bidroom/internal/user"
	"github.com/sudo-init-do/bidroom/internal/utils"
)

var rootCmd = &cobra.Command{
	Use:   "adminutil",
	Short: "Operator tools for the bidroom service",
}

var (
	promoteUser int64
	promoteRole string

	tokenUser int64
	tokenTTL  time.Duration
)

var promoteCmd = &cobra.Command{
	Use:   "promote",
	Short: "Assign a role to a user, registering the user if needed",
	RunE:  runPromote,
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print a signed access token for a user",
	RunE:  runToken,
}

func init() {
	promoteCmd.Flags().Int64Var(&promoteUser, "user", 0, "user id to promote")
	promoteCmd.Flags().StringVar(&promoteRole, "role", string(models.RoleAdmin), "requester, responder or admin")
	_ = promoteCmd.MarkFlagRequired("user")

	tokenCmd.Flags().Int64Var(&tokenUser, "user", 0, "user id the token is issued for")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	_ = tokenCmd.MarkFlagRequired("user")

	rootCmd.AddCommand(promoteCmd, tokenCmd)
}

func runPromote(cmd *cobra.Command, args []string) error {
	role := models.ParseRole(promoteRole)
	if role == models.RoleUnknown {
		return fmt.Errorf("unknown role %q", promoteRole)
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx := context.Background()
	gw, err := db.Connect(ctx, db.Options{
		URL:            cfg.DatabaseURL,
		MaxConns:       cfg.MaxConns,
		Retries:        cfg.ConnectRetries,
		Backoff:        cfg.ConnectBackoff,
		AcquireTimeout: cfg.AcquireTimeout,
	})
	if err != nil {
		return err
	}
	defer gw.Close()

	if err := gw.EnsureSchema(ctx); err != nil {
		return err
	}

	registry := user.NewRegistry(gw, cfg.AdminIDs)
	err = registry.AssignRole(ctx, promoteUser, role)
	if errors.Is(err, db.ErrNotFound) {
		err = registry.UpsertUser(ctx, models.User{ID: promoteUser, Role: role})
	}
	if err != nil {
		return fmt.Errorf("promote user %d: %w", promoteUser, err)
	}
	// A running server keeps conversation state in memory; the user should
	// send /start there so the new menu is shown.
	fmt.Fprintf(cmd.OutOrStdout(), "User %d is now %s.\n", promoteUser, role)
	return nil
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if tokenUser <= 0 {
		return errors.New("--user must be a positive id")
	}
	tok, err := utils.IssueToken(cfg.JWTSecret, tokenUser, tokenTTL)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), tok)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
