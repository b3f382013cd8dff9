package main

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lalith-99/parabrain/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		if a.db == nil {
			return errors.New("migrate needs a postgres backend")
		}
		if err := a.db.Migrate(cmd.Context()); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		return nil
	},
}

// resetUserCmd wipes a user's projects, areas, notes and conversations
// but keeps the account, so a demo user can start over.
var resetUserCmd = &cobra.Command{
	Use:   "reset-user <user-id>",
	Short: "Delete everything a user owns, keeping the account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid user id: %w", err)
		}

		a, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()
		if a.cfg.StorageBackend != config.BackendPostgres {
			return errors.New("reset-user needs STORAGE_BACKEND=postgres")
		}

		ctx := cmd.Context()
		user, err := a.store.Users.GetByID(ctx, userID)
		if err != nil {
			return fmt.Errorf("load user: %w", err)
		}
		if user == nil {
			return fmt.Errorf("user %s not found", userID)
		}

		if err := a.convs.DeleteByUser(ctx, userID); err != nil {
			return fmt.Errorf("delete conversations: %w", err)
		}
		if err := a.store.Users.PurgeData(ctx, userID); err != nil {
			return fmt.Errorf("purge user data: %w", err)
		}

		a.logger.Info("user data reset",
			zap.String("user_id", userID.String()),
			zap.String("email", user.Email),
		)
		return nil
	},
}
