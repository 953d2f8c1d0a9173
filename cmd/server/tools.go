package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmynk/plantid/internal/auth"
	"github.com/mmynk/plantid/internal/models"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull the remote plant catalog into the local store",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.catalog.SyncAll(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(report)
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show local record counts and the last sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		stats, err := a.catalog.Stats(cmd.Context())
		if err != nil {
			return err
		}
		depth, err := a.store.OutboxDepth(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(map[string]any{"catalog": stats, "outboxDepth": depth})
	},
}

var (
	tokenUserID string
	tokenEmail  string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a device session token for a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Server.JWTSecret == "" {
			return errors.New("server.jwt_secret (PLANTID_JWT_SECRET) is required")
		}

		token, err := auth.NewJWTManager(cfg.Server.JWTSecret, cfg.Server.TokenTTL).
			Generate(&models.User{ID: tokenUserID, Email: tokenEmail})
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUserID, "user", "", "user id")
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "", "user email")
	tokenCmd.MarkFlagRequired("user")
}
