package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/creamcroissant/marzgo/internal/auth/token"
	"github.com/creamcroissant/marzgo/internal/config"
	"github.com/creamcroissant/marzgo/internal/repository"
)

var tokenCmd = &cobra.Command{
	Use:   "token <username>",
	Short: "Issue a subscription token for a user",
	Args:  cobra.ExactArgs(1),
	RunE:  runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	store, err := repository.NewMemoryStore(cfg)
	if err != nil {
		return err
	}

	username := args[0]
	if _, err := store.User(username); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return fmt.Errorf("user %q is not configured", username)
		}
		return err
	}

	tokens, err := token.NewManager(token.Options{
		SigningKey: []byte(cfg.Auth.SigningKey),
		Issuer:     cfg.Auth.Issuer,
		TTL:        cfg.Auth.TokenTTL,
		Leeway:     cfg.Auth.Leeway,
	})
	if err != nil {
		return err
	}

	signed, err := tokens.Issue(username)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), signed)
	return nil
}
