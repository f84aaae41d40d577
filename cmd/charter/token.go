package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/xraph/charter/auth"
)

func newTokenCmd(configPath *string) *cobra.Command {
	var (
		subject string
		role    string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a bearer token for local use and testing",
		Example: `  charter token --subject ops-1 --role manager --ttl 1h
  CHARTER_AUTH_SECRET=dev charter token --role 0`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(nil, *configPath)
			if err != nil {
				return err
			}
			if cfg.Auth.Secret == "" {
				return errors.New("auth.secret is not configured")
			}
			r, err := parseRoleArg(role)
			if err != nil {
				return err
			}
			tok, err := auth.NewAuthenticator([]byte(cfg.Auth.Secret)).Sign(subject, r, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "cli", "token subject (user id)")
	cmd.Flags().StringVar(&role, "role", "manager", "role name or number (admin=0 ... customer=4)")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}

func parseRoleArg(s string) (auth.Role, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return auth.ParseRole(n)
	}
	return auth.ParseRoleName(s)
}
