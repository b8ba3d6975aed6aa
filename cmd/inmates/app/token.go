package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	jwttoken "inmates/internal/jwt_token"
	"inmates/internal/platform/config"
)

// newTokenCmd issues bearer tokens for servers running with JWT_SIGNING_KEY.
func newTokenCmd() *cobra.Command {
	var (
		subject  string
		clientID string
		ttl      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API bearer token signed with JWT_SIGNING_KEY",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return report(cmd, &usageError{err: fmt.Errorf("invalid configuration: %w", err)})
			}
			if !cfg.Auth.Enabled() {
				return report(cmd, &usageError{err: errors.New("JWT_SIGNING_KEY is not set")})
			}
			if subject == "" && clientID == "" {
				return report(cmd, &usageError{err: errors.New("--subject or --client-id is required")})
			}

			svc := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer)
			token, err := svc.GenerateAccessToken(subject, clientID, ttl)
			if err != nil {
				return report(cmd, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "Token subject, recorded as the audit actor")
	cmd.Flags().StringVar(&clientID, "client-id", "", "Client id for machine callers")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	return cmd
}
