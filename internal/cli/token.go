package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/catalogops/internal/auth"
)

var (
	tokenSubject string
	tokenTTL     time.Duration
	tokenAdmin   bool
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a signed token for the admin endpoints",
	Long: `Mint an HS256 token signed with CATALOGD_JWT_SECRET. Tokens carry the
admin claim unless --admin=false is given.

Examples:
  catalogctl token --subject ops@example.com
  catalogctl token --subject ci --ttl 15m`,
	Args: cobra.NoArgs,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "who the token is issued to (required)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	tokenCmd.Flags().BoolVar(&tokenAdmin, "admin", true, "grant the admin claim")
	tokenCmd.MarkFlagRequired("subject")
}

func runToken(cmd *cobra.Command, args []string) error {
	tokens, err := auth.NewTokens(cfg.JWTSecret)
	if err != nil {
		return fmt.Errorf("CATALOGD_JWT_SECRET: %w", err)
	}
	if tokenTTL <= 0 {
		return fmt.Errorf("--ttl must be positive")
	}
	raw, err := tokens.Mint(tokenSubject, tokenAdmin, tokenTTL)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), raw)
	return nil
}
