package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/darmiel/sessionbridge/internal/core"
)

var (
	issueRoles []string
	issueRaw   bool
)

var issueCmd = &cobra.Command{
	Use:   "issue USERNAME",
	Short: "Issue a session token locally",
	Long: `Issues a session token with the configured session secret, without a running server.
Without --role, the roles of the account are read from the configured account store.`,
	Example: `  # token for an account of the store
  sessionbridge issue -c bridge.yaml alice

  # token with explicit roles
  sessionbridge issue -c bridge.yaml alice --role Admin --role User`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		username := args[0]

		cfg, err := f.LoadConfig()
		if err != nil {
			return err
		}
		stack, err := BuildStack(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer func() { _ = stack.Close(context.Background()) }()

		roles := issueRoles
		if len(roles) == 0 {
			store := stack.Accounts.Store()
			acc, err := store.FindByUsername(cmd.Context(), username)
			if err != nil {
				return fmt.Errorf("looking up account %q: %w", username, err)
			}
			if roles, err = store.Roles(cmd.Context(), acc.ID); err != nil {
				return fmt.Errorf("reading roles: %w", err)
			}
		}

		tok, err := stack.Issuer.Issue(cmd.Context(), username, core.NormalizeRoles(roles))
		if err != nil {
			return err
		}

		if issueRaw {
			fmt.Println(tok.Value)
			return nil
		}
		log.Info().
			Strs("roles", tok.Claims.Roles).
			Str("jti", tok.Claims.ID).
			Msgf("Issued token for %s, valid until %s", bold(username), tok.ExpiresAt.Local().Format(time.RFC1123))
		fmt.Println("Bearer " + tok.Value)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(issueCmd)

	issueCmd.Flags().StringSliceVar(&issueRoles, "role", nil, "Role to put into the token (repeatable)")
	issueCmd.Flags().BoolVarP(&issueRaw, "raw", "r", false, "Output only the token without the \"Bearer \" prefix")
}
