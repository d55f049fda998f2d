package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/darmiel/sessionbridge/internal/core"
	"github.com/darmiel/sessionbridge/internal/resolver"
)

var verifySession bool

var verifyCmd = &cobra.Command{
	Use:   "verify TOKEN",
	Short: "Verify a token against the local configuration",
	Long: `Verifies an external identity token against the configured identity provider and
resolves the account it belongs to. With --session, the token is validated as a
session token instead.

Pass "-" to read the token from stdin.`,
	Example: `  sessionbridge verify -c bridge.yaml eyJraWQiOi...
  sessionbridge verify -c bridge.yaml --session "Bearer eyJhbGciOi..."`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := readTokenArg(args[0])
		if err != nil {
			return err
		}

		cfg, err := f.LoadConfig()
		if err != nil {
			return err
		}
		stack, err := BuildStack(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer func() { _ = stack.Close(context.Background()) }()

		if verifySession {
			claims, err := stack.Validator.Validate(token)
			if err != nil {
				return logError(err, "", fmt.Sprintf("session token rejected (%s)", core.KindOf(err)))
			}
			logSuccess("session token is valid")
			printKV("Name", bold(claims.Name))
			printKV("Roles", strings.Join(claims.Roles, ", "))
			printKV("Token ID", claims.ID)
			printKV("Expires", claims.ExpiresAt.Local().Format(time.RFC1123))
			return nil
		}

		claims, err := stack.Verifier.Verify(cmd.Context(), token)
		if err != nil {
			return logError(err, "", fmt.Sprintf("identity token rejected (%s)", core.KindOf(err)))
		}
		logSuccess("identity token is valid")
		printKV("Issuer", claims.Issuer)
		printKV("Subject", claims.Subject)
		printKV("Email", bold(claims.Email))
		printKV("Expires", claims.ExpiresAt.Local().Format(time.RFC1123))

		identity, err := resolver.New(stack.Accounts.Store()).Resolve(cmd.Context(), claims.Email)
		if err != nil {
			log.Warn().Err(err).Msgf("%s no account for %s", redCross, claims.Email)
			return BeQuietError{}
		}
		printKV("Account", bold(identity.Username))
		printKV("Roles", strings.Join(identity.Roles, ", "))
		return nil
	},
}

func printKV(key string, val any) {
	fmt.Printf("  %-20s %v\n", faint(key)+":", val)
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().BoolVar(&verifySession, "session", false, "Validate a session token instead of an identity token")
}
