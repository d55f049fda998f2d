package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/darmiel/sessionbridge/internal/core"
)

var exchangeRaw bool

var exchangeCmd = &cobra.Command{
	Use:   "exchange TOKEN",
	Short: "Exchange an identity token for a session token locally",
	Long: `Runs the bridge exchange without a server: the identity token is verified, its
account is resolved and a session token is issued for it.

Pass "-" to read the token from stdin.`,
	Example: `  echo "$OKTA_ID_TOKEN" | sessionbridge exchange -c bridge.yaml -`,
	Args:    cobra.ExactArgs(1),
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

		tok, err := stack.Authenticator.Exchange(cmd.Context(), token)
		if err != nil {
			reason := string(core.KindOf(err))
			if reason == "" {
				reason = "internal"
			}
			return logError(err, "", fmt.Sprintf("exchange failed (%s)", reason))
		}

		if exchangeRaw {
			fmt.Println(tok.Value)
			return nil
		}
		log.Info().
			Strs("roles", tok.Claims.Roles).
			Msgf("Exchanged token for %s, valid until %s", bold(tok.Claims.Name), tok.ExpiresAt.Local().Format(time.RFC1123))
		fmt.Println("Bearer " + tok.Value)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exchangeCmd)

	exchangeCmd.Flags().BoolVarP(&exchangeRaw, "raw", "r", false, "Output only the token without the \"Bearer \" prefix")
}
