package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/darmiel/sessionbridge/internal/api"
	"github.com/darmiel/sessionbridge/internal/config"
	"github.com/darmiel/sessionbridge/pkg/client"
)

var (
	meExternalToken string
	meHeader        string
)

var meCmd = &cobra.Command{
	Use:   "me",
	Short: "Show who the server authenticates you as",
	Long: `Asks the server which principal the saved credentials belong to.
With --external-token, the request carries an identity token instead and is bridged by the server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := f.GetClient()
		if err != nil {
			return err
		}

		var (
			me          *api.MeResponse
			correlation string
		)
		if meExternalToken != "" {
			token, err := readTokenArg(meExternalToken)
			if err != nil {
				return err
			}
			me, correlation, err = cli.MeExternal(cmd.Context(), meHeader, token)
			if err != nil {
				return logError(err, correlation, "request was not authenticated")
			}
		} else {
			me, correlation, err = cli.Me(cmd.Context())
			if errors.Is(err, client.ErrInvalidSession) {
				return logError(err, correlation, "not logged in or session expired, run 'sessionbridge login'")
			}
			if err != nil {
				return logError(err, correlation, "failed to query principal")
			}
		}

		fmt.Println(bold("\n── Principal ──"))
		printKV("Name", bold(me.Name))
		printKV("Roles", strings.Join(me.Roles, ", "))
		printKV("Source", me.Source)
		fmt.Println()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(meCmd)

	bindExternalTokenFlag(meCmd.Flags(), &meExternalToken)
	meCmd.Flags().StringVar(&meHeader, "header", config.DefaultExternalHeader, "Header carrying the identity token")
}
