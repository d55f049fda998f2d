package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// configValidateCmd represents the config validate command
var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Loads the configuration file given with --config, applies BRIDGE_* environment
overrides and checks the result. Nothing is connected to.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := f.LoadConfig()
		if err != nil {
			return logError(err, "", "Configuration is invalid.")
		}
		keySource := "discovery"
		switch {
		case cfg.External.Keys != "":
			keySource = "inline"
		case cfg.External.KeysFile != "":
			keySource = "file"
		case cfg.External.JWKSURL != "":
			keySource = "jwks_url"
		}
		log.Info().
			Str("issuer", cfg.External.Issuer).
			Str("keys", keySource).
			Str("store", cfg.Store.Type).
			Int("seed_accounts", len(cfg.Seed)).
			Msg("Configuration is valid.")
		return nil
	},
}

func init() {
	configCmd.AddCommand(configValidateCmd)
}
