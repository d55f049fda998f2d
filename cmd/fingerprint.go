package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/darmiel/sessionbridge/internal/audit"
)

var fingerprintRaw bool

var fingerprintCmd = &cobra.Command{
	Use:     "fingerprint TOKEN",
	Aliases: []string{"fp"},
	Short:   `Calculate the fingerprint of a session token`,
	Long: `Calculates the fingerprint of a session token (SHA256, base64url without padding).
This is the value stored in the audit log in the 'token_fingerprint' field, so a token
can be matched to the login or exchange that issued it.`,
	Example: `  sessionbridge fingerprint eyJhbGciOi...

  # from stdin
  echo "Bearer eyJ..." | sessionbridge fp -`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := readTokenArg(args[0])
		if err != nil {
			return err
		}

		fp := audit.Fingerprint(token)
		if fingerprintRaw {
			fmt.Println(fp)
		} else {
			fmt.Println("Fingerprint:", fp)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fingerprintCmd)

	fingerprintCmd.Flags().BoolVarP(&fingerprintRaw, "raw", "r", false,
		"Output only the fingerprint value without additional text")
}
