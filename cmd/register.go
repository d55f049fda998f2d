package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/darmiel/sessionbridge/internal/api"
)

var (
	registerPayload api.RegisterPayload
	registerAdmin   bool
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account on a sessionbridge server",
	Long: `Creates an account with the User role, or with the Admin role if --admin is set.
The email address links the account to identity tokens of the external identity provider.`,
	Example: `  sessionbridge register --server http://localhost:8080 -u bob -e bob@example.com -p bob123`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := f.GetClient()
		if err != nil {
			return err
		}

		register := cli.Register
		if registerAdmin {
			register = cli.RegisterAdmin
		}
		resp, correlation, err := register(cmd.Context(), registerPayload)
		if err != nil {
			return logError(err, correlation, fmt.Sprintf("failed to register %s", registerPayload.Username))
		}
		logSuccess("%s", resp.Message)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(registerCmd)

	registerCmd.Flags().StringVarP(&registerPayload.Username, "username", "u", "", "Username")
	registerCmd.Flags().StringVarP(&registerPayload.Email, "email", "e", "", "Email address")
	registerCmd.Flags().StringVarP(&registerPayload.Password, "password", "p", "",
		"Password (at least 4 characters, one of them a digit)")
	registerCmd.Flags().BoolVar(&registerAdmin, "admin", false, "Create the account with the Admin role")

	_ = registerCmd.MarkFlagRequired("username")
	_ = registerCmd.MarkFlagRequired("email")
	_ = registerCmd.MarkFlagRequired("password")
}
