package cmd

import (
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/darmiel/sessionbridge/internal/cliconfig"
	"github.com/darmiel/sessionbridge/internal/session"
	"github.com/darmiel/sessionbridge/pkg/client"
)

var (
	loginUsername      string
	loginPassword      string
	loginExternalToken string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate with a sessionbridge server",
	Long: `Obtains a session token, either with username and password or by exchanging an
identity token of the external identity provider. The session token is saved locally
to allow future authenticated requests (like audit logs).`,
	Example: `  sessionbridge login --server http://localhost:8080 -u alice -p secret1
  sessionbridge login --server http://localhost:8080 --external-token eyJraWQiOi...`,
	RunE: func(cmd *cobra.Command, args []string) error {
		server := f.RemoteAddr
		if server == "" {
			return fmt.Errorf("server address not configured, provide via --server or env")
		}
		u, err := url.Parse(server)
		if err != nil {
			return fmt.Errorf("parsing server URL: %w", err)
		}

		cli := client.New(server)
		cred := &cliconfig.Credential{}

		switch {
		case loginExternalToken != "":
			token, err := readTokenArg(loginExternalToken)
			if err != nil {
				return err
			}
			log.Info().Msgf("Exchanging identity token at %q...", u.Host)
			resp, correlation, err := cli.LoginExternal(cmd.Context(), token)
			if err != nil {
				return logError(err, correlation, "failed to exchange identity token")
			}
			cred.Token = resp.Token
			// the exchange route does not report the expiration
			cred.ExpiresAt = time.Now().Add(session.Validity)
		case loginUsername != "":
			log.Info().Msgf("Logging in as %s at %q...", loginUsername, u.Host)
			resp, correlation, err := cli.Login(cmd.Context(), loginUsername, loginPassword)
			if err != nil {
				return logError(err, correlation, "login failed")
			}
			cred.Token = resp.Token
			cred.Username = loginUsername
			if resp.Expiration != nil {
				cred.ExpiresAt = *resp.Expiration
			}
		default:
			return fmt.Errorf("provide --username or --external-token")
		}

		cfg, err := cliconfig.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if err := cfg.SetCredential(server, cred); err != nil {
			return err
		}
		if err := cliconfig.Save(cfg); err != nil {
			return logError(err, "", "login succeeded but could not save credentials")
		}

		logSuccess("saved credentials for %s (valid until %s)", bold(u.Host), cred.ExpiresAt.Local().Format(time.Kitchen))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)

	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "Username of the local account")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "Password of the local account")
	bindExternalTokenFlag(loginCmd.Flags(), &loginExternalToken)
	loginCmd.MarkFlagsMutuallyExclusive("username", "external-token")
}
