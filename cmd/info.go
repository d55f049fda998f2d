package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/darmiel/sessionbridge/internal/buildinfo"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show information about the sessionbridge installation",
	Long: `Shows the local build information. If --server is set, the server's build
information is shown as well and a version mismatch is reported.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		local := buildinfo.GetBuildInfo()
		printInfo("Local", &local)

		if f.RemoteAddr == "" {
			return nil
		}

		cli, err := f.GetClient()
		if err != nil {
			return err
		}
		log.Debug().Str("server", f.RemoteAddr).Msg("Fetching build info from server...")
		remote, correlation, err := cli.Info(cmd.Context())
		if err != nil {
			return logError(err, correlation, "failed to get info from server")
		}
		printInfo("Server", remote)

		if remote.Version != local.Version {
			log.Warn().Msgf("client (%s) and server (%s) versions differ", local.Version, remote.Version)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func printInfo(title string, info *buildinfo.Info) {
	fmt.Println(bold(fmt.Sprintf("\n── %s Build Information ──", title)))
	printKV("Service", info.Service)
	printKV("Version", info.Version)
	printKV("Commit", info.CommitHash)
	printKV("About", info.About)
}
