package cmd

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var auditInspectCmd = &cobra.Command{
	Use:     "inspect CORRELATION-ID",
	Short:   "Show full details of a specific audit log entry",
	Long:    `Searches the newest audit entries (see --scan) for the given correlation ID.`,
	Example: `  sessionbridge audit inspect cs2k9q0t8v4c73b3l2ag`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		correlationID := args[0]
		if correlationID == "" {
			return fmt.Errorf("correlation ID cannot be empty")
		}
		scan, err := cmd.Flags().GetUint("scan")
		if err != nil {
			return err
		}

		cli, err := f.GetClient()
		if err != nil {
			return err
		}

		log.Debug().Msgf("Retrieving entry with correlation ID '%s'...", correlationID)
		audits, correlation, err := cli.ListAudits(cmd.Context(), scan)
		if err != nil {
			return logError(err, correlation, "failed to retrieve audit log entries")
		}

		found := false
		for _, entry := range audits {
			if entry.ID != correlationID {
				continue
			}
			found = true

			status := green("success")
			if !entry.Success {
				status = red("failure")
			}

			fmt.Println(bold("\n── Audit Entry ──"))
			printKV("Correlation ID", entry.ID)
			printKV("Time", entry.Time.Local().Format(time.RFC1123))
			printKV("Action", entry.Action)
			printKV("Result", status)
			if entry.Outcome != "" {
				printKV("Outcome", entry.Outcome)
			}
			if entry.Reason != "" {
				printKV("Reason", entry.Reason)
			}

			fmt.Println(bold("\n── Identity ──"))
			printKV("Username", orNone(entry.Username))
			printKV("Subject", orNone(entry.Subject))
			printKV("Fingerprint", orNone(entry.TokenFingerprint))
			if entry.Error != "" {
				printKV("Error Message", red(entry.Error))
			}

			fmt.Println(bold("\n── Metadata ──"))
			if len(entry.Metadata) == 0 {
				fmt.Printf("  %s\n", faint("(none)"))
			}
			for _, k := range sortedKeys(entry.Metadata) {
				printKV(k, entry.Metadata[k])
			}
			fmt.Println()
		}

		if !found {
			log.Warn().Str("correlation_id", correlationID).Msgf("no audit log entries found in the newest %d", scan)
		}
		return nil
	},
}

func orNone(s string) string {
	if s == "" {
		return faint("(none)")
	}
	return s
}

func init() {
	auditCmd.AddCommand(auditInspectCmd)

	auditInspectCmd.Flags().Uint("scan", 500, "Number of newest entries to search")
}
