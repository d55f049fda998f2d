package cmd

import (
	"github.com/spf13/cobra"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the audit log of a server",
	Long: `Commands to read the audit log of a sessionbridge server.
Requires a saved session of an account with the Admin role.`,
}

func init() {
	rootCmd.AddCommand(auditCmd)
}
