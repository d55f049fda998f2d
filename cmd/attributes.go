package cmd

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var attributesDump bool

var attributesCmd = &cobra.Command{
	Use:     "attributes TOKEN",
	Aliases: []string{"attrs"},
	Short:   "Prints the attributes (claims) of a JWT token",
	Long: `The attributes command extracts and displays the header and claims of a JWT token.
It does not perform any validation, it simply decodes the token and shows its contents.

Works for identity tokens as well as session tokens. Pass "-" to read the token from stdin.`,
	Example: `  sessionbridge attributes <JWT token>
  sessionbridge attributes --dump <JWT token>`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tokenInput, err := readTokenArg(args[0])
		if err != nil {
			return err
		}

		parser := jwt.NewParser()
		token, _, err := parser.ParseUnverified(tokenInput, jwt.MapClaims{})
		if err != nil {
			return fmt.Errorf("parsing token: %w", err)
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return fmt.Errorf("invalid token claims")
		}

		if attributesDump {
			spew.Dump(token.Header, claims)
			return nil
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Section", "Key", "Value"})
		for _, k := range sortedKeys(token.Header) {
			t.AppendRow(table.Row{"header", k, token.Header[k]})
		}
		t.AppendSeparator()
		for _, k := range sortedKeys(claims) {
			t.AppendRow(table.Row{"claims", k, truncate(fmt.Sprint(claims[k]), 80)})
		}
		t.SetStyle(table.StyleLight)
		t.Render()

		if _, ok := claims["iss"]; !ok {
			log.Warn().Msg("Token does not contain 'iss' claim")
		}
		if _, ok := claims["email"]; !ok && claims["name"] == nil {
			log.Warn().Msg("Token carries neither 'email' nor 'name', it can not be bridged or used as session")
		}

		// print & parse expiration if present and print remaining
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			remaining := time.Until(exp.Time)
			if remaining < 0 {
				log.Warn().Msgf("Expiration (exp): %v (expired %v ago)", exp.Local(), (-remaining).Round(time.Second))
			} else {
				log.Info().Msgf("Expiration (exp): %v (in %v)", exp.Local(), remaining.Round(time.Second))
			}
		}

		return nil
	},
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func init() {
	rootCmd.AddCommand(attributesCmd)

	attributesCmd.Flags().BoolVar(&attributesDump, "dump", false, "Dump header and claims with their Go types")
}
