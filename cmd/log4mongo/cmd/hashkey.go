package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/log4mongo/log4mongo-go/internal/controller"
)

var hashKeyCmd = &cobra.Command{
	Use:   "hash-key [token]",
	Short: "Hash an ingest API key",
	Long: `Print the bcrypt hash to add under server.api_keys. Without an argument a
new random token is generated and printed together with its hash.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHashKey,
}

func init() {
	rootCmd.AddCommand(hashKeyCmd)
}

func runHashKey(cmd *cobra.Command, args []string) error {
	var token string
	if len(args) == 1 {
		token = args[0]
	} else {
		t, err := controller.GenerateToken()
		if err != nil {
			return err
		}
		token = t
		fmt.Fprintf(cmd.OutOrStdout(), "token: %s\n", token)
	}

	hash, err := controller.HashToken(token)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "hash:  %s\n", hash)
	return nil
}
