package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newGetPolicyCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "get-policy",
		Short: "read back the active policy bundle",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Bundle string `json:"bundle"`
			}

			c := newAPIClient(serverAddress)
			if err := c.get("/v1/policy/bundle", &resp); err != nil {
				return err
			}

			if output == "" {
				fmt.Fprintln(cmd.OutOrStdout(), resp.Bundle)
				return nil
			}

			return os.WriteFile(output, []byte(resp.Bundle), 0o600)
		},
	}

	cmd.Flags().StringVar(&output, "output", "", "write the bundle to a file instead of stdout")

	return cmd
}
