package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chronicleworks/chronicle/internal/policy"
)

func newGetKeyCommand() *cobra.Command {
	var name, output string

	cmd := &cobra.Command{
		Use:   "get-key",
		Short: "read back a named key entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			var entry policy.KeyEntry

			c := newAPIClient(serverAddress)
			if err := c.get("/v1/policy/key/"+name, &entry); err != nil {
				return err
			}

			raw, err := json.MarshalIndent(entry, "", "  ")
			if err != nil {
				return fmt.Errorf("encode key entry: %w", err)
			}

			if output == "" {
				fmt.Fprintln(cmd.OutOrStdout(), string(raw))
				return nil
			}

			return os.WriteFile(output, raw, 0o600)
		},
	}

	cmd.Flags().StringVar(&name, "id", "", "name of the key to read")
	cmd.Flags().StringVar(&output, "output", "", "write the key entry to a file instead of stdout")

	_ = cmd.MarkFlagRequired("id")

	return cmd
}
