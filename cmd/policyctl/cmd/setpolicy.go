package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newSetPolicyCommand() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "set-policy",
		Short: "install a new policy bundle",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("%w: read bundle file: %v", errUsage, err)
			}

			c := newAPIClient(serverAddress)
			if err := c.post("/v1/policy/set-policy", setPolicyRequest{Bundle: string(raw)}, nil); err != nil {
				return err
			}

			w, err := parseWait(waitFlag)
			if err != nil {
				return err
			}

			if err := w.confirm(func() error {
				var resp struct {
					Bundle string `json:"bundle"`
				}
				if err := c.get("/v1/policy/bundle", &resp); err != nil {
					return err
				}

				if resp.Bundle != string(raw) {
					return fmt.Errorf("bundle not yet visible")
				}

				return nil
			}); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "policy bundle installed")

			return nil
		},
	}

	cmd.Flags().StringVar(&path, "policy", "", "path to the policy bundle file")
	_ = cmd.MarkFlagRequired("policy")

	return cmd
}

type setPolicyRequest struct {
	Bundle string `json:"bundle"`
}
