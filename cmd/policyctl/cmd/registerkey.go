package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chronicleworks/chronicle/internal/policy"
)

func newRegisterKeyCommand() *cobra.Command {
	var name, publicKeyHex, privateKeyHex string

	var overwrite bool

	cmd := &cobra.Command{
		Use:   "register-key",
		Short: "register a named authority key",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := resolvePublicKey(publicKeyHex, privateKeyHex)
			if err != nil {
				return err
			}

			c := newAPIClient(serverAddress)

			if err := c.post("/v1/policy/register-key", registerKeyRequest{
				Name:         name,
				PublicKeyHex: key,
				Overwrite:    overwrite,
			}, nil); err != nil {
				return err
			}

			w, err := parseWait(waitFlag)
			if err != nil {
				return err
			}

			if err := w.confirm(func() error {
				var entry policy.KeyEntry
				return c.get("/v1/policy/key/"+name, &entry)
			}); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "key %q registered\n", name)

			return nil
		},
	}

	cmd.Flags().StringVar(&name, "id", "", "name to register the key under")
	cmd.Flags().StringVar(&publicKeyHex, "public-key", "", "hex-encoded compressed secp256k1 public key")
	cmd.Flags().StringVar(&privateKeyHex, "from-private-key", "", "derive the public key from a hex-encoded private key instead")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace an existing key registered under the same id")

	_ = cmd.MarkFlagRequired("id")

	return cmd
}

type registerKeyRequest struct {
	Name         string `json:"name"`
	PublicKeyHex string `json:"publicKeyHex"`
	Overwrite    bool   `json:"overwrite"`
}
