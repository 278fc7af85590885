package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chronicleworks/chronicle/internal/policy"
	"github.com/chronicleworks/chronicle/internal/signing"
)

func newBootstrapCommand() *cobra.Command {
	var publicKeyHex, privateKeyHex string

	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "install the initial root key",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := resolvePublicKey(publicKeyHex, privateKeyHex)
			if err != nil {
				return err
			}

			c := newAPIClient(serverAddress)

			if err := c.post("/v1/policy/bootstrap-root", bootstrapRootRequest{PublicKeyHex: key}, nil); err != nil {
				return err
			}

			w, err := parseWait(waitFlag)
			if err != nil {
				return err
			}

			if err := w.confirm(func() error {
				var entry policy.KeyEntry
				return c.get("/v1/policy/key/root", &entry)
			}); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "root key bootstrapped")

			return nil
		},
	}

	cmd.Flags().StringVar(&publicKeyHex, "public-key", "", "hex-encoded compressed secp256k1 public key")
	cmd.Flags().StringVar(&privateKeyHex, "from-private-key", "", "derive the public key from a hex-encoded private key instead")

	return cmd
}

type bootstrapRootRequest struct {
	PublicKeyHex string `json:"publicKeyHex"`
}

func resolvePublicKey(publicKeyHex, privateKeyHex string) (string, error) {
	if publicKeyHex != "" && privateKeyHex != "" {
		return "", fmt.Errorf("%w: pass exactly one of --public-key or --from-private-key", errUsage)
	}

	if publicKeyHex != "" {
		return publicKeyHex, nil
	}

	if privateKeyHex != "" {
		key, err := signing.PublicKeyHexFromPrivateKeyHex(privateKeyHex)
		if err != nil {
			return "", fmt.Errorf("%w: %v", errUsage, err)
		}

		return key, nil
	}

	return "", fmt.Errorf("%w: one of --public-key or --from-private-key is required", errUsage)
}
