package cmd

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

// newGenerateCommand never talks to a server: it mints a secp256k1
// keypair locally, the way an operator provisions a root or authority
// key before ever bootstrapping or registering it (spec §6.5).
func newGenerateCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "generate a new secp256k1 keypair",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := crypto.GenerateKey()
			if err != nil {
				return fmt.Errorf("generate key: %w", err)
			}

			privateHex := hex.EncodeToString(crypto.FromECDSA(key))
			publicHex := hex.EncodeToString(crypto.CompressPubkey(&key.PublicKey))

			out := fmt.Sprintf("private_key=%s\npublic_key=%s\n", privateHex, publicHex)

			if output == "" {
				fmt.Fprint(cmd.OutOrStdout(), out)
				return nil
			}

			return os.WriteFile(output, []byte(out), 0o600)
		},
	}

	cmd.Flags().StringVar(&output, "output", "", "write the keypair to a file instead of stdout")

	return cmd
}
