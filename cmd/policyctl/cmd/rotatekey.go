package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chronicleworks/chronicle/internal/policy"
	"github.com/chronicleworks/chronicle/internal/signing"
)

func newRotateKeyCommand() *cobra.Command {
	var name, currentPrivateKeyHex, newPrivateKeyHex string

	cmd := &cobra.Command{
		Use:   "rotate-key",
		Short: "rotate a named authority key, double-signed by the outgoing and incoming keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRotateKey(cmd, name, currentPrivateKeyHex, newPrivateKeyHex)
		},
	}

	cmd.Flags().StringVar(&name, "id", "", "name of the key to rotate")
	cmd.Flags().StringVar(&currentPrivateKeyHex, "current-private-key", "", "hex-encoded outgoing private key")
	cmd.Flags().StringVar(&newPrivateKeyHex, "new-private-key", "", "hex-encoded incoming private key")

	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("current-private-key")
	_ = cmd.MarkFlagRequired("new-private-key")

	return cmd
}

func newRotateRootCommand() *cobra.Command {
	var currentPrivateKeyHex, newPrivateKeyHex string

	cmd := &cobra.Command{
		Use:   "rotate-root",
		Short: "rotate the root key, double-signed by the outgoing and incoming keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRotateKey(cmd, "root", currentPrivateKeyHex, newPrivateKeyHex)
		},
	}

	cmd.Flags().StringVar(&currentPrivateKeyHex, "current-private-key", "", "hex-encoded outgoing root private key")
	cmd.Flags().StringVar(&newPrivateKeyHex, "new-private-key", "", "hex-encoded incoming root private key")

	_ = cmd.MarkFlagRequired("current-private-key")
	_ = cmd.MarkFlagRequired("new-private-key")

	return cmd
}

// runRotateKey builds the same {name, new_key} payload the server
// verifies against, signs it with both the outgoing and incoming keys
// client-side, then submits the rotation.
func runRotateKey(cmd *cobra.Command, name, currentPrivateKeyHex, newPrivateKeyHex string) error {
	newKeyHex, err := signing.PublicKeyHexFromPrivateKeyHex(newPrivateKeyHex)
	if err != nil {
		return fmt.Errorf("%w: new private key: %v", errUsage, err)
	}

	payload, err := json.Marshal(policy.RotationPayload{Name: name, NewKey: newKeyHex})
	if err != nil {
		return fmt.Errorf("%w: encode rotation payload: %v", errUsage, err)
	}

	prevSig, err := signing.SignWithPrivateKeyHex(currentPrivateKeyHex, payload)
	if err != nil {
		return fmt.Errorf("%w: sign with current key: %v", errUsage, err)
	}

	newSig, err := signing.SignWithPrivateKeyHex(newPrivateKeyHex, payload)
	if err != nil {
		return fmt.Errorf("%w: sign with new key: %v", errUsage, err)
	}

	c := newAPIClient(serverAddress)

	var versioned policy.VersionedKey
	if err := c.post("/v1/policy/rotate-key", rotateKeyRequest{
		Name:      name,
		NewKeyHex: newKeyHex,
		PrevSig:   prevSig,
		NewSig:    newSig,
	}, &versioned); err != nil {
		return err
	}

	w, err := parseWait(waitFlag)
	if err != nil {
		return err
	}

	if err := w.confirm(func() error {
		var entry policy.KeyEntry
		if err := c.get("/v1/policy/key/"+name, &entry); err != nil {
			return err
		}

		if entry.Current.Version != versioned.Version {
			return fmt.Errorf("rotation not yet visible")
		}

		return nil
	}); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s rotated to version %d\n", name, versioned.Version)

	return nil
}

type rotateKeyRequest struct {
	Name      string `json:"name"`
	NewKeyHex string `json:"newKeyHex"`
	PrevSig   string `json:"prevSig"`
	NewSig    string `json:"newSig"`
}
