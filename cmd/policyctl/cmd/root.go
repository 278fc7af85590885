package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// errUsage marks a failure the caller could have avoided by passing
// different arguments (bad hex, missing file, malformed --wait) as
// distinct from an operation failure against a reachable server
// (policy denied, not found, transport error).
var errUsage = errors.New("usage error")

var (
	serverAddress string
	waitFlag      string
)

// NewRootCommand is a func that builds the policyctl command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "policyctl",
		Short:         "policyctl administers a chronicled node's policy engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&serverAddress, "server", "http://localhost:3011", "chronicled HTTP admin address")
	root.PersistentFlags().StringVar(&waitFlag, "wait", "no-wait", `confirmation mode: "no-wait" or a poll count, e.g. "5"`)

	root.AddCommand(
		newBootstrapCommand(),
		newGenerateCommand(),
		newRotateRootCommand(),
		newRegisterKeyCommand(),
		newRotateKeyCommand(),
		newSetPolicyCommand(),
		newGetKeyCommand(),
		newGetPolicyCommand(),
	)

	return root
}

// Execute runs the root command and exits with a code distinguishing
// usage mistakes (1) from operation failures (2), matching the
// convention of the tool this CLI is modeled on.
func Execute() {
	cobra.EnableCommandSorting = false

	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)

		code := 2
		if errors.Is(err, errUsage) {
			code = 1
		}

		os.Exit(code)
	}
}
