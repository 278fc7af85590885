// Command policyctl administers a chronicled node's policy engine: the
// root key, named authority keys, and the active policy bundle (spec
// §6.5). It is a thin HTTP client over the admin endpoints chronicled
// exposes under /v1/policy.
package main

import "github.com/chronicleworks/chronicle/cmd/policyctl/cmd"

func main() {
	cmd.Execute()
}
