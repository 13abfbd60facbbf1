// Command quantum-vault runs the key exchange comparison engine: an HTTP API
// server, a terminal demo, a benchmark and the cryptographic self-test.
//
// Usage:
//
//	quantum-vault serve [--listen 127.0.0.1:8080]
//	quantum-vault demo [--message "hello quantum world"]
//	quantum-vault bench [--runs 10] [--algorithm kyber]
//	quantum-vault selftest
//	quantum-vault config
//	quantum-vault version
package main

import (
	"context"
	"fmt"
	"os"
)

// Set via -ldflags at build time.
var (
	buildTime = "unknown"
	gitCommit = ""
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
