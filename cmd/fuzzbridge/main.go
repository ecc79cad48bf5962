package main

import (
	"fmt"
	"os"

	"github.com/loykin/fuzzbridge"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	root := buildRoot(newApp(os.Stdout, os.Stderr, fuzzbridge.Realize))
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "fuzzbridge:", err)
		os.Exit(1)
	}
}
