// Command embedding-worker consumes embedding requests from Kafka, generates
// and stores the vectors, and dead-letters requests that keep failing.
package main

import (
	"fmt"
	"os"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
