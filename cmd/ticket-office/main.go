// Command ticket-office creates a ticket pool and reports on it until it
// is sold out.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/srediag/shm-pool/internal/cmd"
)

func main() {
	if err := cmd.NewOfficeCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
