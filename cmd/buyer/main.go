// Command buyer buys tickets from a running ticket office.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/srediag/shm-pool/internal/cmd"
)

func main() {
	if err := cmd.NewBuyerCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
