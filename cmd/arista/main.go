package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"arista/internal/services"
)

func main() {
	cmd := newRootCommand(nil)
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			if services.IsConfiguration(err) {
				fmt.Fprintln(os.Stderr, "configuration error:", err)
			} else {
				fmt.Fprintln(os.Stderr, err)
			}
		}
		os.Exit(services.ExitCode(err))
	}
}
