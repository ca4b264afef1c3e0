package main

import (
	"fmt"
	"os"

	"github.com/benvon/away-reply/cmd/configure/commands"
	"github.com/benvon/away-reply/internal/config"
	"github.com/benvon/away-reply/internal/logger"
)

func main() {
	if _, err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	zapLogger, err := logger.NewDevelopmentLogger(false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(zapLogger) // Ignore sync errors on stderr
	}()

	if err := commands.NewRootCmd(zapLogger).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		_ = logger.Sync(zapLogger)
		os.Exit(1)
	}
}
