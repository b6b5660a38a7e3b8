package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type uuidGenerator struct{}

func (g *uuidGenerator) NewID() string {
	return uuid.NewString()
}

type realClock struct{}

func (c *realClock) Now() time.Time {
	return time.Now()
}

func main() {
	var envFile string

	root := &cobra.Command{
		Use:           "api",
		Short:         "Banarasi Thekua shop API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", ".env file (ignored if missing)")

	root.AddCommand(
		newServeCmd(&envFile),
		newMigrateCmd(&envFile),
	)

	//サブコマンド無しならserve
	root.RunE = func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context(), envFile)
	}

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
