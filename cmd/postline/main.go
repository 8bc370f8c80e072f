// Command postline serves the live-updating blog.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/postline/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		errors.PrintError(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var noColor bool

	cmd := &cobra.Command{
		Use:   "postline",
		Short: "Server-rendered blog with live updates",
		Long: `postline renders blog pages on the server with their data already
fetched, then keeps every open tab in sync by relaying new posts
and comments over WebSocket.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_, noColorEnv := os.LookupEnv("NO_COLOR")
			errors.SetColor(!noColor && !noColorEnv)
		},
	}

	cmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored error output")
	cmd.AddCommand(
		serveCmd(),
		routesCmd(),
		errorsCmd(),
		versionCmd(),
	)
	return cmd
}

// info prints an info message.
func info(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", fmt.Sprintf(format, args...))
}
