package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vango-dev/postline/internal/blog"
	"github.com/vango-dev/postline/pkg/router"
	"github.com/vango-dev/postline/pkg/view"
)

func routesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "List the page routes",
		Long: `List every page and redirect route with the components it renders,
outermost first.`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PATTERN\tKIND\tRENDERS")
			for _, r := range blog.Routes("").Routes() {
				target := r.Target
				if r.Kind == router.KindPage {
					target = view.Names(r.Components)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Pattern, r.Kind, target)
			}
			tw.Flush()
		},
	}
}
