package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vango-dev/postline/internal/errors"
)

func errorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "errors [code]",
		Short: "List error codes or explain one",
		Long: `Without arguments, list every error code postline reports. With a code,
print its category, description and suggested fix.

Examples:
  postline errors
  postline errors E102`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 1 {
				code := strings.ToUpper(args[0])
				tmpl, ok := errors.GetTemplate(code)
				if !ok {
					return fmt.Errorf("unknown error code %q", args[0])
				}
				fmt.Fprintf(out, "%s  %s\n\n", code, tmpl.Message)
				fmt.Fprintf(out, "  category: %s\n", tmpl.Category)
				if tmpl.Detail != "" {
					fmt.Fprintf(out, "  %s\n", tmpl.Detail)
				}
				if tmpl.Suggestion != "" {
					fmt.Fprintf(out, "  hint: %s\n", tmpl.Suggestion)
				}
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CODE\tCATEGORY\tMESSAGE")
			for _, code := range errors.GetAllCodes() {
				tmpl, _ := errors.GetTemplate(code)
				fmt.Fprintf(tw, "%s\t%s\t%s\n", code, tmpl.Category, tmpl.Message)
			}
			return tw.Flush()
		},
	}
}
