package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bunko/bunko/pkg/citation"
	"github.com/bunko/bunko/pkg/search"
)

var parseQuery string

// parseCmd shows how citation markers in a text are read and resolved
var parseCmd = &cobra.Command{
	Use:   "parse [text]",
	Short: "Parse citation markers in text",
	Long: `Parse the citation markers in text (or stdin) and show how each one
resolves. Without --query nothing can resolve; with --query the markers are
matched against that search's results.

Examples:
  echo "吾輩は猫である[出典: 吾輩は猫である - 夏目漱石]" | bunko parse
  bunko parse --query "猫" "[出典: 吾輩は猫である]"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")
		if len(args) == 0 {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return err
			}
			text = string(data)
		}

		registry := citation.Empty()
		if parseQuery != "" {
			stack, release, err := openStack(cmdContext(cmd))
			if err != nil {
				return err
			}
			defer release()

			req := search.NewRequest(parseQuery)
			req.KInternal = bunkoConfig.Search.KInternal
			req.KWeb = bunkoConfig.Search.KWeb
			req.IncludeWeb = bunkoConfig.Search.IncludeWeb
			resp, err := stack.Searcher.Search(cmdContext(cmd), req)
			if err != nil {
				fmt.Fprintf(os.Stderr, "search failed, resolving against nothing: %v\n", err)
			} else {
				registry = citation.Build(resp.Snippets())
			}
		}

		parts := citation.ResolveText(text, registry)
		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), parts)
		}
		return printParts(cmd.OutOrStdout(), parts)
	},
}

func init() {
	parseCmd.Flags().StringVar(&parseQuery, "query", "", "resolve against the results of this search")
}

func printParts(w io.Writer, parts []citation.RenderPart) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tKIND\tTITLE\tAUTHOR\tRESOLVED")
	fmt.Fprintln(tw, "-\t----\t-----\t------\t--------")
	n := 0
	for _, p := range parts {
		if !p.IsCitation() {
			continue
		}
		n++
		resolved := "no"
		if p.Resolved != nil {
			resolved = "yes"
			if p.Resolved.DocumentID != "" {
				resolved += " (id " + p.Resolved.DocumentID + ")"
			} else if p.Resolved.URL != "" {
				resolved += " (" + p.Resolved.URL + ")"
			}
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", n, p.Marker.Kind, p.Marker.Title, p.Marker.Author, resolved)
	}
	tw.Flush()

	resolved, unresolved := citation.Stats(parts)
	fmt.Fprintf(w, "\n%d resolved, %d unresolved\n\n", resolved, unresolved)
	fmt.Fprintln(w, citation.PlainText(parts))
	return nil
}
