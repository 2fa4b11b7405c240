package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/bunko/bunko/pkg/search"
	"github.com/bunko/bunko/pkg/viewer"
)

var (
	searchKInternal int
	searchKWeb      int
	searchNoWeb     bool

	worksLimit  int
	worksOffset int

	readFrom int
	readTo   int
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the archive and the web",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stack, release, err := openStack(cmdContext(cmd))
		if err != nil {
			return err
		}
		defer release()

		req := search.NewRequest(strings.Join(args, " "))
		req.KInternal = bunkoConfig.Search.KInternal
		req.KWeb = bunkoConfig.Search.KWeb
		req.IncludeWeb = bunkoConfig.Search.IncludeWeb
		if cmd.Flags().Changed("k-internal") {
			req.KInternal = searchKInternal
		}
		if cmd.Flags().Changed("k-web") {
			req.KWeb = searchKWeb
		}
		if searchNoWeb {
			req.IncludeWeb = false
		}

		resp, err := stack.Searcher.Search(cmdContext(cmd), req)
		if err != nil {
			return err
		}
		return printSearch(cmd.OutOrStdout(), resp, jsonOutput)
	},
}

var worksCmd = &cobra.Command{
	Use:   "works [query]",
	Short: "List works in the archive catalogue",
	RunE: func(cmd *cobra.Command, args []string) error {
		stack, release, err := openStack(cmdContext(cmd))
		if err != nil {
			return err
		}
		defer release()

		list, err := stack.Client.ListWorks(cmdContext(cmd), worksLimit, worksOffset, strings.Join(args, " "))
		if err != nil {
			return err
		}
		return printWorks(cmd.OutOrStdout(), list, jsonOutput)
	},
}

var readCmd = &cobra.Command{
	Use:   "read <work-id>",
	Short: "Print the text of a work",
	Long: `Print the full text of a work, or the rune range [--from, --to).

Offsets are the ones search results carry, so a cited passage can be
checked against its source:
  bunko read 789 --from 120 --to 180`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stack, release, err := openStack(cmdContext(cmd))
		if err != nil {
			return err
		}
		defer release()

		doc, err := stack.Fetcher.FetchDocument(cmdContext(cmd), args[0])
		if err != nil {
			return err
		}

		var r *viewer.Range
		if cmd.Flags().Changed("from") || cmd.Flags().Changed("to") {
			end := readTo
			if !cmd.Flags().Changed("to") {
				end = utf8.RuneCountInString(doc.Text)
			}
			r = &viewer.Range{Start: readFrom, End: end}
		}
		return printDocument(cmd.OutOrStdout(), doc, r)
	},
}

func init() {
	searchCmd.Flags().IntVar(&searchKInternal, "k-internal", search.DefaultKInternal, "archive results (1-20)")
	searchCmd.Flags().IntVar(&searchKWeb, "k-web", search.DefaultKWeb, "web results (0-10)")
	searchCmd.Flags().BoolVar(&searchNoWeb, "no-web", false, "archive only")

	worksCmd.Flags().IntVar(&worksLimit, "limit", 50, "page size")
	worksCmd.Flags().IntVar(&worksOffset, "offset", 0, "page offset")

	readCmd.Flags().IntVar(&readFrom, "from", 0, "first rune")
	readCmd.Flags().IntVar(&readTo, "to", 0, "end rune (exclusive)")
}

func cmdContext(cmd *cobra.Command) context.Context {
	if c := cmd.Context(); c != nil {
		return c
	}
	return context.Background()
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printSearch(w io.Writer, resp *search.Response, asJSON bool) error {
	if asJSON {
		return writeJSON(w, resp)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tSOURCE\tSCORE\tTITLE\tAUTHOR\tID/URL")
	fmt.Fprintln(tw, "-\t------\t-----\t-----\t------\t------")
	for i, s := range resp.Snippets() {
		ref := s.DocumentID
		if s.URL != "" {
			ref = s.URL
		}
		fmt.Fprintf(tw, "%d\t%s\t%.3f\t%s\t%s\t%s\n", i+1, s.Kind, s.Score, s.Title, s.Author, ref)
	}
	tw.Flush()

	for i, s := range resp.Snippets() {
		fmt.Fprintf(w, "\n[%d] %s\n%s\n", i+1, s.Title, excerpt(s.Text, 200))
	}

	fmt.Fprintf(w, "\n%d ms\n", resp.TimingMS)
	for _, e := range resp.Errors {
		fmt.Fprintf(w, "! %s\n", e)
	}
	return nil
}

func printWorks(w io.Writer, list *search.WorkList, asJSON bool) error {
	if asJSON {
		return writeJSON(w, list)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tAUTHOR")
	fmt.Fprintln(tw, "--\t-----\t------")
	for _, work := range list.Works {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", work.WorkID, work.Title, work.Author)
	}
	tw.Flush()

	fmt.Fprintf(w, "\n%d of %d works\n", len(list.Works), list.Total)
	return nil
}

func printDocument(w io.Writer, doc *search.WorkText, r *viewer.Range) error {
	fmt.Fprintf(w, "%s / %s\n\n", doc.Title, doc.Author)
	if r == nil {
		fmt.Fprintln(w, doc.Text)
		return nil
	}
	fmt.Fprintln(w, r.Text(doc.Text))
	return nil
}

// excerpt shortens s to n runes on one line
func excerpt(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "…"
}
