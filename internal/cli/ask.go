package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bunko/bunko/pkg/citation"
	"github.com/bunko/bunko/pkg/session"
)

var askDocument string

// askCmd sends one question and prints the cited answer
var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a single question",
	Long: `Ask one question and print the answer with its citations.

The answer streams paragraph by paragraph. Citations are shown as badges,
with a (?) suffix when the cited work was not among the search results.

Examples:
  bunko ask "『羅生門』の下人はなぜ老婆の着物を剥いだのか"
  bunko ask --doc 127 "この冒頭の文体の特徴は?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmdContext(cmd)
		stack, release, err := openStack(ctx)
		if err != nil {
			return err
		}
		defer release()

		sess, err := stack.NewSession()
		if err != nil {
			return err
		}
		defer sess.Close()

		return runAsk(ctx, cmd.OutOrStdout(), sess, strings.Join(args, " "), askDocument, jsonOutput)
	},
}

func init() {
	askCmd.Flags().StringVar(&askDocument, "doc", "", "open this work first so it becomes context for the question")
}

type askResult struct {
	Question string                      `json:"question"`
	Answer   string                      `json:"answer"`
	Notice   string                      `json:"notice,omitempty"`
	Context  string                      `json:"context,omitempty"`
	Cited    []citation.ResolvedCitation `json:"cited"`
	Sources  []citation.SourceSnippet    `json:"sources"`
}

func runAsk(ctx context.Context, w io.Writer, sess *session.Session, question, documentID string, asJSON bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if documentID != "" {
		if _, err := sess.OpenDocument(ctx, documentID, nil); err != nil {
			return fmt.Errorf("failed to open %s: %w", documentID, err)
		}
	}
	bundle := sess.ContextBundle()

	var onUnit func(string, []citation.RenderPart)
	if !asJSON {
		onUnit = func(_ string, parts []citation.RenderPart) {
			fmt.Fprint(w, citation.PlainText(parts))
		}
	}

	msg, err := sess.Ask(ctx, question, onUnit)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(askResult{
			Question: question,
			Answer:   msg.Text,
			Notice:   msg.Notice,
			Context:  bundle,
			Cited:    cited(msg.Parts),
			Sources:  msg.Sources,
		})
	}

	fmt.Fprintln(w)
	if msg.Notice != "" {
		fmt.Fprintf(w, "\n! %s\n", msg.Notice)
	}
	if bunkoConfig == nil || bunkoConfig.CLI.ShowSources {
		printSources(w, msg.Sources)
	}
	return nil
}

// cited lists the distinct works an answer resolved to, in order of first use
func cited(parts []citation.RenderPart) []citation.ResolvedCitation {
	seen := make(map[string]bool)
	out := []citation.ResolvedCitation{}
	for _, p := range parts {
		if p.Resolved == nil {
			continue
		}
		key := string(p.Resolved.Kind) + "|" + p.Resolved.DocumentID + "|" + p.Resolved.URL + "|" + p.Resolved.Title
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, *p.Resolved)
	}
	return out
}

func printSources(w io.Writer, sources []citation.SourceSnippet) {
	if len(sources) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Sources:")
	for i, s := range sources {
		switch s.Kind {
		case citation.SourceWeb:
			fmt.Fprintf(w, "  %d. 🌐 %s %s\n", i+1, s.Title, s.URL)
		default:
			author := s.Author
			if author == "" {
				author = "不明"
			}
			fmt.Fprintf(w, "  %d. 📖 %s / %s (id %s)\n", i+1, s.Title, author, s.DocumentID)
		}
	}
}
