// Package prompt assembles chat requests from search results, the reader's
// active context and the conversation so far.
package prompt

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/bunko/bunko/pkg/citation"
	"github.com/bunko/bunko/pkg/inference"
)

// BuildSearchContext renders retrieved snippets as prompt sections: archive
// excerpts first, then web results as supplementary material.
func BuildSearchContext(snippets []citation.SourceSnippet) string {
	var archive, web []citation.SourceSnippet
	for _, s := range snippets {
		if s.Kind == citation.SourceWeb {
			web = append(web, s)
		} else {
			archive = append(archive, s)
		}
	}

	var sb strings.Builder
	if len(archive) > 0 {
		sb.WriteString("## 青空文庫アーカイブからの情報\n\n")
		for _, s := range archive {
			text := s.ContextText
			if text == "" {
				text = s.Text
			}
			fmt.Fprintf(&sb, "### %s (%s)\n", orUnknown(s.Title), orUnknown(s.Author))
			sb.WriteString(text + "\n\n")
		}
	}

	if len(web) > 0 {
		sb.WriteString("## Web検索からの補足情報\n\n")
		for _, s := range web {
			title := s.Title
			if title == "" {
				title = s.URL
			}
			if title == "" {
				title = "Web"
			}
			sb.WriteString("### " + title + "\n")
			sb.WriteString(s.Text + "\n\n")
		}
	}

	return sb.String()
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return unknownLabel
	}
	return s
}

// Context is the data available to the system template
type Context struct {
	System        string
	SearchContext string
	SearchError   string
}

// Input is one turn to build a request for
type Input struct {
	Question      string
	Snippets      []citation.SourceSnippet
	SearchError   error
	ContextBundle string // serialized active context, may be empty
	History       []inference.Message
}

// Builder renders chat requests
type Builder struct {
	tmpl        *template.Template
	model       string
	temperature float64
	maxHistory  int
}

// Option configures a Builder
type Option func(*Builder)

// WithModel sets the model on every request
func WithModel(model string) Option {
	return func(b *Builder) { b.model = model }
}

// WithTemperature sets the sampling temperature
func WithTemperature(t float64) Option {
	return func(b *Builder) { b.temperature = t }
}

// WithMaxHistory keeps only the last n history messages; 0 keeps all
func WithMaxHistory(n int) Option {
	return func(b *Builder) { b.maxHistory = n }
}

// NewBuilder creates a builder. An empty templateText uses DefaultTemplate.
func NewBuilder(templateText string, opts ...Option) (*Builder, error) {
	if templateText == "" {
		templateText = DefaultTemplate
	}
	tmpl, err := template.New("system").Funcs(defaultFuncMap()).Parse(templateText)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}

	b := &Builder{tmpl: tmpl}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Build produces the chat request for one turn. A search failure does not
// fail the build; it is reported to the model inline instead.
func (b *Builder) Build(in Input) (inference.ChatRequest, error) {
	pc := Context{System: SystemPrompt}
	if in.SearchError != nil {
		pc.SearchError = in.SearchError.Error()
	} else {
		pc.SearchContext = BuildSearchContext(in.Snippets)
	}

	var buf bytes.Buffer
	if err := b.tmpl.Execute(&buf, pc); err != nil {
		return inference.ChatRequest{}, fmt.Errorf("failed to execute template: %w", err)
	}

	history := in.History
	if b.maxHistory > 0 && len(history) > b.maxHistory {
		history = history[len(history)-b.maxHistory:]
	}

	messages := make([]inference.Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, inference.Message{
		Role:    inference.RoleUser,
		Content: UserMessage(in.Question, in.ContextBundle),
	})

	return inference.ChatRequest{
		Model:       b.model,
		System:      buf.String(),
		Messages:    messages,
		Temperature: b.temperature,
	}, nil
}

// UserMessage prefixes the question with the reader's active context
func UserMessage(question, bundle string) string {
	if bundle == "" {
		return question
	}
	return bundle + "\n\n【質問】\n" + question
}

func defaultFuncMap() template.FuncMap {
	return template.FuncMap{
		"trim":  strings.TrimSpace,
		"upper": strings.ToUpper,
		"lower": strings.ToLower,
		"default": func(def, val interface{}) interface{} {
			if val == nil || val == "" {
				return def
			}
			return val
		},
		"indent": func(spaces int, s string) string {
			indent := strings.Repeat(" ", spaces)
			return indent + strings.ReplaceAll(s, "\n", "\n"+indent)
		},
	}
}
