package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bunko/bunko/pkg/citation"
	"github.com/bunko/bunko/pkg/config"
	"github.com/bunko/bunko/pkg/inference"
	"github.com/bunko/bunko/pkg/search"
	"github.com/bunko/bunko/pkg/session"
	"github.com/bunko/bunko/pkg/viewer"
)

func intPtr(v int) *int { return &v }

func catResponse() *search.Response {
	return &search.Response{
		Query: "猫",
		AozoraResults: []search.ResultItem{{
			ID: "c1", Source: search.SourceAozora, Title: "吾輩は猫である", Author: "夏目漱石", WorkID: "1",
			Text: "吾輩は猫である。名前はまだ無い。", Score: 0.91, OffsetStart: intPtr(0), OffsetEnd: intPtr(16),
		}},
		WebResults: []search.ResultItem{{
			ID: "w1", Source: search.SourceWeb, Title: "夏目漱石 - Wikipedia", URL: "https://ja.wikipedia.org/wiki/夏目漱石", WebSnippet: "小説家", Score: 0.5,
		}},
		TimingMS: 42,
		Errors:   []string{"web: timeout"},
	}
}

type fakeSearcher struct{ err error }

func (f fakeSearcher) Search(_ context.Context, _ search.Request) (*search.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	return catResponse(), nil
}

type fakeFetcher struct{}

func (fakeFetcher) FetchDocument(_ context.Context, id string) (*search.WorkText, error) {
	if id != "773" {
		return nil, &search.StatusError{Op: "fetch document", Status: 404}
	}
	return &search.WorkText{WorkID: "773", Title: "こころ", Author: "夏目漱石", Text: "私はその人を常に先生と呼んでいた。"}, nil
}

type tokenStream struct{ tokens []string }

func (s *tokenStream) Next() (inference.ChatChunk, error) {
	if len(s.tokens) == 0 {
		return inference.ChatChunk{}, io.EOF
	}
	t := s.tokens[0]
	s.tokens = s.tokens[1:]
	return inference.ChatChunk{Content: t}, nil
}

func (s *tokenStream) Close() error { return nil }

type fakeProvider struct {
	reqs []inference.ChatRequest
}

func (p *fakeProvider) Name() string                      { return "fake" }
func (p *fakeProvider) IsAvailable(_ context.Context) bool { return true }

func (p *fakeProvider) Chat(_ context.Context, _ inference.ChatRequest) (*inference.ChatResponse, error) {
	return nil, inference.ErrInferenceFailed
}

func (p *fakeProvider) ChatStream(_ context.Context, req inference.ChatRequest) (inference.ChatStream, error) {
	p.reqs = append(p.reqs, req)
	return &tokenStream{tokens: []string{
		"吾輩は猫である[出典: 吾輩は猫である - 夏目漱石]\n\n",
		"再び[出典: 吾輩は猫である - 夏目漱石]と[出典: 坊っちゃん - 夏目漱石]",
	}}, nil
}

func newSession(t *testing.T, searcher search.Searcher) (*session.Session, *fakeProvider) {
	t.Helper()
	provider := &fakeProvider{}
	sess, err := session.New(session.Config{Searcher: searcher, Fetcher: fakeFetcher{}, Provider: provider})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close() })
	return sess, provider
}

func TestRunAsk(t *testing.T) {
	t.Run("Streams Plain Text With Sources", func(t *testing.T) {
		sess, _ := newSession(t, fakeSearcher{})
		var out bytes.Buffer
		require.NoError(t, runAsk(context.Background(), &out, sess, "猫の名前は?", "", false))

		text := out.String()
		assert.Contains(t, text, "吾輩は猫である[📖 吾輩は猫である / 夏目漱石]")
		assert.Contains(t, text, "[📖 坊っちゃん / 夏目漱石 (?)]")
		assert.Contains(t, text, "Sources:")
		assert.Contains(t, text, "https://ja.wikipedia.org/wiki/夏目漱石")
	})

	t.Run("JSON Dedupes Cited Works", func(t *testing.T) {
		sess, _ := newSession(t, fakeSearcher{})
		var out bytes.Buffer
		require.NoError(t, runAsk(context.Background(), &out, sess, "猫", "", true))

		var res askResult
		require.NoError(t, json.Unmarshal(out.Bytes(), &res))
		assert.Equal(t, "猫", res.Question)
		require.Len(t, res.Cited, 1)
		assert.Equal(t, "1", res.Cited[0].DocumentID)
		assert.Len(t, res.Sources, 2)
		assert.Empty(t, res.Context)
	})

	t.Run("Document Becomes Context", func(t *testing.T) {
		sess, provider := newSession(t, fakeSearcher{})
		var out bytes.Buffer
		require.NoError(t, runAsk(context.Background(), &out, sess, "先生とは誰?", "773", true))

		var res askResult
		require.NoError(t, json.Unmarshal(out.Bytes(), &res))
		assert.Contains(t, res.Context, "こころ")

		require.Len(t, provider.reqs, 1)
		user := provider.reqs[0].Messages[len(provider.reqs[0].Messages)-1]
		assert.Contains(t, user.Content, "先生と呼んでいた")
	})

	t.Run("Unknown Document", func(t *testing.T) {
		sess, provider := newSession(t, fakeSearcher{})
		err := runAsk(context.Background(), io.Discard, sess, "q", "999", false)
		assert.ErrorIs(t, err, search.ErrNotFound)
		assert.Empty(t, provider.reqs)
	})

	t.Run("Search Failure Shows Notice", func(t *testing.T) {
		sess, _ := newSession(t, fakeSearcher{err: search.ErrUpstream})
		var out bytes.Buffer
		require.NoError(t, runAsk(context.Background(), &out, sess, "猫", "", false))
		assert.Contains(t, out.String(), "! 検索エラー")
	})
}

func TestPrintSearch(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printSearch(&out, catResponse(), false))

	text := out.String()
	assert.Contains(t, text, "吾輩は猫である")
	assert.Contains(t, text, "0.910")
	assert.Contains(t, text, "https://ja.wikipedia.org/wiki/夏目漱石")
	assert.Contains(t, text, "42 ms")
	assert.Contains(t, text, "! web: timeout")

	out.Reset()
	require.NoError(t, printSearch(&out, catResponse(), true))
	var resp search.Response
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Len(t, resp.AozoraResults, 1)
}

func TestPrintWorksAndDocument(t *testing.T) {
	var out bytes.Buffer
	list := &search.WorkList{Works: []search.Work{{WorkID: "773", Title: "こころ", Author: "夏目漱石"}}, Total: 12}
	require.NoError(t, printWorks(&out, list, false))
	assert.Contains(t, out.String(), "1 of 12 works")

	out.Reset()
	doc := &search.WorkText{WorkID: "773", Title: "こころ", Author: "夏目漱石", Text: "私はその人を常に先生と呼んでいた。"}
	require.NoError(t, printDocument(&out, doc, &viewer.Range{Start: 8, End: 10}))
	assert.Equal(t, "こころ / 夏目漱石\n\n先生\n", out.String())
}

func TestPrintParts(t *testing.T) {
	registry := citation.Build(catResponse().Snippets())
	parts := citation.ResolveText("猫[出典: 吾輩は猫である - 夏目漱石]と[Web参考: 無いページ]", registry)

	var out bytes.Buffer
	require.NoError(t, printParts(&out, parts))

	text := out.String()
	assert.Contains(t, text, "yes (id 1)")
	assert.Contains(t, text, "1 resolved, 1 unresolved")
	assert.Contains(t, text, "[🌐 無いページ (?)]")
}

func TestConfigCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bunko", "config.yaml")

	var out bytes.Buffer
	require.NoError(t, setConfigValue(&out, path, "search.k_internal", "7"))
	assert.Equal(t, "Set search.k_internal = 7\n", out.String())

	cfg, err := config.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Search.KInternal)

	assert.Error(t, setConfigValue(io.Discard, path, "search.k_internal", "many"))
	assert.Error(t, setConfigValue(io.Discard, path, "inference.provider", "nope"))

	t.Setenv("BUNKO_ARCHIVE_URL", "http://from-env:9000")
	require.NoError(t, setConfigValue(io.Discard, path, "inference.model", "gemma3"))
	cfg, err = config.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "gemma3", cfg.Inference.Model)
	assert.NotEqual(t, "http://from-env:9000", cfg.Archive.BaseURL)

	out.Reset()
	require.NoError(t, resetConfig(&out, path))
	cfg, err = config.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, config.Default().Search.KInternal, cfg.Search.KInternal)
}

func TestShowConfigRedactsSecrets(t *testing.T) {
	cfg := config.Default()
	cfg.Inference.OpenAIAPIKey = "sk-secret"
	cfg.Cache.Password = "hunter2"

	var out bytes.Buffer
	require.NoError(t, showConfig(&out, &cfg))
	assert.NotContains(t, out.String(), "sk-secret")
	assert.NotContains(t, out.String(), "hunter2")
	assert.Contains(t, out.String(), "********")
	assert.Equal(t, "sk-secret", cfg.Inference.OpenAIAPIKey)
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "a b", excerpt("a\n\n b", 10))
	assert.Equal(t, "吾輩は…", excerpt("吾輩は猫である", 3))
	assert.Equal(t, "12345678", shortID("1234567890"))
	assert.Equal(t, "abc", shortID("abc"))
}
