package stream

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bunko/bunko/pkg/citation"
	"github.com/bunko/bunko/pkg/inference"
)

type sliceStream struct {
	chunks []inference.ChatChunk
	err    error
	closed bool
}

func (s *sliceStream) Next() (inference.ChatChunk, error) {
	if len(s.chunks) == 0 {
		if s.err != nil {
			return inference.ChatChunk{}, s.err
		}
		return inference.ChatChunk{}, io.EOF
	}
	c := s.chunks[0]
	s.chunks = s.chunks[1:]
	return c, nil
}

func (s *sliceStream) Close() error {
	s.closed = true
	return nil
}

func tokens(parts ...string) *sliceStream {
	s := &sliceStream{}
	for _, p := range parts {
		s.chunks = append(s.chunks, inference.ChatChunk{Content: p})
	}
	return s
}

func TestChunker(t *testing.T) {
	t.Run("Splits At Blank Lines", func(t *testing.T) {
		c := NewChunker()
		assert.Nil(t, c.Write("第一段落"))
		assert.Nil(t, c.Write("の続き\n"))
		assert.Equal(t, []string{"第一段落の続き\n\n"}, c.Write("\n第二"))
		assert.Equal(t, "第二", c.Flush())
		assert.Equal(t, "", c.Flush())
	})

	t.Run("Several Units In One Token", func(t *testing.T) {
		c := NewChunker()
		units := c.Write("a\n\nb\n\nc")
		assert.Equal(t, []string{"a\n\n", "b\n\n"}, units)
		assert.Equal(t, "c", c.Pending())
	})

	t.Run("Extra Newlines Stay With Previous Unit", func(t *testing.T) {
		c := NewChunker()
		units := c.Write("a\n\n\n\nb")
		assert.Equal(t, []string{"a\n\n\n\n"}, units)
		assert.Equal(t, "b", c.Flush())
	})

	t.Run("Marker Split Across Tokens Arrives Whole", func(t *testing.T) {
		c := NewChunker()
		var units []string
		for _, tok := range []string{"猫[出", "典: 吾輩は猫", "である - 夏目", "漱石]です。\n\n"} {
			units = append(units, c.Write(tok)...)
		}
		require.Len(t, units, 1)
		markers := citation.Markers(units[0])
		require.Len(t, markers, 1)
		assert.Equal(t, "夏目漱石", markers[0].Author)
	})

	t.Run("Blank Line Inside Marker Waits For Close", func(t *testing.T) {
		c := NewChunker()
		assert.Nil(t, c.Write("本文[出典: 吾輩\n\n"))
		units := c.Write("は猫である]続き\n\n次")
		require.Len(t, units, 1)
		assert.Equal(t, "本文[出典: 吾輩\n\nは猫である]続き\n\n", units[0])
		assert.Len(t, citation.Markers(units[0]), 1)
		assert.Equal(t, "次", c.Flush())
	})

	t.Run("Unclosed Marker Held Until Flush", func(t *testing.T) {
		c := NewChunker()
		assert.Nil(t, c.Write("前[Web参考: 途中\n\n残り\n\n"))
		assert.Equal(t, "前[Web参考: 途中\n\n残り\n\n", c.Flush())
	})

	t.Run("Plain Brackets Still Split", func(t *testing.T) {
		c := NewChunker()
		units := c.Write("[注] 本文\n\n次")
		assert.Equal(t, []string{"[注] 本文\n\n"}, units)
	})
}

func TestDrain(t *testing.T) {
	t.Run("Reproduces Full Text", func(t *testing.T) {
		parts := []string{"一段落目", "。\n", "\n二段落目", "[Web参考: 解説]"}
		s := tokens(parts...)

		var units []string
		full, err := Drain(context.Background(), s, func(u string) { units = append(units, u) })

		require.NoError(t, err)
		assert.Equal(t, strings.Join(parts, ""), full)
		assert.Equal(t, full, strings.Join(units, ""))
		assert.Equal(t, []string{"一段落目。\n\n", "二段落目[Web参考: 解説]"}, units)
		assert.True(t, s.closed)
	})

	t.Run("Stops On Done", func(t *testing.T) {
		s := &sliceStream{chunks: []inference.ChatChunk{
			{Content: "end"},
			{Done: true},
			{Content: "ignored"},
		}}
		full, err := Drain(context.Background(), s, nil)
		require.NoError(t, err)
		assert.Equal(t, "end", full)
	})

	t.Run("Stream Error Flushes Partial Text", func(t *testing.T) {
		boom := errors.New("connection reset")
		s := tokens("途中まで")
		s.err = boom

		var units []string
		full, err := Drain(context.Background(), s, func(u string) { units = append(units, u) })
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, "途中まで", full)
		assert.Equal(t, []string{"途中まで"}, units)
	})

	t.Run("Canceled Context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := Drain(ctx, tokens("x"), nil)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
