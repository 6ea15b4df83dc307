package text

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "trims line whitespace",
			input: "  hello  \n\tworld\t",
			want:  "hello\nworld",
		},
		{
			name:  "drops blank lines",
			input: "a\n\n\n   \nb",
			want:  "a\nb",
		},
		{
			name:  "whitespace only becomes empty",
			input: "   \n\t\n  ",
			want:  "",
		},
		{
			name:  "empty stays empty",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestChunk_Empty(t *testing.T) {
	chunks, err := Chunk("", 800, 150)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestChunk_ShorterThanSize(t *testing.T) {
	chunks, err := Chunk("short text", 800, 150)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "short text", chunks[0])
}

func TestChunk_DefaultWindow(t *testing.T) {
	text := strings.Repeat("a", 2000)
	chunks, err := Chunk(text, 800, 150)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Len(t, chunks[0], 800)
	assert.Len(t, chunks[1], 800)
	assert.Len(t, chunks[2], 700)
}

func TestChunk_Overlap(t *testing.T) {
	text := "abcdefghij"
	chunks, err := Chunk(text, 4, 2)
	require.NoError(t, err)
	require.Len(t, chunks, 4)

	assert.Equal(t, "abcd", chunks[0])
	assert.Equal(t, "cdef", chunks[1])
	assert.Equal(t, "efgh", chunks[2])
	assert.Equal(t, "ghij", chunks[3])

	// Consecutive chunks share exactly the overlap.
	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1]
		assert.Equal(t, prev[len(prev)-2:], chunks[i][:2])
	}
}

func TestChunk_NoRedundantTail(t *testing.T) {
	// The last window lands exactly on the end of the text; no extra chunk
	// repeating its tail should follow.
	text := strings.Repeat("x", 6)
	chunks, err := Chunk(text, 4, 2)
	require.NoError(t, err)
	assert.Len(t, chunks, 2)
}

func TestChunk_Reconstruction(t *testing.T) {
	text := "The quick brown fox jumps over the lazy dog. " + strings.Repeat("0123456789", 20)
	size, overlap := 50, 10
	chunks, err := Chunk(text, size, overlap)
	require.NoError(t, err)

	// Dropping each chunk's leading overlap reconstructs the original.
	var b strings.Builder
	for i, c := range chunks {
		if i == 0 {
			b.WriteString(c)
			continue
		}
		b.WriteString(c[overlap:])
	}
	assert.Equal(t, text, b.String())
}

func TestChunk_MultiByteRunes(t *testing.T) {
	// Window positions count runes. A byte-indexed window would land inside
	// the two-byte é and emit chunks that are not valid UTF-8.
	text := strings.Repeat("é", 10)
	chunks, err := Chunk(text, 5, 1)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, strings.Repeat("é", 5), chunks[0])
	assert.Equal(t, strings.Repeat("é", 5), chunks[1])
	assert.Equal(t, strings.Repeat("é", 2), chunks[2])
	for i, c := range chunks {
		assert.True(t, utf8.ValidString(c), "chunk %d is not valid UTF-8: %q", i, c)
	}
}

func TestChunk_MultiByteReconstruction(t *testing.T) {
	text := strings.Repeat("日本語のテキスト処理", 7)
	size, overlap := 16, 5
	chunks, err := Chunk(text, size, overlap)
	require.NoError(t, err)

	var b strings.Builder
	for i, c := range chunks {
		require.True(t, utf8.ValidString(c), "chunk %d is not valid UTF-8: %q", i, c)
		if i == 0 {
			b.WriteString(c)
			continue
		}
		b.WriteString(string([]rune(c)[overlap:]))
	}
	assert.Equal(t, text, b.String())
}

func TestChunk_InvalidConfig(t *testing.T) {
	_, err := Chunk("some text", 100, 100)
	assert.ErrorIs(t, err, ErrChunkConfig)

	_, err = Chunk("some text", 100, 150)
	assert.ErrorIs(t, err, ErrChunkConfig)

	_, err = Chunk("some text", 100, -1)
	assert.ErrorIs(t, err, ErrChunkConfig)
}
