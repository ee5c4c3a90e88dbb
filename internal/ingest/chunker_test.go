package ingest

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestChunkTextEmpty(t *testing.T) {
	if got := ChunkText("", 512, 64); got != nil {
		t.Fatalf("Expected nil for blank input, got %v", got)
	}
	if got := ChunkText("   \n\n  ", 512, 64); got != nil {
		t.Fatalf("Expected nil for whitespace input, got %v", got)
	}
}

func TestChunkTextShortInput(t *testing.T) {
	chunks := ChunkText("a short paragraph", 512, 64)
	if diff := cmp.Diff([]string{"a short paragraph"}, chunks); diff != "" {
		t.Fatalf("Short input should yield itself (-want +got):\n%s", diff)
	}
}

// Every whitespace-delimited token of the input must survive into the chunk
// concatenation.
func TestChunkTextContentPreservation(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 80; i++ {
		sb.WriteString("alpha bravo charlie delta echo foxtrot.\n")
		if i%7 == 0 {
			sb.WriteString("\n")
		}
	}
	text := sb.String()

	chunks := ChunkText(text, 120, 20)
	joined := " " + strings.Join(chunks, " ") + " "

	for _, token := range strings.Fields(text) {
		if !strings.Contains(joined, token) {
			t.Fatalf("Token %q lost during chunking", token)
		}
	}
}

func TestChunkTextSizeBound(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 200; i++ {
		sb.WriteString("lorem ipsum dolor sit amet consectetur ")
	}

	size := 150
	chunks := ChunkText(sb.String(), size, 30)
	if len(chunks) < 2 {
		t.Fatalf("Expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > size {
			t.Errorf("Chunk %d exceeds size: %d > %d", i, len(c), size)
		}
	}
}

// Adjacent chunks must share tokens across the boundary: the overlap tail of
// one chunk seeds the start of the next.
func TestChunkTextOverlapSeeding(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 100; i++ {
		sb.WriteString("word")
		sb.WriteString(string(rune('a' + i%26)))
		sb.WriteString(" ")
	}

	overlap := 30
	chunks := ChunkText(sb.String(), 100, overlap)
	if len(chunks) < 2 {
		t.Fatalf("Expected multiple chunks, got %d", len(chunks))
	}

	for i := 0; i < len(chunks)-1; i++ {
		tail := chunks[i]
		if len(tail) > overlap {
			tail = tail[len(tail)-overlap:]
		}
		head := chunks[i+1]
		if len(head) > len(chunks[i+1])/2+1 {
			head = chunks[i+1][:len(chunks[i+1])/2+1]
		}

		shared := false
		for _, token := range strings.Fields(tail) {
			if strings.Contains(head, token) {
				shared = true
				break
			}
		}
		if !shared {
			t.Errorf("Chunks %d and %d share no boundary tokens:\n%q\n%q", i, i+1, chunks[i], chunks[i+1])
		}
	}
}

func TestChunkTextHardCutLongWord(t *testing.T) {
	word := strings.Repeat("x", 1000)
	chunks := ChunkText(word, 100, 10)
	if len(chunks) < 10 {
		t.Fatalf("Expected ~10 hard-cut chunks, got %d", len(chunks))
	}

	var total int
	for _, c := range chunks {
		if len(c) > 100+11 { // hard-cut pieces plus a possible overlap seed
			t.Errorf("Hard-cut chunk too large: %d", len(c))
		}
		total += len(c)
	}
	if total < 1000 {
		t.Errorf("Characters lost on hard cut: %d < 1000", total)
	}
}

func TestChunkTextNoMidWordStart(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 60; i++ {
		sb.WriteString("abcdefgh ")
	}

	chunks := ChunkText(sb.String(), 100, 25)
	for i := 1; i < len(chunks); i++ {
		if strings.HasPrefix(chunks[i], " ") {
			t.Errorf("Chunk %d starts with whitespace", i)
		}
		first := strings.Fields(chunks[i])[0]
		if first != "abcdefgh" {
			t.Errorf("Chunk %d starts mid-word: %q", i, first)
		}
	}
}
