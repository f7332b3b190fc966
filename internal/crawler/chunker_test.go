package crawler

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitText_ShortTextSingleChunk(t *testing.T) {
	text := "A short paragraph that fits in one chunk."
	chunks := SplitText(text, ChunkSize, ChunkOverlap)
	if len(chunks) != 1 {
		t.Fatalf("chunks = %d, want 1", len(chunks))
	}
	if chunks[0] != text {
		t.Errorf("chunk = %q, want %q", chunks[0], text)
	}
}

func TestSplitText_Empty(t *testing.T) {
	if got := SplitText("", ChunkSize, ChunkOverlap); got != nil {
		t.Errorf("SplitText(\"\") = %v, want nil", got)
	}
	if got := SplitText("   \n\t  ", ChunkSize, ChunkOverlap); got != nil {
		t.Errorf("SplitText(whitespace) = %v, want nil", got)
	}
}

func TestSplitText_RespectsSizeBound(t *testing.T) {
	text := strings.Repeat("lorem ipsum dolor sit amet. ", 400)
	chunks := SplitText(text, 1000, 200)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > 1000 {
			t.Errorf("chunk %d has %d chars, want <= 1000", i, len(c))
		}
		if len(c) == 0 {
			t.Errorf("chunk %d is empty", i)
		}
	}
}

func TestSplitText_PrefersParagraphBoundary(t *testing.T) {
	para1 := strings.Repeat("first paragraph text. ", 30)
	para2 := strings.Repeat("second paragraph text. ", 30)
	text := strings.TrimSpace(para1) + "\n\n" + strings.TrimSpace(para2)

	chunks := SplitText(text, 1000, 200)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	// The first cut should land on the paragraph break, not mid-word.
	if !strings.HasSuffix(chunks[0], ".") {
		t.Errorf("first chunk ends %q, want a sentence/paragraph boundary", chunks[0][len(chunks[0])-20:])
	}
}

func TestSplitText_OverlapCarriesContext(t *testing.T) {
	text := strings.Repeat("alpha beta gamma delta epsilon. ", 200)
	chunks := SplitText(text, 1000, 200)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i := 1; i < len(chunks); i++ {
		// Consecutive chunks share text because of the overlap window.
		head := chunks[i][:50]
		if !strings.Contains(chunks[i-1], head) {
			t.Errorf("chunk %d head %q not found in previous chunk", i, head)
		}
	}
}

func TestSplitText_NoBoundariesFallsBackToHardCut(t *testing.T) {
	text := strings.Repeat("x", 2500)
	chunks := SplitText(text, 1000, 200)
	if len(chunks) < 3 {
		t.Fatalf("chunks = %d, want >= 3", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > 1000 {
			t.Errorf("chunk %d has %d chars, want <= 1000", i, len(c))
		}
	}
}

func TestSplitText_MultibyteTextCutsOnRuneBoundaries(t *testing.T) {
	// Pages without spaces, newlines, or ". " force the hard-cut fallback;
	// CJK text must still come out as valid UTF-8 or the database rejects
	// the chunks wholesale.
	text := strings.Repeat("知识库内容抓取与分块", 200)
	chunks := SplitText(text, 1000, 200)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if !utf8.ValidString(c) {
			t.Errorf("chunk %d is not valid UTF-8, first bytes % x", i, c[:min(len(c), 6)])
		}
		if len(c) > 1000 {
			t.Errorf("chunk %d has %d bytes, want <= 1000", i, len(c))
		}
	}
	// The overlap walk must not drop text between consecutive chunks.
	for i := 1; i < len(chunks); i++ {
		head := chunks[i][:30]
		if !strings.Contains(chunks[i-1], head) {
			t.Errorf("chunk %d head %q not found in previous chunk", i, head)
		}
	}
}

func TestSplitText_MixedMultibyteWithBoundaries(t *testing.T) {
	text := strings.TrimSpace(strings.Repeat("日本語のテキストです。 ", 150))
	for i, c := range SplitText(text, 500, 100) {
		if !utf8.ValidString(c) {
			t.Errorf("chunk %d is not valid UTF-8", i)
		}
	}
}

func TestSplitText_DegenerateOverlapTerminates(t *testing.T) {
	// An overlap >= size is replaced with the default and must not stall
	// the window walk.
	chunks := SplitText(strings.Repeat("word ", 500), 100, 100)
	if len(chunks) == 0 {
		t.Fatal("no chunks produced")
	}
}

func TestCollapseWhitespace(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"runs of spaces", "a   b\t\tc", "a b c"},
		{"keeps paragraph breaks", "a\n\n\nb", "a\n\nb"},
		{"single newlines become spaces", "a\nb", "a b"},
		{"trims edges", "  a b  ", "a b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CollapseWhitespace(tt.in); got != tt.want {
				t.Errorf("CollapseWhitespace(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
