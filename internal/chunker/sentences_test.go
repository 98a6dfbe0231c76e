package chunker

import (
	"strings"
	"testing"
)

func TestSentences_RoundTrip(t *testing.T) {
	inputs := []string{
		"One. Two! Three? Four",
		"Trailing space after terminator.  ",
		"no terminators at all",
		"Line one.\nLine two.\n\nLine three.",
		"",
	}
	for _, in := range inputs {
		if got := strings.Join(sentences(in), ""); got != in {
			t.Errorf("round trip of %q gave %q", in, got)
		}
	}
}

func TestSentences_KeepsTerminators(t *testing.T) {
	got := sentences("Hello! How are you? Fine.")
	want := []string{"Hello! ", "How are you? ", "Fine."}
	if len(got) != len(want) {
		t.Fatalf("expected %d sentences, got %d: %q", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sentence %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestSplitSentences_IndicesFromOffset(t *testing.T) {
	ctx := "Guide > Install"
	text := strings.Repeat(strings.Repeat("w", 499)+". ", 9)
	chunks := SplitSentences(text, &ctx, 7)

	// 501-char sentences pack three to a chunk.
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if c.Index != 7+i {
			t.Errorf("chunk %d: expected index %d, got %d", i, 7+i, c.Index)
		}
		if c.Context() != ctx {
			t.Errorf("chunk %d: expected context %q, got %q", i, ctx, c.Context())
		}
		if len(c.Content) > MaxParagraphChars {
			t.Errorf("chunk %d: %d chars exceeds ceiling", i, len(c.Content))
		}
	}
}

func TestSplitSentences_NoFloor(t *testing.T) {
	text := strings.Repeat("z", 2100) + ". ok."
	chunks := SplitSentences(text, nil, 0)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[1].Content != "ok." {
		t.Errorf("expected short remainder %q, got %q", "ok.", chunks[1].Content)
	}
}

func TestEstimateTokens(t *testing.T) {
	if EstimateTokens("") != 0 {
		t.Error("expected 0 tokens for empty text")
	}
	if EstimateTokens("x") != 1 {
		t.Error("expected at least 1 token for non-empty text")
	}
	if got := EstimateTokens(strings.Repeat("word ", 100)); got != 133 {
		t.Errorf("expected 133 tokens, got %d", got)
	}
}
