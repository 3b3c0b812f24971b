package embedding

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/hyperjump/semdex/pkg/utils"
)

func TestHashEmbedder_dimensionsAndDeterminism(t *testing.T) {
	e := NewHashEmbedder(128)
	ctx := context.Background()

	for _, text := range []string{"Hello", "a longer sentence with words", "日本語のテキスト", "!!!"} {
		a, err := e.Embed(ctx, text)
		if err != nil {
			t.Fatalf("Embed(%q): %v", text, err)
		}
		b, _ := e.Embed(ctx, text)
		if len(a) != 128 {
			t.Errorf("Embed(%q) len = %d, want 128", text, len(a))
		}
		for i := range a {
			if a[i] != b[i] {
				t.Fatalf("Embed(%q) not deterministic at %d", text, i)
			}
		}
		if norm := math.Sqrt(utils.Dot(a, a)); math.Abs(norm-1) > 1e-5 {
			t.Errorf("Embed(%q) norm = %v, want 1", text, norm)
		}
	}
}

func TestHashEmbedder_similarity(t *testing.T) {
	e := NewHashEmbedder(1024)
	ctx := context.Background()

	doc, _ := e.Embed(ctx, "Hello\nWorld\n")
	related, _ := e.Embed(ctx, "Hello")
	unrelated, _ := e.Embed(ctx, "xqzv plorb")

	if utils.Dot(doc, related) <= utils.Dot(doc, unrelated) {
		t.Errorf("related %.3f should beat unrelated %.3f", utils.Dot(doc, related), utils.Dot(doc, unrelated))
	}

	caseA, _ := e.Embed(ctx, "Hello, World!")
	caseB, _ := e.Embed(ctx, "hello world")
	if math.Abs(utils.Dot(caseA, caseB)-1) > 1e-5 {
		t.Error("case and punctuation should not change the embedding")
	}
}

func TestHashEmbedder_empty(t *testing.T) {
	_, err := NewHashEmbedder(8).Embed(context.Background(), "  ")
	if !errors.Is(err, ErrEmbedding) {
		t.Errorf("want ErrEmbedding, got %v", err)
	}
}

func TestTokens(t *testing.T) {
	got := Tokens("Hello, World! It's 2024.")
	want := []string{"hello", "world", "it", "s", "2024"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSimpleTokenizer_Tokenize(t *testing.T) {
	tok := &SimpleTokenizer{}
	ids, attn, types := tok.Tokenize("hello world", 10)
	if len(ids) != 10 || len(attn) != 10 || len(types) != 10 {
		t.Fatalf("lengths = %d/%d/%d", len(ids), len(attn), len(types))
	}
	if ids[0] != clsTokenID || ids[3] != sepTokenID {
		t.Errorf("expected CLS at 0 and SEP at 3, got %v", ids)
	}
	if attn[3] != 1 || attn[4] != 0 {
		t.Errorf("attention mask = %v", attn)
	}

	ids, _, _ = tok.Tokenize("one two three four five six", 4)
	if ids[0] != clsTokenID || ids[3] != sepTokenID {
		t.Errorf("long input should be truncated to the window, got %v", ids)
	}
}
