package utils

import (
	"testing"
)

func TestTruncate(t *testing.T) {
	if Truncate("hello", 10) != "hello" {
		t.Error("short string unchanged")
	}
	if Truncate("hello world", 5) != "hello..." {
		t.Errorf("got %s", Truncate("hello world", 5))
	}
	if Truncate("x", 0) != "x" {
		t.Error("maxLen 0 returns as-is")
	}
	if got := Truncate("日本語テキスト", 3); got != "日本語..." {
		t.Errorf("multibyte: got %s", got)
	}
}

func TestTruncateWords(t *testing.T) {
	tests := []struct {
		in        string
		max       int
		want      string
		wantTrunc bool
	}{
		{"hello world", 20, "hello world", false},
		{"hello world again", 13, "hello world", true},
		{"abcdefghij", 4, "abcd", true},
		{"anything", 0, "anything", false},
	}
	for _, tt := range tests {
		got, trunc := TruncateWords(tt.in, tt.max)
		if got != tt.want || trunc != tt.wantTrunc {
			t.Errorf("TruncateWords(%q, %d) = %q, %v; want %q, %v", tt.in, tt.max, got, trunc, tt.want, tt.wantTrunc)
		}
	}
}

func TestSingleLine(t *testing.T) {
	if got := SingleLine("a\n b\t\tc "); got != "a b c" {
		t.Errorf("got %q", got)
	}
}
