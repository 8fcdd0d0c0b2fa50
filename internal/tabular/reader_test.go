package tabular

import (
	"bytes"
	"io"
	"testing"
	"testing/iotest"
)

func TestBOMReader(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{"file with BOM", append([]byte{0xEF, 0xBB, 0xBF}, "hello,world"...), "hello,world"},
		{"file without BOM", []byte("hello,world"), "hello,world"},
		{"empty file", []byte{}, ""},
		{"only BOM", []byte{0xEF, 0xBB, 0xBF}, ""},
		{"short file", []byte("ab"), "ab"},
		{"partial BOM at start", []byte{0xEF, 0xBB, 'a', 'b', 'c'}, string([]byte{0xEF, 0xBB, 'a', 'b', 'c'})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := io.ReadAll(newBOMReader(bytes.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(got) != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestUTF8Sanitizer(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{"ascii", []byte("a,b,c"), "a,b,c"},
		{"valid multibyte", []byte("café,naïve"), "café,naïve"},
		{"invalid byte", []byte{'a', 0xFF, 'b'}, "a?b"},
		{"truncated rune at EOF", []byte{'a', 0xC3}, "a?"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := io.ReadAll(newUTF8Sanitizer(bytes.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(got) != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestUTF8SanitizerSplitRune(t *testing.T) {
	// One byte per read splits every multi-byte rune across calls.
	r := newUTF8Sanitizer(iotest.OneByteReader(bytes.NewReader([]byte("é€😀"))))
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "é€😀" {
		t.Errorf("got %q, want %q", got, "é€😀")
	}
}

func TestNewCleanReader(t *testing.T) {
	input := append([]byte{0xEF, 0xBB, 0xBF}, 'x', 0xFE, 'y')
	got, err := io.ReadAll(NewCleanReader(bytes.NewReader(input)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "x?y" {
		t.Errorf("got %q, want %q", got, "x?y")
	}
}
