package tinycompress

import (
	"bytes"
	"compress/zlib"
	"io"
	"testing"
)

func inflate(t *testing.T, data []byte) []byte {
	t.Helper()
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Not a zlib stream: %v", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("Inflate failed: %v", err)
	}
	return out
}

func TestCompressRoundTrip(t *testing.T) {
	input := []byte(`{"version":"gouptime-0.1.0","config":{"CLOCK_FREQ":"1000000"}}`)

	out := Compress(input)
	if len(out) != EncodedSize(len(input)) {
		t.Errorf("Expected %d bytes, got %d", EncodedSize(len(input)), len(out))
	}
	if got := inflate(t, out); !bytes.Equal(got, input) {
		t.Errorf("Round trip mismatch: %q", got)
	}
}

func TestCompressEmpty(t *testing.T) {
	out := Compress(nil)
	if got := inflate(t, out); len(got) != 0 {
		t.Errorf("Expected empty output, got %d bytes", len(got))
	}
}

func TestCompressMultipleBlocks(t *testing.T) {
	input := make([]byte, MaxBlock*2+100)
	for i := range input {
		input[i] = byte(i * 7)
	}

	out := Compress(input)
	if len(out) != EncodedSize(len(input)) {
		t.Errorf("Expected %d bytes, got %d", EncodedSize(len(input)), len(out))
	}
	if got := inflate(t, out); !bytes.Equal(got, input) {
		t.Error("Multi-block round trip mismatch")
	}
}

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, 64)

	w.Write([]byte("uptime "))
	w.Write([]byte("dictionary"))
	if buf.Len() != 0 {
		t.Error("Expected nothing written before Close")
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if got := inflate(t, buf.Bytes()); string(got) != "uptime dictionary" {
		t.Errorf("Expected 'uptime dictionary', got %q", got)
	}

	if _, err := w.Write([]byte("late")); err != ErrClosed {
		t.Errorf("Expected ErrClosed after Close, got %v", err)
	}
}
