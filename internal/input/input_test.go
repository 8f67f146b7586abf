package input

import (
	"bytes"
	"io"
	"testing"
)

func TestOpenRejectsUnrecognizedContainer(t *testing.T) {
	_, err := Open(bytes.NewReader([]byte("not a recognized container at all")))
	if err == nil {
		t.Fatal("Open() accepted an unrecognized container")
	}
}

func TestOpenRejectsTooShortStream(t *testing.T) {
	_, err := Open(bytes.NewReader([]byte("Sb")))
	if err == nil {
		t.Fatal("Open() accepted a stream too short to hold any known header")
	}
}

func TestComposedInputRecreateReopensFromFactory(t *testing.T) {
	calls := 0
	factory := func() (io.ReadCloser, error) {
		calls++
		return io.NopCloser(bytes.NewReader([]byte("payload"))), nil
	}
	src := NewComposedInput(factory)

	r1, err := src.Reader()
	if err != nil {
		t.Fatalf("Reader: %v", err)
	}
	r1.Close()

	fresh, err := src.Recreate()
	if err != nil {
		t.Fatalf("Recreate: %v", err)
	}
	r2, err := fresh.Reader()
	if err != nil {
		t.Fatalf("Reader after Recreate: %v", err)
	}
	r2.Close()

	if calls != 2 {
		t.Fatalf("factory called %d times, want 2 (once per Reader call)", calls)
	}
}

func TestFileInputUsesProvidedOpener(t *testing.T) {
	var gotPath string
	src := FileInput("/tmp/whatever.raw", func(path string) (io.ReadCloser, error) {
		gotPath = path
		return io.NopCloser(bytes.NewReader(nil)), nil
	})
	if _, err := src.Reader(); err != nil {
		t.Fatalf("Reader: %v", err)
	}
	if gotPath != "/tmp/whatever.raw" {
		t.Fatalf("opener saw path %q, want /tmp/whatever.raw", gotPath)
	}
}
