package kfmt

import (
	"bytes"
	"io"
	"testing"
)

func TestRingBuffer(t *testing.T) {
	var (
		buf     bytes.Buffer
		rb      ringBuffer
		readBuf = make([]byte, 7)
	)

	t.Run("read/write", func(t *testing.T) {
		rb.wIndex, rb.rIndex = 0, 0
		n, err := rb.Write([]byte("hello"))
		if err != nil {
			t.Fatal(err)
		}
		if n != 5 {
			t.Fatalf("expected to write 5 bytes; wrote %d", n)
		}

		buf.Reset()
		if _, err = io.Copy(&buf, &rb); err != nil {
			t.Fatal(err)
		}

		if got := buf.String(); got != "hello" {
			t.Fatalf("expected to read %q; got %q", "hello", got)
		}

		if _, err = rb.Read(readBuf); err != io.EOF {
			t.Fatalf("expected io.EOF after draining the buffer; got %v", err)
		}
	})

	t.Run("write past the end", func(t *testing.T) {
		rb.wIndex, rb.rIndex = ringBufferSize-2, ringBufferSize-2
		if _, err := rb.Write([]byte("wrapped")); err != nil {
			t.Fatal(err)
		}

		buf.Reset()
		if _, err := io.Copy(&buf, &rb); err != nil {
			t.Fatal(err)
		}

		if got := buf.String(); got != "wrapped" {
			t.Fatalf("expected to read %q; got %q", "wrapped", got)
		}
	})

	t.Run("overflow keeps the newest bytes", func(t *testing.T) {
		rb.wIndex, rb.rIndex = 0, 0
		payload := bytes.Repeat([]byte{'a'}, ringBufferSize)
		payload = append(payload, []byte("tail")...)
		rb.Write(payload)

		buf.Reset()
		if _, err := io.Copy(&buf, &rb); err != nil {
			t.Fatal(err)
		}

		got := buf.Bytes()
		if exp := ringBufferSize - 1; len(got) != exp {
			t.Fatalf("expected to read %d bytes; got %d", exp, len(got))
		}

		if tail := string(got[len(got)-4:]); tail != "tail" {
			t.Fatalf("expected buffer to end with %q; got %q", "tail", tail)
		}
	})
}
