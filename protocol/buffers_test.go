package protocol

import (
	"bytes"
	"testing"
)

func TestSliceInputBufferPop(t *testing.T) {
	buf := NewSliceInputBuffer([]byte{0x10, 0x20, 0x30, 0x40})

	if got := buf.Available(); got != 4 {
		t.Fatalf("available: got %d, want 4", got)
	}
	buf.Pop(3)
	if got := buf.Data(); !bytes.Equal(got, []byte{0x40}) {
		t.Errorf("data after pop: got % x, want 40", got)
	}
	buf.Pop(5)
	if got := buf.Available(); got != 0 {
		t.Errorf("available after overlong pop: got %d, want 0", got)
	}
}

// Frames are encoded with the length byte first and patched once the
// payload size is known; the buffer has to support that access pattern.
func TestScratchOutputFramePatching(t *testing.T) {
	out := NewScratchOutput()

	start := out.CurPosition()
	out.Output([]byte{0, MessageDest})
	out.Output([]byte{0x01, 0x02, 0x03})
	out.Update(start, byte(out.CurPosition()-start))

	want := []byte{5, MessageDest, 0x01, 0x02, 0x03}
	if got := out.Result(); !bytes.Equal(got, want) {
		t.Errorf("result: got % x, want % x", got, want)
	}
	if got := out.DataSince(start + 2); !bytes.Equal(got, []byte{0x01, 0x02, 0x03}) {
		t.Errorf("payload span: got % x, want 01 02 03", got)
	}
}

func TestScratchOutputTruncatesAtCapacity(t *testing.T) {
	out := NewScratchOutput()

	out.Output(make([]byte, MessageMax+16))
	if got := out.CurPosition(); got != MessageMax {
		t.Errorf("position after oversized write: got %d, want %d", got, MessageMax)
	}

	out.Reset()
	if got := out.CurPosition(); got != 0 {
		t.Errorf("position after reset: got %d, want 0", got)
	}
	if got := len(out.Result()); got != 0 {
		t.Errorf("result length after reset: got %d, want 0", got)
	}
}

func TestFifoBufferReservedSlot(t *testing.T) {
	f := NewFifoBuffer(8)

	if !f.IsEmpty() {
		t.Fatal("new fifo should be empty")
	}
	if got := f.Write(make([]byte, 16)); got != 7 {
		t.Errorf("write into size-8 fifo: accepted %d bytes, want 7", got)
	}
	if got := f.Free(); got != 0 {
		t.Errorf("free after fill: got %d, want 0", got)
	}
	if got := f.Available(); got != 7 {
		t.Errorf("available after fill: got %d, want 7", got)
	}
}

func TestFifoBufferReadOrder(t *testing.T) {
	f := NewFifoBuffer(5)
	f.Write([]byte{0xDE, 0xAD, 0xBE, 0xEF})

	head := make([]byte, 2)
	if n := f.Read(head); n != 2 || head[0] != 0xDE || head[1] != 0xAD {
		t.Fatalf("first read: got %d bytes % x", n, head[:n])
	}

	// The next write lands in the slot freed by the read, past the end of
	// the backing array.
	if n := f.Write([]byte{0x55}); n != 1 {
		t.Fatalf("wrapped write: accepted %d bytes, want 1", n)
	}

	rest := make([]byte, 8)
	n := f.Read(rest)
	if n != 3 || !bytes.Equal(rest[:n], []byte{0xBE, 0xEF, 0x55}) {
		t.Errorf("drain: got % x, want be ef 55", rest[:n])
	}
	if !f.IsEmpty() {
		t.Error("fifo should be empty after drain")
	}
}

// The parser scans Data() for sync bytes, so the view has to be contiguous
// even when the content straddles the ring seam.
func TestFifoBufferDataAcrossSeam(t *testing.T) {
	f := NewFifoBuffer(6)
	f.Write([]byte{1, 2, 3, 4})
	f.Pop(3)
	if n := f.Write([]byte{5, 6, 7}); n != 3 {
		t.Fatalf("wrapped write: accepted %d bytes, want 3", n)
	}

	want := []byte{4, 5, 6, 7}
	if got := f.Data(); !bytes.Equal(got, want) {
		t.Errorf("data across seam: got %v, want %v", got, want)
	}
	if got := f.Available(); got != 4 {
		t.Errorf("available: got %d, want 4", got)
	}

	f.Pop(99)
	if got := f.Available(); got != 0 {
		t.Errorf("available after overlong pop: got %d, want 0", got)
	}

	f.Write([]byte{9})
	f.Reset()
	if !f.IsEmpty() {
		t.Error("fifo should be empty after reset")
	}
}
