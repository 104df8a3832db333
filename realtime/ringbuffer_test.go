package realtime

import "testing"

func TestRingBufferInitRoundsToFrameMultiple(t *testing.T) {
	var r ringBuffer
	r.init(1000, 4) // bytesPerFrame=4, maxVecSize=128 -> unit=512
	if r.fifoSize%512 != 0 {
		t.Errorf("fifoSize %d not a multiple of bytesPerFrame*maxVecSize", r.fifoSize)
	}
	if r.fifoSize < 1000 {
		t.Errorf("fifoSize %d smaller than requested 1000", r.fifoSize)
	}
}

func TestRingBufferEmptyFullDisambiguation(t *testing.T) {
	var r ringBuffer
	r.init(512, 1)
	if !r.isEmpty() {
		t.Fatalf("fresh ring should be empty")
	}
	if r.available() != 0 {
		t.Errorf("available() = %d, want 0", r.available())
	}
	if r.room() != r.fifoSize-1 {
		t.Errorf("room() = %d, want %d", r.room(), r.fifoSize-1)
	}

	// Fill to capacity (fifoSize-1, the one-empty-slot limit).
	src := make([]byte, r.fifoSize-1)
	for i := range src {
		src[i] = byte(i)
	}
	copied := 0
	for copied < len(src) {
		n := r.writeContiguous(src[copied:])
		if n == 0 {
			t.Fatalf("writeContiguous stalled at %d/%d", copied, len(src))
		}
		copied += n
	}
	if r.room() != 0 {
		t.Errorf("room() after filling to capacity = %d, want 0", r.room())
	}
	if r.isEmpty() {
		t.Errorf("ring reports empty after being filled")
	}
	if r.available() != len(src) {
		t.Errorf("available() = %d, want %d", r.available(), len(src))
	}
}

func TestRingBufferHeadTailWrapAndRange(t *testing.T) {
	var r ringBuffer
	r.init(256, 1)
	for round := 0; round < 5; round++ {
		src := make([]byte, r.fifoSize/3)
		for i := range src {
			src[i] = byte(round*7 + i)
		}
		copied := 0
		for copied < len(src) {
			n := r.writeContiguous(src[copied:])
			copied += n
		}
		if r.head < 0 || r.head >= r.fifoSize {
			t.Fatalf("head %d out of [0,%d)", r.head, r.fifoSize)
		}

		dst := make([]byte, len(src))
		got := 0
		for got < len(dst) {
			n := r.readContiguous(dst[got:])
			if n == 0 {
				t.Fatalf("readContiguous stalled at %d/%d", got, len(dst))
			}
			got += n
		}
		for i := range src {
			if dst[i] != src[i] {
				t.Fatalf("round %d byte %d: got %d want %d", round, i, dst[i], src[i])
			}
		}
		if r.tail < 0 || r.tail >= r.fifoSize {
			t.Fatalf("tail %d out of [0,%d)", r.tail, r.fifoSize)
		}
	}
	if !r.isEmpty() {
		t.Errorf("ring should be empty after reading back everything written")
	}
}
