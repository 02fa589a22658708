package pmm

import (
	"reflect"
	"testing"
	"unsafe"

	"nanokernel/kernel/mm"
)

// backingArena returns a page-aligned-enough byte slice plus its bitmap
// storage, both owned by the Go heap, so tests can exercise Init/AllocFrame/
// FreeFrame without a real physical address range.
func backingArena(t *testing.T, numFrames uint32) (startAddr uintptr, bitmapAddr uintptr) {
	t.Helper()

	mem := make([]byte, int(numFrames)*int(mm.PageSize))
	bitmap := make([]byte, BitmapBytesFor(numFrames))

	memHdr := (*reflect.SliceHeader)(unsafe.Pointer(&mem))
	bitmapHdr := (*reflect.SliceHeader)(unsafe.Pointer(&bitmap))

	// Keep the backing slices alive for the duration of the test.
	t.Cleanup(func() {
		_ = mem
		_ = bitmap
	})

	return memHdr.Data, bitmapHdr.Data
}

func TestAllocFrameExhaustsArena(t *testing.T) {
	const numFrames = 4

	startAddr, bitmapAddr := backingArena(t, numFrames)
	Init(startAddr, numFrames, bitmapAddr)

	if got := FreeCount(); got != numFrames {
		t.Fatalf("expected FreeCount() to be %d; got %d", numFrames, got)
	}

	seen := make(map[mm.Frame]bool)
	for i := 0; i < numFrames; i++ {
		f, err := AllocFrame()
		if err != nil {
			t.Fatalf("unexpected error allocating frame %d: %s", i, err.Error())
		}
		if seen[f] {
			t.Fatalf("frame %v allocated twice", f)
		}
		seen[f] = true
	}

	if _, err := AllocFrame(); err == nil {
		t.Fatal("expected AllocFrame to fail once the arena is exhausted")
	}

	if got := FreeCount(); got != 0 {
		t.Fatalf("expected FreeCount() to be 0 after exhausting the arena; got %d", got)
	}
}

func TestFreeFrameMakesFrameAvailableAgain(t *testing.T) {
	const numFrames = 2

	startAddr, bitmapAddr := backingArena(t, numFrames)
	Init(startAddr, numFrames, bitmapAddr)

	f1, err := AllocFrame()
	if err != nil {
		t.Fatalf("unexpected error: %s", err.Error())
	}
	if _, err := AllocFrame(); err != nil {
		t.Fatalf("unexpected error: %s", err.Error())
	}

	FreeFrame(f1)
	if got := FreeCount(); got != 1 {
		t.Fatalf("expected FreeCount() to be 1 after freeing a frame; got %d", got)
	}

	refilled, err := AllocFrame()
	if err != nil {
		t.Fatalf("unexpected error re-allocating freed frame: %s", err.Error())
	}
	if refilled != f1 {
		t.Fatalf("expected re-allocated frame to be %v; got %v", f1, refilled)
	}
}

func TestInitRegistersAllocatorWithMM(t *testing.T) {
	const numFrames = 1

	startAddr, bitmapAddr := backingArena(t, numFrames)
	Init(startAddr, numFrames, bitmapAddr)
	defer mm.SetFrameAllocator(nil, nil)

	f, err := mm.AllocFrame()
	if err != nil {
		t.Fatalf("unexpected error: %s", err.Error())
	}
	mm.FreeFrame(f)

	if got := FreeCount(); got != numFrames {
		t.Fatalf("expected FreeCount() to be %d after the frame is returned; got %d", numFrames, got)
	}
}

func TestNonMultipleOf64FrameCountClampsScanning(t *testing.T) {
	const numFrames = 5 // not a multiple of 64; exercises the tail-bit clear in Init

	startAddr, bitmapAddr := backingArena(t, numFrames)
	Init(startAddr, numFrames, bitmapAddr)

	for i := 0; i < numFrames; i++ {
		if _, err := AllocFrame(); err != nil {
			t.Fatalf("unexpected error allocating frame %d: %s", i, err.Error())
		}
	}

	if _, err := AllocFrame(); err == nil {
		t.Fatal("expected AllocFrame to fail once all 5 frames are allocated, not scan into the padding bits")
	}
}
