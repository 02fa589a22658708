package mm

import (
	"testing"

	"nanokernel/kernel"
)

func TestFrameMethods(t *testing.T) {
	for frameIndex := uint64(0); frameIndex < 128; frameIndex++ {
		frame := Frame(frameIndex)

		if !frame.Valid() {
			t.Errorf("expected frame %d to be valid", frameIndex)
		}

		if exp, got := uintptr(frameIndex<<PageShift), frame.Address(); got != exp {
			t.Errorf("expected frame (%d, index: %d) call to Address() to return %x; got %x", frame, frameIndex, exp, got)
		}
	}

	invalidFrame := InvalidFrame
	if invalidFrame.Valid() {
		t.Error("expected InvalidFrame.Valid() to return false")
	}
}

func TestFrameFromAddress(t *testing.T) {
	specs := []struct {
		input    uintptr
		expFrame Frame
	}{
		{0, Frame(0)},
		{4095, Frame(0)},
		{4096, Frame(1)},
		{4123, Frame(1)},
	}

	for specIndex, spec := range specs {
		if got := FrameFromAddress(spec.input); got != spec.expFrame {
			t.Errorf("[spec %d] expected returned frame to be %v; got %v", specIndex, spec.expFrame, got)
		}
	}
}

func TestFrameAllocator(t *testing.T) {
	var allocCalled, freeCalled bool
	customAlloc := func() (Frame, *kernel.Error) {
		allocCalled = true
		return FrameFromAddress(0xbadf00), nil
	}
	customFree := func(_ Frame) {
		freeCalled = true
	}

	defer SetFrameAllocator(nil, nil)
	SetFrameAllocator(customAlloc, customFree)

	f, err := AllocFrame()
	if err != nil {
		t.Fatal(err.Error())
	}

	if !allocCalled {
		t.Fatal("expected custom allocator to be invoked after a call to AllocFrame")
	}

	FreeFrame(f)
	if !freeCalled {
		t.Fatal("expected custom freer to be invoked after a call to FreeFrame")
	}
}

func TestV2PIdentity(t *testing.T) {
	for _, addr := range []uintptr{0, 4096, 0xdeadb000} {
		if got := V2P(addr); got != addr {
			t.Errorf("expected V2P(%x) to be identity; got %x", addr, got)
		}
		if got := P2V(addr); got != addr {
			t.Errorf("expected P2V(%x) to be identity; got %x", addr, got)
		}
	}
}

func TestPageMethods(t *testing.T) {
	for pageIndex := uint64(0); pageIndex < 128; pageIndex++ {
		page := Page(pageIndex)

		if exp, got := uintptr(pageIndex<<PageShift), page.Address(); got != exp {
			t.Errorf("expected page (%d, index: %d) call to Address() to return %x; got %x", page, pageIndex, exp, got)
		}
	}
}

func TestPageFromAddress(t *testing.T) {
	specs := []struct {
		input   uintptr
		expPage Page
	}{
		{0, Page(0)},
		{4095, Page(0)},
		{4096, Page(1)},
		{4123, Page(1)},
	}

	for specIndex, spec := range specs {
		if got := PageFromAddress(spec.input); got != spec.expPage {
			t.Errorf("[spec %d] expected returned page to be %v; got %v", specIndex, spec.expPage, got)
		}
	}
}

func TestPageRound(t *testing.T) {
	specs := []struct {
		input        uintptr
		expRoundDown uintptr
		expRoundUp   uintptr
	}{
		{0, 0, 0},
		{1, 0, PageSize},
		{PageSize - 1, 0, PageSize},
		{PageSize, PageSize, PageSize},
		{PageSize + 1, PageSize, 2 * PageSize},
	}

	for specIndex, spec := range specs {
		if got := PageRoundDown(spec.input); got != spec.expRoundDown {
			t.Errorf("[spec %d] expected PageRoundDown(%x) to be %x; got %x", specIndex, spec.input, spec.expRoundDown, got)
		}
		if got := PageRoundUp(spec.input); got != spec.expRoundUp {
			t.Errorf("[spec %d] expected PageRoundUp(%x) to be %x; got %x", specIndex, spec.input, spec.expRoundUp, got)
		}
	}
}
