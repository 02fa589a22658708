package vspace

import (
	"testing"
	"unsafe"

	"nanokernel/kernel"
	"nanokernel/kernel/mm"
	"nanokernel/kernel/mm/vmm"
)

// countingArena backs every frame handed out by the mocked allocator with
// real, page-aligned Go memory (the same scheme kernel/mm/vmm's tests use)
// and tracks how many frames are currently on loan, so tests can assert that
// a failed operation leaves the allocator's outstanding count unchanged.
type countingArena struct {
	base       uintptr
	capacity   int
	free       []bool
	outstanding int
}

func newCountingArena(t *testing.T, capacity int) *countingArena {
	t.Helper()

	buf := make([]byte, (capacity+1)*int(mm.PageSize))
	base := mm.PageRoundUp(uintptr(unsafe.Pointer(&buf[0])))

	a := &countingArena{base: base, capacity: capacity, free: make([]bool, capacity)}
	for i := range a.free {
		a.free[i] = true
	}

	mm.SetFrameAllocator(a.alloc, a.release)
	t.Cleanup(func() { mm.SetFrameAllocator(nil, nil) })
	return a
}

func (a *countingArena) alloc() (mm.Frame, *kernel.Error) {
	for i, free := range a.free {
		if free {
			a.free[i] = false
			a.outstanding++
			return mm.FrameFromAddress(a.base + uintptr(i)*mm.PageSize), nil
		}
	}
	return mm.InvalidFrame, &kernel.Error{Module: "test", Message: "arena exhausted"}
}

func (a *countingArena) release(f mm.Frame) {
	i := int((f.Address() - a.base) / mm.PageSize)
	a.free[i] = true
	a.outstanding--
}

// newTestArena installs the same counting arena and returns only its base,
// for tests that don't need to assert on outstanding frame counts.
func newTestArena(t *testing.T, capacity int) uintptr {
	t.Helper()
	a := newCountingArena(t, capacity)
	return a.base
}

// setupKernelTable initializes vmm's shared kernel root table. It must run
// after a test's frame arena is installed.
func setupKernelTable(t *testing.T) {
	t.Helper()
	if err := vmm.Init(); err != nil {
		t.Fatalf("vmm.Init failed: %s", err.Error())
	}
}
