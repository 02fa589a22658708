package vmm

import (
	"nanokernel/kernel"
	"nanokernel/kernel/cpu"
	"nanokernel/kernel/mm"
)

var (
	// flushTLBEntryFn is mocked by tests and inlined by the compiler.
	flushTLBEntryFn = cpu.FlushTLBEntry

	// ErrAlreadyMapped is returned by MapPages when a target page already
	// carries a present mapping and replace is false.
	ErrAlreadyMapped = &kernel.Error{Module: "vmm", Message: "page already mapped"}
)

// MapPages maps n consecutive virtual pages starting at vaPage to n
// consecutive physical frames starting at ppn, all with the given flags
// (FlagPresent is applied automatically). If replace is false, MapPages
// fails without changing anything as soon as it finds an already-present
// leaf entry; if replace is true, existing mappings are silently
// overwritten.
func MapPages(root PageTable, vaPage mm.Page, n int, ppn mm.Frame, flags PageTableEntryFlag, replace bool) *kernel.Error {
	if !replace {
		for i := 0; i < n; i++ {
			va := mm.Page(uintptr(vaPage) + uintptr(i)).Address()
			entry, err := Walk(root, va, false)
			if err == nil && entry.HasFlags(FlagPresent) {
				return ErrAlreadyMapped
			}
		}
	}

	for i := 0; i < n; i++ {
		va := mm.Page(uintptr(vaPage) + uintptr(i)).Address()
		frame := mm.Frame(uintptr(ppn) + uintptr(i))

		entry, err := Walk(root, va, true)
		if err != nil {
			return err
		}

		*entry = 0
		entry.SetFrame(frame)
		entry.SetFlags(flags | FlagPresent)

		flushTLBEntryFn(va)
	}

	return nil
}
