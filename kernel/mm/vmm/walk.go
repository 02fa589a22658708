package vmm

import (
	"unsafe"

	"nanokernel/kernel"
	"nanokernel/kernel/mm"
)

var (
	// ErrInvalidMapping is returned by Walk when the requested virtual
	// address has no mapping and create is false.
	ErrInvalidMapping = &kernel.Error{Module: "vmm", Message: "virtual address does not point to a mapped physical page"}

	// entryPointerFn is the function Walk uses to locate a table entry. It
	// is a package-level variable so a test can substitute it; the tests in
	// this package keep entryPointer and back every table with page-aligned
	// Go memory instead.
	entryPointerFn = entryPointer
)

// entryPointer returns a pointer to the PTE at index idx within the table
// whose kernel-virtual base address is tableVirt.
func entryPointer(tableVirt uintptr, idx uint) unsafe.Pointer {
	return unsafe.Pointer(tableVirt + (uintptr(idx) << mm.PointerShift))
}

func levelIndex(va uintptr, level uint8) uint {
	return uint(va>>pageLevelShifts[level]) & ((1 << pageLevelBits[level]) - 1)
}

// Walk resolves the leaf PTE that virtual address va maps to under root.
// Because this kernel's physical memory map makes every frame addressable
// through P2V, Walk dereferences each level's table directly rather than
// relying on a temporary recursive mapping the way the teacher's page-table
// walker does for tables that aren't currently active.
//
// If create is true, missing intermediate tables (PDPT/PD/PT nodes) are
// allocated and zeroed as the walk descends; the walk never allocates the
// final leaf frame, only the tables that lead to it.
func Walk(root PageTable, va uintptr, create bool) (*PTE, *kernel.Error) {
	tableAddr := root.frame.Address()

	for level := uint8(0); level < pageLevels; level++ {
		tableVirt := mm.P2V(tableAddr)
		idx := levelIndex(va, level)
		entry := (*PTE)(entryPointerFn(tableVirt, idx))

		if level == pageLevels-1 {
			return entry, nil
		}

		if !entry.HasFlags(FlagPresent) {
			if !create {
				return nil, ErrInvalidMapping
			}

			childFrame, err := mm.AllocFrame()
			if err != nil {
				return nil, err
			}
			kernel.Memset(mm.P2V(childFrame.Address()), 0, mm.PageSize)

			entry.SetFrame(childFrame)
			entry.SetFlags(FlagPresent | FlagRW | FlagUser)
		}

		tableAddr = entry.Frame().Address()
	}

	// unreachable: pageLevels > 0 guarantees the loop returns above.
	return nil, ErrInvalidMapping
}
