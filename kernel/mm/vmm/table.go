package vmm

import (
	"nanokernel/kernel"
	"nanokernel/kernel/mm"
)

// kernelBaseIndex is the PML4 slot index that KernelBase falls into. Every
// slot at or above this index is shared verbatim across every VSpace's root
// table; slots below it are user-owned and never shared.
var kernelBaseIndex = uint(mm.KernelBase>>pageLevelShifts[0]) & ((1 << pageLevelBits[0]) - 1)

// kernelTable holds the canonical set of kernel-range PML4 entries that
// every process's root table copies via SetupKernelMapping. It is built once
// by Init.
var kernelTable PageTable

// PageTable is a handle to a root (PML4) hardware page table.
type PageTable struct {
	frame mm.Frame
}

// PhysAddr returns the physical address of this table's root frame, the
// value the MMU's control register expects.
func (pt PageTable) PhysAddr() uintptr {
	return pt.frame.Address()
}

// KernelTable returns the canonical kernel root table built by Init, used
// when no process is current.
func KernelTable() PageTable {
	return kernelTable
}

func newZeroedTable() (PageTable, *kernel.Error) {
	frame, err := mm.AllocFrame()
	if err != nil {
		return PageTable{}, err
	}

	kernel.Memset(mm.P2V(frame.Address()), 0, mm.PageSize)
	return PageTable{frame: frame}, nil
}

// Init allocates the canonical kernel root table. It must be called once,
// before the first call to NewKernelTable or InstallKernel. This module
// hosts no real kernel image to map: unlike the teacher, which populates its
// kernel PDT from the boot loader's ELF section list, the kernel range here
// stays a block of zeroed, not-present PML4 slots, which SetupKernelMapping
// copies into every VSpace's root table; there are no kernel-range
// lower-level tables for the VSpaces to share.
func Init() *kernel.Error {
	table, err := newZeroedTable()
	if err != nil {
		return err
	}
	kernelTable = table
	return nil
}

// NewKernelTable allocates a fresh root table preloaded with the shared
// kernel mapping, ready to receive a VSpace's user-region entries.
func NewKernelTable() (PageTable, *kernel.Error) {
	table, err := newZeroedTable()
	if err != nil {
		return PageTable{}, err
	}

	if err = SetupKernelMapping(table); err != nil {
		return PageTable{}, err
	}

	return table, nil
}

// SetupKernelMapping copies the shared kernel-range PML4 entries into root,
// aliasing the same lower-level tables that every other VSpace uses. root
// must not already have kernel entries populated.
func SetupKernelMapping(root PageTable) *kernel.Error {
	rootVirt := mm.P2V(root.frame.Address())
	kernelVirt := mm.P2V(kernelTable.frame.Address())

	for idx := kernelBaseIndex; idx < (1 << pageLevelBits[0]); idx++ {
		srcEntry := (*PTE)(entryPointer(kernelVirt, idx))
		dstEntry := (*PTE)(entryPointer(rootVirt, idx))
		*dstEntry = *srcEntry
	}

	return nil
}
