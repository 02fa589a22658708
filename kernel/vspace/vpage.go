package vspace

import (
	"unsafe"

	"nanokernel/kernel"
	"nanokernel/kernel/mm"
)

const (
	// vPageInfoSize is sizeof(VPageInfo): one frame number plus three
	// packed flag bytes, rounded up to an 8-byte-aligned slot.
	vPageInfoSize = 16

	// ptrSize is the size of the VPiPage.Next pointer field.
	ptrSize = 1 << mm.PointerShift

	// SlotsPerNode is the number of VPageInfo slots in a single VPiPage
	// node: as many as fit in one page alongside the Next link.
	SlotsPerNode = (mm.PageSize - ptrSize) / vPageInfoSize
)

// VPageInfo describes one user virtual page within a VRegion.
type VPageInfo struct {
	// PPN is the backing physical frame. Only meaningful when Used.
	PPN mm.Frame

	// Used marks this slot as allocated to a virtual page.
	Used bool

	// Present marks whether the MMU should mark the page present. A
	// Used page with Present false is known to the kernel but hidden
	// from the MMU (see MarkNotPresent).
	Present bool

	// Writable marks whether the page may be written to, both in the
	// logical bookkeeping (consulted by WriteTo) and, when Present, in
	// the hardware mapping produced by a sync.
	Writable bool
}

// VPiPage is one node of the singly linked list backing a VRegion's
// VPageInfo storage. Nodes are never shrunk or relocated once allocated.
type VPiPage struct {
	Infos [SlotsPerNode]VPageInfo
	Next  *VPiPage
}

// allocVPiPage reserves a fresh physical frame and overlays a zeroed VPiPage
// onto its kernel-virtual alias. Bookkeeping nodes are costed against the
// same frame allocator as user data pages, matching the contract in section
// 4.1 that Lookup can only fail when the frame allocator is exhausted.
func allocVPiPage() (*VPiPage, *kernel.Error) {
	frame, err := mm.AllocFrame()
	if err != nil {
		return nil, errOutOfFrames
	}

	addr := mm.P2V(frame.Address())
	kernel.Memset(addr, 0, mm.PageSize)
	return (*VPiPage)(unsafe.Pointer(addr)), nil
}

// freeVPiPageChain releases every node in the chain starting at page, along
// with the backing frame of every Used slot it holds. It does not release
// nodes reachable only through page.Next until it has processed page itself,
// so a node's frame stays valid while its own slots are still being read.
func freeVPiPageChain(page *VPiPage) {
	if page == nil {
		return
	}

	next := page.Next
	for i := range page.Infos {
		if page.Infos[i].Used {
			mm.FreeFrame(page.Infos[i].PPN)
		}
	}
	mm.FreeFrame(mm.FrameFromAddress(mm.V2P(uintptr(unsafe.Pointer(page)))))

	freeVPiPageChain(next)
}
