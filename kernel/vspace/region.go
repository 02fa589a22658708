package vspace

import (
	"reflect"
	"unsafe"

	"nanokernel/kernel"
	"nanokernel/kernel/fs"
	"nanokernel/kernel/mm"
)

// Direction describes which way a VRegion grows from its anchor address.
type Direction uint8

const (
	// Up regions span [VABase, VABase+Size), index 0 at VABase.
	Up Direction = iota

	// Down regions span [VABase-Size, VABase), index 0 at the page below
	// VABase. Used by the user stack so it can grow toward lower
	// addresses while keeping indices contiguous from the anchor.
	Down
)

// VRegion is a contiguous, directional range of virtual pages with uniform
// semantics, backed by a chain of VPiPage nodes.
type VRegion struct {
	VABase uintptr
	Size   uintptr
	Dir    Direction
	Pages  *VPiPage
}

// Bottom returns the inclusive lower bound of the region regardless of
// direction.
func (r *VRegion) Bottom() uintptr {
	if r.Dir == Up {
		return r.VABase
	}
	return r.VABase - r.Size
}

// Top returns the exclusive upper bound of the region regardless of
// direction.
func (r *VRegion) Top() uintptr {
	if r.Dir == Up {
		return r.VABase + r.Size
	}
	return r.VABase
}

// index returns the linear VPageInfo slot index for va within this region.
func (r *VRegion) index(va uintptr) uintptr {
	if r.Dir == Up {
		return (va - r.VABase) >> mm.PageShift
	}
	return (r.VABase - 1 - va) >> mm.PageShift
}

// Lookup returns a stable pointer to the VPageInfo slot for va, allocating
// VPiPage nodes as needed. The returned pointer remains valid for the
// lifetime of the region.
func (r *VRegion) Lookup(va uintptr) (*VPageInfo, *kernel.Error) {
	if r.Pages == nil {
		page, err := allocVPiPage()
		if err != nil {
			return nil, err
		}
		r.Pages = page
	}

	idx := r.index(va)
	page := r.Pages
	for idx >= SlotsPerNode {
		if page.Next == nil {
			next, err := allocVPiPage()
			if err != nil {
				return nil, err
			}
			page.Next = next
		}
		page = page.Next
		idx -= SlotsPerNode
	}

	return &page.Infos[idx], nil
}

// AddMapping reserves zero-filled physical frames for every page-aligned
// address a with PageRoundUp(fromVA) <= a < fromVA+size and records them as
// Used in this region's VPageInfo store; when fromVA is not page-aligned, the
// page containing fromVA is not mapped. It does not modify r.Size; callers
// set that separately.
func (r *VRegion) AddMapping(fromVA, size uintptr, present, writable bool) (uintptr, *kernel.Error) {
	if fromVA+size >= mm.KernelBase {
		return 0, errAddressTooHigh
	}
	if size == 0 {
		return 0, nil
	}

	start := mm.PageRoundUp(fromVA)
	end := fromVA + size

	var touched []uintptr
	for a := start; a < end; a += mm.PageSize {
		vpi, err := r.Lookup(a)
		if err != nil {
			unwind(r, touched)
			return 0, err
		}
		if vpi.Used {
			panic(errRemapAttempted)
		}

		frame, err := mm.AllocFrame()
		if err != nil {
			unwind(r, touched)
			return 0, errOutOfFrames
		}
		kernel.Memset(mm.P2V(frame.Address()), 0, mm.PageSize)

		vpi.Used = true
		vpi.Present = present
		vpi.Writable = writable
		vpi.PPN = frame

		touched = append(touched, a)
	}

	return size, nil
}

// unwind releases every frame allocated so far in a failed AddMapping call,
// in reverse order, and clears the corresponding slots.
func unwind(r *VRegion, touched []uintptr) {
	for i := len(touched) - 1; i >= 0; i-- {
		vpi, err := r.Lookup(touched[i])
		if err != nil {
			continue
		}
		mm.FreeFrame(vpi.PPN)
		*vpi = VPageInfo{}
	}
}

// addrSlice overlays a []byte of length n onto the memory at addr.
func addrSlice(addr uintptr, n int) []byte {
	return *(*[]byte)(unsafe.Pointer(&reflect.SliceHeader{
		Data: addr,
		Len:  n,
		Cap:  n,
	}))
}

// AddData reserves mappings for [va, va+len(data)) and copies data into the
// freshly allocated frames.
func (r *VRegion) AddData(va uintptr, data []byte, present, writable bool) *kernel.Error {
	if _, err := r.AddMapping(va, uintptr(len(data)), present, writable); err != nil {
		return err
	}

	for i := 0; i < len(data); i += int(mm.PageSize) {
		vpi, err := r.Lookup(va + uintptr(i))
		if err != nil {
			return err
		}
		n := len(data) - i
		if n > int(mm.PageSize) {
			n = int(mm.PageSize)
		}
		kernel.Memcopy(uintptr(unsafe.Pointer(&data[i])), mm.P2V(vpi.PPN.Address()), uintptr(n))
	}

	return nil
}

// LoadFromInode reads n bytes from inode at file offset off into the
// already-mapped pages covering [va, va+n). va must be page-aligned and
// every covered page must already be Used.
func (r *VRegion) LoadFromInode(va uintptr, inode *fs.Inode, off int64, n uint64) *kernel.Error {
	if va%mm.PageSize != 0 {
		panic(errPreconditionViolated)
	}

	for i := uint64(0); i < n; i += uint64(mm.PageSize) {
		vpi, err := r.Lookup(va + uintptr(i))
		if err != nil {
			return err
		}
		if !vpi.Used {
			panic(errPreconditionViolated)
		}

		chunk := n - i
		if chunk > uint64(mm.PageSize) {
			chunk = uint64(mm.PageSize)
		}

		dst := addrSlice(mm.P2V(vpi.PPN.Address()), int(chunk))
		read, rerr := fs.Read(inode, dst, off+int64(i), int(chunk))
		if rerr != nil || uint64(read) != chunk {
			return errElfRejected
		}
	}

	return nil
}

// Contains reports whether [va, va+size) lies entirely within this region.
// When size is 0, va == Top(r) is excluded.
func (r *VRegion) Contains(va, size uintptr) bool {
	if size == 0 && va == r.Top() {
		return false
	}
	return va >= r.Bottom() && va+size <= r.Top()
}
