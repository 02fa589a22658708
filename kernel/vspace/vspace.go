package vspace

import (
	"nanokernel/kernel"
	"nanokernel/kernel/elfload"
	"nanokernel/kernel/fs"
	"nanokernel/kernel/mm"
	"nanokernel/kernel/mm/vmm"
)

// Region indices into VSpace.Regions.
const (
	Code = iota
	Heap
	UStack
	NRegions
)

// initCodeBase is the fixed load address InitCode uses for the very first
// process's image.
const initCodeBase = uintptr(0x10000)

// initScratchPages is the number of present+writable pages InitCode appends
// after the init blob. Their contents are a bootstrap-specific contract
// (stack descriptor storage per the kernel's memory map) owned by a
// consumer outside this package; this module only guarantees the pages
// exist and are writable.
const initScratchPages = 5

// ContainResult is the tri-state result of VSpace.Contains.
type ContainResult int

const (
	// ContainsUnmapped reports that va, the start of the queried range,
	// lies in no region. Only va is located: a range that starts outside
	// every region but runs into one is still ContainsUnmapped.
	ContainsUnmapped ContainResult = iota

	// ContainsYes reports that a single region covers the queried range
	// in full.
	ContainsYes

	// ContainsPartial reports that the queried range starts inside a
	// region but extends past it.
	ContainsPartial
)

// VSpace is a process's user virtual address space: three regions plus the
// hardware page table that mirrors them.
type VSpace struct {
	PgTbl   vmm.PageTable
	Regions [NRegions]VRegion
}

// RootPhysAddr implements kernel/proc.AddressSpace.
func (vs *VSpace) RootPhysAddr() uintptr {
	return vs.PgTbl.PhysAddr()
}

// Init builds a fresh hardware page table preloaded with the kernel mapping
// and resets every region to empty, assigning each its fixed growth
// direction.
func Init(vs *VSpace) *kernel.Error {
	table, err := vmm.NewKernelTable()
	if err != nil {
		return err
	}

	vs.PgTbl = table
	vs.Regions = [NRegions]VRegion{}
	vs.Regions[Code].Dir = Up
	vs.Regions[Heap].Dir = Up
	vs.Regions[UStack].Dir = Down

	return nil
}

// InitCode bootstraps the very first process's address space: it loads
// initBytes as the code region, appends initScratchPages writable scratch
// pages after it, and sets up a one-page stack at Sz2G.
func InitCode(vs *VSpace, initBytes []byte) *kernel.Error {
	code := &vs.Regions[Code]
	code.VABase = initCodeBase
	code.Size = mm.PageRoundUp(uintptr(len(initBytes))) + initScratchPages*mm.PageSize

	if err := code.AddData(initCodeBase, initBytes, true, true); err != nil {
		return err
	}

	scratchVA := initCodeBase + mm.PageRoundUp(uintptr(len(initBytes)))
	if _, err := code.AddMapping(scratchVA, initScratchPages*mm.PageSize, true, true); err != nil {
		return err
	}

	if err := InitStack(vs, mm.Sz2G); err != nil {
		return err
	}

	return Update(vs)
}

// LoadCode replaces the code region with the contents of the ELF64
// executable resolved at path, returning its entry point. The heap region
// is repositioned immediately past the loaded image, leaving a one-page
// guard gap.
func LoadCode(vs *VSpace, path string) (uintptr, *kernel.Error) {
	inode, err := fs.Resolve(path)
	if err != nil {
		return 0, errElfRejected
	}

	fs.Lock(inode)
	defer fs.Unlock(inode)
	defer fs.Release(inode)

	img, ierr := elfload.Load(inode)
	if ierr != nil {
		return 0, errElfRejected
	}

	code := &vs.Regions[Code]
	*code = VRegion{Dir: Up}

	var codeBase uintptr
	var codeEnd uintptr
	for i, seg := range img.Segments {
		if seg.VAddr%mm.PageSize != 0 {
			return 0, errElfRejected
		}
		if i == 0 {
			codeBase = mm.PageRoundDown(seg.VAddr)
			code.VABase = codeBase
		}

		if _, aerr := code.AddMapping(seg.VAddr, uintptr(seg.Memsz), true, seg.Write); aerr != nil {
			return 0, aerr
		}
		if seg.Filesz > 0 {
			if lerr := code.LoadFromInode(seg.VAddr, inode, seg.Off, seg.Filesz); lerr != nil {
				return 0, errElfRejected
			}
		}

		if end := seg.VAddr + uintptr(seg.Memsz); end > codeEnd {
			codeEnd = end
		}
	}

	code.Size = codeEnd - code.VABase

	heap := &vs.Regions[Heap]
	*heap = VRegion{Dir: Up, VABase: mm.PageRoundUp(codeEnd) + mm.PageSize, Size: 0}

	if uerr := Update(vs); uerr != nil {
		return 0, uerr
	}

	return img.Entry, nil
}

// InitStack reinitializes the user stack region to a single present+writable
// page directly below top.
func InitStack(vs *VSpace, top uintptr) *kernel.Error {
	stack := &vs.Regions[UStack]
	*stack = VRegion{Dir: Down, VABase: top, Size: mm.PageSize}

	if _, err := stack.AddMapping(top-mm.PageSize, mm.PageSize, true, true); err != nil {
		return err
	}

	return nil
}

// findRegion returns the region containing va, or nil if none does.
func findRegion(vs *VSpace, va uintptr) *VRegion {
	for i := range vs.Regions {
		r := &vs.Regions[i]
		if va >= r.Bottom() && va < r.Top() {
			return r
		}
	}
	return nil
}

// WriteTo copies data into the user address space starting at va, crossing
// page boundaries as needed. Every byte written must land on a Used,
// Writable page; on any failure nothing is written.
func WriteTo(vs *VSpace, va uintptr, data []byte) *kernel.Error {
	// Validate every page the write touches before copying a single
	// byte, so a failure partway through never leaves a partial write
	// behind.
	touched, err := collectWritableVPIs(vs, va, len(data))
	if err != nil {
		return err
	}

	offset := 0
	cursor := va
	remaining := len(data)
	for _, vpi := range touched {
		chunk := mm.PageRoundUp(cursor+1) - cursor
		if chunk > uintptr(remaining) {
			chunk = uintptr(remaining)
		}

		pageOff := cursor % mm.PageSize
		dst := addrSlice(mm.P2V(vpi.PPN.Address())+pageOff, int(chunk))
		copy(dst, data[offset:offset+int(chunk)])

		cursor += chunk
		offset += int(chunk)
		remaining -= int(chunk)
	}

	return nil
}

// collectWritableVPIs walks the pages covering [va, va+n) and returns their
// VPageInfo slots in order, failing if any page along the way is unmapped
// or not writable.
func collectWritableVPIs(vs *VSpace, va uintptr, n int) ([]*VPageInfo, *kernel.Error) {
	var out []*VPageInfo

	cursor := va
	remaining := n
	for remaining > 0 {
		r := findRegion(vs, cursor)
		if r == nil {
			return nil, errNoRegion
		}

		vpi, err := r.Lookup(cursor)
		if err != nil {
			return nil, err
		}
		if !vpi.Used {
			return nil, errNotMapped
		}
		if !vpi.Writable {
			return nil, errNotWritable
		}
		out = append(out, vpi)

		chunk := mm.PageRoundUp(cursor+1) - cursor
		if chunk > uintptr(remaining) {
			chunk = uintptr(remaining)
		}
		cursor += chunk
		remaining -= int(chunk)
	}

	return out, nil
}

// MarkNotPresent zeroes the hardware PTE for pageAlignedVA. Callers must
// already have set the corresponding VPageInfo's Present to false; this
// function does not touch the logical model, only the MMU-visible state.
func MarkNotPresent(vs *VSpace, pageAlignedVA uintptr) {
	r := findRegion(vs, pageAlignedVA)
	if r == nil {
		panic(errPreconditionViolated)
	}

	vpi, err := r.Lookup(pageAlignedVA)
	if err != nil || !vpi.Used || vpi.Present {
		panic(errPreconditionViolated)
	}

	entry, werr := vmm.Walk(vs.PgTbl, pageAlignedVA, false)
	if werr != nil {
		return
	}
	*entry = 0
}

// Contains reports how [va, va+size) relates to the regions of vs.
func Contains(vs *VSpace, va, size uintptr) ContainResult {
	r := findRegion(vs, va)
	if r == nil {
		return ContainsUnmapped
	}
	if r.Contains(va, size) {
		return ContainsYes
	}
	return ContainsPartial
}

// Copy deep-copies src into dst: every region header is duplicated, and
// every Used page gets a freshly allocated frame with identical contents,
// so mutating one address space never affects the other. dst is expected to
// already have its own hardware page table (from Init); Copy rebuilds its
// mappings with a final Update.
func Copy(dst, src *VSpace) *kernel.Error {
	for i := range src.Regions {
		dr := &dst.Regions[i]
		sr := &src.Regions[i]

		dr.VABase = sr.VABase
		dr.Size = sr.Size
		dr.Dir = sr.Dir
		dr.Pages = nil

		if err := copyVPiChain(dr, sr.Pages); err != nil {
			return err
		}
	}

	return Update(dst)
}

// copyVPiChain duplicates the VPiPage chain starting at src into dst,
// allocating a fresh backing frame and copying contents for every Used
// slot. It walks iteratively so an arbitrarily long chain never recurses.
func copyVPiChain(dst *VRegion, src *VPiPage) *kernel.Error {
	var tail *VPiPage

	for srcNode := src; srcNode != nil; srcNode = srcNode.Next {
		dstNode, err := allocVPiPage()
		if err != nil {
			return err
		}

		for i := range srcNode.Infos {
			si := &srcNode.Infos[i]
			if !si.Used {
				continue
			}

			frame, ferr := mm.AllocFrame()
			if ferr != nil {
				return errOutOfFrames
			}
			kernel.Memcopy(mm.P2V(si.PPN.Address()), mm.P2V(frame.Address()), mm.PageSize)

			dstNode.Infos[i] = VPageInfo{
				PPN:      frame,
				Used:     true,
				Present:  si.Present,
				Writable: si.Writable,
			}
		}

		if tail == nil {
			dst.Pages = dstNode
		} else {
			tail.Next = dstNode
		}
		tail = dstNode
	}

	return nil
}

// Free releases every frame and bookkeeping node owned by vs: every region's
// VPiPage chain, the user portion of its hardware page table, and finally
// the root table's own frame. The shared kernel mappings, which every VSpace
// points at, are never touched. Callers must not install vs on any CPU
// again afterward.
func Free(vs *VSpace) {
	for i := range vs.Regions {
		freeVPiPageChain(vs.Regions[i].Pages)
		vs.Regions[i] = VRegion{}
	}

	vmm.FreeUserSubtree(vs.PgTbl)
	vmm.FreeTable(vs.PgTbl)
}

// Update rebuilds the hardware page table from the logical region
// descriptions. The existing user subtree is discarded and walked fresh
// rather than diffed, so Update tolerates any sequence of region mutations
// since the previous call.
func Update(vs *VSpace) *kernel.Error {
	vmm.FreeUserSubtree(vs.PgTbl)

	for i := range vs.Regions {
		r := &vs.Regions[i]
		if r.Size == 0 {
			continue
		}

		for va := r.Bottom(); va < r.Top(); va += mm.PageSize {
			vpi, err := r.Lookup(va)
			if err != nil {
				return err
			}
			if !vpi.Used || !vpi.Present {
				continue
			}

			flags := vmm.FlagUser
			if vpi.Writable {
				flags |= vmm.FlagRW
			}

			if merr := vmm.MapPages(vs.PgTbl, mm.PageFromAddress(va), 1, vpi.PPN, flags, true); merr != nil {
				return merr
			}
		}
	}

	return nil
}
