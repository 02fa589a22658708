package vmm

import "nanokernel/kernel/mm"

// freeSubtree releases every table page reachable from the table at
// tableAddr, down to (but not including) the leaf PT level. Leaf PTEs
// themselves are left untouched: the physical frames they describe are user
// data frames owned by VPiPage slots, released separately by the caller.
func freeSubtree(level uint8, tableAddr uintptr) {
	tableVirt := mm.P2V(tableAddr)

	for idx := uint(0); idx < (1 << pageLevelBits[level]); idx++ {
		entry := (*PTE)(entryPointer(tableVirt, idx))
		if !entry.HasFlags(FlagPresent) {
			continue
		}

		childFrame := entry.Frame()

		if level < pageLevels-2 {
			freeSubtree(level+1, childFrame.Address())
		}

		mm.FreeFrame(childFrame)
		*entry = 0
	}
}

// FreeUserSubtree releases every paging-structure page below the
// kernel/user split in root, leaving the shared kernel entries untouched.
// It does not release the root table's own frame (see FreeTable) and does
// not release user data frames (the caller releases those via the VPiPage
// chain before calling this).
func FreeUserSubtree(root PageTable) {
	rootVirt := mm.P2V(root.frame.Address())

	for idx := uint(0); idx < kernelBaseIndex; idx++ {
		entry := (*PTE)(entryPointer(rootVirt, idx))
		if !entry.HasFlags(FlagPresent) {
			continue
		}

		childFrame := entry.Frame()
		freeSubtree(1, childFrame.Address())
		mm.FreeFrame(childFrame)
		*entry = 0
	}
}

// FreeTable releases root's own frame. Callers must have already released
// the user subtree (FreeUserSubtree); the kernel-range entries are shared
// with every other VSpace and are never freed here.
func FreeTable(root PageTable) {
	mm.FreeFrame(root.frame)
}
