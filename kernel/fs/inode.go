// Package fs implements the minimal in-kernel filesystem surface that
// kernel/elfload needs: resolving a path to an inode, locking it for
// exclusive access, and reading bytes out of it at an arbitrary offset.
//
// There is no on-disk format here. Every inode's contents live in memory,
// installed ahead of time by InstallProgram; this is sufficient for the ELF
// loader and for tests that need to exercise LoadCode against fixture
// binaries.
package fs

import (
	"nanokernel/kernel"
	"nanokernel/kernel/sync"
)

var (
	// ErrNotFound is returned by Resolve when no inode is installed at
	// the given path.
	ErrNotFound = &kernel.Error{Module: "fs", Message: "inode not found"}

	// ErrShortRead is returned by Read when fewer bytes than requested
	// remain in the inode past the given offset.
	ErrShortRead = &kernel.Error{Module: "fs", Message: "short read"}
)

// Inode is an in-memory file: a byte blob plus a lock serializing access to
// it. Inodes may be resolved from more than one VSpace's loader concurrently
// (see section 5), hence the per-inode spinlock rather than relying on the
// single-threaded-per-address-space assumption that covers the rest of this
// module.
type Inode struct {
	path string
	data []byte
	lock sync.Spinlock
}

var table = map[string]*Inode{}

// InstallProgram registers data as the contents of the inode at path,
// replacing any inode already installed there. It exists for tests and for
// whatever bootstrap code seeds the initial process's binary.
func InstallProgram(path string, data []byte) {
	table[path] = &Inode{path: path, data: data}
}

// Resolve looks up the inode at path.
func Resolve(path string) (*Inode, *kernel.Error) {
	inode, ok := table[path]
	if !ok {
		return nil, ErrNotFound
	}
	return inode, nil
}

// Lock acquires exclusive access to inode.
func Lock(inode *Inode) {
	inode.lock.Acquire()
}

// Unlock releases a lock acquired by Lock.
func Unlock(inode *Inode) {
	inode.lock.Release()
}

// Release relinquishes the caller's reference to inode. This in-memory
// implementation keeps every installed inode alive for the lifetime of the
// kernel, so Release has no effect beyond documenting the handoff point a
// refcounted filesystem would need.
func Release(inode *Inode) {}

// Read copies up to n bytes starting at offset off in inode into dst,
// returning the number of bytes copied. It fails with ErrShortRead if fewer
// than n bytes remain past off.
func Read(inode *Inode, dst []byte, off int64, n int) (int, *kernel.Error) {
	if off < 0 || off > int64(len(inode.data)) || int64(len(inode.data))-off < int64(n) {
		return 0, ErrShortRead
	}

	copied := copy(dst, inode.data[off:off+int64(n)])
	return copied, nil
}
