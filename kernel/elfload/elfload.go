// Package elfload decodes the ELF64 program headers of a user binary read
// through a kernel/fs inode, exposing only what kernel/vspace's LoadCode
// needs: the entry point and an iterator over PT_LOAD segments.
package elfload

import (
	"debug/elf"

	"nanokernel/kernel"
	"nanokernel/kernel/fs"
	"nanokernel/kernel/kfmt"
)

var log = kfmt.SubsystemWriter("elfload")

var (
	// ErrRejected is returned for any malformed ELF image: bad magic, a
	// truncated header, or a program header this loader cannot trust.
	ErrRejected = &kernel.Error{Module: "elfload", Message: "elf image rejected"}
)

// Segment describes one PT_LOAD program header, translated into the fields
// LoadCode needs to build mappings from.
type Segment struct {
	VAddr  uintptr
	Off    int64
	Filesz uint64
	Memsz  uint64
	Write  bool
}

// Image is a parsed ELF64 executable backed by a kernel/fs inode.
type Image struct {
	Entry    uintptr
	Segments []Segment
}

// inodeReaderAt adapts a kernel/fs inode to the io.ReaderAt interface that
// debug/elf requires.
type inodeReaderAt struct {
	inode *fs.Inode
}

func (r inodeReaderAt) ReadAt(dst []byte, off int64) (int, error) {
	n, err := fs.Read(r.inode, dst, off, len(dst))
	if err != nil {
		return n, ErrRejected
	}
	return n, nil
}

// Load parses the ELF64 image stored in inode and returns its entry point
// and PT_LOAD segments. Any parse failure is reported as ErrRejected; the
// caller is responsible for releasing inode regardless of outcome.
func Load(inode *fs.Inode) (*Image, *kernel.Error) {
	f, err := elf.NewFile(inodeReaderAt{inode: inode})
	if err != nil {
		kfmt.Fprintf(log, "rejected: %s\n", err.Error())
		return nil, ErrRejected
	}

	if f.Class != elf.ELFCLASS64 || f.Type != elf.ET_EXEC {
		kfmt.Fprintf(log, "rejected: not a 64-bit executable (class %d type %d)\n", int(f.Class), int(f.Type))
		return nil, ErrRejected
	}

	img := &Image{Entry: uintptr(f.Entry)}

	for _, ph := range f.Progs {
		if ph.Type != elf.PT_LOAD {
			continue
		}

		if ph.Memsz < ph.Filesz {
			kfmt.Fprintf(log, "rejected: PT_LOAD segment at 0x%x has Filesz > Memsz\n", uintptr(ph.Vaddr))
			return nil, ErrRejected
		}
		if ph.Vaddr+ph.Memsz < ph.Vaddr {
			kfmt.Fprintf(log, "rejected: PT_LOAD segment at 0x%x overflows the address space\n", uintptr(ph.Vaddr))
			return nil, ErrRejected
		}

		img.Segments = append(img.Segments, Segment{
			VAddr:  uintptr(ph.Vaddr),
			Off:    int64(ph.Off),
			Filesz: ph.Filesz,
			Memsz:  ph.Memsz,
			Write:  ph.Flags&elf.PF_W != 0,
		})
	}

	if len(img.Segments) == 0 {
		kfmt.Fprintf(log, "rejected: no PT_LOAD segments\n")
		return nil, ErrRejected
	}

	return img, nil
}
