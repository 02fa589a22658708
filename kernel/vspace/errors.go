package vspace

import "nanokernel/kernel"

var (
	// errOutOfFrames is returned whenever a physical-frame-allocating
	// operation cannot obtain a frame.
	errOutOfFrames = &kernel.Error{Module: "vspace", Message: "out of frames"}

	// errAddressTooHigh is returned by AddMapping when the requested
	// range would reach into the kernel's half of the address space.
	errAddressTooHigh = &kernel.Error{Module: "vspace", Message: "mapping reaches kernel address range"}

	// errRemapAttempted reports an attempt to map an already-used page.
	// A programming bug; fatal.
	errRemapAttempted = &kernel.Error{Module: "vspace", Message: "attempted to remap an already-used page"}

	// errElfRejected is returned by LoadCode for any malformed ELF image.
	errElfRejected = &kernel.Error{Module: "vspace", Message: "elf image rejected"}

	// errNotMapped is returned by WriteTo when the target address falls
	// inside a region but the covering page slot is not Used.
	errNotMapped = &kernel.Error{Module: "vspace", Message: "address not mapped"}

	// errNotWritable is returned by WriteTo when the target page is
	// mapped but not writable.
	errNotWritable = &kernel.Error{Module: "vspace", Message: "address not writable"}

	// errPreconditionViolated reports a programming error in a caller of
	// Install, MarkNotPresent, or LoadFromInode. Fatal.
	errPreconditionViolated = &kernel.Error{Module: "vspace", Message: "precondition violated"}

	// errNoRegion is returned by WriteTo when the target address falls
	// outside every region of a VSpace.
	errNoRegion = &kernel.Error{Module: "vspace", Message: "address belongs to no region"}
)
