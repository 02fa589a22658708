package vmm

import "nanokernel/kernel/cpu"

// switchPDTFn is mocked by tests and inlined by the compiler.
var switchPDTFn = cpu.SwitchPDT

// LoadRoot installs phys as the active root page table by writing it to the
// MMU's control register, flushing the TLB as a side effect.
func LoadRoot(phys uintptr) {
	switchPDTFn(phys)
}
