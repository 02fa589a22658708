package vspace

import (
	"nanokernel/kernel"
	"nanokernel/kernel/cpu"
	"nanokernel/kernel/kfmt"
	"nanokernel/kernel/mm/vmm"
	"nanokernel/kernel/proc"
)

var installLog = kfmt.SubsystemWriter("vspace")

var (
	// disableInterruptsFn, enableInterruptsFn, writeKernelStackTopFn, and
	// loadRootFn are mocked by tests so Install/InstallKernel can be
	// exercised without touching real CPU control registers.
	disableInterruptsFn   = cpu.DisableInterrupts
	enableInterruptsFn    = cpu.EnableInterrupts
	writeKernelStackTopFn = cpu.WriteKernelStackTop
	loadRootFn            = vmm.LoadRoot
)

// Install switches the current CPU onto p's address space: it writes the
// per-CPU TSS kernel stack top and loads p's root table into the MMU's
// control register, with interrupts disabled across both so a timer
// interrupt can never land between them with half-updated CPU state.
func Install(p *proc.Process) *kernel.Error {
	if p == nil || p.KStack == 0 || p.Space == nil {
		kfmt.Fprintf(installLog, "Install called with a nil process, zero kernel stack, or nil address space\n")
		panic(errPreconditionViolated)
	}

	disableInterruptsFn()
	writeKernelStackTopFn(p.KStack + proc.KStackSize)
	loadRootFn(p.Space.RootPhysAddr())
	enableInterruptsFn()

	return nil
}

// InstallKernel loads the shared kernel-only root table, used when no
// process is current (e.g. during early boot or in the idle loop).
func InstallKernel() *kernel.Error {
	loadRootFn(vmm.KernelTable().PhysAddr())
	return nil
}
