// Package cpu exposes the handful of amd64 register-level operations the
// virtual address space manager depends on: interrupt masking, halting,
// TLB invalidation and loading/reading the MMU's root page table register.
// Each function below is implemented in cpu_amd64.s; the Go declarations
// exist purely to give the assembly a typed, callable signature.
package cpu

// EnableInterrupts enables interrupt handling.
func EnableInterrupts()

// DisableInterrupts disables interrupt handling.
func DisableInterrupts()

// Halt stops instruction execution.
func Halt()

// FlushTLBEntry flushes a single TLB entry for the given virtual address.
func FlushTLBEntry(virtAddr uintptr)

// SwitchPDT loads the given physical address into CR3, replacing the
// currently active root page table and flushing the TLB.
func SwitchPDT(pdtPhysAddr uintptr)

// ActivePDT returns the physical address of the currently active root page
// table (the contents of CR3).
func ActivePDT() uintptr

// WriteKernelStackTop is the hook for the current CPU's TSS rsp0 field, i.e.
// the stack pointer the CPU switches to on a ring3-to-ring0 transition. The
// amd64 implementation in cpu_amd64.s is an empty stub: it returns without
// writing any TSS, since this module sets up no per-CPU TSS.
func WriteKernelStackTop(rsp0 uintptr)
