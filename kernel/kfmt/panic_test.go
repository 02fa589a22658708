package kfmt

import (
	"bytes"
	"errors"
	"testing"

	"nanokernel/kernel"
)

func TestPanic(t *testing.T) {
	defer func() {
		cpuHaltFn = func() {}
		SetOutputSink(nil)
	}()

	var cpuHaltCalled bool
	cpuHaltFn = func() {
		cpuHaltCalled = true
	}

	specs := []struct {
		name string
		arg  interface{}
		exp  string
	}{
		{
			name: "with *kernel.Error",
			arg:  &kernel.Error{Module: "test", Message: "panic test"},
			exp:  "\n-----------------------------------\n[test] unrecoverable error: panic test\n*** kernel panic: system halted ***\n-----------------------------------",
		},
		{
			name: "with error",
			arg:  errors.New("go error"),
			exp:  "\n-----------------------------------\n[rt] unrecoverable error: go error\n*** kernel panic: system halted ***\n-----------------------------------",
		},
		{
			name: "with string",
			arg:  "string error",
			exp:  "\n-----------------------------------\n[rt] unrecoverable error: string error\n*** kernel panic: system halted ***\n-----------------------------------",
		},
		{
			name: "without error",
			arg:  nil,
			exp:  "\n-----------------------------------\n*** kernel panic: system halted ***\n-----------------------------------",
		},
	}

	for _, spec := range specs {
		t.Run(spec.name, func(t *testing.T) {
			cpuHaltCalled = false
			var buf bytes.Buffer
			SetOutputSink(&buf)

			Panic(spec.arg)

			if got := buf.String(); got != spec.exp {
				t.Fatalf("expected to get:\n%q\ngot:\n%q", spec.exp, got)
			}

			if !cpuHaltCalled {
				t.Fatal("expected cpu.Halt() to be called by Panic")
			}
		})
	}
}
