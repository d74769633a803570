package proc

import sys "golang.org/x/sys/unix"

// Regs represents CPU registers on an AMD64 processor.
type Regs struct {
	regs *sys.PtraceRegs
}

// PC returns the current program counter.
func (r *Regs) PC() uint64 {
	return r.regs.PC()
}

// SP returns the stack pointer.
func (r *Regs) SP() uint64 {
	return r.regs.Rsp
}

// BP returns the frame base pointer.
func (r *Regs) BP() uint64 {
	return r.regs.Rbp
}

// registers reads the saved register block of a stopped process. Must be
// called from the ptrace thread.
func registers(pid int) (Registers, error) {
	var regs sys.PtraceRegs
	err := sys.PtraceGetRegs(pid, &regs)
	if err != nil {
		return nil, err
	}
	return &Regs{&regs}, nil
}
