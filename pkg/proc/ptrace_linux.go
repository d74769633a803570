package proc

import (
	"encoding/binary"
	"fmt"

	sys "golang.org/x/sys/unix"
)

const wordSize = 8

// ptracePeek reads one word from the traced process's memory. Must be
// called from the ptrace thread.
func ptracePeek(pid int, addr uintptr) (uintptr, error) {
	buf := make([]byte, wordSize)
	n, err := sys.PtracePeekData(pid, addr, buf)
	if err != nil {
		return 0, err
	}
	if n != wordSize {
		return 0, fmt.Errorf("short read: %d of %d bytes at %#x", n, wordSize, addr)
	}
	return uintptr(binary.LittleEndian.Uint64(buf)), nil
}
