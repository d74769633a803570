package proc

import "errors"

// MemoryReader reads single words out of the traced process's address
// space. Satisfied by *Process.
type MemoryReader interface {
	ReadMemoryWord(addr uint64) (uint64, error)
}

// SymbolResolver answers which function and source position own an
// instruction address.
type SymbolResolver interface {
	ResolveFunction(pc uint64) (string, error)
	ResolveLine(pc uint64) (file string, line int, err error)
}

// Stackframe represents one resolved frame of a backtrace.
type Stackframe struct {
	// PC is the instruction address this frame was resolved from.
	PC uint64
	// Fn is the name of the function enclosing PC.
	Fn string
	// File and Line are the source position of PC.
	File string
	Line int
}

// ErrStackDepthExceeded is returned when a frame-pointer chain runs past
// the depth limit without reaching the entry function. It usually means
// the chain is corrupted.
var ErrStackDepthExceeded = errors.New("backtrace depth exceeded")

const pointerSize = 8

// Stacktrace reconstructs, top frame first, the call chain active at the
// moment the traced process stopped, by following the saved frame-pointer
// linkage: the word at bp+pointerSize is the return address of the
// current frame and the word at bp is the caller's frame base. The walk
// ends when the resolved function name equals entryFn, or fails after
// depth frames.
//
// On failure the frames collected so far are returned together with the
// error; partial backtraces remain useful for diagnosis.
func Stacktrace(regs Registers, mem MemoryReader, resolver SymbolResolver, entryFn string, depth int) ([]Stackframe, error) {
	frames := make([]Stackframe, 0, 8)
	pc, bp := regs.PC(), regs.BP()
	for i := 0; i < depth; i++ {
		fn, err := resolver.ResolveFunction(pc)
		if err != nil {
			return frames, err
		}
		file, line, err := resolver.ResolveLine(pc)
		if err != nil {
			return frames, err
		}
		frames = append(frames, Stackframe{PC: pc, Fn: fn, File: file, Line: line})
		if fn == entryFn {
			return frames, nil
		}
		ret, err := mem.ReadMemoryWord(bp + pointerSize)
		if err != nil {
			return frames, err
		}
		savedbp, err := mem.ReadMemoryWord(bp)
		if err != nil {
			return frames, err
		}
		pc, bp = ret, savedbp
	}
	return frames, ErrStackDepthExceeded
}
