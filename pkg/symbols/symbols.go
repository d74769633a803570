// Package symbols loads the debug information embedded in an executable
// and answers "which function and source line own this address" queries.
// The database is read once at startup and never mutated afterwards, so
// lookups are pure.
package symbols

import (
	"debug/dwarf"
	"debug/elf"
	"fmt"
	"sort"

	lru "github.com/hashicorp/golang-lru"

	"github.com/tracekit/tdb/pkg/logflags"
)

// UnknownPCError is returned when an address lies outside every range
// described by the debug information.
type UnknownPCError struct {
	PC uint64
}

func (err UnknownPCError) Error() string {
	return fmt.Sprintf("no debug info covers address %#x", err.PC)
}

// Function describes one subprogram range from the debug information.
type Function struct {
	Name  string
	Entry uint64
	End   uint64
}

// Line lookups walk a compile unit's whole line program, so resolved
// positions are cached. Backtraces resolve runs of nearby addresses.
const lineCacheSize = 256

type lineInfo struct {
	file string
	line int
}

// DebugInfo is the symbol/line database for one executable.
type DebugInfo struct {
	path string
	data *dwarf.Data

	// functions sorted by entry address.
	functions []Function
	// offsets of the compile unit entries, for line table lookups.
	units []dwarf.Offset

	lineCache *lru.Cache
}

// Load parses the debug information of the executable at path. A failure
// here is fatal to the debugger as a whole: without the database no
// address can ever be resolved.
func Load(path string) (*DebugInfo, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open %s: %v", path, err)
	}
	defer f.Close()

	data, err := f.DWARF()
	if err != nil {
		return nil, fmt.Errorf("could not load debug info from %s: %v", path, err)
	}

	bi := &DebugInfo{path: path, data: data}
	bi.lineCache, _ = lru.New(lineCacheSize)
	if err := bi.loadFunctions(); err != nil {
		return nil, fmt.Errorf("could not parse debug info of %s: %v", path, err)
	}
	logflags.SymbolsLogger().Debugf("loaded %d functions from %s", len(bi.functions), path)
	return bi, nil
}

// Path returns the executable this database was loaded from.
func (bi *DebugInfo) Path() string {
	return bi.path
}

// ResolveFunction returns the name of the function enclosing pc.
func (bi *DebugInfo) ResolveFunction(pc uint64) (string, error) {
	i := sort.Search(len(bi.functions), func(i int) bool { return bi.functions[i].End > pc })
	if i < len(bi.functions) && bi.functions[i].Entry <= pc && pc < bi.functions[i].End {
		return bi.functions[i].Name, nil
	}
	return "", UnknownPCError{PC: pc}
}

// ResolveLine returns the source file and line that pc was compiled from.
func (bi *DebugInfo) ResolveLine(pc uint64) (string, int, error) {
	if v, ok := bi.lineCache.Get(pc); ok {
		li := v.(lineInfo)
		return li.file, li.line, nil
	}

	rdr := bi.data.Reader()
	for _, off := range bi.units {
		rdr.Seek(off)
		entry, err := rdr.Next()
		if err != nil || entry == nil {
			continue
		}
		lr, err := bi.data.LineReader(entry)
		if err != nil || lr == nil {
			continue
		}
		var le dwarf.LineEntry
		if err := lr.SeekPC(pc, &le); err != nil {
			continue
		}
		bi.lineCache.Add(pc, lineInfo{file: le.File.Name, line: le.Line})
		return le.File.Name, le.Line, nil
	}
	return "", 0, UnknownPCError{PC: pc}
}

func (bi *DebugInfo) loadFunctions() error {
	rdr := bi.data.Reader()
	for {
		entry, err := rdr.Next()
		if err != nil {
			return err
		}
		if entry == nil {
			break
		}
		switch entry.Tag {
		case dwarf.TagCompileUnit:
			bi.units = append(bi.units, entry.Offset)
		case dwarf.TagSubprogram:
			name, ok := entry.Val(dwarf.AttrName).(string)
			if !ok {
				continue
			}
			lowpc, ok := entry.Val(dwarf.AttrLowpc).(uint64)
			if !ok {
				continue
			}
			highpc := subprogramHighPC(entry, lowpc)
			if highpc <= lowpc {
				continue
			}
			bi.functions = append(bi.functions, Function{Name: name, Entry: lowpc, End: highpc})
		}
	}
	sort.Slice(bi.functions, func(i, j int) bool {
		return bi.functions[i].Entry < bi.functions[j].Entry
	})
	return nil
}

// subprogramHighPC decodes DW_AT_high_pc, which compilers emit either as
// an absolute address or as an offset from DW_AT_low_pc.
func subprogramHighPC(entry *dwarf.Entry, lowpc uint64) uint64 {
	field := entry.AttrField(dwarf.AttrHighpc)
	if field == nil {
		return 0
	}
	switch field.Class {
	case dwarf.ClassAddress:
		v, _ := field.Val.(uint64)
		return v
	case dwarf.ClassConstant:
		v, _ := field.Val.(int64)
		return lowpc + uint64(v)
	}
	return 0
}
