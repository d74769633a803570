package symbols

import (
	"os"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/path/does/not/exist")
	require.Error(t, err)
}

func callerPC() uint64 {
	pc, _, _, _ := runtime.Caller(0)
	return uint64(pc)
}

func loadSelf(t *testing.T) *DebugInfo {
	exe, err := os.Executable()
	require.NoError(t, err)
	bi, err := Load(exe)
	if err != nil {
		t.Skipf("test binary carries no debug info: %v", err)
	}
	return bi
}

func TestResolveOwnBinary(t *testing.T) {
	bi := loadSelf(t)
	pc := callerPC()

	name, err := bi.ResolveFunction(pc)
	require.NoError(t, err)
	require.Contains(t, name, "callerPC")

	file, line, err := bi.ResolveLine(pc)
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(file, "symbols_test.go"), "unexpected file %q", file)
	require.Greater(t, line, 0)

	// Second lookup is served from the cache and must agree.
	file2, line2, err := bi.ResolveLine(pc)
	require.NoError(t, err)
	require.Equal(t, file, file2)
	require.Equal(t, line, line2)
}

func TestResolveUnknownPC(t *testing.T) {
	bi := loadSelf(t)

	_, err := bi.ResolveFunction(1)
	require.Error(t, err)
	var upc UnknownPCError
	require.ErrorAs(t, err, &upc)

	_, _, err = bi.ResolveLine(1)
	require.Error(t, err)
	require.ErrorAs(t, err, &upc)
}
