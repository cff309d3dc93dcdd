package c5

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDriverCompileHelloWorldSucceeds(t *testing.T) {
	dir := t.TempDir()
	main := writeTempFile(t, dir, "main.c5", `int<32> main() { return 0; }`)

	drv := NewDriver(CompileOptions{Inputs: []string{main}})
	asm, code := drv.Compile()

	require.Equal(t, ExitOK, code, "diags: %v", drv.Diagnostics())
	assert.Contains(t, asm, ".globl main")
}

func TestDriverCompileReportsDiagnosticsExitCode(t *testing.T) {
	dir := t.TempDir()
	main := writeTempFile(t, dir, "main.c5", `
		int<32> f() {
			const int<32> limit = 1;
			limit = 2;
			return limit;
		}
	`)

	drv := NewDriver(CompileOptions{Inputs: []string{main}})
	_, code := drv.Compile()

	assert.Equal(t, ExitDiagnostics, code)
	require.NotEmpty(t, drv.Diagnostics())
	assert.Equal(t, ErrConstViolation, drv.Diagnostics()[0].Code)
}

func TestDriverMultipleInputsCompileAsOneTranslationUnit(t *testing.T) {
	dir := t.TempDir()
	// util.c5 defines a helper with no include; main.c5 declares a
	// prototype for it and calls it, relying on both files being
	// merged into one unit before analysis so the prototype and the
	// definition reconcile as one function.
	util := writeTempFile(t, dir, "util.c5", `int<32> helper() { return 41; }`)
	main := writeTempFile(t, dir, "main.c5", `
		int<32> helper();
		int<32> main() { return helper() + 1; }
	`)

	drv := NewDriver(CompileOptions{Inputs: []string{util, main}})
	asm, code := drv.Compile()

	require.Equal(t, ExitOK, code, "diags: %v", drv.Diagnostics())
	assert.Contains(t, asm, ".globl helper")
	assert.Contains(t, asm, ".globl main")
}

func TestDriverMissingInputReportsDriverDiagnostic(t *testing.T) {
	drv := NewDriver(CompileOptions{Inputs: []string{"/nonexistent/path/does/not/exist.c5"}})
	_, code := drv.Compile()
	assert.Equal(t, ExitDriverFailed, code)
	require.NotEmpty(t, drv.Diagnostics())
}

func TestDriverLinkEmitAsmOnlyWritesSFile(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "prog.s")

	drv := NewDriver(CompileOptions{
		Inputs:      []string{writeTempFile(t, dir, "main.c5", `int<32> main() { return 0; }`)},
		OutputPath:  out,
		EmitAsmOnly: true,
	})
	asm, code := drv.Compile()
	require.Equal(t, ExitOK, code)

	linkCode, err := drv.Link(asm)
	require.NoError(t, err)
	assert.Equal(t, ExitOK, linkCode)

	written, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(written), ".globl main")
}

func TestDefaultIncludeDirsIncludesLocalAndHomeDirs(t *testing.T) {
	dirs := DefaultIncludeDirs()
	require.NotEmpty(t, dirs)
	var sawLocal bool
	for _, d := range dirs {
		if filepath.Base(d) == "c5include" {
			sawLocal = true
		}
	}
	assert.True(t, sawLocal)
}
