package c5

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// CompileOptions mirrors the driver-level switches of spec.md §4.6:
// multiple input files compile as one translation unit, `-S` stops
// after assembly text instead of invoking the assembler/linker, and
// `-I` adds extra header search directories ahead of the built-in
// ones.
type CompileOptions struct {
	Inputs      []string
	OutputPath  string
	EmitAsmOnly bool // -S
	BuildLib    bool // --lib: assemble to a .o, skip linking
	ASTOnly     bool // -ast-only: print the parsed tree, skip analysis/codegen
	IncludeDirs []string
	Config      *Config
}

// ExitCode mirrors spec.md §6: 0 success, 1 diagnostics reported
// (compile-time failure), 2 a driver/toolchain failure (missing
// assembler, unwritable output, ...).
const (
	ExitOK           = 0
	ExitDiagnostics  = 1
	ExitDriverFailed = 2
)

// Driver runs the whole pipeline described in spec.md §2 over one or
// more source files and hands the resulting assembly to `as`/`gcc`,
// the way the teacher's GrammarFromFile ties lexing/parsing/
// transformation together into one call ambient tooling can invoke
// (spec.md §4.6; grounded on `api.go`'s GrammarFromFile/
// GrammarTransformations shape).
type Driver struct {
	opts  CompileOptions
	diags *Diagnostics
}

func NewDriver(opts CompileOptions) *Driver {
	if opts.Config == nil {
		opts.Config = NewConfig()
	}
	return &Driver{opts: opts, diags: &Diagnostics{}}
}

// Compile lexes and parses every input file as one shared translation
// unit (spec.md §4.6 "multiple files compile as one translation
// unit"), then hands the merged declaration list to one
// Analyzer/CodeGenerator pair; the Analyzer resolves the includes. An
// input file that cannot be read stops compilation with
// ExitDriverFailed. It returns the generated assembly text and the
// exit code the CLI should use.
func (d *Driver) Compile() (asm string, code int) {
	resolver := NewIncludeResolver(FileHeaderLoader{}, d.opts.IncludeDirs)
	analyzer := NewAnalyzer(d.opts.Config, resolver, d.diags)

	var merged []Decl
	for _, path := range d.opts.Inputs {
		src, err := os.ReadFile(path)
		if err != nil {
			d.diags.Errorf(ErrIncludeNotFound, Span{}, "cannot read %s: %v", path, err)
			return "", ExitDriverFailed
		}
		lx := NewLexer(path, string(src))
		tokens, lerr := lx.Lex()
		if lerr != nil {
			if be, ok := lerr.(*backtrackingError); ok {
				d.diags.Errorf(ErrLex, be.Span, "%s", be.Message)
			}
			continue
		}
		p := NewParser(path, tokens, d.diags)
		unit := p.ParseUnit()
		merged = append(merged, unit.Decls...)
	}

	if d.diags.HasErrors() {
		return "", ExitDiagnostics
	}

	if d.opts.ASTOnly {
		return PrintAST(&Unit{Decls: merged}), ExitOK
	}

	file := "<merged>"
	if len(d.opts.Inputs) > 0 {
		file = d.opts.Inputs[0]
	}
	prog := analyzer.Analyze(file, &Unit{Decls: merged})
	if d.diags.HasErrors() {
		return "", ExitDiagnostics
	}

	asm = NewCodeGenerator(prog).Generate()
	return asm, ExitOK
}

// Diagnostics exposes every diagnostic accumulated across lexing,
// parsing, and analysis, sorted in source order (spec.md §6 "batched
// diagnostics").
func (d *Driver) Diagnostics() []Diagnostic { return d.diags.All() }

// Link writes asm to a `.s` file next to the requested output path
// and, unless EmitAsmOnly/BuildLib say otherwise, shells out to `as`
// and then to `gcc` for the link step, the way a conventional AOT driver glues its own emitted
// text to the system toolchain (spec.md §1 "invoking as/ld is the
// driver's job, not the compiler core's").
func (d *Driver) Link(asm string) (int, error) {
	out := d.opts.OutputPath
	if out == "" {
		out = "a.out"
	}
	asmPath := out + ".s"
	if d.opts.EmitAsmOnly {
		asmPath = out
	}
	if err := os.WriteFile(asmPath, []byte(asm), 0644); err != nil {
		return ExitDriverFailed, fmt.Errorf("writing assembly: %w", err)
	}
	if d.opts.EmitAsmOnly {
		return ExitOK, nil
	}

	objPath := strings.TrimSuffix(asmPath, ".s") + ".o"
	as := exec.Command("as", "-o", objPath, asmPath)
	as.Stderr = os.Stderr
	if err := as.Run(); err != nil {
		return ExitDriverFailed, fmt.Errorf("assembling: %w", err)
	}
	if d.opts.BuildLib {
		return ExitOK, nil
	}

	ld := exec.Command("gcc", "-o", out, objPath)
	ld.Stderr = os.Stderr
	if err := ld.Run(); err != nil {
		return ExitDriverFailed, fmt.Errorf("linking: %w", err)
	}
	return ExitOK, nil
}

// DefaultIncludeDirs returns the `./c5include/` and
// `$HOME/.c5/include/` directories IncludeResolver also searches, so
// `--setup-libs` (the library-directory bootstrap described at the
// interface level in spec.md §4.6) knows where to materialise the
// standard headers without this package owning any CLI concerns.
func DefaultIncludeDirs() []string {
	var dirs []string
	if wd, err := os.Getwd(); err == nil {
		dirs = append(dirs, filepath.Join(wd, "c5include"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".c5", "include"))
	}
	return dirs
}
