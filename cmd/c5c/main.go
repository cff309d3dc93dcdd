// Command c5c compiles C5 source files to x86_64 assembly, an object
// file, or a linked executable.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/hashicorp/logutils"

	c5 "github.com/c5lang/c5c"
	"github.com/c5lang/c5c/ascii"
)

const defaultOutputName = "a.out"

type args struct {
	outputPath  *string
	emitAsm     *bool
	buildLib    *bool
	astOnly     *bool
	includeDirs *string
	verbose     *bool
	setupLibs   *bool
}

func readArgs() *args {
	a := &args{
		outputPath:  flag.String("o", defaultOutputName, "Path to the output file"),
		emitAsm:     flag.Bool("S", false, "Emit assembly text only, skip assembling and linking"),
		buildLib:    flag.Bool("lib", false, "Assemble to an object file, skip linking"),
		astOnly:     flag.Bool("ast-only", false, "Print the parsed AST to stdout, skip analysis and codegen"),
		includeDirs: flag.String("I", "", "Comma-separated list of additional include directories"),
		verbose:     flag.Bool("v", false, "Enable debug logging"),
		setupLibs:   flag.Bool("setup-libs", false, "Create an empty ./c5include header directory and exit"),
	}
	flag.Parse()
	return a
}

func setupLogging(verbose bool) {
	filter := &logutils.LevelFilter{
		Levels:   []logutils.LogLevel{"DEBUG", "INFO", "WARN", "ERROR"},
		MinLevel: logutils.LogLevel("INFO"),
		Writer:   os.Stderr,
	}
	if verbose {
		filter.MinLevel = logutils.LogLevel("DEBUG")
	}
	log.SetOutput(filter)
}

func main() {
	a := readArgs()
	setupLogging(*a.verbose)

	if *a.setupLibs {
		if err := runSetupLibs(); err != nil {
			log.Fatalf("[ERROR] --setup-libs: %v", err)
		}
		return
	}

	inputs := flag.Args()
	if len(inputs) == 0 {
		log.Fatal("[ERROR] no input files given")
	}

	var includeDirs []string
	if *a.includeDirs != "" {
		includeDirs = strings.Split(*a.includeDirs, ",")
	}

	log.Printf("[DEBUG] compiling %d input file(s): %v", len(inputs), inputs)

	drv := c5.NewDriver(c5.CompileOptions{
		Inputs:      inputs,
		OutputPath:  *a.outputPath,
		EmitAsmOnly: *a.emitAsm,
		BuildLib:    *a.buildLib,
		ASTOnly:     *a.astOnly,
		IncludeDirs: includeDirs,
	})

	out, exitCode := drv.Compile()
	if exitCode != c5.ExitOK {
		for _, d := range drv.Diagnostics() {
			fmt.Fprintln(os.Stderr, formatDiagnostic(d))
		}
		os.Exit(exitCode)
	}

	if *a.astOnly {
		fmt.Print(out)
		return
	}

	if code, err := drv.Link(out); err != nil {
		log.Printf("[ERROR] %v", err)
		os.Exit(code)
	}
}

// formatDiagnostic wraps a diagnostic's whole FormatCLI line in the
// theme's error or warning color. The color codes are written whether
// or not stderr is a terminal.
func formatDiagnostic(d c5.Diagnostic) string {
	theme := ascii.DefaultTheme
	color := theme.Error
	if d.Severity == c5.SeverityWarning {
		color = theme.Warning
	}
	return ascii.Color(color, "%s", d.FormatCLI())
}

// runSetupLibs creates an empty ./c5include directory so the include
// resolver's search order (spec.md §4.2) has somewhere local to look
// before falling back to $HOME/.c5/include. Populating it with actual
// standard headers is an outer-surface packaging concern (spec.md
// §1); this only establishes the directory layout.
func runSetupLibs() error {
	return os.MkdirAll("c5include", 0755)
}
