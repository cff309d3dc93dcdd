package c5

import (
	"os"
	"path/filepath"
)

// HeaderLoader abstracts reading a `.c5h` header's bytes, the way the
// teacher's ImportLoader abstracts reading a grammar file: production
// code resolves against the real filesystem, tests resolve against an
// in-memory fixture map without touching disk.
type HeaderLoader interface {
	ReadHeader(path string) ([]byte, error)
}

// FileHeaderLoader reads headers from the real filesystem.
type FileHeaderLoader struct{}

func (FileHeaderLoader) ReadHeader(path string) ([]byte, error) { return os.ReadFile(path) }

// MemHeaderLoader serves headers from an in-memory map, keyed by the
// exact path IncludeResolver would otherwise pass to the filesystem.
type MemHeaderLoader struct{ Files map[string][]byte }

func NewMemHeaderLoader() *MemHeaderLoader { return &MemHeaderLoader{Files: map[string][]byte{}} }

func (l *MemHeaderLoader) Add(path string, content []byte) { l.Files[path] = content }

func (l *MemHeaderLoader) ReadHeader(path string) ([]byte, error) {
	if b, ok := l.Files[path]; ok {
		return b, nil
	}
	return nil, os.ErrNotExist
}

// IncludeResolver implements the search order of spec.md §4.2 for a
// single `include <name.c5h>` directive: the including file's own
// directory, each user include path in order, `./c5include/`, then
// `$HOME/.c5/include/`. It also deduplicates cyclic includes via a
// canonical-path visited set and lexes+parses each header exactly
// once, stamping every declaration it returns with the namespace the
// header contributes (its basename without `.c5h`).
type IncludeResolver struct {
	loader       HeaderLoader
	includePaths []string
	visited      map[string][]Decl
	visiting     map[string]bool
}

func NewIncludeResolver(loader HeaderLoader, includePaths []string) *IncludeResolver {
	return &IncludeResolver{
		loader:       loader,
		includePaths: includePaths,
		visited:      map[string][]Decl{},
		visiting:     map[string]bool{},
	}
}

// searchTrail returns every candidate path IncludeResolver tries for
// name, in priority order, so a failed resolution's E010 diagnostic
// can name every directory it looked in (spec.md §4.2).
func (r *IncludeResolver) searchTrail(name, includingDir string) []string {
	header := name + ".c5h"
	var trail []string
	trail = append(trail, filepath.Join(includingDir, header))
	for _, p := range r.includePaths {
		trail = append(trail, filepath.Join(p, header))
	}
	trail = append(trail, filepath.Join("c5include", header))
	if home, err := os.UserHomeDir(); err == nil {
		trail = append(trail, filepath.Join(home, ".c5", "include", header))
	}
	return trail
}

// stampNamespace sets the Namespace field on every top-level
// declaration kind that carries one. IncludeDecl and VarDecl globals
// declared directly (not via header) are untouched; this resolver
// only ever sees declarations that came from inside a header.
func stampNamespace(decls []Decl, ns string) {
	for _, d := range decls {
		switch t := d.(type) {
		case *FuncDecl:
			if t.Namespace == "" {
				t.Namespace = ns
			}
		case *StructDecl:
			if t.Namespace == "" {
				t.Namespace = ns
			}
		case *EnumDecl:
			if t.Namespace == "" {
				t.Namespace = ns
			}
		case *UnionTypeDecl:
			if t.Namespace == "" {
				t.Namespace = ns
			}
		case *MacroDecl:
			if t.Namespace == "" {
				t.Namespace = ns
			}
		case *VarDecl:
			// global const declared in a header. There is no
			// Namespace field on VarDecl since it is also used for
			// locals, so the semantic analyser registers a header's
			// globals in the global scope, unqualified (see
			// collectGlobal in sema.go).
		}
	}
}

// Resolve locates, reads, lexes and parses the header named by an
// `include <name.c5h>` directive appearing in includingFile, and
// returns its declarations with Namespace stamped to decl.Name. A
// header that was already resolved earlier in this compilation
// (cyclic or diamond include) returns its cached declarations without
// re-parsing (spec.md §4.2).
func (r *IncludeResolver) Resolve(decl *IncludeDecl, includingFile string, diags *Diagnostics) []Decl {
	includingDir := filepath.Dir(includingFile)
	trail := r.searchTrail(decl.Name, includingDir)

	var found string
	for _, candidate := range trail {
		if _, err := r.loader.ReadHeader(candidate); err == nil {
			found = candidate
			break
		}
	}
	if found == "" {
		diags.Errorf(ErrIncludeNotFound, decl.Span(), "include <%s.c5h> not found; searched: %v", decl.Name, trail)
		return nil
	}

	canon, err := filepath.Abs(found)
	if err != nil {
		canon = found
	}
	if decls, ok := r.visited[canon]; ok {
		return decls
	}
	if r.visiting[canon] {
		return nil // cyclic re-entry before the first pass finished
	}
	r.visiting[canon] = true
	defer delete(r.visiting, canon)

	src, err := r.loader.ReadHeader(found)
	if err != nil {
		diags.Errorf(ErrIncludeNotFound, decl.Span(), "include <%s.c5h>: %v", decl.Name, err)
		return nil
	}

	lx := NewLexer(found, string(src))
	tokens, lerr := lx.Lex()
	if lerr != nil {
		if be, ok := lerr.(*backtrackingError); ok {
			diags.Errorf(ErrLex, be.Span, "%s", be.Message)
		}
		return nil
	}
	p := NewParser(found, tokens, diags)
	unit := p.ParseUnit()

	var out []Decl
	for _, d := range unit.Decls {
		if inc, ok := d.(*IncludeDecl); ok {
			out = append(out, r.Resolve(inc, found, diags)...)
			continue
		}
		out = append(out, d)
	}
	stampNamespace(out, decl.Name)

	r.visited[canon] = out
	return out
}
