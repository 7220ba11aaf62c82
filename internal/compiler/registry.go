package compiler

import (
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Descriptor is the registry's per-language record (spec §4.B): a
// canonical name, the resolved absolute executable path, default compile
// flags, the extensions it claims, and a detection priority. Priority is
// recorded from the probe table; no lookup consults it.
type Descriptor struct {
	Language       Language
	Name           string
	ExecutablePath string
	// RunExecutablePath is the launcher invoked at run time when it
	// differs from ExecutablePath (the compiler). Empty unless the
	// language needs a separate launcher (Java: javac compiles,
	// java runs the compiled class).
	RunExecutablePath string
	Version           string
	DefaultFlags      string
	Extensions        []string
	Priority          int
	CompileTimeout    time.Duration
	RunTimeout        time.Duration
}

// probeSpec is the fixed set of toolchains the registry knows how to look
// for. It holds no command lines: CompileCommand, ExecuteCommand and
// SyntaxCheckCommand build them per language with fmt.Sprintf over the
// bare source filename (the executor always runs with the sandbox dir as
// cwd), the artifact name, and for Java the main class.
type probeSpec struct {
	language       Language
	name           string
	executable     string
	// runExecutable is the launcher resolved separately for the run step,
	// when it differs from executable (Java only: "java" alongside
	// "javac"). Empty for every other language.
	runExecutable  string
	versionArgs    []string
	defaultFlags   string
	extensions     []string
	priority       int
	compileTimeout time.Duration
	runTimeout     time.Duration
}

// probeTable lists, per language, the canonical executable to resolve via
// exec.LookPath. The per-language compile/run timeouts (90s compile for
// Java, 60s/30s for the rest) are copied into each Descriptor; the
// scheduler does not read them and applies its configured global
// timeouts to every language.
var probeTable = []probeSpec{
	{LanguageC, "C", "cc", "", []string{"--version"}, "-O2 -Wall", []string{".c"}, 10, 60 * time.Second, 30 * time.Second},
	{LanguageCpp, "C++", "g++", "", []string{"--version"}, "-O2 -std=c++17 -Wall", []string{".cpp", ".cc", ".cxx"}, 10, 60 * time.Second, 30 * time.Second},
	{LanguageJava, "Java", "javac", "java", []string{"-version"}, "", []string{".java"}, 10, 90 * time.Second, 30 * time.Second},
	{LanguagePython, "Python", "python3", "", []string{"--version"}, "", []string{".py"}, 10, 60 * time.Second, 30 * time.Second},
	{LanguageJavaScript, "JavaScript", "node", "", []string{"--version"}, "", []string{".js"}, 10, 60 * time.Second, 30 * time.Second},
	{LanguageGo, "Go", "go", "", []string{"version"}, "", []string{".go"}, 10, 60 * time.Second, 30 * time.Second},
	{LanguageRust, "Rust", "rustc", "", []string{"--version"}, "-O", []string{".rs"}, 10, 60 * time.Second, 30 * time.Second},
}

// Registry maps a language tag to its Descriptor. Built once at startup
// via Probe and treated as read-only thereafter, so no locking is needed
// on lookups (Design Notes §9: table over branch arms).
type Registry struct {
	descriptors map[Language]Descriptor
}

// lookPath and runVersion are package vars so tests can stub toolchain
// detection without touching the real PATH.
var lookPath = exec.LookPath
var runVersion = func(path string, args []string) (string, error) {
	out, err := exec.Command(path, args...).CombinedOutput()
	return strings.TrimSpace(string(out)), err
}

// Probe resolves every entry in probeTable against the process's PATH,
// recording whichever toolchains are actually installed. It never
// returns an error: an empty Registry (no toolchains found) is valid and
// every later CompileCommand/ExecuteCommand call simply reports
// UnavailableToolchain.
func Probe() *Registry {
	r := &Registry{descriptors: make(map[Language]Descriptor)}
	for _, spec := range probeTable {
		path, err := lookPath(spec.executable)
		if err != nil {
			continue
		}
		runPath := path
		if spec.runExecutable != "" {
			p, err := lookPath(spec.runExecutable)
			if err != nil {
				// Compiler present but its launcher isn't: the toolchain
				// is incomplete, so treat it the same as not found.
				continue
			}
			runPath = p
		}
		version, _ := runVersion(path, spec.versionArgs)
		r.descriptors[spec.language] = Descriptor{
			Language:          spec.language,
			Name:              spec.name,
			ExecutablePath:    path,
			RunExecutablePath: runPath,
			Version:           firstLine(version),
			DefaultFlags:      spec.defaultFlags,
			Extensions:        spec.extensions,
			Priority:          spec.priority,
			CompileTimeout:    spec.compileTimeout,
			RunTimeout:        spec.runTimeout,
		}
	}
	return r
}

// NewRegistryWithDescriptors builds a Registry directly from a caller-
// supplied descriptor set, bypassing Probe. Used by other packages'
// tests that need a registry without touching the real PATH.
func NewRegistryWithDescriptors(descriptors map[Language]Descriptor) *Registry {
	return &Registry{descriptors: descriptors}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// Describe returns the toolchain descriptor for a language, or
// ErrNoSuchLanguage / ErrUnavailableToolchain.
func (r *Registry) Describe(lang Language) (Descriptor, error) {
	if lang == LanguageUnknown {
		return Descriptor{}, ErrNoSuchLanguage
	}
	found := false
	for _, s := range probeTable {
		if s.language == lang {
			found = true
			break
		}
	}
	if !found {
		return Descriptor{}, ErrNoSuchLanguage
	}
	d, ok := r.descriptors[lang]
	if !ok {
		return Descriptor{}, ErrUnavailableToolchain
	}
	return d, nil
}

// Available lists every language the registry found a toolchain for. The
// order of the result is not defined (map iteration order).
func (r *Registry) Available() []Descriptor {
	out := make([]Descriptor, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		out = append(out, d)
	}
	return out
}

// CompileCommand returns the shell-executable compile line for source in
// the sandbox, or "" if the language is interpreted (no compile step).
// compilerArgs must already have passed ValidateArgs.
func (r *Registry) CompileCommand(lang Language, sourceFile, artifact, compilerArgs string) (string, error) {
	if lang.Interpreted() {
		return "", nil
	}
	d, err := r.Describe(lang)
	if err != nil {
		return "", err
	}
	flags := d.DefaultFlags
	if compilerArgs != "" {
		flags = flags + " " + compilerArgs
	}
	switch lang {
	case LanguageC:
		return fmt.Sprintf("%s %s -o %s %s", d.ExecutablePath, flags, artifact, sourceFile), nil
	case LanguageCpp:
		return fmt.Sprintf("%s %s -o %s %s", d.ExecutablePath, flags, artifact, sourceFile), nil
	case LanguageJava:
		return fmt.Sprintf("%s %s %s", d.ExecutablePath, flags, sourceFile), nil
	case LanguageGo:
		return fmt.Sprintf("%s build %s -o %s %s", d.ExecutablePath, flags, artifact, sourceFile), nil
	case LanguageRust:
		return fmt.Sprintf("%s %s -o %s %s", d.ExecutablePath, flags, artifact, sourceFile), nil
	default:
		return "", ErrNoSuchLanguage
	}
}

// ExecuteCommand returns the shell-executable run line: either the
// compiled artifact or, for interpreted languages, the interpreter
// invoked directly on the source. For Java the main class is derived from
// the source file's stem (spec §4.B).
func (r *Registry) ExecuteCommand(lang Language, sourceFile, artifact, executionArgs string) (string, error) {
	d, err := r.Describe(lang)
	if err != nil {
		return "", err
	}
	args := executionArgs
	switch lang {
	case LanguageC, LanguageCpp, LanguageGo, LanguageRust:
		return joinArgs("./"+artifact, args), nil
	case LanguageJava:
		mainClass := strings.TrimSuffix(sourceFile, ".java")
		return joinArgs(fmt.Sprintf("%s %s", d.RunExecutablePath, mainClass), args), nil
	case LanguagePython:
		return joinArgs(fmt.Sprintf("%s %s", d.ExecutablePath, sourceFile), args), nil
	case LanguageJavaScript:
		return joinArgs(fmt.Sprintf("%s %s", d.ExecutablePath, sourceFile), args), nil
	default:
		return "", ErrNoSuchLanguage
	}
}

func joinArgs(base, args string) string {
	if args == "" {
		return base
	}
	return base + " " + args
}

// SyntaxCheckCommand returns the shell-executable line for ModeSyntaxCheck:
// a toolchain invocation that validates the source without producing a
// runnable artifact or executing it (spec §4.B; grounded on the original
// source's dedicated syntax_check_only routine, SPEC_FULL.md §11). Unlike
// CompileCommand it is defined for interpreted languages too, since "check
// it compiles/parses" applies there as well.
func (r *Registry) SyntaxCheckCommand(lang Language, sourceFile string) (string, error) {
	d, err := r.Describe(lang)
	if err != nil {
		return "", err
	}
	switch lang {
	case LanguageC:
		return fmt.Sprintf("%s -fsyntax-only %s %s", d.ExecutablePath, d.DefaultFlags, sourceFile), nil
	case LanguageCpp:
		return fmt.Sprintf("%s -fsyntax-only %s %s", d.ExecutablePath, d.DefaultFlags, sourceFile), nil
	case LanguageJava:
		return fmt.Sprintf("%s %s", d.ExecutablePath, sourceFile), nil
	case LanguageGo:
		return fmt.Sprintf("%s build -o /dev/null %s", d.ExecutablePath, sourceFile), nil
	case LanguageRust:
		return fmt.Sprintf("%s --emit=metadata -o /dev/null %s", d.ExecutablePath, sourceFile), nil
	case LanguagePython:
		return fmt.Sprintf("%s -m py_compile %s", d.ExecutablePath, sourceFile), nil
	case LanguageJavaScript:
		return fmt.Sprintf("%s --check %s", d.ExecutablePath, sourceFile), nil
	default:
		return "", ErrNoSuchLanguage
	}
}
