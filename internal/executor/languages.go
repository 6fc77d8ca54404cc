package executor

import (
	"fmt"
	"strings"

	"github.com/google/shlex"

	"github.com/hrishabh6/algocrack/internal/domain"
)

// Sandbox-side paths. The work directory is bind-mounted at sandboxWorkDir and the
// per-language harness that calls into user code lives under harnessDir in the image.
const (
	sandboxWorkDir = "/tmp/work"
	harnessDir     = "/opt/harness"
	inputFile      = "input.json"
	entryPointFile = "entrypoint.json"
)

// LanguageSpec describes how one language is built and run inside the sandbox.
type LanguageSpec struct {
	SourceFile string
	ConfigFile string
	Compile    []string
	Run        []string
	// Artifact is the single compile output reused across runs of identical source.
	// Empty disables the compile cache.
	Artifact string
}

// DefaultLanguages returns the built-in toolchain commands. The harness reads the
// entry point descriptor and the input, calls the user's code and prints the
// JSON-encoded result as the last line of stdout.
func DefaultLanguages() map[domain.Language]LanguageSpec {
	w := sandboxWorkDir
	return map[domain.Language]LanguageSpec{
		domain.LangPython: {
			SourceFile: "solution.py",
			ConfigFile: "python.cfg",
			Run: []string{"/usr/bin/python3", harnessDir + "/python/runner.py",
				w + "/solution.py", w + "/" + entryPointFile, w + "/" + inputFile},
		},
		domain.LangCpp: {
			SourceFile: "solution.cpp",
			ConfigFile: "cpp.cfg",
			Compile: []string{"/usr/bin/g++", "-std=c++17", "-O2", "-I" + harnessDir + "/cpp",
				"-o", w + "/program", w + "/solution.cpp", harnessDir + "/cpp/runner.cpp"},
			Run:      []string{w + "/program", w + "/" + entryPointFile, w + "/" + inputFile},
			Artifact: "program",
		},
		domain.LangJava: {
			SourceFile: "Solution.java",
			ConfigFile: "java.cfg",
			Compile: []string{"/usr/bin/javac", "-cp", harnessDir + "/java", "-d", w,
				w + "/Solution.java"},
			Run: []string{"/usr/bin/java", "-Xss64m", "-cp", w + ":" + harnessDir + "/java", "Runner",
				w + "/" + entryPointFile, w + "/" + inputFile},
		},
	}
}

// ParseCommand splits a shell-style command template into argv.
func ParseCommand(tmpl string) ([]string, error) {
	args, err := shlex.Split(strings.TrimSpace(tmpl))
	if err != nil {
		return nil, fmt.Errorf("parse command %q: %w", tmpl, err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("parse command %q: empty", tmpl)
	}
	return args, nil
}

// WithOverrides replaces compile or run commands of the defaults with parsed
// templates. Keys of compile and run are languages; empty templates are ignored.
func WithOverrides(base map[domain.Language]LanguageSpec, compile, run map[domain.Language]string) (map[domain.Language]LanguageSpec, error) {
	out := make(map[domain.Language]LanguageSpec, len(base))
	for lang, spec := range base {
		if tmpl := compile[lang]; tmpl != "" {
			args, err := ParseCommand(tmpl)
			if err != nil {
				return nil, fmt.Errorf("%s compile: %w", lang, err)
			}
			spec.Compile = args
		}
		if tmpl := run[lang]; tmpl != "" {
			args, err := ParseCommand(tmpl)
			if err != nil {
				return nil, fmt.Errorf("%s run: %w", lang, err)
			}
			spec.Run = args
		}
		out[lang] = spec
	}
	return out, nil
}
