package executor

import (
	"reflect"
	"testing"

	"github.com/hrishabh6/algocrack/internal/domain"
)

func TestParseCommand(t *testing.T) {
	got, err := ParseCommand(`/usr/bin/g++ -O2 -o "/tmp/work/my program" /tmp/work/solution.cpp`)
	if err != nil {
		t.Fatalf("ParseCommand: %v", err)
	}
	want := []string{"/usr/bin/g++", "-O2", "-o", "/tmp/work/my program", "/tmp/work/solution.cpp"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}

	if _, err := ParseCommand("   "); err == nil {
		t.Error("expected error for empty template")
	}
}

func TestWithOverrides(t *testing.T) {
	langs, err := WithOverrides(DefaultLanguages(),
		map[domain.Language]string{domain.LangCpp: "/usr/bin/clang++ -O2 -o /tmp/work/program /tmp/work/solution.cpp"},
		map[domain.Language]string{domain.LangPython: "/usr/bin/pypy3 /tmp/work/solution.py"},
	)
	if err != nil {
		t.Fatalf("WithOverrides: %v", err)
	}
	if langs[domain.LangCpp].Compile[0] != "/usr/bin/clang++" {
		t.Errorf("cpp compile = %q", langs[domain.LangCpp].Compile)
	}
	if langs[domain.LangPython].Run[0] != "/usr/bin/pypy3" {
		t.Errorf("python run = %q", langs[domain.LangPython].Run)
	}
	if !reflect.DeepEqual(langs[domain.LangJava], DefaultLanguages()[domain.LangJava]) {
		t.Error("java must keep its defaults")
	}
	if DefaultLanguages()[domain.LangCpp].Compile[0] != "/usr/bin/g++" {
		t.Error("defaults must not be mutated")
	}
}

func TestWithOverrides_BadTemplate(t *testing.T) {
	_, err := WithOverrides(DefaultLanguages(), nil, map[domain.Language]string{domain.LangJava: `java "unterminated`})
	if err == nil {
		t.Fatal("expected parse error")
	}
}

func TestDefaultLanguages_CompiledHaveCompileStep(t *testing.T) {
	for lang, spec := range DefaultLanguages() {
		if lang.IsCompiled() != (len(spec.Compile) > 0) {
			t.Errorf("%s: compiled=%v but compile command=%q", lang, lang.IsCompiled(), spec.Compile)
		}
		if len(spec.Run) == 0 || spec.SourceFile == "" || spec.ConfigFile == "" {
			t.Errorf("%s: incomplete spec %+v", lang, spec)
		}
	}
}
