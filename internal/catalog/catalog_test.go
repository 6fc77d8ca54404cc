package catalog

import (
	"context"
	"errors"
	"strings"
	"testing"

	validation "github.com/go-ozzo/ozzo-validation/v3"
	"go.uber.org/zap"

	"github.com/hrishabh6/algocrack/internal/domain"
	"github.com/hrishabh6/algocrack/internal/repository/mock"
)

func loadTestFile(t *testing.T) *File {
	t.Helper()
	f, err := LoadFile("testdata/questions.yaml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return f
}

func TestLoadFile(t *testing.T) {
	f := loadTestFile(t)
	if len(f.Questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(f.Questions))
	}

	q := f.Questions[0].ToDomain()
	if q.Slug != "two-sum" {
		t.Errorf("expected slug from title, got %q", q.Slug)
	}
	if q.Difficulty != domain.DifficultyEasy {
		t.Errorf("expected difficulty to be upper-cased, got %q", q.Difficulty)
	}
	if q.IsOutputOrderMatters {
		t.Error("expected output order not to matter")
	}
	if q.ValidationHints != "unordered-pair" {
		t.Errorf("unexpected hints %q", q.ValidationHints)
	}
	if len(q.TestCases) != 3 || q.TestCases[0].Type != domain.TestCaseDefault || q.TestCases[2].Type != domain.TestCaseHidden {
		t.Errorf("unexpected test cases: %+v", q.TestCases)
	}
	if q.Metadata[0].ExecutionStrategy != domain.StrategyFunction {
		t.Errorf("expected default strategy function, got %q", q.Metadata[0].ExecutionStrategy)
	}
	if len(q.Metadata[0].Params) != 2 || q.Metadata[0].Params[0].Name != "nums" {
		t.Errorf("unexpected params: %+v", q.Metadata[0].Params)
	}
	if q.ReferenceSolution == nil || !strings.Contains(q.ReferenceSolution.SourceCode, "seen = {}") {
		t.Error("expected reference solution code")
	}
	if len(q.Tags) != 2 || q.Tags[1].Description == "" {
		t.Errorf("unexpected tags: %+v", q.Tags)
	}

	design := f.Questions[1].ToDomain()
	if !design.IsDesign() {
		t.Error("expected class strategy question to be a design question")
	}
	if !design.IsOutputOrderMatters {
		t.Error("output order should matter by default")
	}
}

func TestParse_RejectsUnknownKeys(t *testing.T) {
	_, err := Parse(strings.NewReader("questions:\n  - title: X\n    expected_output: '1'\n"))
	if err == nil {
		t.Fatal("expected unknown key to be rejected")
	}
}

func TestParse_Empty(t *testing.T) {
	f, err := Parse(strings.NewReader(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.Questions) != 0 {
		t.Errorf("expected no questions, got %d", len(f.Questions))
	}
}

func validQuestion() *domain.Question {
	return &domain.Question{
		Title:      "Echo",
		Slug:       "echo",
		Difficulty: domain.DifficultyEasy,
		TestCases:  []domain.TestCase{{Input: "1", Type: domain.TestCaseDefault}},
		Metadata: []domain.QuestionMetadata{
			{Language: domain.LangPython, FunctionName: "echo", ExecutionStrategy: domain.StrategyFunction},
		},
		ReferenceSolution: &domain.ReferenceSolution{Language: domain.LangPython, SourceCode: "def echo(x): return x"},
	}
}

func TestValidate(t *testing.T) {
	badNode := domain.NodeType("HEAP_NODE")

	tests := []struct {
		name   string
		mutate func(q *domain.Question)
		field  string
	}{
		{"valid", func(q *domain.Question) {}, ""},
		{"missing title", func(q *domain.Question) { q.Title = "" }, "title"},
		{"bad slug", func(q *domain.Question) { q.Slug = "Echo Question" }, "slug"},
		{"bad difficulty", func(q *domain.Question) { q.Difficulty = "TRIVIAL" }, "difficulty"},
		{"timeout too large", func(q *domain.Question) { q.TimeoutLimitMs = 60000 }, "timeout_limit_ms"},
		{"bad node type", func(q *domain.Question) { q.NodeType = &badNode }, "node_type"},
		{"no test cases", func(q *domain.Question) { q.TestCases = nil }, "test_cases"},
		{"only hidden cases", func(q *domain.Question) { q.TestCases[0].Type = domain.TestCaseHidden }, "test_cases"},
		{"empty input", func(q *domain.Question) { q.TestCases[0].Input = "  " }, "test_cases"},
		{"no metadata", func(q *domain.Question) { q.Metadata = nil }, "metadata"},
		{"duplicate language", func(q *domain.Question) { q.Metadata = append(q.Metadata, q.Metadata[0]) }, "metadata"},
		{"unknown language", func(q *domain.Question) { q.Metadata[0].Language = "ruby" }, "metadata"},
		{"missing function name", func(q *domain.Question) { q.Metadata[0].FunctionName = "" }, "metadata"},
		{"mixed class strategy", func(q *domain.Question) {
			q.Metadata = append(q.Metadata, domain.QuestionMetadata{
				Language: domain.LangJava, FunctionName: "Echo", ExecutionStrategy: domain.StrategyClass,
			})
		}, "metadata"},
		{"duplicate tag", func(q *domain.Question) { q.Tags = []domain.Tag{{Name: "Array"}, {Name: "array"}} }, "tags"},
		{"no reference solution", func(q *domain.Question) { q.ReferenceSolution = nil }, "reference_solution"},
		{"oracle without metadata", func(q *domain.Question) { q.ReferenceSolution.Language = domain.LangCpp }, "reference_solution"},
		{"empty oracle", func(q *domain.Question) { q.ReferenceSolution.SourceCode = "" }, "reference_solution"},
		{"empty curated solution", func(q *domain.Question) {
			q.Solutions = []domain.Solution{{Language: domain.LangPython}}
		}, "solutions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := validQuestion()
			tt.mutate(q)
			err := Validate(q)

			if tt.field == "" {
				if err != nil {
					t.Fatalf("expected valid question, got %v", err)
				}
				return
			}
			var errs validation.Errors
			if !errors.As(err, &errs) {
				t.Fatalf("expected validation.Errors, got %v", err)
			}
			if _, ok := errs[tt.field]; !ok {
				t.Errorf("expected error on %q, got %v", tt.field, errs)
			}
		})
	}
}

func TestImporter_Import(t *testing.T) {
	repo := mock.NewQuestionRepository()
	im := NewImporter(repo, zap.NewNop())

	created, err := im.Import(context.Background(), loadTestFile(t))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("expected 2 created, got %d", len(created))
	}

	stored, err := repo.GetByID(context.Background(), created[0].ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Slug != "two-sum" || len(stored.TestCases) != 3 {
		t.Errorf("unexpected stored question: slug=%s cases=%d", stored.Slug, len(stored.TestCases))
	}
}

func TestImporter_InvalidFileWritesNothing(t *testing.T) {
	repo := mock.NewQuestionRepository()
	im := NewImporter(repo, zap.NewNop())

	f := loadTestFile(t)
	f.Questions[1].ReferenceSolution = nil

	created, err := im.Import(context.Background(), f)
	if !errors.Is(err, ErrInvalidFile) {
		t.Fatalf("expected ErrInvalidFile, got %v", err)
	}
	var qerr *QuestionError
	if !errors.As(err, &qerr) || qerr.Index != 1 {
		t.Errorf("expected the second question to be reported, got %v", err)
	}
	if len(created) != 0 {
		t.Error("nothing should be created")
	}
	if _, err := repo.GetByID(context.Background(), 1); err == nil {
		t.Error("first question must not be stored when the file is invalid")
	}
}

func TestImporter_DuplicateSlug(t *testing.T) {
	im := NewImporter(mock.NewQuestionRepository(), zap.NewNop())

	f := loadTestFile(t)
	f.Questions[1].Slug = "two-sum"

	if _, err := im.Import(context.Background(), f); !errors.Is(err, ErrInvalidFile) {
		t.Fatalf("expected ErrInvalidFile, got %v", err)
	}
}

func TestImporter_StorageFailureStops(t *testing.T) {
	repo := mock.NewQuestionRepository()
	calls := 0
	repo.CreateFn = func(ctx context.Context, q *domain.Question) error {
		calls++
		if calls == 2 {
			return errors.New("postgres: connection reset")
		}
		return nil
	}
	im := NewImporter(repo, zap.NewNop())

	created, err := im.Import(context.Background(), loadTestFile(t))
	if err == nil {
		t.Fatal("expected error")
	}
	if len(created) != 1 {
		t.Errorf("expected the first question to be kept, got %d", len(created))
	}
}

func TestImporter_Delete(t *testing.T) {
	repo := mock.NewQuestionRepository()
	im := NewImporter(repo, zap.NewNop())

	q := validQuestion()
	if err := repo.Create(context.Background(), q); err != nil {
		t.Fatal(err)
	}

	if err := im.Delete(context.Background(), q.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := im.Delete(context.Background(), q.ID); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Errorf("expected ErrQuestionNotFound, got %v", err)
	}
}
