package catalog

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v3"

	"github.com/hrishabh6/algocrack/internal/domain"
)

const maxTimeoutLimitMs = 30000

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Validate checks that a question can be judged: it has at least one DEFAULT
// test case, one metadata entry per language and a reference solution whose
// language has metadata. The returned error is a validation.Errors keyed by field.
func Validate(q *domain.Question) error {
	errs := validation.Errors{}
	err := validation.ValidateStruct(q,
		validation.Field(&q.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&q.Slug, validation.Required, validation.Length(1, 200), validation.Match(slugPattern)),
		validation.Field(&q.Difficulty, validation.Required,
			validation.In(domain.DifficultyEasy, domain.DifficultyMedium, domain.DifficultyHard)),
		validation.Field(&q.TimeoutLimitMs, validation.Min(0), validation.Max(maxTimeoutLimitMs)),
		validation.Field(&q.NodeType, validation.In(domain.NodeTree, domain.NodeGraph, domain.NodeList)),
		validation.Field(&q.TestCases, validation.Required, validation.By(validTestCases)),
		validation.Field(&q.Metadata, validation.Required, validation.By(validMetadata)),
		validation.Field(&q.Tags, validation.By(validTags)),
		validation.Field(&q.Solutions, validation.By(validSolutions)),
	)
	if err != nil {
		fieldErrs, ok := err.(validation.Errors)
		if !ok {
			return err
		}
		errs = fieldErrs
	}

	// The oracle is not serialized with the question, so it is checked on its own key.
	if err := validation.Validate(q.ReferenceSolution, validation.Required, validation.By(func(value interface{}) error {
		return validReferenceSolution(q, value)
	})); err != nil {
		errs["reference_solution"] = err
	}
	return errs.Filter()
}

func validTestCases(value interface{}) error {
	cases, _ := value.([]domain.TestCase)
	hasDefault := false
	for i, tc := range cases {
		if strings.TrimSpace(tc.Input) == "" {
			return fmt.Errorf("test case %d: input is required", i)
		}
		switch tc.Type {
		case domain.TestCaseDefault:
			hasDefault = true
		case domain.TestCaseHidden:
		default:
			return fmt.Errorf("test case %d: unknown type %q", i, tc.Type)
		}
	}
	if !hasDefault {
		return errors.New("at least one DEFAULT test case is required")
	}
	return nil
}

func validMetadata(value interface{}) error {
	metas, _ := value.([]domain.QuestionMetadata)
	seen := make(map[domain.Language]bool, len(metas))
	design := 0
	for _, m := range metas {
		if !m.Language.IsValid() {
			return fmt.Errorf("unknown language %q", m.Language)
		}
		if seen[m.Language] {
			return fmt.Errorf("duplicate metadata for %s", m.Language)
		}
		seen[m.Language] = true

		switch m.ExecutionStrategy {
		case domain.StrategyFunction, domain.StrategyClass:
			if strings.TrimSpace(m.FunctionName) == "" {
				return fmt.Errorf("%s: function_name is required for %s strategy", m.Language, m.ExecutionStrategy)
			}
		case domain.StrategyMainBased:
		default:
			return fmt.Errorf("%s: unknown execution strategy %q", m.Language, m.ExecutionStrategy)
		}
		if m.ExecutionStrategy == domain.StrategyClass {
			design++
		}
		for i, p := range m.Params {
			if strings.TrimSpace(p.Name) == "" || strings.TrimSpace(p.Type) == "" {
				return fmt.Errorf("%s: param %d needs a name and a type", m.Language, i)
			}
		}
	}
	if design != 0 && design != len(metas) {
		return errors.New("class strategy must be used for every language or none")
	}
	return nil
}

func validTags(value interface{}) error {
	tags, _ := value.([]domain.Tag)
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		if t.Name == "" {
			return errors.New("tag name is required")
		}
		key := strings.ToLower(t.Name)
		if seen[key] {
			return fmt.Errorf("duplicate tag %q", t.Name)
		}
		seen[key] = true
	}
	return nil
}

func validReferenceSolution(q *domain.Question, value interface{}) error {
	rs, _ := value.(*domain.ReferenceSolution)
	if rs == nil {
		return nil
	}
	if !rs.Language.IsValid() {
		return fmt.Errorf("unknown language %q", rs.Language)
	}
	if strings.TrimSpace(rs.SourceCode) == "" {
		return errors.New("code is required")
	}
	if _, ok := q.MetadataFor(rs.Language); !ok {
		return fmt.Errorf("no %s metadata to run the reference solution with", rs.Language)
	}
	return nil
}

func validSolutions(value interface{}) error {
	sols, _ := value.([]domain.Solution)
	for i, s := range sols {
		if !s.Language.IsValid() {
			return fmt.Errorf("solution %d: unknown language %q", i, s.Language)
		}
		if strings.TrimSpace(s.Code) == "" {
			return fmt.Errorf("solution %d: code is required", i)
		}
	}
	return nil
}
