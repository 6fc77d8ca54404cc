// Package catalog loads question definitions written by content authors and
// stores them in the question catalog.
package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gosimple/slug"
	"gopkg.in/yaml.v3"

	"github.com/hrishabh6/algocrack/internal/domain"
)

// File is the top level of a question file.
type File struct {
	Questions []QuestionSpec `yaml:"questions"`
}

// QuestionSpec is one question as written by an author.
type QuestionSpec struct {
	Slug                 string            `yaml:"slug"`
	Title                string            `yaml:"title"`
	Description          string            `yaml:"description"`
	Difficulty           domain.Difficulty `yaml:"difficulty"`
	Company              string            `yaml:"company"`
	Constraints          string            `yaml:"constraints"`
	TimeoutLimitMs       int               `yaml:"timeout_limit_ms"`
	IsOutputOrderMatters *bool             `yaml:"output_order_matters"`
	NodeType             domain.NodeType   `yaml:"node_type"`
	ValidationHints      []string          `yaml:"validation_hints"`
	Tags                 []TagSpec         `yaml:"tags"`
	Metadata             []MetadataSpec    `yaml:"metadata"`
	ReferenceSolution    *SourceSpec       `yaml:"reference_solution"`
	TestCases            []TestCaseSpec    `yaml:"test_cases"`
	Solutions            []SourceSpec      `yaml:"solutions"`
}

// TagSpec names a tag; tags are shared and upserted by name.
type TagSpec struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// MetadataSpec is the expected signature in one language.
type MetadataSpec struct {
	Language           domain.Language          `yaml:"language"`
	FunctionName       string                   `yaml:"function_name"`
	ReturnType         string                   `yaml:"return_type"`
	Params             []domain.Param           `yaml:"params"`
	CodeTemplate       string                   `yaml:"code_template"`
	TestCaseFormat     string                   `yaml:"test_case_format"`
	ExecutionStrategy  domain.ExecutionStrategy `yaml:"execution_strategy"`
	CustomInputEnabled bool                     `yaml:"custom_input_enabled"`
}

// SourceSpec is code in a language: the oracle or a curated solution.
type SourceSpec struct {
	Language domain.Language `yaml:"language"`
	Code     string          `yaml:"code"`
}

// TestCaseSpec is one input. Expected outputs are never written by authors.
type TestCaseSpec struct {
	Input  string              `yaml:"input"`
	Type   domain.TestCaseType `yaml:"type"`
	Hidden bool                `yaml:"hidden"`
}

// LoadFile reads and parses a question file.
func LoadFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open question file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes a question file. Unknown keys are rejected so typos do not
// silently drop data.
func Parse(r io.Reader) (*File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read question file: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var file File
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return &file, nil
		}
		return nil, fmt.Errorf("decode question file: %w", err)
	}
	return &file, nil
}

// ToDomain converts the entry into a question ready to be stored. It applies
// defaults: slug from title, submit-visible DEFAULT test cases and the
// function execution strategy.
func (s *QuestionSpec) ToDomain() *domain.Question {
	q := &domain.Question{
		Slug:                 s.Slug,
		Title:                strings.TrimSpace(s.Title),
		Description:          s.Description,
		Difficulty:           domain.Difficulty(strings.ToUpper(string(s.Difficulty))),
		Company:              s.Company,
		Constraints:          s.Constraints,
		TimeoutLimitMs:       s.TimeoutLimitMs,
		IsOutputOrderMatters: true,
		ValidationHints:      strings.Join(s.ValidationHints, ","),
	}
	if q.Slug == "" {
		q.Slug = slug.Make(q.Title)
	}
	if s.IsOutputOrderMatters != nil {
		q.IsOutputOrderMatters = *s.IsOutputOrderMatters
	}
	if s.NodeType != "" {
		nt := s.NodeType
		q.NodeType = &nt
	}

	for _, tc := range s.TestCases {
		typ := tc.Type
		switch {
		case typ == "" && tc.Hidden:
			typ = domain.TestCaseHidden
		case typ == "":
			typ = domain.TestCaseDefault
		}
		q.TestCases = append(q.TestCases, domain.TestCase{Input: tc.Input, Type: typ})
	}

	for _, m := range s.Metadata {
		strategy := m.ExecutionStrategy
		if strategy == "" {
			strategy = domain.StrategyFunction
		}
		q.Metadata = append(q.Metadata, domain.QuestionMetadata{
			Language:           m.Language,
			FunctionName:       m.FunctionName,
			ReturnType:         m.ReturnType,
			Params:             m.Params,
			CodeTemplate:       m.CodeTemplate,
			TestCaseFormat:     m.TestCaseFormat,
			ExecutionStrategy:  strategy,
			CustomInputEnabled: m.CustomInputEnabled,
		})
	}

	for _, t := range s.Tags {
		q.Tags = append(q.Tags, domain.Tag{Name: strings.TrimSpace(t.Name), Description: t.Description})
	}

	if rs := s.ReferenceSolution; rs != nil {
		q.ReferenceSolution = &domain.ReferenceSolution{Language: rs.Language, SourceCode: rs.Code}
	}

	for _, sol := range s.Solutions {
		q.Solutions = append(q.Solutions, domain.Solution{Language: sol.Language, Code: sol.Code})
	}
	return q
}
