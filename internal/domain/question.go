package domain

import (
	"strings"
	"time"
)

// Language represents a supported programming language.
type Language string

const (
	LangPython Language = "python"
	LangCpp    Language = "cpp"
	LangJava   Language = "java"
)

// IsValid checks if the language is supported by the platform at all.
// Whether a particular question accepts it is decided by its metadata.
func (l Language) IsValid() bool {
	switch l {
	case LangPython, LangCpp, LangJava:
		return true
	}
	return false
}

// IsCompiled reports whether submissions in this language go through a separate compile step.
func (l Language) IsCompiled() bool {
	return l == LangCpp || l == LangJava
}

// TestCaseType is the visibility classification of a test case.
type TestCaseType string

const (
	// TestCaseDefault is shown to users and used for "run".
	TestCaseDefault TestCaseType = "DEFAULT"
	// TestCaseHidden is judge-only and used together with DEFAULT for "submit".
	TestCaseHidden TestCaseType = "HIDDEN"
)

// ExecutionStrategy describes how the engine wires user code to a test input.
type ExecutionStrategy string

const (
	StrategyFunction  ExecutionStrategy = "function"
	StrategyMainBased ExecutionStrategy = "main-based"
	StrategyClass     ExecutionStrategy = "class"
)

// NodeType is a structural hint for frontend visualization.
type NodeType string

const (
	NodeTree  NodeType = "TREE_NODE"
	NodeGraph NodeType = "GRAPH_NODE"
	NodeList  NodeType = "LIST_NODE"
)

// Difficulty of a question.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHard   Difficulty = "HARD"
)

// Question is a coding problem together with everything it owns: test cases,
// the reference solution, per-language metadata and curated solutions.
type Question struct {
	ID                   int64              `json:"id"`
	Slug                 string             `json:"slug"`
	Title                string             `json:"title"`
	Description          string             `json:"description"`
	Difficulty           Difficulty         `json:"difficulty"`
	Company              string             `json:"company,omitempty"`
	Constraints          string             `json:"constraints,omitempty"`
	TimeoutLimitMs       int                `json:"timeout_limit_ms"`
	IsOutputOrderMatters bool               `json:"is_output_order_matters"`
	NodeType             *NodeType          `json:"node_type,omitempty"`
	ValidationHints      string             `json:"validation_hints,omitempty"`
	TestCases            []TestCase         `json:"test_cases"`
	Tags                 []Tag              `json:"tags"`
	Metadata             []QuestionMetadata `json:"metadata"`
	ReferenceSolution    *ReferenceSolution `json:"-"`
	Solutions            []Solution         `json:"solutions,omitempty"`
	CreatedAt            time.Time          `json:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at"`
}

// MetadataFor returns the signature metadata for the given language, if any.
func (q *Question) MetadataFor(lang Language) (*QuestionMetadata, bool) {
	for i := range q.Metadata {
		if q.Metadata[i].Language == lang {
			return &q.Metadata[i], true
		}
	}
	return nil, false
}

// IsDesign reports whether the question asks for a stateful class judged by call sequences.
func (q *Question) IsDesign() bool {
	for _, m := range q.Metadata {
		if m.ExecutionStrategy == StrategyClass {
			return true
		}
	}
	return false
}

// Hints splits the comma-separated validation hints.
func (q *Question) Hints() []string {
	if strings.TrimSpace(q.ValidationHints) == "" {
		return nil
	}
	parts := strings.Split(q.ValidationHints, ",")
	hints := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			hints = append(hints, p)
		}
	}
	return hints
}

// CasesFor selects the test cases evaluated for a mode, preserving insertion order.
func (q *Question) CasesFor(mode Mode) []TestCase {
	cases := make([]TestCase, 0, len(q.TestCases))
	for _, tc := range q.TestCases {
		if mode == ModeRun && tc.Type != TestCaseDefault {
			continue
		}
		cases = append(cases, tc)
	}
	return cases
}

// TestCase holds input only. Expected output is always computed by the oracle at judging time.
type TestCase struct {
	ID         int64        `json:"id"`
	QuestionID int64        `json:"question_id"`
	Input      string       `json:"input"`
	Type       TestCaseType `json:"type"`
}

// ReferenceSolution is the single deterministic oracle for a question.
type ReferenceSolution struct {
	ID         int64     `json:"id"`
	QuestionID int64     `json:"question_id"`
	Language   Language  `json:"language"`
	SourceCode string    `json:"source_code"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Param is one parameter of the expected function signature.
type Param struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
}

// QuestionMetadata describes the expected signature for one language.
type QuestionMetadata struct {
	ID                 int64             `json:"id"`
	QuestionID         int64             `json:"question_id"`
	Language           Language          `json:"language"`
	FunctionName       string            `json:"function_name"`
	ReturnType         string            `json:"return_type"`
	Params             []Param           `json:"params"`
	CodeTemplate       string            `json:"code_template,omitempty"`
	TestCaseFormat     string            `json:"test_case_format,omitempty"`
	ExecutionStrategy  ExecutionStrategy `json:"execution_strategy"`
	CustomInputEnabled bool              `json:"custom_input_enabled"`
}

// EntryPoint converts the metadata into the descriptor handed to the execution engine.
func (m *QuestionMetadata) EntryPoint() EntryPoint {
	return EntryPoint{
		Strategy:     m.ExecutionStrategy,
		FunctionName: m.FunctionName,
		ReturnType:   m.ReturnType,
		Params:       m.Params,
	}
}

// Tag is shared between many questions.
type Tag struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Solution is a curated editorial solution visible to users.
type Solution struct {
	ID         int64    `json:"id"`
	QuestionID int64    `json:"question_id"`
	Language   Language `json:"language"`
	Code       string   `json:"code"`
}
