package domain

// ExecutionStatus is the outcome of a single engine run.
type ExecutionStatus string

const (
	ExecOK                  ExecutionStatus = "OK"
	ExecCompilationError    ExecutionStatus = "COMPILATION_ERROR"
	ExecRuntimeError        ExecutionStatus = "RUNTIME_ERROR"
	ExecTimeout             ExecutionStatus = "TIMEOUT"
	ExecMemoryLimitExceeded ExecutionStatus = "MEMORY_LIMIT_EXCEEDED"
	ExecInternalError       ExecutionStatus = "INTERNAL_ERROR"
)

// Verdict maps a failed run to the verdict it produces for a test case.
func (s ExecutionStatus) Verdict() Verdict {
	switch s {
	case ExecCompilationError:
		return VerdictCompileError
	case ExecRuntimeError:
		return VerdictRuntimeError
	case ExecTimeout:
		return VerdictTimeLimitExceeded
	case ExecMemoryLimitExceeded:
		return VerdictMemoryLimitExceeded
	case ExecInternalError:
		return VerdictInternalError
	}
	return ""
}

// EntryPoint tells the engine how to call into the submitted code.
type EntryPoint struct {
	Strategy     ExecutionStrategy `json:"strategy"`
	FunctionName string            `json:"function_name"`
	ReturnType   string            `json:"return_type,omitempty"`
	Params       []Param           `json:"params,omitempty"`
}

// ExecutionRequest is passed to the execution engine. User code and oracle code use the same shape.
type ExecutionRequest struct {
	SubmissionID  string
	Language      Language
	SourceCode    string
	EntryPoint    EntryPoint
	Input         string
	TimeLimitMs   int
	MemoryLimitKB int
}

// ExecutionResult is returned by the execution engine after one run completes.
type ExecutionResult struct {
	Status        ExecutionStatus
	Output        string
	Stdout        string
	Stderr        string
	CompileOutput string
	ExitCode      int
	CompileTimeMs int
	TimeUsedMs    int
	CPUTimeMs     int
	MemoryUsedKB  int
	Node          string
	ContainerID   string
	CacheHit      bool
}
