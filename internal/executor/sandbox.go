package executor

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/hrishabh6/algocrack/internal/domain"
	"github.com/hrishabh6/algocrack/internal/repository"
)

const (
	// maxOutputBytes caps stdout/stderr to prevent memory exhaustion.
	maxOutputBytes = 64 * 1024 // 64 KB

	// outputTruncatedMsg is appended when output exceeds the limit.
	outputTruncatedMsg = "\n... output truncated (64 KB limit) ..."

	compileTimeLimitMs = 10000

	// graceMs is added to the wall-clock deadline on top of nsjail's own limit.
	graceMs = 2000
)

var _ repository.Executor = (*SandboxExecutor)(nil)

// SandboxExecutor runs code inside an nsjail sandbox. It is the only
// repository.Executor used in production, for user code and reference solutions alike.
type SandboxExecutor struct {
	nsjailPath string
	configDir  string
	cacheDir   string
	languages  map[domain.Language]LanguageSpec
	node       string
	logger     *zap.Logger
}

// NewSandboxExecutor creates a new sandbox executor. An empty cacheDir disables
// the compile cache.
func NewSandboxExecutor(nsjailPath, configDir, cacheDir string, languages map[domain.Language]LanguageSpec, logger *zap.Logger) *SandboxExecutor {
	node, _ := os.Hostname()
	return &SandboxExecutor{
		nsjailPath: nsjailPath,
		configDir:  configDir,
		cacheDir:   cacheDir,
		languages:  languages,
		node:       node,
		logger:     logger,
	}
}

// Execute compiles (if needed) and runs one request. Sandbox setup failures are
// reported as ExecInternalError results so the caller can retry them.
func (e *SandboxExecutor) Execute(ctx context.Context, req *domain.ExecutionRequest) (*domain.ExecutionResult, error) {
	spec, ok := e.languages[req.Language]
	if !ok {
		return &domain.ExecutionResult{
			Status: domain.ExecInternalError,
			Stderr: "unsupported language: " + string(req.Language),
			Node:   e.node,
		}, nil
	}

	workDir, err := os.MkdirTemp("", "algocrack-*")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	if err := writeInputs(workDir, spec, req); err != nil {
		return nil, err
	}

	var (
		compileMs int
		cacheHit  bool
	)
	if len(spec.Compile) > 0 {
		cacheHit = e.restoreArtifact(spec, req, workDir)
		if !cacheHit {
			start := time.Now()
			res, err := e.runNsjail(ctx, req, spec, workDir, compileTimeLimitMs, spec.Compile)
			compileMs = int(time.Since(start).Milliseconds())
			if err != nil {
				return nil, fmt.Errorf("compile: %w", err)
			}
			switch res.Status {
			case domain.ExecOK:
				e.storeArtifact(spec, req, workDir)
			case domain.ExecInternalError:
				return res, nil
			default:
				out := strings.TrimSpace(res.Stderr + "\n" + res.Stdout)
				if res.Status == domain.ExecTimeout {
					out = "compilation timed out"
				}
				return &domain.ExecutionResult{
					Status:        domain.ExecCompilationError,
					CompileOutput: out,
					ExitCode:      res.ExitCode,
					CompileTimeMs: compileMs,
					Node:          e.node,
				}, nil
			}
		}
	}

	result, err := e.runNsjail(ctx, req, spec, workDir, req.TimeLimitMs, spec.Run)
	if err != nil {
		return nil, fmt.Errorf("run: %w", err)
	}
	result.CompileTimeMs = compileMs
	result.CacheHit = cacheHit
	result.Node = e.node
	if result.Status == domain.ExecOK {
		result.Output = lastLine(result.Stdout)
	}
	return result, nil
}

func writeInputs(workDir string, spec LanguageSpec, req *domain.ExecutionRequest) error {
	if err := os.WriteFile(filepath.Join(workDir, spec.SourceFile), []byte(req.SourceCode), 0644); err != nil {
		return fmt.Errorf("write source: %w", err)
	}
	if err := os.WriteFile(filepath.Join(workDir, inputFile), []byte(req.Input), 0644); err != nil {
		return fmt.Errorf("write input: %w", err)
	}
	ep, err := json.Marshal(req.EntryPoint)
	if err != nil {
		return fmt.Errorf("encode entry point: %w", err)
	}
	if err := os.WriteFile(filepath.Join(workDir, entryPointFile), ep, 0644); err != nil {
		return fmt.Errorf("write entry point: %w", err)
	}
	return nil
}

// buildArgs assembles the nsjail command line for one sandboxed command.
func buildArgs(configPath, workDir string, timeLimitMs, memoryLimitKB int, cmd []string) []string {
	args := []string{
		"--config", configPath,
		"--bindmount", workDir + ":" + sandboxWorkDir,
		"--time_limit", fmt.Sprintf("%d", timeLimitMs/1000+1),
		"--cgroup_mem_max", fmt.Sprintf("%d", memoryLimitKB*1024),
		"--",
	}
	return append(args, cmd...)
}

func (e *SandboxExecutor) runNsjail(
	ctx context.Context,
	req *domain.ExecutionRequest,
	spec LanguageSpec,
	workDir string,
	timeLimitMs int,
	command []string,
) (*domain.ExecutionResult, error) {
	args := buildArgs(filepath.Join(e.configDir, spec.ConfigFile), workDir, timeLimitMs, req.MemoryLimitKB, command)

	timeoutCtx, cancel := context.WithTimeout(ctx, time.Duration(timeLimitMs+graceMs)*time.Millisecond)
	defer cancel()

	cmd := exec.CommandContext(timeoutCtx, e.nsjailPath, args...)

	// Own process group so a timeout kills every descendant.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Stdin = strings.NewReader(req.Input)

	var stdout, stderr limitedBuffer
	stdout.limit = maxOutputBytes
	stderr.limit = maxOutputBytes
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	startTime := time.Now()
	err := cmd.Run()
	elapsed := time.Since(startTime)

	progStderr, nsjailLog := separateNsjailLogs(stderr.String())

	result := &domain.ExecutionResult{
		Stdout:     truncateOutput(stdout.String(), stdout.truncated),
		Stderr:     truncateOutput(progStderr, false),
		TimeUsedMs: int(elapsed.Milliseconds()),
	}
	if ps := cmd.ProcessState; ps != nil {
		result.CPUTimeMs = int((ps.UserTime() + ps.SystemTime()).Milliseconds())
		if ru, ok := ps.SysUsage().(*syscall.Rusage); ok {
			result.MemoryUsedKB = int(ru.Maxrss) // kilobytes on Linux
		}
	}

	e.logger.Debug("nsjail execution completed",
		zap.String("submission_id", req.SubmissionID),
		zap.String("command", command[0]),
		zap.Duration("elapsed", elapsed),
		zap.Int("cpu_ms", result.CPUTimeMs),
		zap.Int("memory_used_kb", result.MemoryUsedKB),
		zap.String("nsjail_log", nsjailLog),
	)

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	if errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
		if cmd.Process != nil {
			_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
		result.Status = domain.ExecTimeout
		result.ExitCode = -1
		return result, nil
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			switch {
			case isOOMKill(exitErr.ExitCode(), nsjailLog):
				result.Status = domain.ExecMemoryLimitExceeded
			case isTimeLimitKill(nsjailLog):
				result.Status = domain.ExecTimeout
			default:
				result.Status = domain.ExecRuntimeError
			}
		} else {
			result.Status = domain.ExecInternalError
			result.Stderr = err.Error()
		}
		return result, nil
	}

	result.Status = domain.ExecOK
	if result.CPUTimeMs > timeLimitMs {
		result.Status = domain.ExecTimeout
	}
	return result, nil
}

// restoreArtifact copies a cached compile output into workDir. It reports whether
// the cache was hit.
func (e *SandboxExecutor) restoreArtifact(spec LanguageSpec, req *domain.ExecutionRequest, workDir string) bool {
	if e.cacheDir == "" || spec.Artifact == "" {
		return false
	}
	src := filepath.Join(e.cacheDir, artifactKey(req), spec.Artifact)
	if err := copyFile(src, filepath.Join(workDir, spec.Artifact)); err != nil {
		return false
	}
	return true
}

// storeArtifact publishes the compile output atomically; concurrent writers of the
// same key produce identical bytes, so the last rename wins harmlessly.
func (e *SandboxExecutor) storeArtifact(spec LanguageSpec, req *domain.ExecutionRequest, workDir string) {
	if e.cacheDir == "" || spec.Artifact == "" {
		return
	}
	dir := filepath.Join(e.cacheDir, artifactKey(req))
	if err := os.MkdirAll(dir, 0755); err != nil {
		e.logger.Warn("Compile cache unavailable", zap.Error(err))
		return
	}
	tmp, err := os.CreateTemp(dir, spec.Artifact+".tmp-*")
	if err != nil {
		e.logger.Warn("Compile cache unavailable", zap.Error(err))
		return
	}
	tmp.Close()
	if err := copyFile(filepath.Join(workDir, spec.Artifact), tmp.Name()); err != nil {
		os.Remove(tmp.Name())
		return
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, spec.Artifact)); err != nil {
		os.Remove(tmp.Name())
	}
}

func artifactKey(req *domain.ExecutionRequest) string {
	h := sha256.New()
	h.Write([]byte(req.Language))
	h.Write([]byte{0})
	h.Write([]byte(req.SourceCode))
	return hex.EncodeToString(h.Sum(nil))
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0755)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// lastLine returns the final non-empty line of s: the harness prints the return
// value last, after anything the user's code printed.
func lastLine(s string) string {
	s = strings.TrimRight(s, "\r\n\t ")
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return strings.TrimSpace(s)
}

// limitedBuffer is a bytes.Buffer that stops accepting writes after a limit.
type limitedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (lb *limitedBuffer) Write(p []byte) (n int, err error) {
	if lb.truncated {
		return len(p), nil
	}
	remaining := lb.limit - lb.buf.Len()
	if remaining <= 0 {
		lb.truncated = true
		return len(p), nil
	}
	if len(p) > remaining {
		lb.truncated = true
		cut := remaining
		for cut > 0 && !utf8.RuneStart(p[cut]) {
			cut--
		}
		lb.buf.Write(p[:cut])
		return len(p), nil
	}
	return lb.buf.Write(p)
}

// String returns the captured bytes. After truncation a rune left incomplete
// by an earlier write is dropped.
func (lb *limitedBuffer) String() string {
	b := lb.buf.Bytes()
	if lb.truncated && len(b) > 0 {
		i := len(b) - 1
		for i > 0 && len(b)-i < utf8.UTFMax && !utf8.RuneStart(b[i]) {
			i--
		}
		if !utf8.FullRune(b[i:]) {
			b = b[:i]
		}
	}
	return string(b)
}

func truncateOutput(s string, wasTruncated bool) string {
	if wasTruncated {
		return s + outputTruncatedMsg
	}
	return s
}

// separateNsjailLogs splits nsjail log lines, prefixed [I], [W], [E], [F] or [D],
// from the program's own stderr.
func separateNsjailLogs(rawStderr string) (programStderr, nsjailLogs string) {
	if rawStderr == "" {
		return "", ""
	}
	var progLines, logLines []string
	for _, line := range strings.Split(rawStderr, "\n") {
		if isNsjailLogLine(strings.TrimSpace(line)) {
			logLines = append(logLines, line)
		} else {
			progLines = append(progLines, line)
		}
	}
	return strings.Join(progLines, "\n"), strings.Join(logLines, "\n")
}

func isNsjailLogLine(line string) bool {
	for _, prefix := range []string{"[I]", "[W]", "[E]", "[F]", "[D]"} {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

// isOOMKill reports a cgroup OOM kill: SIGKILL exit (137) or an OOM note in nsjail's log.
func isOOMKill(exitCode int, nsjailLog string) bool {
	if exitCode == 137 {
		return true
	}
	lowerLog := strings.ToLower(nsjailLog)
	return strings.Contains(lowerLog, "oom") ||
		strings.Contains(lowerLog, "memory cgroup") ||
		strings.Contains(lowerLog, "cgroup_mem")
}

// isTimeLimitKill reports nsjail's own --time_limit enforcement.
func isTimeLimitKill(nsjailLog string) bool {
	return strings.Contains(strings.ToLower(nsjailLog), "run time >= time limit")
}
