package validate

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/ternarybob/merlin/pkg/core"
)

// CommandStage runs an opaque shell command and treats a zero exit status
// as passing. If Command is empty the stage passes trivially (no
// requirement); it does not derive a command from a step kind.
type CommandStage struct {
	name    string
	workdir string
	command string
}

// NewCommandStage constructs a stage that runs command in workdir. An
// empty command makes the stage a no-op pass, matching "else pass (no
// requirement)" in the exit-predicate rules.
func NewCommandStage(name, workdir, command string) *CommandStage {
	return &CommandStage{name: name, workdir: workdir, command: command}
}

func (s *CommandStage) Name() string { return s.name }

// QuickCheck is a cheap heuristic: empty responses never pass a real
// command-backed stage, so skip the expensive exec in that case.
func (s *CommandStage) QuickCheck(response string) bool {
	return strings.TrimSpace(response) != ""
}

func (s *CommandStage) Validate(ctx context.Context, response string, task *core.Task) (StageResult, error) {
	if s.command == "" {
		return StageResult{Stage: s.name, Passed: true, Score: 1.0}, nil
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, "sh", "-c", s.command)
	cmd.Dir = s.workdir
	out, err := cmd.CombinedOutput()
	dur := time.Since(start)

	if err != nil {
		return StageResult{
			Stage:    s.name,
			Passed:   false,
			Score:    0,
			Duration: dur,
			Details:  string(out),
		}, classifyCommandError(err, out)
	}

	return StageResult{Stage: s.name, Passed: true, Score: 1.0, Duration: dur, Details: string(out)}, nil
}

// classifyCommandError maps a nonzero exit into soft vs hard per the
// exit-requirement validation rules: a failure that smells like a
// structural/syntax error is hard, everything else is soft.
func classifyCommandError(err error, output []byte) error {
	text := strings.ToLower(string(output))
	if strings.Contains(text, "syntax error") || strings.Contains(text, "parse error") ||
		strings.Contains(text, "cannot compile") || strings.Contains(text, "expected") {
		return &core.ValidationHardError{Stage: "exit_command", Reason: firstLine(text)}
	}
	return &core.ValidationSoftError{Stage: "exit_command", Reason: err.Error()}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// RunExitCommand runs an opaque shell exit command and returns nil on a
// zero exit, or a classified *core.ValidationSoftError /
// *core.ValidationHardError otherwise. Shared between the validation
// pipeline's CommandStage and the step executor's exit-requirement check.
func RunExitCommand(ctx context.Context, workdir, command string) error {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = workdir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return classifyCommandError(err, out)
	}
	return nil
}
