package tools

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// blockedCommandFragments are substrings that cause system_command to refuse
// execution outright, independent of the OS the assistant runs on.
var blockedCommandFragments = []string{
	"rm -rf /", "mkfs", "dd if=/dev/zero", ":(){ :|:& };:", "shutdown", "reboot",
}

// SystemCommandSkill runs a shell command on the local machine with a bounded
// timeout, truncating combined stdout/stderr output for the LLM.
type SystemCommandSkill struct {
	defaultTimeout time.Duration
}

func NewSystemCommandSkill() *SystemCommandSkill {
	return &SystemCommandSkill{defaultTimeout: 30 * time.Second}
}

func (t *SystemCommandSkill) Name() string { return "system_command" }

func (t *SystemCommandSkill) Description() string {
	return "Runs a shell command on the local machine (e.g. pip, git, ls)."
}

func (t *SystemCommandSkill) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"command": map[string]interface{}{
				"type":        "string",
				"description": "The command to execute",
			},
			"timeout": map[string]interface{}{
				"type":        "integer",
				"description": "Timeout in seconds (default: 30)",
			},
		},
		"required": []string{"command"},
	}
}

func (t *SystemCommandSkill) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	command, _ := args["command"].(string)

	lower := strings.ToLower(command)
	for _, blocked := range blockedCommandFragments {
		if strings.Contains(lower, blocked) {
			return fmt.Sprintf("command blocked for safety reasons: %s", command), nil
		}
	}

	timeout := t.defaultTimeout
	if v, ok := args["timeout"].(float64); ok && v > 0 {
		timeout = time.Duration(v) * time.Second
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", command)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		return fmt.Sprintf("command exceeded the %s timeout", timeout), nil
	}
	if err != nil {
		slog.Debug("system_command non-zero exit", "command", command, "error", err)
	}

	output := stdout.String()
	if stderr.Len() > 0 {
		output += "\n[STDERR]\n" + stderr.String()
	}
	if len(output) > 5000 {
		output = output[:5000] + "\n... (truncated)"
	}
	output = strings.TrimSpace(output)
	if output == "" {
		output = "(no output)"
	}
	return output, nil
}
