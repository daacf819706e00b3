package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"slices"
	"strings"
	"time"
)

// Command is one program invocation requested by the model.
type Command struct {
	Cmd  string   `json:"cmd"`
	Args []string `json:"args"`
}

// CommandExecutor runs local programs without a shell. It is never
// registered unless explicitly enabled in configuration.
type CommandExecutor struct {
	// Allowed restricts the programs that may run. Empty allows any.
	Allowed []string
	// Dir is the working directory; empty uses the process directory.
	Dir     string
	Timeout time.Duration
}

func (c *CommandExecutor) Name() string { return "CommandExecutor" }

func (c *CommandExecutor) Description() string {
	desc := `Useful when you need to execute commands on the local system. Input should be a JSON list of commands, for example [{"cmd": "ls", "args": ["-la"]}].`
	if len(c.Allowed) > 0 {
		desc += " Allowed commands: " + strings.Join(c.Allowed, ", ") + "."
	}
	return desc
}

func (c *CommandExecutor) Run(ctx context.Context, input string) (string, error) {
	commands, err := parseCommands(input)
	if err != nil {
		return "", err
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	var out strings.Builder
	for _, cmd := range commands {
		if len(c.Allowed) > 0 && !slices.Contains(c.Allowed, cmd.Cmd) {
			return "", fmt.Errorf("command %q is not allowed", cmd.Cmd)
		}
		result, err := c.run(ctx, cmd, timeout)
		fmt.Fprintf(&out, "$ %s\n%s", strings.Join(append([]string{cmd.Cmd}, cmd.Args...), " "), result)
		if err != nil {
			return "", fmt.Errorf("%s: %w\n%s", cmd.Cmd, err, out.String())
		}
	}
	return out.String(), nil
}

func (c *CommandExecutor) run(ctx context.Context, cmd Command, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	proc := exec.CommandContext(ctx, cmd.Cmd, cmd.Args...)
	proc.Dir = c.Dir
	output, err := proc.CombinedOutput()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return string(output), fmt.Errorf("timed out after %s", timeout)
	}
	return string(output), err
}

// parseCommands accepts a JSON list of commands, a single JSON command,
// or a plain command line split on whitespace.
func parseCommands(input string) ([]Command, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("no command given")
	}

	var commands []Command
	switch input[0] {
	case '[':
		if err := json.Unmarshal([]byte(input), &commands); err != nil {
			return nil, fmt.Errorf("invalid command list: %w", err)
		}
	case '{':
		var cmd Command
		if err := json.Unmarshal([]byte(input), &cmd); err != nil {
			return nil, fmt.Errorf("invalid command: %w", err)
		}
		commands = []Command{cmd}
	default:
		fields := strings.Fields(input)
		commands = []Command{{Cmd: fields[0], Args: fields[1:]}}
	}

	for _, cmd := range commands {
		if strings.TrimSpace(cmd.Cmd) == "" {
			return nil, fmt.Errorf("command name is empty")
		}
	}
	if len(commands) == 0 {
		return nil, fmt.Errorf("no command given")
	}
	return commands, nil
}
