package actions

import (
	"context"
	"strings"

	"github.com/badkiko/y2m/internal/adb"
	"github.com/badkiko/y2m/internal/model"
)

const TypeADB = "adb"

const defaultADBPort = 5555

// ADBExecutor runs a shell command on a network-addressed Android device
// through the debug bridge.
type ADBExecutor struct {
	runner *adb.Runner
}

func NewADBExecutor(runner *adb.Runner) *ADBExecutor {
	return &ADBExecutor{runner: runner}
}

func (e *ADBExecutor) Type() string { return TypeADB }

func (e *ADBExecutor) ConfigSchema() Schema {
	return Schema{Fields: []Field{
		{Key: "host", Label: "Host", Kind: ParamString, Required: true},
		{Key: "port", Label: "Port", Kind: ParamInteger, Required: true, Default: defaultADBPort},
		{Key: "command", Label: "Shell command", Kind: ParamString, Required: true},
	}}
}

func (e *ADBExecutor) Execute(ctx context.Context, payload map[string]any) model.ActionResult {
	host, _ := payload["host"].(string)
	command, _ := payload["command"].(string)
	port := intParam(payload, "port", defaultADBPort)
	if strings.TrimSpace(host) == "" || strings.TrimSpace(command) == "" {
		return failure("invalid config")
	}

	result, err := e.runner.Shell(ctx, host, port, command)
	if err != nil {
		return failure(err.Error())
	}
	if result.TimedOut {
		return failure("timeout")
	}
	if result.ExitCode != 0 {
		return failure(result.FailureMessage())
	}
	return success(result.Stdout)
}

func intParam(payload map[string]any, key string, fallback int) int {
	switch typed := payload[key].(type) {
	case int:
		return typed
	case int64:
		return int(typed)
	case float64:
		return int(typed)
	default:
		return fallback
	}
}
