package shell

import (
	"asyncshell/internal/logging"
	"asyncshell/internal/task"
	"asyncshell/internal/tools"
)

// RegisterAll registers all shell execution tools with the given registry.
func RegisterAll(registry *tools.Registry, executor *task.Executor, opts Options) error {
	allTools := []*tools.Tool{
		ShellTool(executor, opts),
		ShellStatusTool(executor),
	}

	for _, tool := range allTools {
		if err := registry.Register(tool); err != nil {
			return err
		}
	}

	logging.Tools("registered %d shell tools (sync timeout %s)", len(allTools), executor.SyncTimeout())
	return nil
}
