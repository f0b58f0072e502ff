package config

// ExecutionConfig configures the task executor and the shell tool.
type ExecutionConfig struct {
	// How long a shell call waits before handing the task to the background.
	// Fixed for the life of the process; callers cannot override it.
	SyncTimeout string `yaml:"sync_timeout" json:"sync_timeout,omitempty"`

	// Shell used when the caller names none
	DefaultShell string `yaml:"default_shell" json:"default_shell,omitempty"`

	// Shells the tool accepts (schema enum)
	AllowedShells []string `yaml:"allowed_shells" json:"allowed_shells,omitempty"`

	// How long shutdown waits for detached tasks (0 = until they finish)
	ShutdownTimeout string `yaml:"shutdown_timeout" json:"shutdown_timeout,omitempty"`
}
