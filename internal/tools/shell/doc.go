// Package shell provides the shell execution tools.
//
// Commands that finish within the executor's sync timeout return their
// output inline. Slower commands keep running in the background and return
// a task ID that shell_status reports on.
//
// Tools:
//   - shell: Execute a shell command with automatic async fallback
//   - shell_status: Report the state of a task started by shell
package shell
