package sandbox

import "errors"

var (
	// ErrSandboxCreate covers failure to create (or a pre-existing
	// collision on) the per-job directory.
	ErrSandboxCreate = errors.New("sandbox: create failed")
	// ErrSourceWrite covers failure to write the uploaded source into
	// the sandbox, including filename/size validation failures.
	ErrSourceWrite = errors.New("sandbox: source write failed")
	// ErrLaunchFailed covers a failure to start the compile/run process.
	ErrLaunchFailed = errors.New("sandbox: launch failed")
	// ErrKillFailed covers a failure to signal a runaway process.
	ErrKillFailed = errors.New("sandbox: kill failed")
)
