package supervisor

import "errors"

// Sentinel errors for the lifecycle operations. Callers match them with
// errors.Is; the CLI maps any of them to a non-zero exit.
var (
	ErrUnknownWorker  = errors.New("unknown worker")
	ErrAlreadyRunning = errors.New("already running")
	ErrNotRunning     = errors.New("not running")
	ErrLaunchFailed   = errors.New("launch failed")
	ErrStopFailed     = errors.New("stop failed")
)
