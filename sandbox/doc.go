// Package sandbox runs untrusted PohLang source through the external
// interpreter under strict bounds.
//
// A Supervisor takes a slot from the Pool, provisions a private Workspace
// holding the source file, lets the Runner execute the interpreter and
// removes the workspace on every path. The Runner reads stdout and stderr
// incrementally into capped buffers and owns a single select loop that
// turns process exit, the timeout timer, output caps and context
// cancellation into exactly one terminal State. Termination is a SIGTERM
// to the process group followed by SIGKILL after GracePeriod.
//
// Usage:
//
//	sup := sandbox.New(logger, cfg)
//	res, err := sup.Run(ctx, `Write "hi"`, sandbox.ModeRun)
package sandbox
