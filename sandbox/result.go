package sandbox

// State is the lifecycle position of one execution.
type State int

const (
	StatePending State = iota
	StateSpawning
	StateRunning
	StateCompleted
	StateTimedOut
	StateCapped
	StateSpawnFailed
	StateCanceled
)

var stateNames = [...]string{
	StatePending:     "pending",
	StateSpawning:    "spawning",
	StateRunning:     "running",
	StateCompleted:   "completed",
	StateTimedOut:    "timed_out",
	StateCapped:      "capped",
	StateSpawnFailed: "spawn_failed",
	StateCanceled:    "canceled",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s >= StateCompleted
}

// Result is the outcome of one execution. The JSON shape is the public
// contract of the execution route.
type Result struct {
	OK       bool   `json:"ok"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exitCode"`
	Ms       int64  `json:"ms"`
	Error    string `json:"error,omitempty"`

	Outcome         State  `json:"-"`
	StdoutTruncated bool   `json:"-"`
	StderrTruncated bool   `json:"-"`
	ExecutionID     string `json:"-"`
}

// Rejected builds the uniform result shape for a request that never ran.
func Rejected(message string) Result {
	return Result{OK: false, ExitCode: -1, Error: message}
}
