package runner

import "time"

// Trial execution constants
const (
	// DefaultTrialTimeout bounds how long a client may run
	DefaultTrialTimeout = 60 * time.Second

	// DefaultTerminateAttempts is how many times the server is polled after SIGTERM
	DefaultTerminateAttempts = 10
	// DefaultTerminateInterval is the delay between termination polls
	DefaultTerminateInterval = 100 * time.Millisecond

	// DefaultBindTimeout bounds how long a trial waits for the port to become free
	DefaultBindTimeout = 2 * time.Second

	DefaultHost = "localhost"
	DefaultPort = 9000

	// Roles passed as the first argument of every invocation
	RoleServer = "server"
	RoleClient = "client"

	// Invocation flags understood by the server and client executables
	HostFlag     = "-h"
	PortFlag     = "-p"
	ChannelFlag  = "-c"
	ScriptFlag   = "-f"
	TemplateFlag = "-t"

	// maxOutputBytes is how much of each process's output is kept in memory per trial
	maxOutputBytes = 256 * 1024
)
