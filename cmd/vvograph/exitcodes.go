package main

// Exit codes
const (
	ExitSuccess     = 0   // Success
	ExitError       = 1   // General error (invalid arguments, runtime failure)
	ExitConfigError = 2   // Configuration error or missing prerequisite artifact
	ExitDataError   = 3   // Data error (malformed input, partial projection)
	ExitAPIError    = 4   // Remote service unreachable or misbehaving
	ExitInterrupted = 130 // Interrupted by signal; checkpoint kept
)
