// Package common provides shared constants and wire types used between the
// comic-looms command line and its JSON-RPC bridge.
package common

// Environment variable names for configuration.
const (
	PaginationEnv = "COMIC_LOOMS_PAGINATION"
	ThreadsEnv    = "COMIC_LOOMS_THREADS"
	DebounceEnv   = "COMIC_LOOMS_DEBOUNCE"
	TimeoutEnv    = "COMIC_LOOMS_TIMEOUT"
	ProxyEnv      = "COMIC_LOOMS_PROXY"
	UserAgentEnv  = "COMIC_LOOMS_USER_AGENT"

	// SecretEnv holds the Bearer token required by the RPC bridge.
	SecretEnv = "COMIC_LOOMS_RPC_SECRET"

	// DebugEnv is the environment variable to enable debug logging.
	DebugEnv = "COMIC_LOOMS_DEBUG"
	// LogFileEnv names a file log lines are appended to, besides stderr.
	LogFileEnv = "COMIC_LOOMS_LOG_FILE"
)
