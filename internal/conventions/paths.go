package conventions

import (
	"path/filepath"
	"time"
)

const (
	// DefaultDataDir is the default agentgw data directory name (relative to home).
	DefaultDataDir = ".agentgw"
	// DefaultWorkspaceDir is the default sandbox root directory name (relative to home).
	DefaultWorkspaceDir = "agentgw-workspace"

	// Execution homes.

	// MainHomeDir is the execution home shared by all non isolated profiles.
	MainHomeDir = "home"
	// IsolatedHomeDir is the execution home of the isolated profile.
	IsolatedHomeDir = "home-isolated"
	// ToolConfigFile is the wrapped tool configuration filename inside an execution home.
	ToolConfigFile = "config.toml"
	// DefaultHomeEnvVar is the env var the wrapped tool reads its home from.
	DefaultHomeEnvVar = "CODEX_HOME"

	// Profile catalog.

	// CatalogDBFile is the default catalog database filename.
	CatalogDBFile = "catalog.db"
	// CatalogTable is the catalog table queried for profile rows.
	CatalogTable = "profiles"
	// CatalogQueryTimeout bounds every catalog query.
	CatalogQueryTimeout = 3 * time.Second

	// Wrapped tool execution.

	// DefaultToolBinary is the wrapped tool executable.
	DefaultToolBinary = "codex"
	// DefaultSQLiteBinary is the query tool used by the CLI catalog driver.
	DefaultSQLiteBinary = "sqlite3"
	// DefaultTaskTimeout is used when a task doesn't set one, and always for resumes.
	DefaultTaskTimeout = 300 * time.Second
	// StdoutBudget is the max stdout bytes reported for an execution.
	StdoutBudget = 50_000
	// StderrBudget is the max stderr bytes reported for an execution.
	StderrBudget = 5_000

	// Sandbox.

	// ReadFileCap is the max bytes returned when reading a sandbox file.
	ReadFileCap = 256_000
)

// MainHome returns the execution home shared by the non isolated profiles.
func MainHome(dataDir string) string {
	return filepath.Join(dataDir, MainHomeDir)
}

// IsolatedHome returns the execution home of the isolated profile.
func IsolatedHome(dataDir string) string {
	return filepath.Join(dataDir, IsolatedHomeDir)
}

// ToolConfigPath returns the wrapped tool configuration path of an execution home.
func ToolConfigPath(home string) string {
	return filepath.Join(home, ToolConfigFile)
}

// CatalogDBPath returns the default catalog database path.
func CatalogDBPath(dataDir string) string {
	return filepath.Join(dataDir, CatalogDBFile)
}
