package logger

// Component name constants for standardized logging
const (
	// Store components
	ComponentStore      = "Store"
	ComponentCollection = "Collection"
	ComponentLifecycle  = "Lifecycle"

	// Execution components
	ComponentSupervisor = "Supervisor"
	ComponentRetry      = "Retry"

	// I/O components
	ComponentDataSource  = "DataSource"
	ComponentPersistence = "Persistence"
	ComponentFilesystem  = "FilesystemService"

	// Configuration
	ComponentConfigManager = "ConfigManager"

	// Demo binary
	ComponentDemo = "Demo"
)
