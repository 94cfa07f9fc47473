package config

// Name and query limits shared by the services.
const (
	MinFolderNameLength = 2
	MaxFolderNameLength = 100
	MaxCaseNameLength   = 255
	MaxTagNameLength    = 60
	MaxGroupNameLength  = 100

	// MaxTreeDepth bounds parent-chain walks so a corrupted tree can
	// never loop a request forever.
	MaxTreeDepth = 4096

	DefaultPageSize = 25
	MaxPageSize     = 500
)
