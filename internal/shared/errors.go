package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Catalog errors
	ErrCatalogNotConfigured = fmt.Errorf("catalog not configured")
	ErrCatalogUnavailable   = fmt.Errorf("catalog unavailable")
	ErrAPIRequest           = fmt.Errorf("API request failed")

	// Sync errors
	ErrSyncInProgress = fmt.Errorf("sync already in progress")
	ErrSyncFailed     = fmt.Errorf("sync failed")
	ErrRunNotFound    = fmt.Errorf("sync run not found")
	ErrRunNotRunning  = fmt.Errorf("sync run is not running")

	// Request errors
	ErrRequestNotFound   = fmt.Errorf("request not found")
	ErrInvalidTransition = fmt.Errorf("invalid status transition")

	// Input validation errors
	ErrInvalidInput       = fmt.Errorf("invalid input")
	ErrMissingArgument    = fmt.Errorf("missing required argument")
	ErrInvalidArgument    = fmt.Errorf("invalid argument")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
)
