package nav2d

import "errors"

// Sentinel errors for common error conditions.
var (
	// ErrInvalidStateTransition is returned when a goal selection is updated
	// or ended without being started.
	ErrInvalidStateTransition = errors.New("nav2d: invalid state transition")

	// ErrTransportUnavailable is returned when no middleware connection is
	// configured or it refused the request.
	ErrTransportUnavailable = errors.New("nav2d: transport unavailable")

	// ErrRequestTimeout is returned when a goal produced no result in time.
	ErrRequestTimeout = errors.New("nav2d: request timed out")

	// ErrGoalCanceled is returned when a pending goal was cancelled locally.
	ErrGoalCanceled = errors.New("nav2d: goal canceled")

	// ErrScaleNotInitialized is returned by operations that need the
	// initialization-time scale before InitScale has run.
	ErrScaleNotInitialized = errors.New("nav2d: scale not initialized")

	// ErrScaleAlreadyInitialized is returned by InitScale when the scale was
	// already captured. The existing scale is kept.
	ErrScaleAlreadyInitialized = errors.New("nav2d: scale already initialized")

	// ErrMissingView is returned when a component is built without a root
	// container or view.
	ErrMissingView = errors.New("nav2d: root container and view are required")
)
