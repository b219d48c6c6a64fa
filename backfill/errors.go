package backfill

import "errors"

var (
	// ErrJobStoreRequired is returned when a job store is not provided.
	ErrJobStoreRequired = errors.New("job store required")

	// ErrScheduleStoreRequired is returned when a schedule store is not provided.
	ErrScheduleStoreRequired = errors.New("schedule store required")

	// ErrResolverRequired is returned when a credential resolver is not provided.
	ErrResolverRequired = errors.New("credential resolver required")

	// ErrConnectorFactoryRequired is returned when a connector factory is not provided.
	ErrConnectorFactoryRequired = errors.New("connector factory required")

	// ErrPipelineRequired is returned when an ingestion pipeline is not provided.
	ErrPipelineRequired = errors.New("ingestion pipeline required")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("orchestrator already started")

	// ErrNotStarted is returned for operations that need a running orchestrator.
	ErrNotStarted = errors.New("orchestrator not started")

	// ErrJobNotRunning is returned by Cancel for unknown or finished jobs.
	ErrJobNotRunning = errors.New("job not running")

	// ErrInvalidLookback is returned for non-positive lookback windows.
	ErrInvalidLookback = errors.New("lookback days must be positive")

	// ErrInvalidCron is returned for cron expressions that do not parse.
	ErrInvalidCron = errors.New("invalid cron expression")
)
