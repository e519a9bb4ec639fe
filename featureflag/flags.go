package featureflag

type Flag string

const (
	FlagDisableRaycastPhase     Flag = "DISABLE_RAYCAST_PHASE"
	FlagDisableRefitPhase       Flag = "DISABLE_REFIT_PHASE"
	FlagDisableStartupSmokeTest Flag = "DISABLE_STARTUP_SMOKE_TEST"
)
