package model

// Artifact kinds
type ArtifactKind string

const (
	ArtifactKindAudio      ArtifactKind = "audio"
	ArtifactKindSampleText ArtifactKind = "sample_text"
)

// Capture status
type CaptureStatus string

const (
	CaptureStatusIdle      CaptureStatus = "idle"
	CaptureStatusRecording CaptureStatus = "recording"
	CaptureStatusStopped   CaptureStatus = "stopped"
)

// Run status as recorded in the run ledger
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCanceled  RunStatus = "canceled"
	RunStatusDelivered RunStatus = "delivered"
)

// Equipment condition
type Condition string

const (
	ConditionNew       Condition = "new"
	ConditionExcellent Condition = "excellent"
	ConditionGood      Condition = "good"
	ConditionFair      Condition = "fair"
	ConditionDamaged   Condition = "damaged"
)

var ValidConditions = []Condition{
	ConditionNew, ConditionExcellent, ConditionGood, ConditionFair, ConditionDamaged,
}

// Unit status
type UnitStatus string

const (
	UnitStatusAvailable   UnitStatus = "available"
	UnitStatusBooked      UnitStatus = "booked"
	UnitStatusMaintenance UnitStatus = "maintenance"
	UnitStatusRetired     UnitStatus = "retired"
)

var ValidUnitStatuses = []UnitStatus{
	UnitStatusAvailable, UnitStatusBooked, UnitStatusMaintenance, UnitStatusRetired,
}

// Categories
const (
	CategoryCameras     = "Cameras"
	CategoryLenses      = "Lenses"
	CategoryLighting    = "Lighting"
	CategoryAudio       = "Audio"
	CategorySupportRigs = "Support & Rigs"
	CategoryAccessories = "Accessories"
)
