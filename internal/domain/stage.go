package domain

import "time"

// StageName identifies one pipeline stage.
type StageName string

const (
	StageResearch         StageName = "research"
	StageContent          StageName = "content"
	StageImagePrompts     StageName = "image_prompts"
	StageImageGeneration  StageName = "image_generation"
	StageAssetPersistence StageName = "asset_persistence"
	StageFormatting       StageName = "formatting"
	StagePublishing       StageName = "publishing"
)

// StageStatus is the result status of one stage attempt.
type StageStatus string

const (
	StageStatusOK      StageStatus = "ok"
	StageStatusTimeout StageStatus = "timeout"
	StageStatusError   StageStatus = "error"
)

// StageResult records one attempt of one stage. Failed attempts are retained
// for diagnostics; at most one ok row exists per stage per job.
type StageResult struct {
	ID         string
	JobID      string
	Stage      StageName
	Attempt    int
	Status     StageStatus
	ErrorClass ErrorClass
	PayloadRef string
	StartedAt  time.Time
	Duration   time.Duration
}
