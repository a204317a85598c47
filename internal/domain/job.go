package domain

import "time"

// PersistMode selects where a finished article goes.
type PersistMode string

const (
	PersistModeCMS   PersistMode = "cms"
	PersistModeLocal PersistMode = "local"
	PersistModeAuto  PersistMode = "auto"
)

// JobState enumerates the orchestrator's forward-only states.
type JobState string

const (
	JobStateQueued           JobState = "queued"
	JobStateAdmitted         JobState = "admitted"
	JobStateResearching      JobState = "researching"
	JobStateWriting          JobState = "writing"
	JobStatePromptingImages  JobState = "prompting_images"
	JobStateGeneratingImages JobState = "generating_images"
	JobStatePersistingAssets JobState = "persisting_assets"
	JobStateFormatting       JobState = "formatting"
	JobStatePublishing       JobState = "publishing"
	JobStateCompleted        JobState = "completed"
	JobStateFailed           JobState = "failed"
)

// JobOutcome is the terminal verdict of a job.
type JobOutcome string

const (
	OutcomePending        JobOutcome = ""
	OutcomeSuccess        JobOutcome = "success"
	OutcomeFailedRefunded JobOutcome = "failed_refunded"
	OutcomeFailedNoRefund JobOutcome = "failed_no_refund"
)

// Job is one request to produce an illustrated article. Created on admission
// after the credit debit succeeded; mutated only by the orchestrator;
// terminal once Outcome is set.
type Job struct {
	ID            string
	TenantID      string
	Topic         string
	WritingStyle  string
	RequestedMode PersistMode
	State         JobState
	Outcome       JobOutcome
	ErrorClass    ErrorClass
	FailedStage   StageName
	ScheduledSlot *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Terminal reports whether the job has reached a final outcome.
func (j *Job) Terminal() bool {
	return j.Outcome != OutcomePending
}

// NormalizePersistMode sanitizes free-form input into a supported mode.
func NormalizePersistMode(mode string) PersistMode {
	switch PersistMode(mode) {
	case PersistModeCMS:
		return PersistModeCMS
	case PersistModeLocal:
		return PersistModeLocal
	default:
		return PersistModeAuto
	}
}
