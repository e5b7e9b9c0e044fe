package models

import "time"

// FinalStatus is the state of the assembled reel.
type FinalStatus string

const (
	FinalAbsent     FinalStatus = "absent"
	FinalAssembling FinalStatus = "assembling"
	FinalDone       FinalStatus = "done"
	FinalFailed     FinalStatus = "failed"
)

// FinalRecord tracks the merged output of a job. OutputPath is only set
// while Status is FinalDone.
type FinalRecord struct {
	Status     FinalStatus `json:"status"`
	OutputPath string      `json:"output_path,omitempty"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// MarkDone records a successful assembly.
func (f *FinalRecord) MarkDone(outputPath string, at time.Time) {
	at = at.UTC()
	f.Status = FinalDone
	f.OutputPath = outputPath
	f.FinishedAt = &at
	f.Error = ""
}

// MarkFailed records a failed assembly.
func (f *FinalRecord) MarkFailed(err error) {
	f.Status = FinalFailed
	f.OutputPath = ""
	f.FinishedAt = nil
	if err != nil {
		f.Error = err.Error()
	}
}

// Reset forces the record back to absent, e.g. when the output vanished.
func (f *FinalRecord) Reset() {
	f.Status = FinalAbsent
	f.OutputPath = ""
	f.FinishedAt = nil
	f.Error = ""
}
