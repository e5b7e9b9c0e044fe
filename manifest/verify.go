package manifest

import (
	"os"

	"autoedit/models"
)

// FileReady reports whether path exists as a non-empty regular file.
func FileReady(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

// Verification lists what Revalidate changed.
type Verification struct {
	InterruptedClips int // encoding at load, back to planned
	MissingClips     int // done without a file, back to planned
	FinalReset       bool
}

// Changed reports whether anything was demoted.
func (v Verification) Changed() bool {
	return v.InterruptedClips > 0 || v.MissingClips > 0 || v.FinalReset
}

// Revalidate demotes recorded state the filesystem contradicts: clips left
// encoding by a crashed run, done clips whose file is gone or empty, and a
// done final whose output vanished. An assembling final from a crashed run is
// reset as well.
func Revalidate(m *models.Manifest) Verification {
	var v Verification
	for _, c := range m.Clips {
		switch c.Status {
		case models.ClipEncoding:
			c.Status = models.ClipPlanned
			v.InterruptedClips++
		case models.ClipDone:
			if !FileReady(c.OutputPath) {
				c.Status = models.ClipPlanned
				c.OutputPath = ""
				v.MissingClips++
			}
		}
	}

	if f := m.Final; f != nil {
		switch f.Status {
		case models.FinalDone:
			if !FileReady(f.OutputPath) {
				f.Reset()
				v.FinalReset = true
			}
		case models.FinalAssembling:
			f.Reset()
			v.FinalReset = true
		}
	}
	return v
}
