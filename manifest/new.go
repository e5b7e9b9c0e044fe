package manifest

import (
	"time"

	"github.com/google/uuid"

	"autoedit/models"
)

// New creates an empty manifest for a job reading from srcDir. The planning
// bounds and encode parameters are frozen here; a zero seed is replaced by one
// derived from the job id so a resumed job replans identically.
func New(srcDir string, plan models.PlanParams, encode models.EncodeParams, now time.Time) *models.Manifest {
	id := uuid.New()
	if plan.Seed == 0 {
		plan.Seed = seedFromID(id)
	}
	now = now.UTC()
	return &models.Manifest{
		Version: models.ManifestVersion,
		JobID:   id.String(),
		Created: now,
		Updated: now,
		SrcDir:  srcDir,
		Plan:    plan,
		Encode:  encode,
		Sources: []*models.SourceRecord{},
		Clips:   []*models.ClipRecord{},
	}
}

func seedFromID(id uuid.UUID) uint64 {
	var seed uint64
	for _, b := range id[:8] {
		seed = seed<<8 | uint64(b)
	}
	if seed == 0 {
		seed = 1
	}
	return seed
}
