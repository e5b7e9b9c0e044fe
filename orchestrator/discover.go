package orchestrator

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"autoedit/assembler"
	"autoedit/encoder"
)

// videoExtensions lists the source container types picked up by discovery.
var videoExtensions = map[string]bool{
	".mp4": true,
	".mkv": true,
	".mov": true,
	".m4v": true,
}

// sourceFile is one video found under the source directory.
type sourceFile struct {
	Path    string // relative, slash separated
	Size    int64
	ModTime time.Time
}

// discover walks srcDir and returns its video files in path order. The job
// directory is skipped when it lives inside srcDir, so encoded clips and
// reels are never picked up as sources. skipped counts the videos that were
// passed over because they sit directly in the job directory, not counting
// reels written there.
func discover(srcDir, jobDir string) (files []sourceFile, skipped int, err error) {
	err = filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != srcDir && (path == jobDir || d.Name() == encoder.WorkDirName) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !videoExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		if filepath.Dir(path) == jobDir {
			if !strings.HasSuffix(d.Name(), assembler.OutputSuffix) {
				skipped++
			}
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		files = append(files, sourceFile{
			Path:    filepath.ToSlash(rel),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, skipped, nil
}
