// Package video builds the ffmpeg command that encodes one clip of the reel:
// a seeked, length-bounded cut of a source with a burned-in capture clock,
// SVT-AV1 video and Opus audio in a Matroska container.
package video

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"autoedit/command"
	"autoedit/internal/timeutil"
)

// Defaults applied by NewClipBuilder.
const (
	DefaultSVTPreset   = 5
	DefaultSVTCRF      = 32
	DefaultSVTLP       = 5
	DefaultOpusBitrate = "128k"
	DefaultFontFile    = "/usr/share/fonts/TTF/DejaVuSansMono.ttf"
)

// ClipRequest describes the cut to encode.
type ClipRequest struct {
	SequenceIndex int
	SourcePath    string // absolute
	SourceName    string // shown in the label; defaults to the source base name
	StartSeconds  float64
	LengthSeconds float64
	Epoch         int64 // capture time of the first frame, Unix seconds
	HasAudio      bool
}

// ClipBuilder implements command.Command for a single clip encode.
type ClipBuilder struct {
	req        ClipRequest
	outputPath string
	binary     string

	svtPreset   int
	svtCRF      int
	svtLP       int
	opusBitrate string
	truePeak    string
	fontFile    string
}

// NewClipBuilder creates a clip encode command writing to outputPath.
func NewClipBuilder(req ClipRequest, outputPath string) *ClipBuilder {
	return &ClipBuilder{
		req:         req,
		outputPath:  outputPath,
		binary:      "ffmpeg",
		svtPreset:   DefaultSVTPreset,
		svtCRF:      DefaultSVTCRF,
		svtLP:       DefaultSVTLP,
		opusBitrate: DefaultOpusBitrate,
		fontFile:    DefaultFontFile,
	}
}

// SetBinary overrides the ffmpeg executable.
func (b *ClipBuilder) SetBinary(binary string) *ClipBuilder {
	if binary != "" {
		b.binary = binary
	}
	return b
}

// SetSVT sets the SVT-AV1 preset, CRF and logical processor count.
func (b *ClipBuilder) SetSVT(preset, crf, lp int) *ClipBuilder {
	b.svtPreset = preset
	b.svtCRF = crf
	b.svtLP = lp
	return b
}

// SetOpusBitrate sets the audio bitrate (e.g., "128k").
func (b *ClipBuilder) SetOpusBitrate(bitrate string) *ClipBuilder {
	if bitrate != "" {
		b.opusBitrate = bitrate
	}
	return b
}

// SetTruePeak enables a limiter with the given ceiling in dB (e.g., "-1.0").
// Empty or "none" disables it.
func (b *ClipBuilder) SetTruePeak(tp string) *ClipBuilder {
	if strings.EqualFold(strings.TrimSpace(tp), "none") {
		tp = ""
	}
	b.truePeak = strings.TrimSpace(tp)
	return b
}

// SetFontFile sets the font used by the overlay.
func (b *ClipBuilder) SetFontFile(path string) *ClipBuilder {
	if path != "" {
		b.fontFile = path
	}
	return b
}

// BuildArgs constructs the ffmpeg arguments for the clip encode.
func (b *ClipBuilder) BuildArgs() []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "warning",
		"-nostats",
		// Final statistics are read back from stdout.
		"-progress", "pipe:1",
		"-y",
		// Input seeking: -ss/-t before -i cut on the demuxer side.
		"-ss", formatSeconds(b.req.StartSeconds),
		"-t", formatSeconds(b.req.LengthSeconds),
		"-i", b.req.SourcePath,
		"-fps_mode", "passthrough",
		"-filter_complex", b.FilterGraph(),
		"-map", "[v]",
		"-map", "[a]",
		"-c:v", "libsvtav1",
		"-preset", strconv.Itoa(b.svtPreset),
		"-crf", strconv.Itoa(b.svtCRF),
		"-svtav1-params", fmt.Sprintf("lp=%d", b.svtLP),
		"-c:a", "libopus",
		"-b:a", b.opusBitrate,
		"-map_metadata", "0",
		"-map_chapters", "0",
		"-cues_to_front", "1",
		"-reserve_index_space", "200k",
	}

	// The output may carry a temporary suffix, so the muxer is forced.
	args = append(args, "-f", "matroska", b.outputPath)
	return args
}

// FilterGraph returns the -filter_complex value producing [v] and [a].
func (b *ClipBuilder) FilterGraph() string {
	video := "[0:v]" + b.clockFilter() + "," + b.labelFilter() + "[v]"

	if b.req.HasAudio {
		chain := []string{"highpass=f=120"}
		if b.truePeak != "" {
			chain = append(chain, fmt.Sprintf("alimiter=limit=%sdB:level_in=0dB:level_out=0dB", b.truePeak))
		}
		chain = append(chain,
			"aresample=async=1:first_pts=0:osr=48000",
			"aformat=channel_layouts=stereo",
		)
		return video + ";[0:a]" + strings.Join(chain, ",") + "[a]"
	}

	// Sources without audio get silence of exactly the clip length so every
	// clip has the same track layout for appending.
	return video + ";" +
		"anullsrc=r=48000:cl=stereo," +
		"atrim=duration=" + formatSeconds(b.req.LengthSeconds) + "," +
		"aresample=async=1:first_pts=0," +
		"aformat=channel_layouts=stereo[a]"
}

// clockFilter draws the capture date/time, advancing with the frame
// timestamps from the clip's epoch.
func (b *ClipBuilder) clockFilter() string {
	return "drawtext=fontfile=" + escapeFilterValue(b.fontFile) +
		":expansion=strftime" +
		":basetime=" + strconv.FormatInt(b.req.Epoch*1_000_000, 10) +
		":fontcolor=white:fontsize=h/40:box=1:boxcolor=black@1:boxborderw=6" +
		`:text='%m/%d/%Y %H\:%M\:%S':x=24:y=24`
}

func (b *ClipBuilder) labelFilter() string {
	name := b.req.SourceName
	if name == "" {
		name = baseName(b.req.SourcePath)
	}
	text := fmt.Sprintf("#%03d %s +%s", b.req.SequenceIndex, sanitizeLabel(name), timeutil.FormatClock(b.req.StartSeconds))
	return "drawtext=fontfile=" + escapeFilterValue(b.fontFile) +
		":expansion=none" +
		":fontcolor=white:fontsize=h/60:box=1:boxcolor=black@0.6:boxborderw=4" +
		":text='" + text + "':x=24:y=h-th-24"
}

// DryRun returns the command that would be executed without running it
func (b *ClipBuilder) DryRun() (string, error) {
	if b.req.SourcePath == "" {
		return "", fmt.Errorf("source path cannot be empty")
	}
	if b.req.LengthSeconds <= 0 {
		return "", fmt.Errorf("clip length must be positive")
	}
	return command.Quote(b.binary, b.BuildArgs()), nil
}

func (b *ClipBuilder) Binary() string { return b.binary }

// GetTaskType returns the task type identifier
func (b *ClipBuilder) GetTaskType() command.TaskType {
	return command.TaskTypeEncode
}

// GetInputPath returns the input file path
func (b *ClipBuilder) GetInputPath() string {
	return b.req.SourcePath
}

// GetOutputPath returns the output file path
func (b *ClipBuilder) GetOutputPath() string {
	return b.outputPath
}

func formatSeconds(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', 6, 64)
}

// escapeFilterValue escapes an option value for use inside a filter graph.
func escapeFilterValue(v string) string {
	r := strings.NewReplacer(`\`, `\\`, `:`, `\:`, `'`, `\'`, `,`, `\,`, `;`, `\;`, `[`, `\[`, `]`, `\]`)
	return r.Replace(v)
}

var labelUnsafe = regexp.MustCompile(`[^A-Za-z0-9 ._+#()-]`)

// sanitizeLabel keeps characters drawtext renders literally inside quotes.
func sanitizeLabel(s string) string {
	return labelUnsafe.ReplaceAllString(s, "_")
}

func baseName(p string) string {
	if i := strings.LastIndexAny(p, `/\`); i >= 0 {
		return p[i+1:]
	}
	return p
}
