// Package selector chooses a concrete stream/encoding plan from a source's
// available formats and the requested quality. It is pure decision logic with
// no side effects so the worker and tests can call it independently.
package selector

import (
	"math"
	"strconv"

	"mediagrab/internal/domain"
)

// unboundedTarget stands in for a "best" quality request: nearest-match
// selection against it picks the maximum available.
const unboundedTarget = 9999

type StreamKind int

const (
	Video StreamKind = iota
	Audio
)

// Plan is the engine invocation derived from the requested output.
type Plan struct {
	Format            string
	MergeOutputFormat string
	Remux             bool

	// convert fallback
	RecodeFormat  string
	ConvertorArgs []string

	// audio-only
	ExtractAudio  bool
	AudioFormat   string
	AudioQuality  string
	EmbedMetadata bool
}

// BestStream picks the stream whose codec matches codecPrefix and whose
// quality axis (height for video, bitrate for audio) is numerically closest
// to the requested target. quality "best" selects the maximum available.
// Ties keep the first match in the engine's iteration order. Returns nil when
// no stream qualifies.
func BestStream(formats []domain.Format, quality, codecPrefix string, kind StreamKind) *domain.Format {
	target := float64(unboundedTarget)
	if quality != "best" {
		if v, err := strconv.Atoi(quality); err == nil {
			target = float64(v)
		}
	}

	var (
		best     *domain.Format
		bestDist float64
	)
	for i := range formats {
		f := &formats[i]
		var codec string
		var axis float64
		switch kind {
		case Video:
			codec, axis = f.VCodec, float64(f.Height)
		case Audio:
			codec, axis = f.ACodec, f.ABR
		}
		if axis == 0 || !hasPrefix(codec, codecPrefix) {
			continue
		}
		dist := math.Abs(axis - target)
		if best == nil || dist < bestDist {
			best, bestDist = f, dist
		}
	}
	return best
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// nativeCodecs maps an output container to the codec families it can hold
// without re-encoding.
func nativeCodecs(formatType string) (videoCodec, audioCodec string, ok bool) {
	switch formatType {
	case "webm":
		return "vp9", "opus", true
	case "mp4":
		return "avc1", "mp4a", true
	}
	return "", "", false
}

// VideoPlan builds the download plan for a video request. It first attempts a
// remux of native-codec streams (fast, lossless); when no compatible pair
// exists it falls back to downloading the overall best streams and
// re-encoding into the requested container. fps and audioQuality are optional
// refinements ("" / 0 when absent).
func VideoPlan(formats []domain.Format, formatType, quality string, fps float64, audioQuality string) Plan {
	if vCodec, aCodec, ok := nativeCodecs(formatType); ok {
		if audioQuality == "" {
			audioQuality = "best"
		}
		bestVideo := BestStream(formats, quality, vCodec, Video)
		bestVideo = refineByFPS(formats, bestVideo, vCodec, fps)
		bestAudio := BestStream(formats, audioQuality, aCodec, Audio)
		if bestVideo != nil && bestAudio != nil {
			return Plan{
				Format:            bestVideo.FormatID + "+" + bestAudio.FormatID,
				MergeOutputFormat: formatType,
				Remux:             true,
			}
		}
	}

	return Plan{
		Format:            "bestvideo+bestaudio/best",
		MergeOutputFormat: "mkv",
		RecodeFormat:      formatType,
		ConvertorArgs:     convertorArgs(formatType),
	}
}

// convertorArgs returns the re-encode filter chain for the requested output
// container.
func convertorArgs(formatType string) []string {
	if formatType == "webm" {
		return []string{"-c:v", "libvpx-vp9", "-crf", "30", "-b:v", "0", "-c:a", "libopus", "-b:a", "192k"}
	}
	return []string{"-c:v", "libx264", "-c:a", "aac", "-pix_fmt", "yuv420p", "-preset", "fast"}
}

// refineByFPS narrows a height pick to the nearest frame rate when the client
// asked for one. Only streams at the picked height and codec family compete;
// ties keep the first match.
func refineByFPS(formats []domain.Format, pick *domain.Format, codecPrefix string, fps float64) *domain.Format {
	if pick == nil || fps <= 0 {
		return pick
	}
	best := pick
	bestDist := math.Abs(pick.FPS - fps)
	for i := range formats {
		f := &formats[i]
		if f.Height != pick.Height || f.FPS == 0 || !hasPrefix(f.VCodec, codecPrefix) {
			continue
		}
		if dist := math.Abs(f.FPS - fps); dist < bestDist {
			best, bestDist = f, dist
		}
	}
	return best
}

// AudioPlan builds the download plan for an audio-only request. "best" and
// "lossless" map to the engine's maximum-quality sentinel; other values pass
// through as the requested bitrate. A metadata-embedding post-step is always
// attached.
func AudioPlan(formatType, quality string) Plan {
	audioQuality := quality
	if quality == "best" || quality == "lossless" {
		audioQuality = "0"
	}
	return Plan{
		Format:        "bestaudio/best",
		ExtractAudio:  true,
		AudioFormat:   formatType,
		AudioQuality:  audioQuality,
		EmbedMetadata: true,
	}
}
