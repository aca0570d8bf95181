package selector

import (
	"reflect"
	"testing"

	"mediagrab/internal/domain"
)

func videoFormat(id string, height int, vcodec string) domain.Format {
	return domain.Format{FormatID: id, Height: height, VCodec: vcodec}
}

func audioFormat(id string, abr float64, acodec string) domain.Format {
	return domain.Format{FormatID: id, ABR: abr, ACodec: acodec}
}

func TestBestStreamPicksClosestHeight(t *testing.T) {
	formats := []domain.Format{
		videoFormat("480p", 480, "avc1.42001E"),
		videoFormat("1080p", 1080, "avc1.640028"),
	}

	got := BestStream(formats, "720", "avc1", Video)
	if got == nil || got.FormatID != "480p" {
		t.Fatalf("want 480p (closer to 720 than 1080), got %+v", got)
	}
}

func TestBestStreamExactHeightZeroDistance(t *testing.T) {
	formats := []domain.Format{
		videoFormat("480p", 480, "avc1"),
		videoFormat("720p", 720, "avc1"),
		videoFormat("1080p", 1080, "avc1"),
	}

	got := BestStream(formats, "720", "avc1", Video)
	if got == nil || got.FormatID != "720p" {
		t.Fatalf("want exact 720p match, got %+v", got)
	}
}

func TestBestStreamBestSelectsMaximum(t *testing.T) {
	formats := []domain.Format{
		videoFormat("480p", 480, "vp9"),
		videoFormat("2160p", 2160, "vp9"),
		videoFormat("1080p", 1080, "vp9"),
	}

	got := BestStream(formats, "best", "vp9", Video)
	if got == nil || got.FormatID != "2160p" {
		t.Fatalf("want maximum available for best, got %+v", got)
	}
}

func TestBestStreamTieKeepsFirstMatch(t *testing.T) {
	// 600 and 840 are both 120 away from 720; iteration order decides.
	formats := []domain.Format{
		videoFormat("first", 600, "avc1"),
		videoFormat("second", 840, "avc1"),
	}

	got := BestStream(formats, "720", "avc1", Video)
	if got == nil || got.FormatID != "first" {
		t.Fatalf("want first match on tie, got %+v", got)
	}
}

func TestBestStreamFiltersCodecAndMissingAxis(t *testing.T) {
	formats := []domain.Format{
		videoFormat("vp9-only", 1080, "vp9"),
		videoFormat("no-height", 0, "avc1"),
	}

	if got := BestStream(formats, "1080", "avc1", Video); got != nil {
		t.Fatalf("want nil when nothing qualifies, got %+v", got)
	}
}

func TestBestStreamAudioAxis(t *testing.T) {
	formats := []domain.Format{
		audioFormat("low", 64, "mp4a.40.2"),
		audioFormat("high", 256, "mp4a.40.2"),
		audioFormat("opus", 160, "opus"),
	}

	got := BestStream(formats, "best", "mp4a", Audio)
	if got == nil || got.FormatID != "high" {
		t.Fatalf("want highest bitrate mp4a stream, got %+v", got)
	}
}

func TestVideoPlanRemuxMP4(t *testing.T) {
	formats := []domain.Format{
		videoFormat("v1", 720, "avc1"),
		videoFormat("v2", 1080, "avc1"),
		audioFormat("a1", 128, "mp4a"),
	}

	plan := VideoPlan(formats, "mp4", "720", 0, "")
	if !plan.Remux {
		t.Fatalf("want remux plan, got %+v", plan)
	}
	if plan.Format != "v1+a1" {
		t.Fatalf("want combined-stream directive v1+a1, got %q", plan.Format)
	}
	if plan.MergeOutputFormat != "mp4" {
		t.Fatalf("want mp4 merge, got %q", plan.MergeOutputFormat)
	}
	if plan.RecodeFormat != "" || len(plan.ConvertorArgs) != 0 {
		t.Fatalf("remux plan must not re-encode: %+v", plan)
	}
}

func TestVideoPlanRemuxWebM(t *testing.T) {
	formats := []domain.Format{
		videoFormat("v1", 1080, "vp9"),
		audioFormat("a1", 160, "opus"),
	}

	plan := VideoPlan(formats, "webm", "best", 0, "")
	if !plan.Remux || plan.Format != "v1+a1" || plan.MergeOutputFormat != "webm" {
		t.Fatalf("want webm remux of v1+a1, got %+v", plan)
	}
}

func TestVideoPlanFallbackToConvert(t *testing.T) {
	// vp9 video but no opus audio: no compatible native pair for webm.
	formats := []domain.Format{
		videoFormat("v1", 1080, "vp9"),
		audioFormat("a1", 128, "mp4a"),
	}

	plan := VideoPlan(formats, "webm", "1080", 0, "")
	if plan.Remux {
		t.Fatalf("want convert fallback, got remux: %+v", plan)
	}
	if plan.Format != "bestvideo+bestaudio/best" || plan.MergeOutputFormat != "mkv" {
		t.Fatalf("want best-streams merge into mkv intermediate, got %+v", plan)
	}
	if plan.RecodeFormat != "webm" {
		t.Fatalf("want recode to webm, got %q", plan.RecodeFormat)
	}
	want := []string{"-c:v", "libvpx-vp9", "-crf", "30", "-b:v", "0", "-c:a", "libopus", "-b:a", "192k"}
	if !reflect.DeepEqual(plan.ConvertorArgs, want) {
		t.Fatalf("webm convertor args = %v", plan.ConvertorArgs)
	}
}

func TestVideoPlanConvertArgsMP4(t *testing.T) {
	plan := VideoPlan(nil, "mp4", "720", 0, "")
	want := []string{"-c:v", "libx264", "-c:a", "aac", "-pix_fmt", "yuv420p", "-preset", "fast"}
	if !reflect.DeepEqual(plan.ConvertorArgs, want) {
		t.Fatalf("mp4 convertor args = %v", plan.ConvertorArgs)
	}
}

func TestVideoPlanFPSRefinement(t *testing.T) {
	formats := []domain.Format{
		{FormatID: "v30", Height: 1080, FPS: 30, VCodec: "avc1"},
		{FormatID: "v60", Height: 1080, FPS: 60, VCodec: "avc1"},
		audioFormat("a1", 128, "mp4a"),
	}

	plan := VideoPlan(formats, "mp4", "1080", 60, "")
	if plan.Format != "v60+a1" {
		t.Fatalf("want 60fps stream at picked height, got %q", plan.Format)
	}
}

func TestVideoPlanAudioQualityRefinement(t *testing.T) {
	formats := []domain.Format{
		videoFormat("v1", 720, "avc1"),
		audioFormat("a-low", 96, "mp4a"),
		audioFormat("a-high", 256, "mp4a"),
	}

	plan := VideoPlan(formats, "mp4", "720", 0, "96")
	if plan.Format != "v1+a-low" {
		t.Fatalf("want requested audio bitrate honored, got %q", plan.Format)
	}
}

func TestAudioPlanBestMapsToQualitySentinel(t *testing.T) {
	for _, quality := range []string{"best", "lossless"} {
		plan := AudioPlan("mp3", quality)
		if plan.AudioQuality != "0" {
			t.Fatalf("quality %q: want sentinel 0, got %q", quality, plan.AudioQuality)
		}
	}
}

func TestAudioPlanPassesBitrateThrough(t *testing.T) {
	plan := AudioPlan("mp3", "192")
	if plan.Format != "bestaudio/best" || !plan.ExtractAudio {
		t.Fatalf("want best audio-only stream extraction, got %+v", plan)
	}
	if plan.AudioFormat != "mp3" || plan.AudioQuality != "192" {
		t.Fatalf("want bitrate passthrough, got %+v", plan)
	}
	if !plan.EmbedMetadata {
		t.Fatal("audio plan must attach the metadata-embedding post-step")
	}
}
