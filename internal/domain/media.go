package domain

import "sort"

// Format describes one stream advertised by the extraction engine for a media
// source. Codec and quality fields are passed through as the engine reports
// them; "none" marks an absent codec.
type Format struct {
	FormatID   string  `json:"format_id"`
	Ext        string  `json:"ext"`
	Resolution string  `json:"resolution,omitempty"`
	Height     int     `json:"height,omitempty"`
	FPS        float64 `json:"fps,omitempty"`
	VCodec     string  `json:"vcodec,omitempty"`
	ACodec     string  `json:"acodec,omitempty"`
	ABR        float64 `json:"abr,omitempty"`
	TBR        float64 `json:"tbr,omitempty"`
	VBR        float64 `json:"vbr,omitempty"`
	Filesize   int64   `json:"filesize,omitempty"`
	Duration   float64 `json:"duration,omitempty"`
}

// HasVideo reports whether the stream carries a video track.
func (f Format) HasVideo() bool { return f.VCodec != "" && f.VCodec != "none" }

// HasAudio reports whether the stream carries an audio track.
func (f Format) HasAudio() bool { return f.ACodec != "" && f.ACodec != "none" }

type Thumbnail struct {
	URL    string
	Width  int
	Height int
}

// RawInfo is the engine's untrimmed metadata for a single media source.
type RawInfo struct {
	Title        string
	Description  string
	ExtractorKey string
	Thumbnail    string
	Thumbnails   []Thumbnail
	Duration     float64
	ViewCount    int64
	Formats      []Format
}

// MediaInfo is the analyze response: trimmed metadata plus the available
// streams split by kind, deduplicated by format id, video ordered by
// descending height and audio by descending bitrate.
type MediaInfo struct {
	Title        string   `json:"title"`
	Thumbnail    string   `json:"thumbnail,omitempty"`
	Duration     float64  `json:"duration,omitempty"`
	ViewCount    int64    `json:"view_count,omitempty"`
	VideoFormats []Format `json:"video_formats"`
	AudioFormats []Format `json:"audio_formats"`
}

// BuildMediaInfo shapes raw engine metadata into the analyze response. The
// title is supplied by the caller so that title-cleaning stays a collaborator
// concern.
func BuildMediaInfo(info RawInfo, title string) MediaInfo {
	var video, audio []Format
	for _, f := range info.Formats {
		f = withEstimatedSize(f)
		switch {
		case f.HasVideo():
			video = append(video, f)
		case f.HasAudio():
			audio = append(audio, f)
		}
	}

	video = dedupeByID(video)
	audio = dedupeByID(audio)

	sort.SliceStable(video, func(i, j int) bool { return video[i].Height > video[j].Height })
	sort.SliceStable(audio, func(i, j int) bool { return audio[i].ABR > audio[j].ABR })

	return MediaInfo{
		Title:        title,
		Thumbnail:    bestThumbnail(info),
		Duration:     info.Duration,
		ViewCount:    info.ViewCount,
		VideoFormats: video,
		AudioFormats: audio,
	}
}

// withEstimatedSize fills Filesize from bitrate and duration when the engine
// did not report an actual or approximate size.
func withEstimatedSize(f Format) Format {
	if f.Filesize > 0 || f.Duration <= 0 {
		return f
	}
	bitrate := f.TBR
	if bitrate == 0 {
		bitrate = f.ABR
	}
	if bitrate == 0 {
		bitrate = f.VBR
	}
	if bitrate > 0 {
		f.Filesize = int64(bitrate * 1000 / 8 * f.Duration)
	}
	return f
}

// dedupeByID keeps one entry per format id. Later duplicates overwrite
// earlier ones, matching the engine's own listing semantics.
func dedupeByID(formats []Format) []Format {
	index := make(map[string]int, len(formats))
	out := formats[:0]
	for _, f := range formats {
		if f.FormatID == "" {
			continue
		}
		if i, ok := index[f.FormatID]; ok {
			out[i] = f
			continue
		}
		index[f.FormatID] = len(out)
		out = append(out, f)
	}
	return out
}

func bestThumbnail(info RawInfo) string {
	if info.Thumbnail != "" {
		return info.Thumbnail
	}
	best := -1
	for i, t := range info.Thumbnails {
		if best < 0 ||
			t.Height > info.Thumbnails[best].Height ||
			(t.Height == info.Thumbnails[best].Height && t.Width > info.Thumbnails[best].Width) {
			best = i
		}
	}
	if best < 0 {
		return ""
	}
	return info.Thumbnails[best].URL
}
