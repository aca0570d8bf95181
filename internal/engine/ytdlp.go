package engine

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"mediagrab/internal/domain"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36"

// Progress lines are emitted on stdout with these markers so they can be told
// apart from the tool's other output.
const (
	transferMarker    = "MG-DL|"
	postprocessMarker = "MG-PP|"

	transferTemplate    = "download:" + transferMarker + "%(progress.status)s|%(progress._percent_str)s|%(progress.speed)s|%(progress._speed_str)s|%(progress.filename)s"
	postprocessTemplate = "postprocess:" + postprocessMarker + "%(progress.status)s|%(progress.postprocessor)s|%(info.filepath)s"
)

type YtDlpConfig struct {
	Bin              string
	SocketTimeout    int
	Retries          int
	ExtractorRetries int
	UserAgent        string
	Logger           *logrus.Logger
}

// YtDlp drives the yt-dlp binary as a subprocess. Metadata extraction uses the
// JSON dump mode; downloads stream templated progress lines that are parsed
// into the two callback categories. Transient network retries are the tool's
// own policy, configured here but not reimplemented.
type YtDlp struct {
	cfg YtDlpConfig
}

func NewYtDlp(cfg YtDlpConfig) *YtDlp {
	if cfg.Bin == "" {
		cfg.Bin = "yt-dlp"
	}
	if cfg.SocketTimeout <= 0 {
		cfg.SocketTimeout = 30
	}
	if cfg.Retries <= 0 {
		cfg.Retries = 10
	}
	if cfg.ExtractorRetries <= 0 {
		cfg.ExtractorRetries = 3
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &YtDlp{cfg: cfg}
}

func (y *YtDlp) commonArgs(opts ...string) []string {
	args := []string{
		"--no-playlist",
		"--no-colors",
		"--socket-timeout", strconv.Itoa(y.cfg.SocketTimeout),
		"--retries", strconv.Itoa(y.cfg.Retries),
		"--extractor-retries", strconv.Itoa(y.cfg.ExtractorRetries),
		"--user-agent", y.cfg.UserAgent,
	}
	return append(args, opts...)
}

func (y *YtDlp) ExtractInfo(ctx context.Context, url string, opts InfoOptions) (*domain.RawInfo, error) {
	args := y.commonArgs("--dump-single-json", "--skip-download")
	if opts.Proxy != "" {
		args = append(args, "--proxy", opts.Proxy)
	}
	args = append(args, url)

	cmd := exec.CommandContext(ctx, y.cfg.Bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	y.cfg.Logger.Debugf("extracting metadata: %s %s", y.cfg.Bin, strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		out := diagnostic(stderr.String(), err)
		y.cfg.Logger.Errorf("metadata extraction failed for %s: %s", url, out)
		return nil, &DownloadError{Output: out}
	}

	var raw rawInfoJSON
	if err := json.Unmarshal(stdout.Bytes(), &raw); err != nil {
		return nil, fmt.Errorf("decode info json: %w", err)
	}
	info := raw.toDomain()
	return &info, nil
}

func (y *YtDlp) Download(ctx context.Context, url string, opts DownloadOptions) error {
	args := y.buildDownloadArgs(url, opts)

	y.cfg.Logger.Debugf("starting download: %s %s", y.cfg.Bin, strings.Join(args, " "))
	cmd := exec.CommandContext(ctx, y.cfg.Bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("engine stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		y.dispatchLine(scanner.Text(), opts)
	}

	if err := cmd.Wait(); err != nil {
		out := diagnostic(stderr.String(), err)
		y.cfg.Logger.Errorf("download failed for %s: %s", url, out)
		return &DownloadError{Output: out}
	}
	return nil
}

func (y *YtDlp) buildDownloadArgs(url string, opts DownloadOptions) []string {
	args := y.commonArgs(
		"--newline",
		"--progress",
		"--progress-template", transferTemplate,
		"--progress-template", postprocessTemplate,
		"-o", opts.OutputTemplate,
	)
	if opts.Format != "" {
		args = append(args, "-f", opts.Format)
	}
	if opts.MergeOutputFormat != "" {
		args = append(args, "--merge-output-format", opts.MergeOutputFormat)
	}
	if opts.RecodeFormat != "" {
		args = append(args, "--recode-video", opts.RecodeFormat)
		if len(opts.ConvertorArgs) > 0 {
			args = append(args, "--postprocessor-args", "VideoConvertor:"+strings.Join(opts.ConvertorArgs, " "))
		}
	}
	if opts.ExtractAudio {
		args = append(args, "-x", "--audio-format", opts.AudioFormat)
		if opts.AudioQuality != "" {
			args = append(args, "--audio-quality", opts.AudioQuality)
		}
	}
	if opts.EmbedMetadata {
		args = append(args, "--embed-metadata")
	}
	if opts.Proxy != "" {
		args = append(args, "--proxy", opts.Proxy)
	}
	return append(args, url)
}

func (y *YtDlp) dispatchLine(line string, opts DownloadOptions) {
	switch {
	case strings.HasPrefix(line, transferMarker):
		if ev, ok := parseTransferLine(line); ok && opts.OnTransfer != nil {
			opts.OnTransfer(ev)
		}
	case strings.HasPrefix(line, postprocessMarker):
		if ev, ok := parsePostprocessLine(line); ok && opts.OnPostprocess != nil {
			opts.OnPostprocess(ev)
		}
	}
}

func parseTransferLine(line string) (TransferEvent, bool) {
	parts := strings.SplitN(strings.TrimPrefix(line, transferMarker), "|", 5)
	if len(parts) != 5 {
		return TransferEvent{}, false
	}
	ev := TransferEvent{
		Status:      parts[0],
		PercentText: parts[1],
		SpeedText:   strings.TrimSpace(parts[3]),
		Filename:    parts[4],
	}
	if bps, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64); err == nil {
		ev.SpeedBps = bps
	}
	return ev, true
}

func parsePostprocessLine(line string) (PostprocessEvent, bool) {
	parts := strings.SplitN(strings.TrimPrefix(line, postprocessMarker), "|", 3)
	if len(parts) != 3 {
		return PostprocessEvent{}, false
	}
	ev := PostprocessEvent{
		Status:    parts[0],
		Processor: parts[1],
	}
	if parts[2] != "NA" {
		ev.Filepath = parts[2]
	}
	return ev, true
}

// diagnostic keeps the tail of the tool's stderr, which carries the
// classified reason ("Unsupported URL: ..." etc).
func diagnostic(stderr string, err error) string {
	out := strings.TrimSpace(stderr)
	if out == "" {
		return err.Error()
	}
	const maxLen = 2048
	if len(out) > maxLen {
		out = out[len(out)-maxLen:]
	}
	return out
}

// rawInfoJSON mirrors the subset of the tool's JSON dump the system uses.
type rawInfoJSON struct {
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	ExtractorKey string  `json:"extractor_key"`
	Thumbnail    string  `json:"thumbnail"`
	Duration     float64 `json:"duration"`
	ViewCount    int64   `json:"view_count"`
	Thumbnails   []struct {
		URL    string `json:"url"`
		Width  int    `json:"width"`
		Height int    `json:"height"`
	} `json:"thumbnails"`
	Formats []struct {
		FormatID       string  `json:"format_id"`
		Ext            string  `json:"ext"`
		Resolution     string  `json:"resolution"`
		Height         int     `json:"height"`
		FPS            float64 `json:"fps"`
		VCodec         string  `json:"vcodec"`
		ACodec         string  `json:"acodec"`
		ABR            float64 `json:"abr"`
		TBR            float64 `json:"tbr"`
		VBR            float64 `json:"vbr"`
		Filesize       int64   `json:"filesize"`
		FilesizeApprox int64   `json:"filesize_approx"`
		Duration       float64 `json:"duration"`
	} `json:"formats"`
}

func (r rawInfoJSON) toDomain() domain.RawInfo {
	info := domain.RawInfo{
		Title:        r.Title,
		Description:  r.Description,
		ExtractorKey: r.ExtractorKey,
		Thumbnail:    r.Thumbnail,
		Duration:     r.Duration,
		ViewCount:    r.ViewCount,
	}
	for _, t := range r.Thumbnails {
		info.Thumbnails = append(info.Thumbnails, domain.Thumbnail{URL: t.URL, Width: t.Width, Height: t.Height})
	}
	for _, f := range r.Formats {
		size := f.Filesize
		if size == 0 {
			size = f.FilesizeApprox
		}
		info.Formats = append(info.Formats, domain.Format{
			FormatID:   f.FormatID,
			Ext:        f.Ext,
			Resolution: f.Resolution,
			Height:     f.Height,
			FPS:        f.FPS,
			VCodec:     f.VCodec,
			ACodec:     f.ACodec,
			ABR:        f.ABR,
			TBR:        f.TBR,
			VBR:        f.VBR,
			Filesize:   size,
			Duration:   f.Duration,
		})
	}
	return info
}

var _ Engine = (*YtDlp)(nil)
