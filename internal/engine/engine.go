// Package engine defines the contract with the external extraction and
// conversion tool. The core only depends on this callback surface; the tool
// itself (a yt-dlp subprocess) is an external collaborator.
package engine

import (
	"context"
	"errors"
	"strings"

	"mediagrab/internal/domain"
)

// Transfer callback statuses.
const (
	TransferDownloading = "downloading"
	TransferFinished    = "finished"
)

// Postprocessing callback statuses.
const (
	PostStarted  = "started"
	PostRunning  = "running"
	PostFinished = "finished"
)

// TransferEvent is one raw byte-transfer progress callback. PercentText is
// the engine's own formatting, scaled by the engine to [0,100] for the
// transfer sub-phase; it may carry ANSI color codes and is not guaranteed to
// parse.
type TransferEvent struct {
	Status      string
	PercentText string
	SpeedBps    float64 // bytes per second, 0 when the engine could not measure
	SpeedText   string  // engine-formatted fallback
	Filename    string
}

// PostprocessEvent is one postprocessing-stage callback. Filepath is only set
// on the finished event and names the definitive output file.
type PostprocessEvent struct {
	Status    string
	Processor string
	Filepath  string
}

type InfoOptions struct {
	Proxy string
}

// DownloadOptions carries the selection plan and the two callback categories
// for one blocking download/convert run.
type DownloadOptions struct {
	OutputTemplate    string
	Format            string
	MergeOutputFormat string

	RecodeFormat  string
	ConvertorArgs []string

	ExtractAudio  bool
	AudioFormat   string
	AudioQuality  string
	EmbedMetadata bool

	Proxy string

	OnTransfer    func(TransferEvent)
	OnPostprocess func(PostprocessEvent)
}

// Engine resolves a source's available formats and runs the blocking
// download/convert call, invoking the registered callbacks as it goes.
type Engine interface {
	ExtractInfo(ctx context.Context, url string, opts InfoOptions) (*domain.RawInfo, error)
	Download(ctx context.Context, url string, opts DownloadOptions) error
}

// DownloadError is a classified engine failure carrying the tool's own
// diagnostic output.
type DownloadError struct {
	Output string
}

func (e *DownloadError) Error() string {
	return "engine: " + e.Output
}

// IsDownloadError reports whether err originated in the engine (as opposed to
// an unexpected fault in the worker itself).
func IsDownloadError(err error) bool {
	var de *DownloadError
	return errors.As(err, &de)
}

// IsUnsupportedURL reports whether the engine rejected the link outright
// rather than failing mid-transfer.
func IsUnsupportedURL(err error) bool {
	var de *DownloadError
	return errors.As(err, &de) && strings.Contains(de.Output, "Unsupported URL")
}
