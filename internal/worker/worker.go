// Package worker runs one download/convert task to its terminal status. One
// worker invocation owns all writes for its task id; everything funnels
// through the registry's single write path.
package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"mediagrab/internal/domain"
	"mediagrab/internal/engine"
	"mediagrab/internal/i18n"
	"mediagrab/internal/naming"
	"mediagrab/internal/proxy"
	"mediagrab/internal/registry"
	"mediagrab/internal/selector"
)

// Stage percentages. Raw transfer progress is rescaled into [0,90]; the
// finalization stages take the rest.
const (
	pctStarting     = 5
	pctPlanChosen   = 10
	transferScale   = 0.9
	pctTransferDone = 90
	pctPostStarted  = 90.1
	pctPostRunning  = 95
	pctPostFinished = 99.9
	pctComplete     = 100
)

var ansiRe = regexp.MustCompile(`\x1b\[[0-9;]*m`)

var errArtifactMissing = errors.New("converted file not found")

// Request carries the accepted download parameters for one task.
type Request struct {
	URL          string
	MediaType    string // "video" or "audio"
	FormatType   string
	Quality      string
	FPS          float64
	AudioQuality string
}

type Worker struct {
	registry *registry.Registry
	engine   engine.Engine
	proxy    *proxy.Selector
	tempDir  string
	logger   *logrus.Logger
}

func New(reg *registry.Registry, eng engine.Engine, proxySel *proxy.Selector, tempDir string, logger *logrus.Logger) *Worker {
	if logger == nil {
		logger = logrus.New()
	}
	return &Worker{
		registry: reg,
		engine:   eng,
		proxy:    proxySel,
		tempDir:  tempDir,
		logger:   logger,
	}
}

// Run executes one task to completion or failure. It is spawned on its own
// goroutine per accepted task and never reports back to the caller: every
// fault ends as an error report on the task itself, so a task can never be
// left stuck in a non-terminal status by a dead worker.
func (w *Worker) Run(ctx context.Context, taskID, lang string, req Request) {
	defer func() {
		if rec := recover(); rec != nil {
			w.logger.WithField("task_id", taskID).Errorf("worker panic: %v\n%s", rec, debug.Stack())
			w.registry.Report(taskID, registry.Update{
				Message: i18n.T(lang, "unknown_critical_error", nil),
				Status:  domain.TaskStatusError,
			})
		}
	}()

	if err := w.run(ctx, taskID, lang, req); err != nil {
		w.fail(taskID, lang, err)
	}
}

func (w *Worker) run(ctx context.Context, taskID, lang string, req Request) error {
	url := w.proxy.NormalizeURL(req.URL)
	proxyURL := w.proxy.URL()

	w.registry.Report(taskID, registry.Update{
		Percentage: pctStarting,
		Message:    i18n.T(lang, "analyzing_media_info", nil),
		Status:     domain.TaskStatusStarting,
	})

	info, err := w.engine.ExtractInfo(ctx, url, engine.InfoOptions{Proxy: proxyURL})
	if err != nil {
		return err
	}

	// Report the intended name early so a client polling before completion
	// already sees it.
	cleanTitle := naming.CleanTitle(info.Title, info.ExtractorKey, info.Description)
	downloadName := naming.SanitizeFilename(cleanTitle) + "." + req.FormatType
	w.registry.Report(taskID, registry.Update{DownloadName: downloadName})

	stem := fmt.Sprintf("%s_%d", taskID, time.Now().Unix())
	plan := w.buildPlan(taskID, lang, info.Formats, req)

	opts := engine.DownloadOptions{
		OutputTemplate:    filepath.Join(w.tempDir, stem+"_%(title)s.%(ext)s"),
		Format:            plan.Format,
		MergeOutputFormat: plan.MergeOutputFormat,
		RecodeFormat:      plan.RecodeFormat,
		ConvertorArgs:     plan.ConvertorArgs,
		ExtractAudio:      plan.ExtractAudio,
		AudioFormat:       plan.AudioFormat,
		AudioQuality:      plan.AudioQuality,
		EmbedMetadata:     plan.EmbedMetadata,
		Proxy:             proxyURL,
		OnTransfer:        w.transferHook(taskID, lang),
		OnPostprocess:     w.postprocessHook(taskID, lang),
	}

	if err := w.engine.Download(ctx, url, opts); err != nil {
		return err
	}

	finalPath, err := w.resolveArtifact(taskID, stem)
	if err != nil {
		return err
	}

	displayName := naming.SanitizeFilename(naming.StripStem(filepath.Base(finalPath), stem))
	if displayName == "" {
		displayName = downloadName
	}

	w.registry.Report(taskID, registry.Update{
		Percentage:   pctComplete,
		Message:      i18n.T(lang, "download_complete_ready", nil),
		Status:       domain.TaskStatusComplete,
		Filepath:     finalPath,
		DownloadName: displayName,
	})
	return nil
}

func (w *Worker) buildPlan(taskID, lang string, formats []domain.Format, req Request) selector.Plan {
	if req.MediaType == "audio" {
		w.registry.Report(taskID, registry.Update{
			Percentage: pctPlanChosen,
			Message:    i18n.T(lang, "starting_audio_extraction", nil),
		})
		return selector.AudioPlan(req.FormatType, req.Quality)
	}

	plan := selector.VideoPlan(formats, req.FormatType, req.Quality, req.FPS, req.AudioQuality)
	if plan.Remux {
		w.registry.Report(taskID, registry.Update{
			Percentage: pctPlanChosen,
			Message:    i18n.T(lang, "compatible_"+req.FormatType+"_streams_found", nil),
		})
	} else {
		w.registry.Report(taskID, registry.Update{
			Percentage: pctPlanChosen,
			Message:    i18n.T(lang, "no_direct_streams_converting", map[string]string{"format": req.FormatType}),
		})
	}
	return plan
}

// transferHook translates raw transfer callbacks into [0,90] progress
// reports. A garbled percentage re-reports the last known value instead of
// inventing one, so a client never sees a regression; the message still
// changes, which is intentional.
func (w *Worker) transferHook(taskID, lang string) func(engine.TransferEvent) {
	return func(ev engine.TransferEvent) {
		switch ev.Status {
		case engine.TransferDownloading:
			clean := ansiRe.ReplaceAllString(ev.PercentText, "")
			clean = strings.TrimSuffix(strings.TrimSpace(clean), "%")
			pct, err := strconv.ParseFloat(clean, 64)
			if err != nil {
				last, _ := w.registry.Snapshot(taskID)
				w.registry.Report(taskID, registry.Update{
					Percentage: last.Percentage,
					Message:    i18n.T(lang, "download_in_progress", nil),
					Status:     domain.TaskStatusDownloading,
				})
				return
			}

			speedStr := ev.SpeedText
			if ev.SpeedBps > 0 {
				speedStr = fmt.Sprintf("%.2f Mbps", ev.SpeedBps*8/1e6)
			} else if speedStr == "" {
				speedStr = "N/A"
			}

			w.registry.Report(taskID, registry.Update{
				Percentage: pct * transferScale,
				Message: i18n.T(lang, "downloading_progress", map[string]string{
					"percentage": fmt.Sprintf("%.1f", pct),
					"speed":      speedStr,
				}),
				Status: domain.TaskStatusDownloading,
			})
		case engine.TransferFinished:
			w.registry.Report(taskID, registry.Update{
				Percentage: pctTransferDone,
				Message:    i18n.T(lang, "download_complete_preparing", nil),
				Filepath:   ev.Filename,
			})
		}
	}
}

func (w *Worker) postprocessHook(taskID, lang string) func(engine.PostprocessEvent) {
	return func(ev engine.PostprocessEvent) {
		switch ev.Status {
		case engine.PostStarted:
			w.registry.Report(taskID, registry.Update{
				Percentage: pctPostStarted,
				Message:    i18n.T(lang, "starting_finalization", map[string]string{"processor": ev.Processor}),
				Status:     domain.TaskStatusProcessing,
			})
		case engine.PostRunning:
			w.registry.Report(taskID, registry.Update{
				Percentage: pctPostRunning,
				Message:    i18n.T(lang, "finalizing_file", map[string]string{"processor": ev.Processor}),
				Status:     domain.TaskStatusProcessing,
			})
		case engine.PostFinished:
			w.registry.Report(taskID, registry.Update{
				Percentage: pctPostFinished,
				Message:    i18n.T(lang, "finalization_complete", nil),
				Filepath:   ev.Filepath,
			})
		}
	}
}

// resolveArtifact locates the produced file. The path captured by the
// postprocessing-finished callback wins when it exists on disk; otherwise a
// directory scan for the task's unique stem covers engine/container
// combinations that never fire that callback. The scan matches by filename
// prefix and is inherently racy, which is why it is the fallback and not the
// primary mechanism.
func (w *Worker) resolveArtifact(taskID, stem string) (string, error) {
	snap, _ := w.registry.Snapshot(taskID)
	if snap.FinalFilepath != "" {
		if _, err := os.Stat(snap.FinalFilepath); err == nil {
			return snap.FinalFilepath, nil
		}
	}

	entries, err := os.ReadDir(w.tempDir)
	if err != nil {
		return "", fmt.Errorf("scan temp dir: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), stem) {
			return filepath.Join(w.tempDir, entry.Name()), nil
		}
	}
	return "", errArtifactMissing
}

// fail converts a worker-side fault into the task's terminal error report,
// classified per the error taxonomy. Failures never propagate past the task.
func (w *Worker) fail(taskID, lang string, err error) {
	logger := w.logger.WithField("task_id", taskID)

	var msg string
	switch {
	case errors.Is(err, errArtifactMissing):
		msg = i18n.T(lang, "converted_file_not_found", nil)
		logger.Errorf("artifact missing: %v", err)
	case engine.IsUnsupportedURL(err):
		msg = i18n.T(lang, "unsupported_link", nil)
		logger.Errorf("unsupported url: %v", err)
	case engine.IsDownloadError(err):
		msg = i18n.T(lang, "download_error_check_url", nil)
		logger.Errorf("engine failure: %v", err)
	default:
		msg = i18n.T(lang, "unknown_critical_error", nil)
		logger.Errorf("unexpected worker failure: %v\n%s", err, debug.Stack())
	}

	w.registry.Report(taskID, registry.Update{
		Message: msg,
		Status:  domain.TaskStatusError,
	})
}
