package reeldna

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/himanishpuri/ReelDNA/internal/align"
	"github.com/himanishpuri/ReelDNA/internal/archive"
	"github.com/himanishpuri/ReelDNA/internal/compare"
	"github.com/himanishpuri/ReelDNA/internal/decision"
	"github.com/himanishpuri/ReelDNA/internal/evidence"
	"github.com/himanishpuri/ReelDNA/internal/media"
	"github.com/himanishpuri/ReelDNA/internal/report"
	"github.com/himanishpuri/ReelDNA/internal/sampler"
	"github.com/himanishpuri/ReelDNA/internal/session"
	"github.com/himanishpuri/ReelDNA/pkg/logger"
	"github.com/himanishpuri/ReelDNA/pkg/models"
	"github.com/himanishpuri/ReelDNA/pkg/utils"
)

// reelService is the default implementation of the Service interface.
type reelService struct {
	config    *Config
	log       Logger
	storage   Storage
	extractor Extractor
	session   *session.Store
	sampler   *sampler.Sampler
	compare   *compare.Comparator
	reporter  *report.Dispatcher
	archiver  *archive.Archiver
	renderer  *evidence.Renderer
}

func NewService(opts ...Option) (Service, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// Set default logger if none provided
	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}
	if cfg.Extractor == nil {
		cfg.Extractor = media.NewFFmpeg(cfg.Media.FFmpegPath, cfg.Media.FFprobePath, seconds(cfg.Media.TimeoutSec))
	}

	var err error
	stor := cfg.Storage
	if stor == nil {
		stor, err = NewSQLiteStorage(cfg.Paths.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage: %w", err)
		}
	}

	var arch *archive.Archiver
	if cfg.ArchiveConfig().Enabled() {
		arch, err = archive.New(cfg.ArchiveConfig(), cfg.Logger)
		if err != nil {
			stor.Close()
			return nil, err
		}
	}

	repCfg := cfg.ReportConfig()
	return &reelService{
		config:    cfg,
		log:       cfg.Logger,
		storage:   stor,
		extractor: cfg.Extractor,
		session:   session.New(cfg.Paths.SessionDir),
		sampler:   sampler.New(cfg.Extractor, cfg.SamplerConfig(), cfg.Logger),
		compare:   compare.New(cfg.CompareConfig(), cfg.Logger),
		reporter:  report.NewDispatcher(repCfg, report.NewBuilder(repCfg, cfg.Thresholds()), cfg.Logger),
		archiver:  arch,
		renderer:  evidence.NewRenderer(cfg.EvidenceConfig(), cfg.Logger),
	}, nil
}

func (s *reelService) Config() *Config { return s.config }

func (s *reelService) duration(ctx context.Context, video string) (float64, error) {
	d, err := s.extractor.Duration(ctx, video)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrDurationUnavailable, video, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: %s reports %.2fs", ErrDurationUnavailable, video, d)
	}
	return d, nil
}

func (s *reelService) rng() *rand.Rand {
	seed := s.config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// SampleReference extracts the reference samples and anchors and persists a
// fresh session.
func (s *reelService) SampleReference(ctx context.Context, referenceVideo string) (*ReferenceRun, error) {
	s.log.Infof("Processing reference video: %s", referenceVideo)

	dur, err := s.duration(ctx, referenceVideo)
	if err != nil {
		return nil, err
	}
	s.log.Infof("Reference duration: %.2fs", dur)

	if err := os.RemoveAll(s.session.ReferenceDir()); err != nil {
		return nil, fmt.Errorf("failed to clean session: %w", err)
	}
	if err := s.session.Init(); err != nil {
		return nil, err
	}
	if err := s.session.Clean(); err != nil {
		return nil, fmt.Errorf("failed to clean session: %w", err)
	}

	res, err := s.sampler.Reference(ctx, referenceVideo, dur, s.session.ReferenceDir(), s.rng())
	if err != nil {
		return nil, err
	}
	if len(res.Samples) == 0 {
		return nil, fmt.Errorf("%w: all %d extractions failed", ErrNoReferenceSamples, res.SampleRun.Attempted())
	}

	meta, err := models.NewSessionMetadata(utils.GenerateUUID(), referenceVideo, dur, s.config.Sampling.AudioDuration,
		res.Timestamps, res.Samples, res.Anchors)
	if err != nil {
		return nil, err
	}
	if err := s.session.Save(ctx, meta); err != nil {
		return nil, err
	}
	s.log.Infof("Session %s saved to %s", meta.ID, s.session.MetadataPath())

	return &ReferenceRun{
		Metadata: meta,
		Samples:  summarize(res.SampleRun),
		Anchors:  summarize(res.AnchorRun),
	}, nil
}

// Process aligns suspectVideo with the reference described by meta and
// extracts its samples. It never persists anything.
func (s *reelService) Process(ctx context.Context, suspectVideo string, meta *models.SessionMetadata, opts ProcessOptions) (*ProcessResult, error) {
	if meta == nil || len(meta.Samples) == 0 {
		return nil, ErrNoReferenceSamples
	}
	if opts.Dir == "" {
		return nil, errors.New("process: output dir is required")
	}

	dur, err := s.duration(ctx, suspectVideo)
	if err != nil {
		return nil, err
	}
	s.log.Infof("Suspect %s duration: %.2fs", suspectVideo, dur)

	if err := utils.MakeDir(s.config.Paths.TempDir); err != nil {
		return nil, err
	}
	scratch, err := os.MkdirTemp(s.config.Paths.TempDir, "reeldna-sync-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	syncer := align.New(media.NewClipLoader(s.extractor, scratch), s.config.AlignConfig(), s.log)
	syncRes, err := syncer.EstimateOffset(ctx, meta.ReferenceVideo, suspectVideo, anchorTimes(meta))
	if err != nil {
		return nil, err
	}

	if err := utils.MakeDir(opts.Dir); err != nil {
		return nil, err
	}
	samples, sum, err := s.sampler.Recorded(ctx, suspectVideo, dur, syncRes.Offset, meta.Samples, opts.Dir)
	if err != nil {
		return nil, err
	}
	if sum.Unmapped() {
		return nil, fmt.Errorf("%w: all %d samples map outside %s (offset %.2fs, duration %.2fs)",
			ErrNoRecordedSamples, sum.Attempted(), suspectVideo, syncRes.Offset, dur)
	}

	updated, err := meta.WithRecorded(suspectVideo, dur, syncRes.Offset, samples)
	if err != nil {
		return nil, err
	}

	out := &ProcessResult{
		Metadata:   updated,
		Sync:       syncRes,
		Extraction: summarize(sum),
	}
	if len(samples) == 0 {
		w := noSamplesWarning(sum.Attempted())
		s.log.Warnf("%s: %s", suspectVideo, w)
		out.Warnings = append(out.Warnings, w)
	}
	if opts.WithVerdict {
		v, err := s.classify(ctx, updated)
		if err != nil {
			return nil, err
		}
		out.Verdict = &v
	}
	return out, nil
}

func noSamplesWarning(attempted int) string {
	return fmt.Sprintf("no recorded samples could be extracted (0 of %d), aggregates are zero", attempted)
}

func anchorTimes(meta *models.SessionMetadata) []float64 {
	times := make([]float64, len(meta.Anchors))
	for i, a := range meta.Anchors {
		times[i] = a.Timestamp
	}
	return times
}

func (s *reelService) classify(ctx context.Context, meta *models.SessionMetadata) (models.Verdict, error) {
	if meta.RecordedVideo == "" {
		return models.Verdict{}, ErrNoRecordedSamples
	}
	if len(meta.RecordedSamples) == 0 {
		s.log.Warnf("No recorded samples for %s, classifying empty comparison", meta.RecordedVideo)
	}

	sum, err := s.compare.CompareAll(ctx, meta.Samples, meta.RecordedSamples)
	if err != nil {
		return models.Verdict{}, err
	}
	if len(sum.Unmatched) > 0 {
		s.log.Infof("%d reference samples have no recorded counterpart: %v", len(sum.Unmatched), sum.Unmatched)
	}

	v := decision.Classify(sum, s.config.Thresholds())
	status := "CLEAN"
	if v.IsPirated {
		status = "PIRATED"
	}
	s.log.Infof("Verdict %s (%s): %s", status, v.Rule, v.Reason)
	return v, nil
}

// SampleRecorded aligns and samples a recording into the session itself.
func (s *reelService) SampleRecorded(ctx context.Context, recordedVideo string) (*RecordedRun, error) {
	meta, err := s.session.Load(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.session.Clean(); err != nil {
		return nil, fmt.Errorf("failed to clean session: %w", err)
	}

	pr, err := s.Process(ctx, recordedVideo, meta, ProcessOptions{Dir: s.session.RecordedDir()})
	if err != nil {
		return nil, err
	}
	if err := s.session.Save(ctx, pr.Metadata); err != nil {
		return nil, err
	}

	return &RecordedRun{
		Metadata:   pr.Metadata,
		Sync:       pr.Sync,
		Extraction: pr.Extraction,
		Warnings:   pr.Warnings,
	}, nil
}

// Compare classifies the samples already in the session and exports the verdict.
func (s *reelService) Compare(ctx context.Context) (*DetectResult, error) {
	meta, err := s.session.Load(ctx)
	if err != nil {
		return nil, err
	}
	v, err := s.classify(ctx, meta)
	if err != nil {
		return nil, err
	}
	out := &DetectResult{Sync: align.Result{Offset: meta.Offset}}
	if len(meta.RecordedSamples) == 0 {
		out.Warnings = append(out.Warnings, noSamplesWarning(len(meta.Samples)))
	}
	return s.finalize(ctx, s.session, meta, v, out)
}

// Detect runs the whole pipeline for one suspect under runs/<id>.
func (s *reelService) Detect(ctx context.Context, suspectVideo string) (*DetectResult, error) {
	meta, err := s.session.Load(ctx)
	if err != nil {
		return nil, err
	}

	id := utils.GenerateUUID()
	run := s.session.Run(id)
	s.log.Infof("Detection %s: %s", id, suspectVideo)

	pr, err := s.Process(ctx, suspectVideo, meta, ProcessOptions{Dir: run.RecordedDir(), WithVerdict: true})
	if err != nil {
		return nil, err
	}
	if err := run.Save(ctx, pr.Metadata); err != nil {
		return nil, err
	}

	return s.finalize(ctx, run, pr.Metadata, *pr.Verdict, &DetectResult{
		ID:         id,
		Sync:       pr.Sync,
		Extraction: pr.Extraction,
		Warnings:   pr.Warnings,
	})
}

// finalize exports the verdict, records it in the history, reports and
// archives it. Only the export can fail the run.
func (s *reelService) finalize(ctx context.Context, store *session.Store, meta *models.SessionMetadata, v models.Verdict, out *DetectResult) (*DetectResult, error) {
	v = v.Sanitize()
	if err := store.SaveVerdict(v); err != nil {
		return nil, fmt.Errorf("failed to export verdict: %w", err)
	}
	out.Metadata = meta
	out.Verdict = v
	out.ResultsPath = store.ResultsPath()
	s.log.Infof("Results saved to %s", out.ResultsPath)

	id, err := s.storage.SaveDetection(&models.Detection{
		ID:             out.ID,
		SessionID:      meta.ID,
		ReferenceVideo: meta.ReferenceVideo,
		SuspectVideo:   meta.RecordedVideo,
		Offset:         meta.Offset,
		Verdict:        v,
	})
	if err != nil {
		s.log.Errorf("Failed to record detection: %v", err)
	} else {
		out.ID = id
	}

	rep, err := s.reporter.Handle(ctx, v, meta.RecordedVideo)
	if err != nil {
		s.log.Errorf("Reporting incomplete: %v", err)
	}
	if rep != nil {
		out.Report = rep
		if werr := utils.WriteFileAtomic(store.NoticePath(), []byte(rep.NoticeText), 0o644); werr != nil {
			s.log.Warnf("Failed to write notice: %v", werr)
		}
		if err == nil && out.ID != "" {
			if merr := s.storage.MarkReported(out.ID); merr != nil {
				s.log.Warnf("Failed to mark %s reported: %v", out.ID, merr)
			}
		}
	}

	if s.archiver != nil && v.IsPirated {
		prefix := out.ID
		if prefix == "" {
			prefix = meta.ID
		}
		keys, err := s.archiver.Upload(ctx, prefix, evidenceItems(store, meta, v))
		if err != nil {
			s.log.Errorf("Evidence archive incomplete: %v", err)
		}
		out.Archived = keys
	}
	return out, nil
}

func evidenceItems(store *session.Store, meta *models.SessionMetadata, v models.Verdict) []archive.Item {
	items := []archive.Item{
		{Path: store.ResultsPath()},
		{Path: store.NoticePath()},
	}
	for _, r := range v.Records {
		if !r.VisualMatch {
			continue
		}
		if ref, ok := models.SampleByIndex(meta.Samples, r.Index); ok {
			items = append(items, archive.Item{Path: ref.Screenshot, Name: "reference/" + filepath.Base(ref.Screenshot)})
		}
		if rec, ok := models.SampleByIndex(meta.RecordedSamples, r.Index); ok {
			items = append(items, archive.Item{Path: rec.Screenshot, Name: "recorded/" + filepath.Base(rec.Screenshot)})
		}
	}
	return items
}

// Report re-sends the report for the verdict exported in the session.
func (s *reelService) Report(ctx context.Context) (*models.Report, error) {
	meta, err := s.session.Load(ctx)
	if err != nil {
		return nil, err
	}
	v, err := s.session.LoadVerdict()
	if err != nil {
		return nil, fmt.Errorf("no exported verdict, run detect first: %w", err)
	}
	if !v.IsPirated {
		s.log.Infof("Verdict is not pirated, nothing to report")
		return nil, nil
	}
	return s.reporter.Handle(ctx, v, meta.RecordedVideo)
}

// Evidence renders spectrogram pairs for every audio match in the session.
func (s *reelService) Evidence(ctx context.Context) ([]evidence.Pair, error) {
	meta, err := s.session.Load(ctx)
	if err != nil {
		return nil, err
	}
	v, err := s.session.LoadVerdict()
	if err != nil {
		return nil, fmt.Errorf("no exported verdict, run detect first: %w", err)
	}
	return s.renderer.RenderMatches(v.Records, meta.Samples, meta.RecordedSamples, s.session.EvidenceDir()), nil
}

func (s *reelService) Metadata(ctx context.Context) (*models.SessionMetadata, error) {
	return s.session.Load(ctx)
}

// CheckTools verifies the external media tools when the extractor supports it.
func (s *reelService) CheckTools(ctx context.Context) error {
	if c, ok := s.extractor.(interface{ CheckTools(context.Context) error }); ok {
		return c.CheckTools(ctx)
	}
	return nil
}

func (s *reelService) GetDetection(id string) (*models.Detection, error) {
	return s.storage.GetDetection(id)
}

func (s *reelService) ListDetections(limit int, piratedOnly bool) ([]models.Detection, error) {
	return s.storage.ListDetections(limit, piratedOnly)
}

func (s *reelService) DeleteDetection(id string) error {
	return s.storage.DeleteDetection(id)
}

func (s *reelService) CountDetections() (int64, error) {
	return s.storage.CountDetections()
}

// Close releases all resources held by the service.
func (s *reelService) Close() error {
	return s.storage.Close()
}
