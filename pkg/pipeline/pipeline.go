// Package pipeline orchestrates one image-composition job: template
// resolve, manifest load, render, store. Every request yields a Result
// envelope; errors never propagate past this package.
package pipeline

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"time"

	"image-pipeline/pkg/errdefs"
	"image-pipeline/pkg/manifest"
	"image-pipeline/pkg/metrics"
	"image-pipeline/pkg/render"
	"image-pipeline/pkg/storage"
	"image-pipeline/pkg/templatestore"
)

// Pipeline wires the stage components together. Safe for concurrent use;
// all per-job state lives in the job value.
type Pipeline struct {
	templates *templatestore.Store
	storage   *storage.Store
	engine    *render.Engine
	metrics   *metrics.Pipeline
	logger    *slog.Logger
}

// New creates a pipeline. The metrics instrument set may be nil, in which
// case nothing is recorded.
func New(templates *templatestore.Store, store *storage.Store, engine *render.Engine, m *metrics.Pipeline, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		templates: templates,
		storage:   store,
		engine:    engine,
		metrics:   m,
		logger:    logger.With("component", "pipeline"),
	}
}

// job accumulates the envelope of one request.
type job struct {
	id      string
	started time.Time
	steps   []Step
	notes   []Note
}

func (j *job) note(code, message string, detail map[string]any) {
	j.notes = append(j.notes, Note{Code: code, Message: message, Detail: detail})
}

// Process runs the full stage sequence for one request and always returns
// an envelope: failures are classified, never raised.
func (p *Pipeline) Process(ctx context.Context, req Request) *Result {
	j := &job{
		id:      newJobID(),
		started: time.Now(),
		steps:   []Step{},
		notes:   []Note{},
	}
	if p.metrics != nil {
		p.metrics.InFlight.Inc()
		defer p.metrics.InFlight.Dec()
	}

	logger := p.logger.With("jobId", j.id)
	logger.Info("processing request",
		"templateCode", req.TemplateCode,
		"versionSemver", req.VersionSemver)

	result := p.run(ctx, j, req, logger)

	result.Timing = Timing{
		TotalMs: time.Since(j.started).Milliseconds(),
		Steps:   j.steps,
	}
	if p.metrics != nil {
		p.metrics.RequestDuration.Observe(time.Since(j.started).Seconds())
		code := "OK"
		if result.Error != nil {
			code = string(result.Error.Code)
		}
		p.metrics.RequestsTotal.WithLabelValues(code).Inc()
	}
	return result
}

func (p *Pipeline) run(ctx context.Context, j *job, req Request, logger *slog.Logger) *Result {
	if err := req.Validate(); err != nil {
		return p.fail(j, "request validation", err, logger)
	}

	// TEMPLATE_RESOLVE
	var resolved templatestore.Result
	err := p.timed(j, StageTemplateResolve, func() error {
		var err error
		resolved, err = p.templates.Resolve(ctx, req.TemplateCode, req.VersionSemver, req.DownloadURL, req.ChecksumSHA256)
		return err
	})
	if err != nil {
		return p.fail(j, StageTemplateResolve, err, logger)
	}
	if resolved.Downloaded {
		j.note(NoteTemplateDownloaded, "template package downloaded", nil)
		if p.metrics != nil {
			p.metrics.TemplateDownloads.Inc()
		}
	} else {
		j.note(NoteTemplateCached, "template served from cache", nil)
		if p.metrics != nil {
			p.metrics.TemplateCacheHits.Inc()
		}
	}

	// MANIFEST_LOAD
	var spec *manifest.RuntimeSpec
	loader := manifest.NewLoader(resolved.Dir, logger)
	err = p.timed(j, StageManifestLoad, func() error {
		doc, err := loader.Load()
		if err != nil {
			return err
		}
		if err := manifest.Validate(doc); err != nil {
			return err
		}
		spec = loader.RuntimeSpec(doc)
		if err := manifest.ValidateAssets(spec); err != nil {
			return err
		}

		rules := loader.LoadRules(doc)
		if rules.Loaded {
			j.note(NoteRulesLoaded, "template rules loaded", nil)
		} else {
			j.note(NoteRulesDefaultUsed, "built-in default rules in effect", nil)
		}
		return nil
	})
	if err != nil {
		return p.fail(j, StageManifestLoad, err, logger)
	}

	// RENDER
	var rendered *image.RGBA
	err = p.timed(j, StageRender, func() error {
		raw, err := decodeRaw(req.RawPath)
		if err != nil {
			return err
		}
		rendered, err = p.engine.Render(spec, raw, render.Artifacts{})
		return err
	})
	if err != nil {
		return p.fail(j, StageRender, err, logger)
	}

	// STORE
	var preview, final storage.Stored
	err = p.timed(j, StageStore, func() error {
		var err error
		if preview, err = p.storage.Store(storage.KindPreview, j.id, rendered, spec.Output.Format); err != nil {
			return err
		}
		final, err = p.storage.Store(storage.KindFinal, j.id, rendered, spec.Output.Format)
		return err
	})
	if err != nil {
		return p.fail(j, StageStore, err, logger)
	}
	// Preview and final are currently the same bytes.
	j.note(NotePreviewEqualsFinal, "preview output equals final output", nil)

	logger.Info("request processed",
		"templateCode", spec.TemplateCode,
		"finalUrl", final.URL)

	return &Result{
		OK:    true,
		JobID: j.id,
		Template: &TemplateInfo{
			TemplateCode:    spec.TemplateCode,
			VersionSemver:   spec.VersionSemver,
			ManifestVersion: spec.ManifestVersion,
		},
		Outputs: &Outputs{
			PreviewURL: preview.URL,
			FinalURL:   final.URL,
		},
		Warnings: []string{},
		Notes:    j.notes,
	}
}

// timed runs fn as the named stage and appends its duration to
// timing.steps. Entered stages are recorded on success and failure alike.
func (p *Pipeline) timed(j *job, stage string, fn func() error) error {
	begin := time.Now()
	err := fn()
	elapsed := time.Since(begin)

	j.steps = append(j.steps, Step{Name: stage, Ms: elapsed.Milliseconds()})
	if p.metrics != nil {
		p.metrics.ObserveStage(stage, elapsed)
	}
	return err
}

// fail classifies err and builds the failure envelope, noting which stage
// gave up.
func (p *Pipeline) fail(j *job, stage string, err error, logger *slog.Logger) *Result {
	classified := errdefs.Convert(err)
	j.note(string(classified.Code), fmt.Sprintf("stage %s failed", stage), classified.Detail)

	logger.Warn("request failed",
		"stage", stage,
		"code", classified.Code,
		"error", err)

	return &Result{
		OK:    false,
		JobID: j.id,
		Error: &ErrorInfo{
			Code:      classified.Code,
			Message:   classified.Message,
			Retryable: classified.Retryable(),
			Detail:    classified.Detail,
		},
		Warnings: []string{},
		Notes:    j.notes,
	}
}

// decodeRaw decodes the raw image named by the request. Any failure,
// including a missing file, is RENDER_FAILED.
func decodeRaw(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.RenderFailed, err, "cannot open raw image").
			WithDetail("rawPath", path)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.RenderFailed, err, "cannot decode raw image").
			WithDetail("rawPath", path)
	}
	return img, nil
}

// newJobID returns "job_" + unix millis + "_" + 8 random hex characters.
func newJobID() string {
	var buf [4]byte
	_, _ = rand.Read(buf[:])
	return fmt.Sprintf("job_%d_%s", time.Now().UnixMilli(), hex.EncodeToString(buf[:]))
}
