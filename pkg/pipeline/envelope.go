package pipeline

import (
	"image-pipeline/pkg/errdefs"
)

// Stage names of the processing sequence. A stage appears in
// timing.steps only if it was entered.
const (
	StageTemplateResolve = "TEMPLATE_RESOLVE"
	StageManifestLoad    = "MANIFEST_LOAD"
	StageRender          = "RENDER"
	StageStore           = "STORE"
)

// Note codes emitted on the envelope's append-only notes channel.
const (
	NoteTemplateCached     = "TEMPLATE_CACHED"
	NoteTemplateDownloaded = "TEMPLATE_DOWNLOADED"
	NotePreviewEqualsFinal = "PREVIEW_EQUALS_FINAL"
	NoteRulesLoaded        = "RULES_LOADED"
	NoteRulesDefaultUsed   = "RULES_DEFAULT_USED"
)

// Note is one structured observation about a job. Notes are informational
// and never change the job outcome.
type Note struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Detail  map[string]any `json:"detail,omitempty"`
}

// Step records how long one entered stage took.
type Step struct {
	Name string `json:"name"`
	Ms   int64  `json:"ms"`
}

// Timing is the per-job timing breakdown.
type Timing struct {
	TotalMs int64  `json:"totalMs"`
	Steps   []Step `json:"steps"`
}

// TemplateInfo identifies the template a job rendered.
type TemplateInfo struct {
	TemplateCode    string `json:"templateCode"`
	VersionSemver   string `json:"versionSemver"`
	ManifestVersion int    `json:"manifestVersion"`
}

// Outputs holds the public URLs of a successful job.
type Outputs struct {
	PreviewURL string `json:"previewUrl"`
	FinalURL   string `json:"finalUrl"`
}

// ErrorInfo is the failure half of the envelope: a code from the closed
// taxonomy, a short stable message and a retry hint.
type ErrorInfo struct {
	Code      errdefs.Code   `json:"code"`
	Message   string         `json:"message"`
	Retryable bool           `json:"retryable"`
	Detail    map[string]any `json:"detail,omitempty"`
}

// Result is the JobResult envelope returned for every processed request,
// success or failure. OK is true iff Outputs.FinalURL is non-empty.
type Result struct {
	OK       bool          `json:"ok"`
	JobID    string        `json:"jobId"`
	Template *TemplateInfo `json:"template,omitempty"`
	Outputs  *Outputs      `json:"outputs,omitempty"`
	Error    *ErrorInfo    `json:"error,omitempty"`
	Timing   Timing        `json:"timing"`
	Warnings []string      `json:"warnings"`
	Notes    []Note        `json:"notes"`
}
