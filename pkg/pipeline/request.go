package pipeline

import (
	"path/filepath"
	"regexp"

	"image-pipeline/pkg/errdefs"
)

var checksumRe = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Request is the body of POST /pipeline/v2/process.
type Request struct {
	TemplateCode   string `json:"templateCode"`
	VersionSemver  string `json:"versionSemver"`
	DownloadURL    string `json:"downloadUrl"`
	ChecksumSHA256 string `json:"checksumSha256"`
	RawPath        string `json:"rawPath"`
}

// Validate checks the request shape. Shape violations stay inside the
// closed taxonomy as INTERNAL_ERROR with the offending field named in the
// detail.
func (r Request) Validate() error {
	switch {
	case r.TemplateCode == "":
		return badRequest("templateCode", "must not be empty")
	case r.VersionSemver == "":
		return badRequest("versionSemver", "must not be empty")
	case r.DownloadURL == "":
		return badRequest("downloadUrl", "must not be empty")
	case !checksumRe.MatchString(r.ChecksumSHA256):
		return badRequest("checksumSha256", "must be 64 lowercase hex characters")
	case r.RawPath == "":
		return badRequest("rawPath", "must not be empty")
	case !filepath.IsAbs(r.RawPath):
		return badRequest("rawPath", "must be an absolute path")
	}
	return nil
}

func badRequest(field, message string) error {
	return errdefs.Newf(errdefs.Internal, "invalid request: %s %s", field, message).
		WithDetail("field", field)
}
