// Package templatestore implements the content-addressed template cache.
//
// Templates are ZIP packages hosted at opaque URLs, identified by
// (templateCode, versionSemver, checksumSha256). An extracted template
// lives at {cacheRoot}/{templateCode}/{versionSemver}/{checksumSha256}/ and
// counts as present iff manifest.json exists at its root. Population is
// atomic (extract into a sibling .tmp directory, then rename) and
// single-flight per key, so concurrent requests for the same template hit
// the network at most once and never observe a half-populated directory.
//
// Entries are immutable once published and are never deleted by the store.
package templatestore

import (
	"fmt"
	"regexp"
	"time"
)

const (
	// DefaultConnectTimeout bounds TCP connection establishment.
	DefaultConnectTimeout = 5 * time.Second

	// DefaultReadTimeout bounds the whole download request.
	DefaultReadTimeout = 30 * time.Second

	// manifestName is the file whose presence publishes an entry.
	manifestName = "manifest.json"

	// checksumChunkSize is the block size for streaming SHA-256
	// computation over the downloaded archive.
	checksumChunkSize = 4 * 1024
)

var (
	semverRe   = regexp.MustCompile(`^\d+\.\d+\.\d+$`)
	checksumRe = regexp.MustCompile(`^[0-9a-f]{64}$`)
)

// Key is the content address of a cache entry. Two keys differing only in
// checksum are distinct entries.
type Key struct {
	TemplateCode   string
	VersionSemver  string
	ChecksumSHA256 string
}

// String returns the single-flight lock key,
// {templateCode}:{versionSemver}:{checksumSha256}.
func (k Key) String() string {
	return k.TemplateCode + ":" + k.VersionSemver + ":" + k.ChecksumSHA256
}

// Validate checks the key's shape: non-empty code, MAJOR.MINOR.PATCH
// version, 64 lowercase hex checksum.
func (k Key) Validate() error {
	if k.TemplateCode == "" {
		return fmt.Errorf("templateCode must not be empty")
	}
	if !semverRe.MatchString(k.VersionSemver) {
		return fmt.Errorf("versionSemver must be MAJOR.MINOR.PATCH, got %q", k.VersionSemver)
	}
	if !checksumRe.MatchString(k.ChecksumSHA256) {
		return fmt.Errorf("checksumSha256 must be 64 lowercase hex characters")
	}
	return nil
}

// Options configures the download client.
type Options struct {
	// ConnectTimeout bounds TCP connect. Default: 5s.
	ConnectTimeout time.Duration

	// ReadTimeout bounds the whole request. Default: 30s.
	ReadTimeout time.Duration

	// Retries is the number of extra download attempts after a failure.
	// 0 means a single attempt.
	Retries int
}

// WithDefaults returns a copy of the options with defaults applied.
func (o Options) WithDefaults() Options {
	if o.ConnectTimeout == 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	if o.ReadTimeout == 0 {
		o.ReadTimeout = DefaultReadTimeout
	}
	return o
}

// Result is a successful resolution.
type Result struct {
	// Dir is the absolute path of the extracted template directory.
	Dir string

	// Downloaded is true when this call populated the cache, false on a
	// cache hit.
	Downloaded bool
}
