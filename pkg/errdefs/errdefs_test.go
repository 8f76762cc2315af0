package errdefs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryableCodes(t *testing.T) {
	retryable := map[Code]bool{
		TemplateDownloadFailed:   true,
		TemplateChecksumMismatch: false,
		TemplateExtractError:     false,
		TemplateInvalid:          false,
		ManifestLoadError:        false,
		ManifestInvalid:          false,
		AssetNotFound:            false,
		RenderFailed:             false,
		StoreFailed:              true,
		Internal:                 false,
	}

	for code, want := range retryable {
		assert.Equal(t, want, code.Retryable(), "code %s", code)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(TemplateDownloadFailed, cause, "download failed")

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "TEMPLATE_DOWNLOAD_FAILED")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestWithDetail(t *testing.T) {
	err := New(TemplateChecksumMismatch, "checksum mismatch").
		WithDetail("expected", "aa").
		WithDetail("actual", "bb")

	assert.Equal(t, "aa", err.Detail["expected"])
	assert.Equal(t, "bb", err.Detail["actual"])
}

func TestConvertPassesThroughClassified(t *testing.T) {
	original := New(AssetNotFound, "background missing")

	converted := Convert(original)
	assert.Same(t, original, converted)

	// Still found when wrapped by a plain error.
	wrapped := fmt.Errorf("stage failed: %w", original)
	converted = Convert(wrapped)
	assert.Same(t, original, converted)
}

func TestConvertMapsUnknownToInternal(t *testing.T) {
	converted := Convert(errors.New("index out of range"))

	require.NotNil(t, converted)
	assert.Equal(t, Internal, converted.Code)
	assert.Equal(t, "internal error", converted.Message)
	assert.False(t, converted.Retryable())
}

func TestConvertNil(t *testing.T) {
	assert.Nil(t, Convert(nil))
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, RenderFailed, GetCode(New(RenderFailed, "boom")))
	assert.Equal(t, Internal, GetCode(errors.New("plain")))
	assert.True(t, IsRetryable(New(StoreFailed, "disk full")))
	assert.False(t, IsRetryable(errors.New("plain")))
}
