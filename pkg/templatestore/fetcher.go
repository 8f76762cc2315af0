package templatestore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"image-pipeline/pkg/errdefs"
)

// fetcher downloads template archives with bounded timeouts and optional
// retries on transient failures. Every failure it returns is classified as
// TEMPLATE_DOWNLOAD_FAILED.
type fetcher struct {
	client *retryablehttp.Client
	logger *slog.Logger
}

func newFetcher(opts Options, logger *slog.Logger) *fetcher {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: opts.ConnectTimeout,
		}).DialContext,
		TLSHandshakeTimeout:   opts.ConnectTimeout,
		ResponseHeaderTimeout: opts.ReadTimeout,
	}

	client := retryablehttp.NewClient()
	client.HTTPClient = &http.Client{
		Transport: transport,
		Timeout:   opts.ReadTimeout,
	}
	client.RetryMax = opts.Retries
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.Logger = &retryLogger{logger: logger}

	return &fetcher{client: client, logger: logger}
}

// download streams the archive at url into dest. The destination file is
// created (truncated) and fully written on success; callers own cleanup on
// both paths.
func (f *fetcher) download(ctx context.Context, url, dest string) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errdefs.Wrap(errdefs.TemplateDownloadFailed, err, "invalid download URL").
			WithDetail("url", url)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return errdefs.Wrap(errdefs.TemplateDownloadFailed, err, "template download failed").
			WithDetail("url", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errdefs.Newf(errdefs.TemplateDownloadFailed, "unexpected status %s", resp.Status).
			WithDetail("url", url).
			WithDetail("status", resp.StatusCode)
	}

	out, err := os.Create(dest)
	if err != nil {
		return errdefs.Wrap(errdefs.TemplateDownloadFailed, err, "cannot create download file")
	}

	written, err := io.Copy(out, resp.Body)
	if cerr := out.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dest)
		return errdefs.Wrap(errdefs.TemplateDownloadFailed, err, "template download interrupted").
			WithDetail("url", url)
	}

	f.logger.Debug("downloaded template archive",
		"url", url,
		"bytes", written)
	return nil
}

// retryLogger adapts slog to retryablehttp's LeveledLogger.
type retryLogger struct {
	logger *slog.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...any) {
	l.logger.Error(fmt.Sprintf("download: %s", msg), keysAndValues...)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...any) {
	l.logger.Warn(fmt.Sprintf("download: %s", msg), keysAndValues...)
}

func (l *retryLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(fmt.Sprintf("download: %s", msg), keysAndValues...)
}

func (l *retryLogger) Debug(msg string, keysAndValues ...any) {
	l.logger.Debug(fmt.Sprintf("download: %s", msg), keysAndValues...)
}
