package pipeline

import (
	"image-pipeline/pkg/errdefs"
)

// Failure builds a standalone failure envelope for errors raised before a
// request ever reaches Process, such as an unreadable request body. The
// envelope gets its own job id and empty timing.
func Failure(err error) *Result {
	classified := errdefs.Convert(err)
	return &Result{
		OK:    false,
		JobID: newJobID(),
		Error: &ErrorInfo{
			Code:      classified.Code,
			Message:   classified.Message,
			Retryable: classified.Retryable(),
			Detail:    classified.Detail,
		},
		Timing:   Timing{Steps: []Step{}},
		Warnings: []string{},
		Notes:    []Note{},
	}
}
