package pipeline

import (
	"errors"
	"fmt"

	"recipebot/internal/acquire"
)

// Kind classifies how a request ended.
type Kind string

const (
	KindDelivered           Kind = "delivered"
	KindUnsupportedURL      Kind = "unsupported_url"
	KindDownloadFailed      Kind = "download_failed"
	KindDurationExceeded    Kind = "duration_exceeded"
	KindTranscodeFailed     Kind = "transcode_failed"
	KindVideoTooLarge       Kind = "video_too_large"
	KindDeliveryFailed      Kind = "delivery_failed"
	KindTranscriptionFailed Kind = "transcription_failed"
	KindSynthesisFailed     Kind = "synthesis_failed"
	KindNoRecipeExtracted   Kind = "no_recipe"
	KindQuotaExhausted      Kind = "quota_exhausted"
	KindConcurrentBusy      Kind = "busy"
	KindInternal            Kind = "internal"
)

// Structural reports whether the kind aborts the request.
func (k Kind) Structural() bool {
	switch k {
	case KindDelivered, KindTranscriptionFailed, KindSynthesisFailed, KindNoRecipeExtracted:
		return false
	default:
		return true
	}
}

// Failure is an aborted request.
type Failure struct {
	Kind Kind
	// Download is set for KindDownloadFailed.
	Download acquire.Kind
	Stage    string
	Detail   string
	Err      error
}

func (f *Failure) Error() string {
	msg := string(f.Kind)
	if f.Kind == KindDownloadFailed {
		msg = fmt.Sprintf("%s(%s)", msg, f.Download)
	}
	if f.Stage != "" {
		msg = f.Stage + ": " + msg
	}
	if f.Detail != "" {
		msg += ": " + f.Detail
	}
	return msg
}

func (f *Failure) Unwrap() error { return f.Err }

// ErrorKind exposes the classification.
func (f *Failure) ErrorKind() Kind { return f.Kind }

// KindOf returns the Kind carried by err, KindDelivered for nil and
// KindInternal for anything unclassified.
func KindOf(err error) Kind {
	if err == nil {
		return KindDelivered
	}
	var failure *Failure
	if errors.As(err, &failure) {
		return failure.Kind
	}
	return KindInternal
}

func fail(kind Kind, stage string, err error) *Failure {
	failure := &Failure{Kind: kind, Stage: stage, Err: err}
	if err != nil {
		failure.Detail = err.Error()
	}
	return failure
}

// fetchFailure maps an acquisition error onto the taxonomy.
func fetchFailure(stage string, err error) *Failure {
	var acqErr *acquire.Error
	if errors.As(err, &acqErr) {
		if acqErr.Kind == acquire.KindUnsupportedURL {
			return &Failure{Kind: KindUnsupportedURL, Stage: stage, Detail: acqErr.Detail, Err: err}
		}
		return &Failure{Kind: KindDownloadFailed, Download: acqErr.Kind, Stage: stage, Detail: acqErr.Detail, Err: err}
	}
	return &Failure{Kind: KindDownloadFailed, Download: acquire.KindUnknown, Stage: stage, Detail: err.Error(), Err: err}
}
