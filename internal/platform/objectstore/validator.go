package objectstore

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/phrazzld/evaluator/internal/config"
)

// Rejection reasons reported by URL validation.
const (
	ReasonNotHTTPS   = "s3Url must be https"
	ReasonInvalidURL = "invalid URL"
)

// Check is the outcome of validating or probing a source URL.
type Check struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

func pass() Check {
	return Check{OK: true}
}

func reject(reason string) Check {
	return Check{OK: false, Reason: reason}
}

// Validator performs the syntactic source check.
type Validator struct {
	bucket string
}

// NewValidator creates a Validator. An empty bucket disables the allow-list.
func NewValidator(bucket string) *Validator {
	return &Validator{bucket: strings.TrimSpace(bucket)}
}

// ValidateURL checks that raw is an https URL addressing the allowed bucket.
func (v *Validator) ValidateURL(raw string) Check {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return reject(ReasonInvalidURL)
	}
	if !strings.EqualFold(u.Scheme, "https") {
		return reject(ReasonNotHTTPS)
	}
	if u.Hostname() == "" {
		return reject(ReasonInvalidURL)
	}

	if v.bucket != "" {
		path := strings.TrimLeft(u.Path, "/")
		virtualHosted := strings.HasPrefix(u.Hostname(), v.bucket+".")
		pathStyle := strings.HasPrefix(path, v.bucket+"/")
		if !virtualHosted && !pathStyle {
			return reject("s3Url bucket must be " + v.bucket)
		}
	}
	return pass()
}

// Prober confirms that the object behind a source URL exists.
type Prober interface {
	Probe(ctx context.Context, rawURL string) Check
}

// SourceChecker runs the syntactic check and then, when probing is enabled,
// the remote existence probe. Both submission and audio workers use it so
// that the two sides agree on what a valid source is.
type SourceChecker struct {
	validator    *Validator
	prober       Prober
	probeEnabled bool
	logger       *slog.Logger
}

// NewSourceChecker builds a SourceChecker from storage settings. prober may
// be nil when probing is disabled.
func NewSourceChecker(cfg config.StorageConfig, prober Prober, logger *slog.Logger) *SourceChecker {
	if logger == nil {
		logger = slog.Default()
	}
	return &SourceChecker{
		validator:    NewValidator(cfg.BucketAllowlist),
		prober:       prober,
		probeEnabled: cfg.ProbeEnabled && prober != nil,
		logger:       logger.With(slog.String("component", "source_checker")),
	}
}

// CheckSource validates rawURL and, if enabled, probes it.
func (c *SourceChecker) CheckSource(ctx context.Context, rawURL string) Check {
	if check := c.validator.ValidateURL(rawURL); !check.OK {
		return check
	}
	if !c.probeEnabled {
		return pass()
	}

	check := c.prober.Probe(ctx, rawURL)
	if !check.OK {
		c.logger.Warn("audio source probe failed", slog.String("reason", check.Reason))
	}
	return check
}
