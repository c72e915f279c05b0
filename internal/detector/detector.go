package detector

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/nao1215/sitescan/internal/config"
	"github.com/nao1215/sitescan/internal/model"
)

// DefaultTimeout bounds a single detector call.
const DefaultTimeout = 10 * time.Second

// Detector inspects one fetch result.
type Detector interface {
	// Name returns the detector's name, used in configuration and reports.
	Name() string

	// Category returns the default finding category of the detector.
	Category() string

	// Inspect examines result and returns what it found. It must not keep
	// a reference to result after returning.
	Inspect(ctx context.Context, result *model.FetchResult) ([]model.Finding, error)
}

// Prober is implemented by detectors that want fixed paths requested on
// every probed host.
type Prober interface {
	ProbePaths() []string
}

// FailureInspector is implemented by detectors that also run on failed fetches.
type FailureInspector interface {
	InspectsFailures() bool
}

// Builtin returns a new instance of every built-in detector in registration order.
func Builtin() []Detector {
	return []Detector{
		NewPathExposureDetector(),
		NewContentLeakDetector(),
		NewTLSDetector(),
		NewSecurityHeadersDetector(),
		NewDirectoryListingDetector(),
		NewErrorPageDetector(),
		NewAdminEndpointDetector(),
		NewImageMetadataDetector(),
		NewCrossSiteRedirectDetector(),
	}
}

// Pipeline runs an ordered set of detectors.
// It is immutable after construction and safe for concurrent use.
type Pipeline struct {
	detectors []Detector
	timeout   time.Duration
	logger    *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithDetectors replaces the built-in detectors.
func WithDetectors(detectors ...Detector) Option {
	return func(p *Pipeline) {
		p.detectors = slices.Clone(detectors)
	}
}

// WithTimeout sets the per-detector timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithLogger sets the logger used for detector failures.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// NewPipeline creates a pipeline of the built-in detectors.
func NewPipeline(opts ...Option) *Pipeline {
	p := &Pipeline{
		detectors: Builtin(),
		timeout:   DefaultTimeout,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Names returns the detector names in registration order.
func (p *Pipeline) Names() []string {
	names := make([]string, 0, len(p.detectors))
	for _, d := range p.detectors {
		names = append(names, d.Name())
	}
	return names
}

// Len returns the number of detectors.
func (p *Pipeline) Len() int {
	return len(p.detectors)
}

// Validate checks that every name in flags refers to a registered detector.
func (p *Pipeline) Validate(flags map[string]bool) error {
	known := p.Names()
	unknown := make([]string, 0)
	for name := range flags {
		if !slices.Contains(known, name) {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return fmt.Errorf("%w: %s (known: %s)", ErrUnknownDetector, strings.Join(unknown, ", "), strings.Join(known, ", "))
}

// ForTarget returns a pipeline restricted to the detectors target enables.
func (p *Pipeline) ForTarget(target config.Target) *Pipeline {
	enabled := make([]Detector, 0, len(p.detectors))
	for _, d := range p.detectors {
		if target.DetectorEnabled(d.Name()) {
			enabled = append(enabled, d)
		}
	}
	return &Pipeline{detectors: enabled, timeout: p.timeout, logger: p.logger}
}

// ProbePaths returns the probe paths of all Prober detectors, without duplicates,
// in registration order.
func (p *Pipeline) ProbePaths() []string {
	seen := make(map[string]struct{})
	paths := make([]string, 0)
	for _, d := range p.detectors {
		prober, ok := d.(Prober)
		if !ok {
			continue
		}
		for _, path := range prober.ProbePaths() {
			if _, dup := seen[path]; dup {
				continue
			}
			seen[path] = struct{}{}
			paths = append(paths, path)
		}
	}
	return paths
}

// Inspect runs the detectors against result and returns their findings
// stamped with target, the result URL and the detector name, together with
// the number of detectors that failed.
//
// Failed fetches are only shown to FailureInspectors.
func (p *Pipeline) Inspect(ctx context.Context, target string, result *model.FetchResult) ([]model.Finding, int) {
	if result == nil {
		return nil, 0
	}

	var findings []model.Finding
	failures := 0
	for _, d := range p.detectors {
		if ctx.Err() != nil {
			break
		}
		if !result.OK() && !inspectsFailures(d) {
			continue
		}

		found, err := p.run(ctx, d, result)
		if err != nil {
			failures++
			p.logger.Warn("detector failed",
				"detector", d.Name(),
				"url", result.FinalURL,
				"error", err,
			)
		}
		for _, f := range found {
			f.Target = target
			f.Detector = d.Name()
			if f.URL == "" {
				f.URL = result.FinalURL
			}
			if f.Category == "" {
				f.Category = d.Category()
			}
			findings = append(findings, f)
		}
	}
	return findings, failures
}

// run calls one detector with its own timeout and turns a panic into an error.
func (p *Pipeline) run(ctx context.Context, d Detector, result *model.FetchResult) (findings []model.Finding, err error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			findings = nil
			err = fmt.Errorf("%w: %v", ErrDetectorPanic, r)
		}
	}()

	return d.Inspect(ctx, result)
}

func inspectsFailures(d Detector) bool {
	fi, ok := d.(FailureInspector)
	return ok && fi.InspectsFailures()
}
