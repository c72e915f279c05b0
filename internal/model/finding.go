package model

// Finding categories.
const (
	CategoryPathExposure          = "path-exposure"
	CategoryContentLeak           = "content-leak"
	CategoryTransport             = "transport"
	CategoryInformationDisclosure = "information-disclosure"
	CategoryRedirect              = "redirect"
)

// Finding is a single reported security issue.
//
// Findings are values. Once a detector returns one it is never modified;
// the aggregator copies it into the report as-is.
type Finding struct {
	// Target is the base URL of the target the finding belongs to.
	Target string `json:"target" yaml:"target"`

	// URL is the resource the finding was observed on.
	URL string `json:"url" yaml:"url"`

	// Detector is the name of the detector that produced the finding.
	Detector string `json:"detector" yaml:"detector"`

	// Category groups findings by kind, e.g. "path-exposure".
	Category string `json:"category" yaml:"category"`

	// Type is the finding type identifier used to look up FindingInfo.
	Type string `json:"type" yaml:"type"`

	// Severity is the risk level.
	Severity Severity `json:"severity" yaml:"severity"`

	// Title is a short description of the finding.
	Title string `json:"title" yaml:"title"`

	// Description provides more detail about the finding.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Evidence is a short, redacted snippet showing what matched.
	Evidence string `json:"evidence,omitempty" yaml:"evidence,omitempty"`
}

// Key returns the identity used to deduplicate findings.
// Two findings with the same target, URL, detector and evidence are the same issue.
func (f Finding) Key() string {
	return f.Target + "\x00" + f.URL + "\x00" + f.Detector + "\x00" + f.Evidence
}

// NewFinding creates a finding with severity taken from the finding type mapping.
func NewFinding(findingType, category, url, title, description, evidence string) Finding {
	return Finding{
		URL:         url,
		Category:    category,
		Type:        findingType,
		Severity:    GetSeverity(findingType),
		Title:       title,
		Description: description,
		Evidence:    evidence,
	}
}
