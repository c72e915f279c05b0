package detector

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	exif "github.com/dsoprea/go-exif/v3"

	"github.com/nao1215/sitescan/internal/model"
)

// exifGroup collects related EXIF tags into one finding.
type exifGroup struct {
	title    string
	severity model.Severity
	tags     []string
}

var exifGroups = []exifGroup{
	{title: "GPS position in image metadata", severity: model.SeverityMedium, tags: []string{"GPSLatitude", "GPSLatitudeRef", "GPSLongitude", "GPSLongitudeRef"}},
	{title: "Device serial number in image metadata", severity: model.SeverityLow, tags: []string{"SerialNumber", "CameraSerialNumber", "BodySerialNumber", "LensSerialNumber"}},
	{title: "Author in image metadata", severity: model.SeverityLow, tags: []string{"Artist", "Author", "XPAuthor", "Copyright"}},
	{title: "Software in image metadata", severity: model.SeverityLow, tags: []string{"Software", "ProcessingSoftware"}},
	{title: "Host computer in image metadata", severity: model.SeverityLow, tags: []string{"HostComputer"}},
}

// exifExtensions are checked when the server sends no image content type.
var exifExtensions = []string{".jpg", ".jpeg", ".tif", ".tiff", ".png", ".heic", ".webp"}

// ImageMetadataDetector reads EXIF metadata from fetched images and reports
// location, device, author and software details.
type ImageMetadataDetector struct{}

// NewImageMetadataDetector creates an ImageMetadataDetector.
func NewImageMetadataDetector() *ImageMetadataDetector {
	return &ImageMetadataDetector{}
}

// Name returns the detector name.
func (d *ImageMetadataDetector) Name() string {
	return "image-metadata"
}

// Category returns the detector category.
func (d *ImageMetadataDetector) Category() string {
	return model.CategoryInformationDisclosure
}

// Inspect extracts EXIF from image responses. Images without EXIF, or with
// EXIF that cannot be parsed, yield nothing.
func (d *ImageMetadataDetector) Inspect(_ context.Context, result *model.FetchResult) ([]model.Finding, error) {
	if len(result.Body) == 0 || !isImage(result) {
		return nil, nil
	}

	rawExif, err := exif.SearchAndExtractExif(result.Body)
	if err != nil {
		return nil, nil
	}
	entries, _, err := exif.GetFlatExifData(rawExif, nil)
	if err != nil {
		return nil, nil
	}

	values := make(map[string]string, len(entries))
	for _, e := range entries {
		v := strings.TrimSpace(e.Formatted)
		if v == "" {
			continue
		}
		if _, dup := values[e.TagName]; !dup {
			values[e.TagName] = v
		}
	}

	info := model.GetFindingInfo("exif_metadata")
	findings := make([]model.Finding, 0)
	for _, g := range exifGroups {
		parts := make([]string, 0, len(g.tags))
		for _, tag := range g.tags {
			if v, ok := values[tag]; ok {
				parts = append(parts, fmt.Sprintf("%s=%s", tag, snippet(v, 60)))
			}
		}
		if len(parts) == 0 {
			continue
		}
		sort.Strings(parts)
		f := model.NewFinding("exif_metadata", model.CategoryInformationDisclosure, result.FinalURL,
			g.title, info.Impact, strings.Join(parts, ", "))
		f.Severity = g.severity
		findings = append(findings, f)
	}
	return findings, nil
}

func isImage(result *model.FetchResult) bool {
	if result.IsImage() {
		return true
	}
	ext := strings.ToLower(path.Ext(result.Path()))
	for _, e := range exifExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

var _ Detector = (*ImageMetadataDetector)(nil)
