package binstore

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// captureMarker prefixes the Producer field of every archived capture
const captureMarker = "recondo-capture"

// embedMetadata writes the source URL into the PDF's Subject property and
// stamps the Producer with a capture marker. The Subject lets a rerun recover
// the source URL long after the queue record has been pruned.
func embedMetadata(pdf []byte, originalURL string, capturedAt time.Time) ([]byte, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	properties := map[string]string{
		"Subject":  originalURL,
		"Producer": fmt.Sprintf("%s %s", captureMarker, capturedAt.Format(time.RFC3339)),
	}

	var out bytes.Buffer
	if err := api.AddProperties(bytes.NewReader(pdf), &out, properties, conf); err != nil {
		return nil, fmt.Errorf("failed to embed pdf metadata: %w", err)
	}
	return out.Bytes(), nil
}

// extractSubject reads the Subject property back out of an archived PDF
func extractSubject(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	properties, err := api.Properties(f, conf)
	if err != nil {
		return "", fmt.Errorf("failed to read pdf properties: %w", err)
	}

	if subject, ok := properties["Subject"]; ok && subject != "" {
		return subject, nil
	}
	return "", fmt.Errorf("pdf at %s carries no Subject", path)
}

// isCapturePDF reports whether the Producer marks the file as one of ours
func isCapturePDF(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	properties, err := api.Properties(f, conf)
	if err != nil {
		return false
	}
	return strings.HasPrefix(properties["Producer"], captureMarker)
}
