package convert

import (
	"context"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/ternarybob/recondo/internal/models"
)

// directPDFHostPatterns recognize URLs whose response body is a PDF even
// without a .pdf extension
var directPDFHostPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^arxiv\.org/pdf/`),
	regexp.MustCompile(`^assets\.publishing\.service\.gov\.uk/`),
	regexp.MustCompile(`/api/assets/`),
}

const directDownloadTimeout = 2 * time.Minute

// isDirectPDFURL reports whether the URL should bypass the rendering path
func isDirectPDFURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if strings.HasSuffix(strings.ToLower(u.Path), ".pdf") {
		return true
	}
	hostPath := strings.TrimPrefix(strings.ToLower(u.Host), "www.") + u.Path
	for _, pattern := range directPDFHostPatterns {
		if pattern.MatchString(hostPath) {
			return true
		}
	}
	return false
}

// downloadPDF fetches a direct-PDF URL, verifying the response really is one.
// Returns the bytes and a filename hint from Content-Disposition.
func (w *Worker) downloadPDF(ctx context.Context, rawURL string) ([]byte, string, error) {
	dlCtx, cancel := context.WithTimeout(ctx, directDownloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(dlCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", models.NewFailure(models.FailureDownloadFailed, "invalid url %s: %v", rawURL, err)
	}
	req.Header.Set("User-Agent", w.userAgent)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, "", models.NewFailure(models.FailureDownloadFailed, "fetch of %s failed: %v", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", models.NewFailure(models.FailureDownloadFailed, "fetch of %s returned status %d", rawURL, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "application/pdf") && !strings.HasSuffix(strings.ToLower(rawURL), ".pdf") {
		return nil, "", models.NewFailure(models.FailureNotPDF, "%s served %q instead of a pdf", rawURL, contentType)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", models.NewFailure(models.FailureDownloadFailed, "read of %s failed: %v", rawURL, err)
	}

	return data, filenameFromDisposition(resp.Header.Get("Content-Disposition")), nil
}

// filenameFromDisposition extracts the filename parameter, stripping the
// extension so it can serve as a title hint
func filenameFromDisposition(disposition string) string {
	if disposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return ""
	}
	filename := params["filename"]
	if filename == "" {
		return ""
	}
	return strings.TrimSuffix(filename, path.Ext(filename))
}
