// Package verify provides a heuristic content-authenticity checker.
//
// It scores text, HTML and JSON content against fixed pattern lists. Media
// types are accepted with a neutral baseline score since they need dedicated
// detection models.
package verify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/aretw0/arbiter/pkg/domain"
)

// AuthenticThreshold is the minimum score for content to count as authentic.
const AuthenticThreshold = 0.5

type pattern struct {
	re     *regexp.Regexp
	label  string
	impact float64
	// cap bounds how many matches contribute to the penalty.
	cap      int
	severity string
}

var textPatterns = []pattern{
	{regexp.MustCompile(`(?i)\b(breaking news|urgent|shocking)\b`), "sensational_language", 0.3, 5, "low"},
	{regexp.MustCompile(`(?i)\b(unconfirmed|alleged|reportedly)\b`), "uncertain_claims", 0.2, 5, "low"},
	{regexp.MustCompile(`(?i)\b(expert says|scientists agree)\b`), "vague_authority", 0.25, 5, "low"},
	{regexp.MustCompile(`(?i)\b(99%|all|none|everyone|nobody)\b`), "absolute_claims", 0.35, 5, "medium"},
}

var htmlPatterns = []pattern{
	{regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`), "embedded_scripts", 0.2, 3, "low"},
	{regexp.MustCompile(`(?i)on\w+\s*=`), "inline_event_handlers", 0.15, 3, "low"},
	{regexp.MustCompile(`(?i)<iframe[^>]*>`), "embedded_iframes", 0.25, 3, "medium"},
	{regexp.MustCompile(`(?i)<meta[^>]*refresh[^>]*>`), "auto_refresh", 0.3, 3, "medium"},
}

// Finding is one observation made while scoring content.
type Finding struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
}

type report struct {
	score      float64
	confidence float64
	findings   []Finding
}

// Verifier implements ports.ContentVerifier.
type Verifier struct {
	now func() time.Time
}

// New creates a heuristic verifier.
func New() *Verifier {
	return &Verifier{now: time.Now}
}

// Verify scores content and reports whether it looks authentic.
func (v *Verifier) Verify(ctx context.Context, content []byte, contentType string, metadata map[string]any) (*domain.Verification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var r report
	mediaType := strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	switch {
	case mediaType == "text/plain" || mediaType == "":
		r = verifyText(string(content))
	case mediaType == "text/html":
		r = verifyHTML(string(content))
	case mediaType == "application/json":
		r = verifyJSON(content)
	case strings.HasPrefix(mediaType, "image/"):
		r = report{score: 0.75, confidence: 0.8}
		r.findings = append(r.findings, Finding{"image_verification", "Image verification requires a dedicated manipulation detector", "info"})
	case strings.HasPrefix(mediaType, "video/"):
		r = report{score: 0.7, confidence: 0.75}
		r.findings = append(r.findings, Finding{"video_verification", "Video verification requires a dedicated manipulation detector", "info"})
	default:
		r = report{score: 0.1, confidence: 0.1}
		r.findings = append(r.findings, Finding{"unsupported_content_type", fmt.Sprintf("Content type %s not supported for verification", contentType), "low"})
	}
	r.score = clamp(r.score, 0, 1)

	sum := sha256.Sum256(content)
	details := map[string]any{
		"content_id":         hex.EncodeToString(sum[:])[:16],
		"content_type":       contentType,
		"timestamp":          v.now().UTC().Format(time.RFC3339),
		"verification_score": r.score,
		"assessment":         Assessment(r.score),
		"findings":           findingsToMaps(r.findings),
	}
	if analysis := analyzeMetadata(metadata); len(analysis) > 0 {
		details["metadata_analysis"] = analysis
	}

	return &domain.Verification{
		Authentic:  r.score >= AuthenticThreshold,
		Confidence: r.confidence,
		Details:    details,
	}, nil
}

func verifyText(text string) report {
	r := report{score: 0.85, confidence: 0.9}
	for _, p := range textPatterns {
		r.apply(p, text)
	}

	words := len(strings.Fields(text))
	switch {
	case words < 50:
		r.findings = append(r.findings, Finding{"insufficient_content", "Content too short for reliable verification", "low"})
		r.confidence = 0.5
	case words > 10000:
		r.findings = append(r.findings, Finding{"excessive_content", "Content very long, analysis may be less precise", "low"})
	}
	r.confidence = max(0.1, r.confidence)
	return r
}

func verifyHTML(html string) report {
	r := report{score: 0.8, confidence: 0.85}
	for _, p := range htmlPatterns {
		r.apply(p, html)
	}
	if n := strings.Count(html, "<!--"); n > 10 {
		r.findings = append(r.findings, Finding{"excessive_comments", fmt.Sprintf("Found %d HTML comments, possibly indicating content manipulation", n), "medium"})
		r.score -= 0.1
	}
	return r
}

func verifyJSON(content []byte) report {
	r := report{score: 0.9, confidence: 0.95}
	var data any
	if err := json.Unmarshal(content, &data); err != nil {
		r.findings = append(r.findings, Finding{"invalid_json", "Content is not valid JSON", "high"})
		r.score = 0.1
		r.confidence = 0.3
		return r
	}
	obj, ok := data.(map[string]any)
	if !ok {
		return r
	}
	if hasAny(obj, "source", "origin") {
		r.findings = append(r.findings, Finding{"source_attribution", "Content includes source attribution information", "positive"})
		r.score += 0.1
	}
	if hasAny(obj, "timestamp", "created", "date", "time") {
		r.findings = append(r.findings, Finding{"temporal_data", "Content includes temporal information", "positive"})
		r.score += 0.05
	}
	return r
}

func (r *report) apply(p pattern, content string) {
	matches := p.re.FindAllString(content, -1)
	if len(matches) == 0 {
		return
	}
	r.findings = append(r.findings, Finding{
		Type:        p.label,
		Description: fmt.Sprintf("Found %d instance(s) of %s", len(matches), strings.ReplaceAll(p.label, "_", " ")),
		Severity:    p.severity,
	})
	r.score -= p.impact * float64(min(len(matches), p.cap)) / float64(p.cap)
}

func analyzeMetadata(metadata map[string]any) map[string]any {
	analysis := map[string]any{}
	if author, ok := metadata["author"]; ok {
		analysis["author_provided"] = true
		analysis["author"] = author
	}
	for _, field := range []string{"source", "origin", "publisher"} {
		if v, ok := metadata[field]; ok {
			analysis["source_provided"] = true
			analysis["source_"+field] = v
		}
	}
	return analysis
}

// Assessment maps a score to a human-readable verdict.
func Assessment(score float64) string {
	switch {
	case score >= 0.9:
		return "Highly Authentic"
	case score >= 0.7:
		return "Likely Authentic"
	case score >= 0.5:
		return "Uncertain"
	case score >= 0.3:
		return "Likely Misinformation"
	default:
		return "Highly Suspect"
	}
}

func findingsToMaps(findings []Finding) []any {
	out := make([]any, len(findings))
	for i, f := range findings {
		out[i] = map[string]any{"type": f.Type, "description": f.Description, "severity": f.Severity}
	}
	return out
}

func hasAny(m map[string]any, keys ...string) bool {
	for _, k := range keys {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}
