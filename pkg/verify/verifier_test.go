package verify_test

import (
	"context"
	"strings"
	"testing"

	"github.com/aretw0/arbiter/pkg/verify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findingTypes(t *testing.T, details map[string]any) []string {
	t.Helper()
	var types []string
	for _, f := range details["findings"].([]any) {
		types = append(types, f.(map[string]any)["type"].(string))
	}
	return types
}

func TestVerify_PlainText(t *testing.T) {
	v := verify.New()
	text := strings.Repeat("The committee published its quarterly report on water quality today. ", 10)

	res, err := v.Verify(context.Background(), []byte(text), "text/plain", nil)
	require.NoError(t, err)

	assert.True(t, res.Authentic)
	assert.InDelta(t, 0.9, res.Confidence, 1e-9)
	assert.InDelta(t, 0.85, res.Details["verification_score"], 1e-9)
	assert.Equal(t, "Likely Authentic", res.Details["assessment"])
	assert.Len(t, res.Details["content_id"], 16)
}

func TestVerify_SensationalText(t *testing.T) {
	v := verify.New()
	text := "BREAKING NEWS: shocking and urgent! Everyone knows all experts agree, reportedly unconfirmed."

	res, err := v.Verify(context.Background(), []byte(text), "text/plain; charset=utf-8", nil)
	require.NoError(t, err)

	types := findingTypes(t, res.Details)
	assert.Contains(t, types, "sensational_language")
	assert.Contains(t, types, "uncertain_claims")
	assert.Contains(t, types, "absolute_claims")
	assert.Contains(t, types, "insufficient_content")

	score := res.Details["verification_score"].(float64)
	assert.Less(t, score, 0.85)
	assert.InDelta(t, 0.5, res.Confidence, 1e-9)
}

func TestVerify_HTML(t *testing.T) {
	v := verify.New()
	html := `<html><head><meta http-equiv="refresh" content="0"></head>
<body onload="x()"><script>alert(1)</script><iframe src="evil"></iframe></body></html>`

	res, err := v.Verify(context.Background(), []byte(html), "text/html", nil)
	require.NoError(t, err)

	types := findingTypes(t, res.Details)
	assert.ElementsMatch(t, []string{"embedded_scripts", "inline_event_handlers", "embedded_iframes", "auto_refresh"}, types)
	assert.False(t, res.Authentic)
}

func TestVerify_JSON(t *testing.T) {
	v := verify.New()

	res, err := v.Verify(context.Background(), []byte(`{"source":"wire","timestamp":"2024-01-01"}`), "application/json", nil)
	require.NoError(t, err)
	assert.True(t, res.Authentic)
	assert.InDelta(t, 1.0, res.Details["verification_score"], 1e-9)

	res, err = v.Verify(context.Background(), []byte(`{not json`), "application/json", nil)
	require.NoError(t, err)
	assert.False(t, res.Authentic)
	assert.InDelta(t, 0.3, res.Confidence, 1e-9)
}

func TestVerify_UnsupportedAndMetadata(t *testing.T) {
	v := verify.New()
	res, err := v.Verify(context.Background(), []byte{0x1}, "application/octet-stream", map[string]any{"author": "ann", "publisher": "daily"})
	require.NoError(t, err)

	assert.False(t, res.Authentic)
	assert.Equal(t, []string{"unsupported_content_type"}, findingTypes(t, res.Details))
	analysis := res.Details["metadata_analysis"].(map[string]any)
	assert.Equal(t, "ann", analysis["author"])
	assert.Equal(t, true, analysis["source_provided"])
}

func TestVerify_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := verify.New().Verify(ctx, []byte("x"), "text/plain", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAssessment(t *testing.T) {
	assert.Equal(t, "Highly Authentic", verify.Assessment(0.95))
	assert.Equal(t, "Uncertain", verify.Assessment(0.5))
	assert.Equal(t, "Likely Misinformation", verify.Assessment(0.3))
	assert.Equal(t, "Highly Suspect", verify.Assessment(0.1))
}
