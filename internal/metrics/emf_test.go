package metrics

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := SetOutput(&buf)
	t.Cleanup(func() { SetOutput(prev) })
	return &buf
}

func TestNewAddsFunctionName(t *testing.T) {
	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "create-lambda")
	r := New()
	assert.Equal(t, Namespace, r.namespace)
	assert.Equal(t, "create-lambda", r.dimensions["FunctionName"])
}

func TestNewOutsideLambda(t *testing.T) {
	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "")
	assert.Empty(t, New().dimensions)
}

func TestFlushDocument(t *testing.T) {
	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "")
	buf := capture(t)

	New().
		Dimension("Outcome", "success").
		Dimension("Backend", "s3").
		Duration("PublishMs", 1500*time.Millisecond).
		Count("PublishResult").
		Metric("UploadBytes", 2048, UnitBytes).
		Property("sessionId", "abc").
		Flush()

	out := buf.String()
	require.True(t, strings.HasSuffix(out, "\n"))
	assert.Equal(t, 1, strings.Count(out, "\n"), "EMF must be a single line")

	var doc struct {
		AWS struct {
			Timestamp         int64 `json:"Timestamp"`
			CloudWatchMetrics []struct {
				Namespace  string     `json:"Namespace"`
				Dimensions [][]string `json:"Dimensions"`
				Metrics    []struct {
					Name string `json:"Name"`
					Unit string `json:"Unit"`
				} `json:"Metrics"`
			} `json:"CloudWatchMetrics"`
		} `json:"_aws"`
		Outcome       string  `json:"Outcome"`
		Backend       string  `json:"Backend"`
		PublishMs     float64 `json:"PublishMs"`
		PublishResult float64 `json:"PublishResult"`
		UploadBytes   float64 `json:"UploadBytes"`
		SessionID     string  `json:"sessionId"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))

	assert.NotZero(t, doc.AWS.Timestamp)
	require.Len(t, doc.AWS.CloudWatchMetrics, 1)
	cw := doc.AWS.CloudWatchMetrics[0]
	assert.Equal(t, Namespace, cw.Namespace)
	assert.Equal(t, [][]string{{"Backend", "Outcome"}}, cw.Dimensions)
	require.Len(t, cw.Metrics, 3)
	assert.Equal(t, "PublishMs", cw.Metrics[0].Name)
	assert.Equal(t, UnitMilliseconds, cw.Metrics[0].Unit)
	assert.Equal(t, "PublishResult", cw.Metrics[1].Name)
	assert.Equal(t, UnitCount, cw.Metrics[1].Unit)
	assert.Equal(t, UnitBytes, cw.Metrics[2].Unit)

	assert.Equal(t, "success", doc.Outcome)
	assert.Equal(t, "s3", doc.Backend)
	assert.Equal(t, 1500.0, doc.PublishMs)
	assert.Equal(t, 1.0, doc.PublishResult)
	assert.Equal(t, 2048.0, doc.UploadBytes)
	assert.Equal(t, "abc", doc.SessionID)
}

func TestFlushWithoutMetricsWritesNothing(t *testing.T) {
	buf := capture(t)
	New().Dimension("Outcome", "x").Property("k", "v").Flush()
	assert.Zero(t, buf.Len())
}

func TestDimensionsOverrideProperties(t *testing.T) {
	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "")
	buf := capture(t)
	New().Property("Outcome", "prop").Dimension("Outcome", "dim").Count("C").Flush()

	var doc map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "dim", doc["Outcome"])
}
