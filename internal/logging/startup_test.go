package logging

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartupLoggerEvent(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	NewStartupLogger("create-post").
		Version("1.2.3").
		S3Bucket("media", "media-bucket").
		DynamoTable("posts", "posts-table").
		SSMParam("signingKey", "/create-post/prod/jwt-signing-key").
		Backend("objects", "s3").
		Feature("eventBridge", true).
		Config("cacheRoot", "/tmp/create").
		InitDuration(25 * time.Millisecond).
		Log()

	var evt map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &evt))
	assert.Equal(t, "Create pipeline started", evt["message"])

	proc := evt["process"].(map[string]any)
	assert.Equal(t, "create-post", proc["name"])
	assert.Equal(t, "1.2.3", proc["version"])

	res := evt["resources"].(map[string]any)
	assert.Equal(t, "media-bucket", res["s3Buckets"].(map[string]any)["media"])
	assert.Equal(t, "posts-table", res["dynamoTables"].(map[string]any)["posts"])
	assert.Equal(t, "s3", res["backends"].(map[string]any)["objects"])
	assert.Equal(t, true, evt["features"].(map[string]any)["eventBridge"])
	assert.Equal(t, "/tmp/create", evt["config"].(map[string]any)["cacheRoot"])
}

func TestSetLevel(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })
	for level, want := range map[string]zerolog.Level{
		"debug": zerolog.DebugLevel,
		"warn":  zerolog.WarnLevel,
		"error": zerolog.ErrorLevel,
		"":      zerolog.InfoLevel,
		"loud":  zerolog.InfoLevel,
	} {
		setLevel(level)
		assert.Equal(t, want, zerolog.GlobalLevel(), level)
	}
}

func TestEnvOrDefault(t *testing.T) {
	t.Setenv("CREATE_TEST_VALUE", "")
	assert.Equal(t, "fallback", EnvOrDefault("CREATE_TEST_VALUE", "fallback"))
	t.Setenv("CREATE_TEST_VALUE", "set")
	assert.Equal(t, "set", EnvOrDefault("CREATE_TEST_VALUE", "fallback"))
}
