package config

import (
	"bytes"
	"os"
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetBeforeInitFails(t *testing.T) {
	ResetForTest()
	_, err := Get()
	require.ErrorIs(t, err, ErrConfigUninitialized)
}

func TestInitThenGet(t *testing.T) {
	ResetForTest()
	defer ResetForTest()
	Init(&Config{OpenAIAPIKey: "k", OpenAIBaseURL: "https://x"})
	cfg, err := Get()
	require.NoError(t, err)
	assert.True(t, cfg.LLMConfigured())
}

func TestLLMConfigured(t *testing.T) {
	assert.True(t, (&Config{OpenAIAPIKey: "k", OpenAIBaseURL: "b"}).LLMConfigured())
	assert.False(t, (&Config{OpenAIAPIKey: "k"}).LLMConfigured())
	assert.False(t, (&Config{OpenAIBaseURL: "b"}).LLMConfigured())
}

func TestCLIOverridesEnv(t *testing.T) {
	t.Setenv("PROXY", "http://env:7890")
	flags := ParseFlags([]string{"--proxy", "http://cli:7890"})
	cfg := Bootstrap(flags)
	assert.Equal(t, "http://cli:7890", cfg.Proxy)
}

func TestInvalidIntegerFallsBackAndWarns(t *testing.T) {
	t.Setenv("PLAYWRIGHT_TIMEOUT_MS", "invalid")
	cfg := Bootstrap(Flags{})
	assert.Equal(t, 60000, cfg.PlaywrightTimeoutMS)
}

func TestInvalidExtractionStrategyFallsBack(t *testing.T) {
	t.Setenv("EXTRACTION_STRATEGY", "fastest")
	cfg := Bootstrap(Flags{})
	assert.Equal(t, StrategyQuality, cfg.ExtractionStrategy)
}

func TestInvalidIntegerStderrMessage(t *testing.T) {
	if os.Getenv("GO_CONFIG_STDERR_CHILD") == "1" {
		Bootstrap(Flags{})
		return
	}
	cmd := exec.Command(os.Args[0], "-test.run=TestInvalidIntegerStderrMessage")
	cmd.Env = append(os.Environ(), "GO_CONFIG_STDERR_CHILD=1", "PLAYWRIGHT_TIMEOUT_MS=invalid", "EXTRACTION_STRATEGY=fastest")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	_ = cmd.Run()
	assert.True(t, strings.Contains(stderr.String(), "invalid integer"))
}

func TestParseViewport(t *testing.T) {
	assert.Equal(t, Viewport{1366, 768}, parseViewport("__X1", Viewport{1366, 768}))
	t.Setenv("__X1", "1920x1080")
	assert.Equal(t, Viewport{1920, 1080}, parseViewport("__X1", Viewport{1366, 768}))
	t.Setenv("__X2", "800,600")
	assert.Equal(t, Viewport{800, 600}, parseViewport("__X2", Viewport{1366, 768}))
	t.Setenv("__X3", "garbage")
	assert.Equal(t, Viewport{1366, 768}, parseViewport("__X3", Viewport{1366, 768}))
}

func TestLoadEnvFileQuotingAndMultiline(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/.env"
	content := "export FOO=bar # ignored trailing\n" +
		"BAZ=\"line one\\nline two\"\n" +
		"MULTI=\"first\n" +
		"second\"\n" +
		"SINGLE='a\\'b'\n" +
		"# comment\n" +
		"QUOTED_PRE_SET=nope\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	os.Unsetenv("FOO")
	os.Unsetenv("BAZ")
	os.Unsetenv("MULTI")
	os.Unsetenv("SINGLE")
	t.Setenv("QUOTED_PRE_SET", "already")

	LoadEnvFile(path)
	assert.Equal(t, "bar", os.Getenv("FOO"))
	assert.Equal(t, "line one\nline two", os.Getenv("BAZ"))
	assert.Equal(t, "first\nsecond", os.Getenv("MULTI"))
	assert.Equal(t, "already", os.Getenv("QUOTED_PRE_SET"))
}

func TestLoadEnvFileMissing(t *testing.T) {
	assert.NotPanics(t, func() { LoadEnvFile("/nonexistent/path/.env") })
}
