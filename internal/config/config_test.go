package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestLoadDefaultsWithSecretFromEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("GROQ_API_KEY", "gsk_test")

	cfg, err := Load(Options{Paths: []string{t.TempDir()}})
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, "gsk_test", cfg.AI.APIKey)
	assert.Equal(t, int64(20<<20), cfg.Upload.MaxBytes)
	assert.Equal(t, 50, cfg.Upload.MaxPages)
	assert.Equal(t, 30*time.Minute, cfg.Upload.SelectionTTL)
	assert.Equal(t, 15, cfg.Analysis.DailyLimit)
	assert.Equal(t, "llama-3.3-70b-versatile", cfg.AI.English.Model)
	assert.Equal(t, 0.8, cfg.AI.Urdu.Temperature)
	assert.Equal(t, "v_8eelc901", cfg.Speech.VoiceID)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, 24*time.Hour, cfg.JWTExpiry())
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.yml", `
server:
  port: 9090
database:
  driver: memory
upload:
  extractor: sample
  selection_ttl: 10m
analysis:
  daily_limit: 3
jwt:
  secret: file-secret
cors:
  allowed_origins:
    - https://reports.example.com
`)
	t.Setenv("ANALYSIS_DAILY_LIMIT", "5")
	t.Setenv("JWT_SECRET", "")

	cfg, err := Load(Options{Paths: []string{dir}})
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, DriverMemory, cfg.Database.Driver)
	assert.Equal(t, ExtractorSample, cfg.Upload.Extractor)
	assert.Equal(t, 10*time.Minute, cfg.Upload.SelectionTTL)
	assert.Equal(t, 5, cfg.Analysis.DailyLimit)
	assert.Equal(t, "file-secret", cfg.JWT.Secret)
	assert.Equal(t, []string{"https://reports.example.com"}, cfg.CORS.AllowedOrigins)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".env", "UPLIFTAI_API_KEY=sk_api_dotenv\nJWT_SECRET=dotenv-secret\n")
	t.Setenv("UPLIFTAI_API_KEY", "")
	t.Setenv("JWT_SECRET", "")
	// godotenv never overrides variables that are already set.
	os.Unsetenv("UPLIFTAI_API_KEY")
	os.Unsetenv("JWT_SECRET")

	cfg, err := Load(Options{EnvFile: filepath.Join(dir, ".env"), Paths: []string{dir}})
	require.NoError(t, err)
	assert.Equal(t, "sk_api_dotenv", cfg.Speech.APIKey)
	assert.Equal(t, "dotenv-secret", cfg.JWT.Secret)
}

func TestLoadMissingEnvFileIsIgnored(t *testing.T) {
	t.Setenv("JWT_SECRET", "x")
	_, err := Load(Options{EnvFile: filepath.Join(t.TempDir(), "missing.env"), Paths: []string{t.TempDir()}})
	assert.NoError(t, err)
}

func TestValidate(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	os.Unsetenv("JWT_SECRET")

	_, err := Load(Options{Paths: []string{t.TempDir()}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt secret is required")

	dir := t.TempDir()
	writeFile(t, dir, "config.yml", `
jwt:
  secret: s
database:
  driver: mysql
upload:
  extractor: ocr
analysis:
  daily_limit: 0
`)
	_, err = Load(Options{Paths: []string{dir}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.driver")
	assert.Contains(t, err.Error(), "upload.extractor")
	assert.Contains(t, err.Error(), "analysis.daily_limit must be positive")
}

func TestValidateWriteTimeoutCoversAnalysis(t *testing.T) {
	t.Setenv("JWT_SECRET", "s")

	cfg, err := Load(Options{Paths: []string{t.TempDir()}})
	require.NoError(t, err)
	assert.Equal(t, 130*time.Second, cfg.AnalysisBudget())
	assert.GreaterOrEqual(t, cfg.Server.WriteTimeout, cfg.AnalysisBudget())

	dir := t.TempDir()
	writeFile(t, dir, "config.yml", `
server:
  write_timeout: 2m
`)
	_, err = Load(Options{Paths: []string{dir}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.write_timeout must be at least 2m20s")

	writeFile(t, dir, "config.yml", `
server:
  write_timeout: 2m
analysis:
  step_timeout: 30s
`)
	cfg, err = Load(Options{Paths: []string{dir}})
	require.NoError(t, err)
	assert.Equal(t, 70*time.Second, cfg.AnalysisBudget())
}
