package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pzverkov/quantum-vault/internal/constants"
	"github.com/pzverkov/quantum-vault/pkg/metrics"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, constants.CipherSuiteAES256GCM, cfg.Suite())
	assert.Equal(t, 2048, cfg.RSAOptions().Bits)
	assert.Equal(t, constants.RSADefaultMaxIterations, cfg.RSAOptions().MaxIterations)
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)
}

func TestLoadFileEnvAndFlags(t *testing.T) {
	dir := chdirTemp(t)
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen_addr: 0.0.0.0:9000
log:
  level: debug
  format: json
rsa:
  bits: 1024
  keygen_timeout: 5s
session:
  ttl: 10m
`), 0o600))

	t.Setenv("QVAULT_RSA_MAX_ITERATIONS", "5000")
	t.Setenv("QVAULT_LOG_LEVEL", "warn")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	AddFlags(fs)
	require.NoError(t, fs.Parse([]string{"--config", path, "--cipher-suite", "aes", "--tracing"}))

	cfg, err := Load(fs)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.ListenAddr)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "warn", cfg.Log.Level, "env overrides file")
	assert.Equal(t, 1024, cfg.RSA.Bits)
	assert.Equal(t, 5000, cfg.RSA.MaxIterations)
	assert.Equal(t, 5*time.Second, cfg.RSA.KeyGenTimeout)
	assert.Equal(t, 10*time.Minute, cfg.Session.TTL)
	assert.Equal(t, time.Minute, cfg.Session.CleanupInterval, "unset keys keep defaults")
	assert.Equal(t, "aes", cfg.CipherSuite)
	assert.True(t, cfg.Tracing)
}

func TestLoadDiscoversWorkingDirectoryFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "quantum-vault.yaml"), []byte("rsa:\n  bits: 3072\n"), 0o600))

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, 3072, cfg.RSA.Bits)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	chdirTemp(t)

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	AddFlags(fs)
	require.NoError(t, fs.Parse([]string{"--config", "/does/not/exist.yaml"}))

	_, err := Load(fs)
	assert.Error(t, err)
}

func TestLoadRejectsInvalid(t *testing.T) {
	chdirTemp(t)
	t.Setenv("QVAULT_RSA_BITS", "512")

	_, err := Load(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rsa.bits")
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.ListenAddr = ""
	cfg.CipherSuite = "rot13"
	cfg.Log.Level = "loud"
	cfg.Log.Format = "xml"
	cfg.RSA.Bits = 1000
	cfg.RSA.MaxIterations = 0
	cfg.RSA.KeyGenTimeout = 0
	cfg.RSA.RetryAttempts = -1
	cfg.Session.TTL = 0
	cfg.Session.CleanupInterval = 0
	cfg.Session.MaxSessions = 0
	cfg.Limits.KeyGenRate = 1
	cfg.Limits.KeyGenBurst = 0
	cfg.Limits.MaxPerClient = -1

	err := cfg.Validate()
	require.Error(t, err)

	merr, ok := err.(*multierror.Error)
	require.True(t, ok, "expected *multierror.Error, got %T", err)
	assert.Len(t, merr.Errors, 13)
}

func TestParseAndDump(t *testing.T) {
	cfg, err := Parse([]byte("cipher_suite: ChaCha20-Poly1305\nsession:\n  ttl: 45s\n"))
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.Session.TTL)
	assert.Equal(t, 2048, cfg.RSA.Bits)

	out, err := cfg.Dump()
	require.NoError(t, err)
	assert.Contains(t, out, "cipher_suite: ChaCha20-Poly1305")
	assert.Contains(t, out, "ttl: 45s")

	again, err := Parse([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, cfg, again)

	_, err = Parse([]byte("rsa: [not, a, map]"))
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "error"

	logger := cfg.NewLogger()
	assert.True(t, logger.Enabled(metrics.LevelError))
	assert.False(t, logger.Enabled(metrics.LevelWarn))
}
