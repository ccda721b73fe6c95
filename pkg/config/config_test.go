package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("RECOMMENDER_FALLBACK", "")
	t.Setenv("ASSIGNMENT_DUE_OFFSET", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 7*24*time.Hour, cfg.Assignments.DueOffset)
	assert.Equal(t, RecommenderKeyword, cfg.Recommender.Provider)
	assert.Equal(t, FallbackError, cfg.Recommender.FallbackPolicy)
}

func TestLoadFallbackModuleRequiresID(t *testing.T) {
	t.Setenv("RECOMMENDER_FALLBACK", "module")
	t.Setenv("RECOMMENDER_FALLBACK_MODULE_ID", "")

	_, err := Load()
	require.Error(t, err)

	t.Setenv("RECOMMENDER_FALLBACK_MODULE_ID", "module-1")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "module-1", cfg.Recommender.FallbackModuleID)
}

func TestParseDurationFallback(t *testing.T) {
	assert.Equal(t, time.Minute, parseDuration("", time.Minute))
	assert.Equal(t, time.Minute, parseDuration("soon", time.Minute))
	assert.Equal(t, 90*time.Second, parseDuration("90s", time.Minute))
}

func TestSplitAndTrim(t *testing.T) {
	assert.Nil(t, splitAndTrim(""))
	assert.Equal(t, []string{"http://a", "http://b"}, splitAndTrim(" http://a, ,http://b "))
}

func TestCertificateShareSecretFallsBackToJWT(t *testing.T) {
	t.Setenv("JWT_SECRET", "jwt-secret")
	t.Setenv("CERTIFICATE_SHARE_SECRET", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "jwt-secret", cfg.Certificate.ShareSecret)
	assert.Equal(t, 7*24*time.Hour, cfg.Certificate.ShareTTL)
}

func TestSubmissionGuardTTLCoversBudget(t *testing.T) {
	t.Setenv("SUBMISSION_TIMEOUT", "2m")
	t.Setenv("SUBMISSION_GUARD_TTL", "30s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, cfg.Assignments.OrchestrationBudget)
	assert.Equal(t, 2*time.Minute+guardTTLSlack, cfg.Assignments.SubmissionGuardTTL)

	t.Setenv("SUBMISSION_TIMEOUT", "")
	t.Setenv("SUBMISSION_GUARD_TTL", "")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.Assignments.OrchestrationBudget)
	assert.Equal(t, 60*time.Second, cfg.Assignments.SubmissionGuardTTL)
}
