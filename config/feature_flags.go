package config

import (
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// FeatureFlags manages feature toggles with gradual rollout.
// Installations are bucketed by a stable hash of their ID, so a given
// installation stays in or out of a partial rollout across restarts.
type FeatureFlags struct {
	mu sync.RWMutex

	features map[string]*Feature

	// Override rules (for testing/debugging)
	overrides map[string]map[string]bool // installationID -> feature -> enabled

	now func() time.Time
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// Rollout percentage (0-100)
	RolloutPercent int

	// Time-based activation
	EnabledFrom  *time.Time
	EnabledUntil *time.Time

	// A/B test variants
	Variants []string
}

// FeatureContext provides context for feature flag evaluation.
type FeatureContext struct {
	InstallationID string
	IsAdmin        bool
}

// Predefined feature flag names.
const (
	// === Notifications ===
	FeatureNotifyXP          = "notify.xp"          // "+N XP" toasts
	FeatureNotifyLevelUp     = "notify.level_up"    // level-up celebration
	FeatureNotifyAchievement = "notify.achievement" // achievement unlock toasts
	FeatureNotifyChallenge   = "notify.challenge"   // challenge completion toasts

	// === Recommendations ===
	FeatureRemoteRecommendations = "recommendations.remote" // call the remote service before falling back

	// === Gamification ===
	FeatureSpecialChallenges = "gamification.special_challenges" // Earth Day and other dated events

	// === Experimental ===
	FeatureExperimentalPubSub = "experimental.notification_pubsub" // mirror notifications to Redis
)

// LoadFeatureFlags builds the defaults and applies overrides from environ
// (or the process environment when environ is nil).
func LoadFeatureFlags(environ map[string]string) *FeatureFlags {
	ff := &FeatureFlags{
		features:  make(map[string]*Feature),
		overrides: make(map[string]map[string]bool),
		now:       time.Now,
	}

	ff.initializeDefaults()

	lookup := os.Getenv
	if environ != nil {
		lookup = func(k string) string { return environ[k] }
	}
	ff.loadFromEnvironment(lookup)

	return ff
}

// initializeDefaults sets up all features with default values.
func (ff *FeatureFlags) initializeDefaults() {
	for _, f := range []*Feature{
		{Name: FeatureNotifyXP, Description: "Show XP toasts after actions", Enabled: true, RolloutPercent: 100},
		{Name: FeatureNotifyLevelUp, Description: "Show level-up celebration", Enabled: true, RolloutPercent: 100},
		{Name: FeatureNotifyAchievement, Description: "Show achievement unlock toasts", Enabled: true, RolloutPercent: 100},
		{Name: FeatureNotifyChallenge, Description: "Show challenge completion toasts", Enabled: true, RolloutPercent: 100},
		{Name: FeatureRemoteRecommendations, Description: "Query the remote recommendation service", Enabled: true, RolloutPercent: 100},
		{Name: FeatureSpecialChallenges, Description: "Dated special challenges", Enabled: true, RolloutPercent: 100},
		{Name: FeatureExperimentalPubSub, Description: "Publish notifications to Redis pub/sub", Enabled: false, RolloutPercent: 0},
	} {
		ff.features[f.Name] = f
	}
}

// loadFromEnvironment loads feature flag overrides from env vars.
// Format: FEATURE_<NAME>=true|false|<percent>
// Example: FEATURE_NOTIFY_XP=false
// Example: FEATURE_RECOMMENDATIONS_REMOTE=50 (50% rollout)
func (ff *FeatureFlags) loadFromEnvironment(lookup func(string) string) {
	for name, feature := range ff.features {
		val := lookup(featureNameToEnvKey(name))
		if val == "" {
			continue
		}

		if b, err := strconv.ParseBool(val); err == nil {
			feature.Enabled = b
			if b {
				feature.RolloutPercent = 100
			} else {
				feature.RolloutPercent = 0
			}
			continue
		}

		if p, err := strconv.Atoi(val); err == nil && p >= 0 && p <= 100 {
			feature.Enabled = p > 0
			feature.RolloutPercent = p
		}
	}
}

// featureNameToEnvKey converts feature name to environment variable key.
// "notify.level_up" -> "FEATURE_NOTIFY_LEVEL_UP"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled checks if a feature is enabled for the given context.
func (ff *FeatureFlags) IsEnabled(featureName string, ctx *FeatureContext) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()
	return ff.isEnabledLocked(featureName, ctx)
}

func (ff *FeatureFlags) isEnabledLocked(featureName string, ctx *FeatureContext) bool {
	if ctx != nil && ctx.InstallationID != "" {
		if o, ok := ff.overrides[ctx.InstallationID]; ok {
			if enabled, ok := o[featureName]; ok {
				return enabled
			}
		}
	}

	feature, ok := ff.features[featureName]
	if !ok {
		return false
	}

	if ctx != nil && ctx.IsAdmin {
		return true
	}

	if !feature.Enabled {
		return false
	}

	now := ff.now()
	if feature.EnabledFrom != nil && now.Before(*feature.EnabledFrom) {
		return false
	}
	if feature.EnabledUntil != nil && now.After(*feature.EnabledUntil) {
		return false
	}

	if feature.RolloutPercent < 100 && ctx != nil && ctx.InstallationID != "" {
		return inRollout(ctx.InstallationID, featureName, feature.RolloutPercent)
	}

	return feature.RolloutPercent > 0
}

// inRollout maps installation+feature to a stable bucket 0-99.
func inRollout(installationID, featureName string, percent int) bool {
	return bucket(featureName+":"+installationID, 100) < uint64(percent)
}

func bucket(key string, n uint64) uint64 {
	return xxhash.Sum64String(key) % n
}

// GetVariant returns the A/B test variant for an installation.
// Returns empty string if no variants defined or feature disabled.
func (ff *FeatureFlags) GetVariant(featureName string, ctx *FeatureContext) string {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	feature, ok := ff.features[featureName]
	if !ok || ctx == nil || !ff.isEnabledLocked(featureName, ctx) {
		return ""
	}
	if len(feature.Variants) == 0 {
		return ""
	}

	i := bucket(featureName+":variant:"+ctx.InstallationID, uint64(len(feature.Variants)))
	return feature.Variants[i]
}

// SetOverride forces a feature on or off for one installation.
func (ff *FeatureFlags) SetOverride(installationID, featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if _, ok := ff.overrides[installationID]; !ok {
		ff.overrides[installationID] = make(map[string]bool)
	}
	ff.overrides[installationID][featureName] = enabled
}

// ClearOverrides removes all overrides for an installation.
func (ff *FeatureFlags) ClearOverrides(installationID string) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	delete(ff.overrides, installationID)
}

// SetRolloutPercent updates the rollout percentage for a feature.
// Thread-safe for live updates.
func (ff *FeatureFlags) SetRolloutPercent(featureName string, percent int) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}
	if percent < 0 || percent > 100 {
		return ErrInvalidRolloutPercent
	}

	feature.RolloutPercent = percent
	feature.Enabled = percent > 0
	return nil
}

// EnableFeature enables a feature at 100% rollout.
func (ff *FeatureFlags) EnableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 100)
}

// DisableFeature disables a feature completely.
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 0)
}

// GetAllFeatures returns a copy of all feature configurations.
func (ff *FeatureFlags) GetAllFeatures() map[string]*Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	result := make(map[string]*Feature, len(ff.features))
	for k, v := range ff.features {
		featureCopy := *v
		result[k] = &featureCopy
	}
	return result
}

// Names returns feature names sorted.
func (ff *FeatureFlags) Names() []string {
	ff.mu.RLock()
	defer ff.mu.RUnlock()
	return slices.Sorted(maps.Keys(ff.features))
}

// --- Errors ---

var (
	ErrFeatureNotFound       = &FeatureFlagError{Message: "feature not found"}
	ErrInvalidRolloutPercent = &FeatureFlagError{Message: "rollout percent must be 0-100"}
)

// FeatureFlagError represents a feature flag error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return e.Message
}
