package services

import (
	"os"
)

// FeatureFlags holds runtime toggles read once at startup. Flags gate
// experiments that are not yet ordinary configuration.
type FeatureFlags struct {
	rerankShadowEnabled bool
}

func NewFeatureFlags() *FeatureFlags {
	shadow := os.Getenv("FEATURE_RERANK_SHADOW") == "true"

	return &FeatureFlags{
		rerankShadowEnabled: shadow,
	}
}

// RerankShadowEnabled reports whether reranking runs in shadow mode: the
// reranker scores and logs every search but the classical order is served.
func (f *FeatureFlags) RerankShadowEnabled() bool {
	return f.rerankShadowEnabled
}
