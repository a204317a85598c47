package domain

import "strings"

// TenantConfig carries everything the pipeline needs to act for one tenant.
// It is passed by value into stage executors and the persistence router so
// concurrent jobs for different tenants never share mutable state.
type TenantConfig struct {
	ID           string
	Email        string
	SystemPrompt string
	WritingStyle string

	TopicQueries   []string
	LastQueryIndex int

	BrandPrimaryColor string
	BrandAccentColor  string

	CMSBaseURL     string
	CMSUsername    string
	CMSAppPassword string

	ScheduleJSON []byte

	AutoRechargeEnabled        bool
	AutoRechargeThresholdCents int64
	AutoRechargeAmountCents    int64
	PaymentCustomerRef         string

	BalanceCents int64
}

// CMSConfigured reports whether the tenant can receive CMS drafts.
func (t TenantConfig) CMSConfigured() bool {
	return strings.TrimSpace(t.CMSBaseURL) != "" &&
		strings.TrimSpace(t.CMSUsername) != "" &&
		strings.TrimSpace(t.CMSAppPassword) != ""
}

// NextTopicQuery rotates through the tenant's saved topic queries, returning
// the selected query and the updated rotation index. Empty slots are skipped.
func (t TenantConfig) NextTopicQuery() (string, int, bool) {
	n := len(t.TopicQueries)
	if n == 0 {
		return "", t.LastQueryIndex, false
	}
	for i := 0; i < n; i++ {
		idx := (t.LastQueryIndex + 1 + i) % n
		if q := strings.TrimSpace(t.TopicQueries[idx]); q != "" {
			return q, idx, true
		}
	}
	return "", t.LastQueryIndex, false
}

// PipelineConfig parameterizes the single orchestrator. Variant behavior
// (models, budgets) lives here rather than in forked code paths.
type PipelineConfig struct {
	ResearchModel string
	TextModel     string
	ImageModel    string
	FormatModel   string

	SectionImages    int // in addition to the hero
	ArticleCostCents int64
	FormatterCeiling int
}

// ImageCount returns the total number of images a job produces.
func (c PipelineConfig) ImageCount() int {
	return c.SectionImages + 1
}
