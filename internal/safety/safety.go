// Package safety implements the deterministic safety precheck: a keyword
// match against a fixed, multilingual rule table plus a risk classifier,
// with a narrowly bounded admin override path.
package safety

import (
	"strings"

	"github.com/clipforge/editpipeline/internal/job"
)

// blockRule is one entry of the fixed BLOCK_RULES table: a rule id and its
// multilingual keyword set. Kept as an ordered slice (rather than a map)
// so matched rule ids come out in a stable, deterministic order.
type blockRule struct {
	id       string
	keywords []string
}

// BlockRules is the fixed table of hard-block rules, in priority order.
var BlockRules = []blockRule{
	{
		id: "high_risk_face_swap",
		keywords: []string{
			"face swap", "deepfake", "celebrity", "public figure",
			"换脸", "仿冒",
		},
	},
	{
		id: "explicit_violence",
		keywords: []string{
			"gore", "beheading", "dismember", "blood explosion",
			"虐杀", "血腥",
		},
	},
	{
		id: "sexual_content",
		keywords: []string{
			"nude", "explicit sexual", "porn",
			"色情", "裸露",
		},
	},
	{
		id: "hate_or_terror",
		keywords: []string{
			"terror", "isis", "hate speech",
			"纳粹", "恐怖袭击",
		},
	},
}

// HighRiskKeywords are the built-in tokens that classify an instruction as
// high risk, independent of any configured additions.
var HighRiskKeywords = []string{
	"public figure", "politician", "minor", "medical", "financial advice",
	"breaking news", "名人", "未成年人", "医疗", "金融",
}

var brandKeywords = []string{
	"brand", "trademark", "logo", "watermark", "商标", "水印",
}

// Result is the outcome of a SafetyEvaluator precheck.
type Result struct {
	Allowed        bool
	BlockedRules   []string
	Reason         string
	RiskLevel      job.RiskLevel
	OverrideApplied bool
}

// ClassifyRisk classifies an instruction's risk level. configuredHighRisk
// are additional high-risk keywords from configuration, appended to the
// built-in list.
func ClassifyRisk(instruction string, configuredHighRisk []string) job.RiskLevel {
	text := strings.ToLower(instruction)

	highRisk := make([]string, 0, len(HighRiskKeywords)+len(configuredHighRisk))
	highRisk = append(highRisk, HighRiskKeywords...)
	highRisk = append(highRisk, configuredHighRisk...)
	if containsAny(text, highRisk) {
		return job.RiskHigh
	}
	if containsAny(text, brandKeywords) {
		return job.RiskMedium
	}
	return job.RiskLow
}

// Evaluate runs the safety precheck against an instruction, honoring a
// bounded admin override. allowRules is the configured override allow-list
// (SAFETY_OVERRIDE_ALLOW_RULES); configuredHighRisk is
// HIGH_RISK_REVIEW_KEYWORDS.
func Evaluate(instruction string, adminOverride bool, overrideReason string, allowRules, configuredHighRisk []string) Result {
	text := strings.ToLower(instruction)
	risk := ClassifyRisk(instruction, configuredHighRisk)

	var matched []string
	for _, rule := range BlockRules {
		if containsAny(text, rule.keywords) {
			matched = append(matched, rule.id)
		}
	}

	if len(matched) == 0 {
		return Result{Allowed: true, BlockedRules: []string{}, Reason: "Allowed", RiskLevel: risk}
	}

	allowSet := make(map[string]struct{}, len(allowRules))
	for _, r := range allowRules {
		allowSet[r] = struct{}{}
	}

	overrideOK := adminOverride &&
		strings.TrimSpace(overrideReason) != "" &&
		len(allowSet) > 0 &&
		isSubset(matched, allowSet)

	if overrideOK {
		return Result{
			Allowed:         true,
			BlockedRules:    matched,
			Reason:          "Blocked rules overridden by admin whitelist",
			RiskLevel:       risk,
			OverrideApplied: true,
		}
	}

	return Result{
		Allowed:      false,
		BlockedRules: matched,
		Reason:       "Instruction hit strict safety policy rules",
		RiskLevel:    risk,
	}
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

func isSubset(items []string, set map[string]struct{}) bool {
	for _, item := range items {
		if _, ok := set[item]; !ok {
			return false
		}
	}
	return true
}
