// Package planner maps an instruction, plus prior QA issues and an
// optional forced capability, to an EditPlan. Planning is a pure function
// of its inputs: no I/O, no randomness, no wall-clock dependence.
package planner

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/clipforge/editpipeline/internal/job"
)

var logoShortcutTokens = []string{"logo", "watermark", "去logo", "水印"}

type scoredCapability struct {
	score       int
	specificity int
	capability  job.Capability
}

// DetectCapability picks a Capability for an instruction. A non-empty
// forced capability always wins. Otherwise a fixed logo/watermark shortcut
// takes priority over keyword scoring, and scoring falls back to
// replace_object when nothing matches.
//
// Tie-breaking matches the reference scorer exactly: Python's
// list.sort(key=..., reverse=True) is stable even in reverse — elements
// with equal keys keep their original relative order — so among equal
// top (score, specificity) values, the earlier candidate in table order
// wins. That is a plain descending stable sort, not an ascending sort
// followed by a full reversal (which would flip tied elements' order).
func DetectCapability(instruction string, forced job.Capability) job.Capability {
	if forced != "" {
		return forced
	}

	normalized := strings.ToLower(instruction)

	for _, token := range logoShortcutTokens {
		if strings.Contains(normalized, token) {
			return job.CapabilityRemoveLogo
		}
	}

	var scored []scoredCapability
	for _, capability := range capabilityOrder {
		hints := capabilityHints[capability]
		var matched []string
		for _, token := range hints {
			if strings.Contains(normalized, token) {
				matched = append(matched, token)
			}
		}
		if len(matched) == 0 {
			continue
		}
		score := 0
		specificity := 0
		for _, token := range matched {
			length := utf8.RuneCountInString(token)
			if length >= 6 {
				score += 2
			} else {
				score++
			}
			if length > specificity {
				specificity = length
			}
		}
		scored = append(scored, scoredCapability{score: score, specificity: specificity, capability: capability})
	}

	if len(scored) == 0 {
		return job.CapabilityReplaceObject
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].specificity > scored[j].specificity
	})
	return scored[0].capability
}

// BuildFixMap turns a set of prior QA issues into fix-map entries the next
// iteration's plan carries. Zero prior issues yields an empty slice.
func BuildFixMap(priorIssues []job.Issue) []job.FixMapEntry {
	fixMap := make([]job.FixMapEntry, 0, len(priorIssues))
	for _, issue := range priorIssues {
		code := issue.Code
		if code == "" {
			code = "unknown_issue"
		}
		description := issue.Description
		if description == "" {
			description = "improve quality"
		}
		fixMap = append(fixMap, job.FixMapEntry{
			FixPoint:            code,
			ToolAction:          fmt.Sprintf("adjust_pipeline_for_%s", code),
			ExpectedImprovement: description,
		})
	}
	return fixMap
}

// GeneratePlan builds the EditPlan for one iteration. iterationBudget is
// the configured MAX_ITERATIONS.
func GeneratePlan(instruction, modelBundle string, priorIssues []job.Issue, forced job.Capability, iterationBudget int) job.EditPlan {
	capability := DetectCapability(instruction, forced)
	return job.EditPlan{
		Capability:      capability,
		ToolChain:       ToolChain(capability),
		ModelBundle:     modelBundle,
		IterationBudget: iterationBudget,
		Constraints: job.PlanConstraints{
			MaxResolution:      "1920x1080",
			MaxDurationSeconds: 30,
			QualityPriority:    true,
			StrictSafety:       true,
		},
		FixMap: BuildFixMap(priorIssues),
	}
}
