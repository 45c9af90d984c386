package planner

import "github.com/clipforge/editpipeline/internal/job"

// capabilityOrder fixes the iteration order used for capability-hint
// scoring, matching the insertion order of the reference table so tied
// scores resolve identically.
var capabilityOrder = []job.Capability{
	job.CapabilityRemoveObject,
	job.CapabilityReplaceObject,
	job.CapabilityReplaceBackground,
	job.CapabilityStylize,
	job.CapabilityColorGrade,
	job.CapabilityRemoveLogo,
}

// toolChain is the fixed ordered tool list per capability.
var toolChain = map[job.Capability][]string{
	job.CapabilityRemoveObject: {
		"groundingdino_detect",
		"sam2_segment",
		"xmem_track",
		"propainter_inpaint",
		"temporal_smoothing",
	},
	job.CapabilityReplaceObject: {
		"target_segment_track",
		"conditional_replace",
		"edge_blend",
		"color_match",
	},
	job.CapabilityReplaceBackground: {
		"portrait_matting",
		"background_replace_or_generate",
		"lighting_match",
		"shadow_refine",
	},
	job.CapabilityStylize: {
		"keyframe_stylization",
		"temporal_propagation",
		"anti_flicker_constraint",
	},
	job.CapabilityColorGrade: {
		"lut_curve_suggestion",
		"ffmpeg_color_grading",
		"color_consistency_check",
	},
	job.CapabilityRemoveLogo: {
		"logo_text_detect",
		"track_logo",
		"local_inpaint",
		"ocr_residual_check",
	},
}

// capabilityHints are the keyword tokens scored against an instruction to
// pick a capability when none is forced.
var capabilityHints = map[job.Capability][]string{
	job.CapabilityRemoveObject:      {"remove", "erase", "delete", "去除", "移除"},
	job.CapabilityReplaceObject:     {"replace", "swap", "change object", "替换"},
	job.CapabilityReplaceBackground: {"background", "green screen", "背景", "抠像"},
	job.CapabilityStylize:           {"style", "anime", "aesthetic", "风格", "卡通"},
	job.CapabilityColorGrade:        {"color", "lut", "grading", "调色", "色调"},
	job.CapabilityRemoveLogo:        {"logo", "watermark", "text removal", "去logo", "水印"},
}

// ToolChain returns the fixed tool list for a capability.
func ToolChain(c job.Capability) []string {
	return toolChain[c]
}
