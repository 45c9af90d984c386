// Package modelmanager implements the device-profile recommendation and
// local model-bundle install surface backing POST /api/v1/models/recommend
// and POST /api/v1/models/install. Actual device detection and disk
// installation are opaque-to-the-core concerns; this package exposes a
// fixed bundle catalog and install-gating rules rather than touching real
// hardware or a real model store.
package modelmanager

import (
	"fmt"
	"os"
	"runtime"

	"github.com/clipforge/editpipeline/internal/config"
)

// DeviceProfile describes the host's detected (or stubbed) hardware.
type DeviceProfile struct {
	GPUName       string `json:"gpu_name,omitempty"`
	GPUCount      int    `json:"gpu_count"`
	GPUVRAMGB     int    `json:"gpu_vram_gb"`
	CUDAAvailable bool   `json:"cuda_available"`
	CPUCores      int    `json:"cpu_cores"`
	MemoryGB      int    `json:"memory_gb"`
	DiskFreeGB    int    `json:"disk_free_gb"`
}

// BundleSpec describes one installable model bundle, annotated with
// whether it's recommended for the caller's detected DeviceProfile.
type BundleSpec struct {
	Name                 string   `json:"name"`
	MinVRAMGB            int      `json:"min_vram_gb"`
	EstimatedTimeMinutes int      `json:"estimated_time_minutes"`
	DownloadSizeGB       float64  `json:"download_size_gb"`
	QualityTier          string   `json:"quality_tier"`
	EnabledModules       []string `json:"enabled_modules"`
	Recommended          bool     `json:"recommended"`
}

// Bundles is the fixed local-mode catalog, transcribed verbatim from
// video_platform/services/model_manager.py's BUNDLES.
var Bundles = []BundleSpec{
	{
		Name:                 "quality_24g_bundle",
		MinVRAMGB:            24,
		EstimatedTimeMinutes: 10,
		DownloadSizeGB:       18.0,
		QualityTier:          "high",
		EnabledModules:       []string{"full_qa", "temporal_constraints", "high_quality_generation"},
	},
	{
		Name:                 "balanced_12g_bundle",
		MinVRAMGB:            12,
		EstimatedTimeMinutes: 14,
		DownloadSizeGB:       9.5,
		QualityTier:          "balanced",
		EnabledModules:       []string{"core_qa", "reduced_batch_generation"},
	},
	{
		Name:                 "lite_cpu_bundle",
		MinVRAMGB:            0,
		EstimatedTimeMinutes: 25,
		DownloadSizeGB:       1.2,
		QualityTier:          "lite",
		EnabledModules:       []string{"workflow_debug", "basic_tools_only"},
	},
}

// apiRemoteBundle is the single synthetic bundle advertised under
// MODEL_RUNTIME_MODE=api.
var apiRemoteBundle = BundleSpec{
	Name:                 "api_remote_bundle",
	MinVRAMGB:            0,
	EstimatedTimeMinutes: 6,
	DownloadSizeGB:       0,
	QualityTier:          "remote",
	EnabledModules:       []string{"remote_multimodal_llm", "remote_video_edit_model"},
	Recommended:          true,
}

// DefaultModelBundle returns the model_bundle a new Job is stamped with at
// creation time when the caller hasn't forced one, per SPEC_FULL.md's
// supplemented "default model bundle naming" rule.
func DefaultModelBundle(mode config.RuntimeMode) string {
	if mode == config.RuntimeModeAPI {
		return apiRemoteBundle.Name
	}
	return "balanced_12g_bundle"
}

// DeviceDetector abstracts hardware probing so tests can stub it without
// touching the real host. GPUProbe is the only piece that plausibly fails
// or requires an external binary (nvidia-smi); the CPU core count comes
// from the Go runtime. Memory and free disk are not probed.
type DeviceDetector interface {
	// DetectGPU reports the first GPU's name, total count, and minimum VRAM
	// across GPUs in gigabytes, plus whether CUDA is usable. A detector with
	// no GPU (or that can't probe one) returns ("", 0, 0, false).
	DetectGPU() (name string, count int, vramGB int, cudaAvailable bool)
}

// NoGPUDetector always reports no GPU present, used as the default when no
// real probe is wired in.
type NoGPUDetector struct{}

func (NoGPUDetector) DetectGPU() (string, int, int, bool) { return "", 0, 0, false }

// DetectDeviceProfile builds a DeviceProfile from detector plus
// runtime.NumCPU for the CPU core count. MemoryGB and DiskFreeGB are not
// probed and are always reported as 0.
func DetectDeviceProfile(detector DeviceDetector) DeviceProfile {
	if detector == nil {
		detector = NoGPUDetector{}
	}
	name, count, vram, cuda := detector.DetectGPU()
	return DeviceProfile{
		GPUName:       name,
		GPUCount:      count,
		GPUVRAMGB:     vram,
		CUDAAvailable: cuda,
		CPUCores:      runtime.NumCPU(),
		MemoryGB:      0,
		DiskFreeGB:    0,
	}
}

// RecommendBundles returns the bundle catalog for the configured runtime
// mode, each annotated with whether profile's VRAM satisfies it, plus the
// single best-fit default bundle name. Mirrors recommend_bundles exactly,
// including the "no GPU at all forces lite_cpu_bundle" special case.
func RecommendBundles(mode config.RuntimeMode, profile DeviceProfile) ([]BundleSpec, string) {
	if mode == config.RuntimeModeAPI {
		return []BundleSpec{apiRemoteBundle}, apiRemoteBundle.Name
	}

	specs := make([]BundleSpec, len(Bundles))
	for i, b := range Bundles {
		specs[i] = b
		specs[i].Recommended = profile.GPUVRAMGB >= b.MinVRAMGB
	}

	best := "lite_cpu_bundle"
	for _, candidate := range []string{"quality_24g_bundle", "balanced_12g_bundle", "lite_cpu_bundle"} {
		if bestCandidate(specs, candidate) {
			best = candidate
			break
		}
	}
	if profile.GPUCount == 0 {
		best = "lite_cpu_bundle"
	}
	return specs, best
}

func bestCandidate(specs []BundleSpec, name string) bool {
	for _, s := range specs {
		if s.Name == name && s.Recommended {
			return true
		}
	}
	return false
}

// InstallResult is the outcome of InstallBundle.
type InstallResult struct {
	Status      string // "installed" or "skipped"
	InstallPath string
	Message     string
}

// InstallBundle installs bundleName's placeholder manifest to
// {models_dir}/{bundle_name}/manifest.json, but only when runtime mode is
// local AND local installs are allowed by configuration; otherwise it
// returns a "skipped" result with an explanatory message rather than
// erroring, matching install_bundle's own two-guard short-circuit.
func InstallBundle(mode config.RuntimeMode, allowLocalInstall bool, modelsDir, bundleName string) InstallResult {
	if mode != config.RuntimeModeLocal {
		return InstallResult{Status: "skipped", Message: "Local bundle installation is disabled in API runtime mode."}
	}
	if !allowLocalInstall {
		return InstallResult{Status: "skipped", Message: "Local bundle installation is disabled by configuration."}
	}

	targetDir := modelsDir + "/" + bundleName
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return InstallResult{Status: "skipped", Message: fmt.Sprintf("create install dir: %s", err)}
	}
	manifest := fmt.Sprintf(`{"bundle_name":%q,"status":"installed","source":"local-placeholder"}`, bundleName)
	if err := os.WriteFile(targetDir+"/manifest.json", []byte(manifest), 0o644); err != nil {
		return InstallResult{Status: "skipped", Message: fmt.Sprintf("write manifest: %s", err)}
	}
	return InstallResult{Status: "installed", InstallPath: targetDir}
}
