package modelmanager

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/clipforge/editpipeline/internal/config"
)

func TestDefaultModelBundle(t *testing.T) {
	if got := DefaultModelBundle(config.RuntimeModeAPI); got != "api_remote_bundle" {
		t.Errorf("expected api_remote_bundle, got %s", got)
	}
	if got := DefaultModelBundle(config.RuntimeModeLocal); got != "balanced_12g_bundle" {
		t.Errorf("expected balanced_12g_bundle, got %s", got)
	}
}

func TestRecommendBundlesAPIModeReturnsSingleBundle(t *testing.T) {
	specs, best := RecommendBundles(config.RuntimeModeAPI, DeviceProfile{})
	if len(specs) != 1 || specs[0].Name != "api_remote_bundle" {
		t.Fatalf("expected exactly the api_remote_bundle, got %#v", specs)
	}
	if best != "api_remote_bundle" {
		t.Errorf("expected best api_remote_bundle, got %s", best)
	}
}

func TestRecommendBundlesLocalModePicksBestFitByVRAM(t *testing.T) {
	_, best := RecommendBundles(config.RuntimeModeLocal, DeviceProfile{GPUCount: 1, GPUVRAMGB: 24})
	if best != "quality_24g_bundle" {
		t.Errorf("expected quality_24g_bundle for 24GB VRAM, got %s", best)
	}

	_, best = RecommendBundles(config.RuntimeModeLocal, DeviceProfile{GPUCount: 1, GPUVRAMGB: 12})
	if best != "balanced_12g_bundle" {
		t.Errorf("expected balanced_12g_bundle for 12GB VRAM, got %s", best)
	}
}

func TestRecommendBundlesNoGPUForcesLiteBundle(t *testing.T) {
	// A host reporting nonzero VRAM but zero GPUs (e.g. an unusual stub) is
	// still forced to lite_cpu_bundle.
	_, best := RecommendBundles(config.RuntimeModeLocal, DeviceProfile{GPUCount: 0, GPUVRAMGB: 24})
	if best != "lite_cpu_bundle" {
		t.Errorf("expected lite_cpu_bundle when GPUCount is 0, got %s", best)
	}
}

func TestDetectDeviceProfileDefaultsToNoGPUDetector(t *testing.T) {
	profile := DetectDeviceProfile(nil)
	if profile.GPUCount != 0 || profile.CUDAAvailable {
		t.Errorf("expected nil detector to fall back to NoGPUDetector, got %#v", profile)
	}
	if profile.CPUCores <= 0 {
		t.Errorf("expected CPUCores to reflect runtime.NumCPU(), got %d", profile.CPUCores)
	}
}

func TestInstallBundleSkippedInAPIMode(t *testing.T) {
	result := InstallBundle(config.RuntimeModeAPI, true, t.TempDir(), "quality_24g_bundle")
	if result.Status != "skipped" {
		t.Errorf("expected skipped in api mode, got %s", result.Status)
	}
}

func TestInstallBundleSkippedWhenNotAllowed(t *testing.T) {
	result := InstallBundle(config.RuntimeModeLocal, false, t.TempDir(), "quality_24g_bundle")
	if result.Status != "skipped" {
		t.Errorf("expected skipped when AllowLocalModelInstall is false, got %s", result.Status)
	}
}

func TestInstallBundleWritesManifest(t *testing.T) {
	dir := t.TempDir()
	result := InstallBundle(config.RuntimeModeLocal, true, dir, "lite_cpu_bundle")
	if result.Status != "installed" {
		t.Fatalf("expected installed, got %s (%s)", result.Status, result.Message)
	}

	manifestPath := filepath.Join(dir, "lite_cpu_bundle", "manifest.json")
	if _, err := os.Stat(manifestPath); err != nil {
		t.Fatalf("expected manifest at %s: %v", manifestPath, err)
	}
}
