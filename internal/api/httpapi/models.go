package httpapi

import (
	"net/http"

	"github.com/clipforge/editpipeline/internal/modelmanager"
)

func (s *Server) handleRecommendModels(w http.ResponseWriter, r *http.Request) {
	var req modelRecommendationRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}

	profile := modelmanager.DetectDeviceProfile(s.DeviceDetector)
	bundles, defaultBundle := modelmanager.RecommendBundles(s.Config.ModelRuntimeMode, profile)

	apiProvider := "none"
	if s.Config.ModelRuntimeMode == "api" {
		apiProvider = "remote"
	}

	writeJSON(w, http.StatusOK, modelRecommendationResponse{
		Device: profile, Bundles: bundles, DefaultBundle: defaultBundle,
		RuntimeMode: string(s.Config.ModelRuntimeMode), APIProvider: apiProvider,
	})
}

func (s *Server) handleInstallModel(w http.ResponseWriter, r *http.Request) {
	var req modelInstallRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, r, errValidation(err.Error()))
		return
	}

	result := modelmanager.InstallBundle(s.Config.ModelRuntimeMode, s.Config.AllowLocalModelInstall, "models", req.BundleName)
	writeJSON(w, http.StatusOK, modelInstallResponse{
		BundleName: req.BundleName, Status: result.Status,
		InstallPath: result.InstallPath, Message: result.Message,
	})
}
