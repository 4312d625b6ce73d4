package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/Capitan-Parrot/distributed-video-system/zoneguard/internal/runner"
)

const maxImageSize = 10 << 20

// DetectHandler runs one uploaded frame through the same pipeline as frames from Kafka.
func (h *Handlers) DetectHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxImageSize); err != nil {
		http.Error(w, "Could not parse multipart form", http.StatusBadRequest)
		return
	}

	cameraID := r.FormValue("camera_id")
	if cameraID == "" {
		http.Error(w, "camera_id is required", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		http.Error(w, "Image file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if header.Size == 0 {
		http.Error(w, "Image file is empty", http.StatusBadRequest)
		return
	}
	if header.Size > maxImageSize {
		http.Error(w, "Image file exceeds 10 MiB", http.StatusRequestEntityTooLarge)
		return
	}

	image, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Failed to read image", http.StatusBadRequest)
		return
	}

	res, err := h.frames.ProcessFrame(r.Context(), runner.Frame{
		CameraID: cameraID,
		Image:    image,
		Source:   runner.SourceAPI,
	})
	if err != nil {
		if errors.Is(err, runner.ErrDetection) {
			http.Error(w, "Detection service unavailable", http.StatusBadGateway)
			return
		}
		http.Error(w, "Failed to process frame", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, res)
}
