package handlers

import (
	"encoding/base64"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/GiorgioBrux/raimu-sub001/internal/infra/adapters/postgres/repository"
)

// maxVoiceSampleBytes caps uploads; a few seconds of 16 kHz PCM is plenty
// for a timbre reference.
const maxVoiceSampleBytes = 2 << 20

// VoiceSampleHandler manages stored voice samples over REST. Join requests
// then carry the returned id instead of the raw clip.
type VoiceSampleHandler struct {
	samples repository.VoiceSampleRepository
}

func NewVoiceSampleHandler(samples repository.VoiceSampleRepository) *VoiceSampleHandler {
	return &VoiceSampleHandler{samples: samples}
}

type uploadSampleRequest struct {
	UserID string `json:"userId"`
	Data   string `json:"data"` // base64 audio
}

func (h *VoiceSampleHandler) Upload(c echo.Context) error {
	var req uploadSampleRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed request"})
	}

	if _, err := uuid.Parse(req.UserID); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "userId must be a valid uuid"})
	}

	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "data must be base64"})
	}
	if len(data) == 0 || len(data) > maxVoiceSampleBytes {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "sample is empty or too large"})
	}

	id, err := h.samples.Save(c.Request().Context(), req.UserID, data)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to store sample"})
	}

	return c.JSON(http.StatusCreated, map[string]string{"id": id})
}

func (h *VoiceSampleHandler) Get(c echo.Context) error {
	data, err := h.samples.Sample(c.Request().Context(), c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "sample not found"})
	}

	return c.Blob(http.StatusOK, "audio/wav", data)
}

func (h *VoiceSampleHandler) DeleteByUser(c echo.Context) error {
	userID := c.Param("userId")
	if _, err := uuid.Parse(userID); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "userId must be a valid uuid"})
	}

	if err := h.samples.DeleteByUser(c.Request().Context(), userID); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to delete samples"})
	}

	return c.NoContent(http.StatusNoContent)
}
