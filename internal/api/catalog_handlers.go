package api

import (
	"errors"
	"mime"
	"net/http"
	"strconv"

	"gallery-service/internal/apperr"
	"gallery-service/internal/auth"
	"gallery-service/internal/service"

	"github.com/gin-gonic/gin"
)

// listArtworks returns the public catalog. Admins may add
// ?include_archived=true to see archived artworks too.
func (h *Handler) listArtworks(c *gin.Context) {
	ctx := c.Request.Context()

	includeArchived, _ := strconv.ParseBool(c.Query("include_archived"))
	if includeArchived && auth.IsAdmin(c) {
		artworks, err := h.catalog.ListAllArtworks(ctx)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"artworks": artworks})
		return
	}

	artworks, err := h.catalog.ListArtworks(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"artworks": artworks})
}

func (h *Handler) getArtwork(c *gin.Context) {
	artwork, err := h.catalog.GetArtwork(c.Request.Context(), c.Param("id"), auth.IsAdmin(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, artwork)
}

func (h *Handler) createArtwork(c *gin.Context) {
	var in service.ArtworkInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}

	artwork, err := h.catalog.CreateArtwork(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, artwork)
}

func (h *Handler) updateArtwork(c *gin.Context) {
	id, ok := pathID(c, "artwork")
	if !ok {
		return
	}
	var in service.ArtworkInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}

	artwork, err := h.catalog.UpdateArtwork(c.Request.Context(), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, artwork)
}

func (h *Handler) deleteArtwork(c *gin.Context) {
	id, ok := pathID(c, "artwork")
	if !ok {
		return
	}

	if err := h.catalog.DeleteArtwork(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type reorderRequest struct {
	IDs []int64 `json:"ids"`
}

func (h *Handler) reorderArtworks(c *gin.Context) {
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.catalog.ReorderArtworks(c.Request.Context(), req.IDs); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reordered", "ids": req.IDs})
}

// uploadArtworkImage accepts a multipart "file" field
func (h *Handler) uploadArtworkImage(c *gin.Context) {
	id, ok := pathID(c, "artwork")
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, apperr.Validation("invalid image", map[string]string{
				"file": "exceeds " + strconv.FormatInt(h.maxUploadBytes>>20, 10) + " MB",
			}))
			return
		}
		respondError(c, apperr.Validation("invalid image", map[string]string{"file": "a multipart file field is required"}))
		return
	}
	defer file.Close()

	contentType, _, err := mime.ParseMediaType(header.Header.Get("Content-Type"))
	if err != nil {
		contentType = ""
	}

	artwork, err := h.catalog.UploadImage(c.Request.Context(), id, header.Filename, contentType, file)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, artwork)
}
