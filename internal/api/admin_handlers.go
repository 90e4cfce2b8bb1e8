package api

import (
	"net/http"

	"gallery-service/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) submitContactMessage(c *gin.Context) {
	var req service.ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	msg, err := h.admin.SubmitContactMessage(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *Handler) listContactMessages(c *gin.Context) {
	messages, err := h.admin.ListContactMessages(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (h *Handler) markContactMessageRead(c *gin.Context) {
	id, ok := pathID(c, "message")
	if !ok {
		return
	}

	if err := h.admin.MarkContactMessageRead(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "read": true})
}

func (h *Handler) deleteContactMessage(c *gin.Context) {
	id, ok := pathID(c, "message")
	if !ok {
		return
	}

	if err := h.admin.DeleteContactMessage(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type newsletterRequest struct {
	Email string `json:"email"`
}

func (h *Handler) subscribe(c *gin.Context) {
	var req newsletterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	sub, err := h.admin.Subscribe(c.Request.Context(), req.Email)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

// unsubscribe answers the same way whether or not the address was subscribed
func (h *Handler) unsubscribe(c *gin.Context) {
	var req newsletterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.admin.Unsubscribe(c.Request.Context(), req.Email); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "unsubscribed"})
}

func (h *Handler) listSubscribers(c *gin.Context) {
	subs, err := h.admin.ListSubscriptions(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscribers": subs})
}

func (h *Handler) listSocialMedia(c *gin.Context) {
	settings, err := h.admin.ListSocialMedia(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

func (h *Handler) getSocialMedia(c *gin.Context) {
	setting, err := h.admin.GetSocialMedia(c.Request.Context(), c.Param("platform"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, setting)
}

func (h *Handler) updateSocialMedia(c *gin.Context) {
	var in service.SocialMediaInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}

	setting, err := h.admin.UpdateSocialMedia(c.Request.Context(), c.Param("platform"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, setting)
}
