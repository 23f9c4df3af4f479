package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"coursetalk/internal/api"
	"coursetalk/internal/forum"
)

type SubscriptionHandler struct {
	svc *api.Service
}

func NewSubscriptionHandler(svc *api.Service) *SubscriptionHandler {
	return &SubscriptionHandler{svc: svc}
}

type subscribeRequest struct {
	SourceID   string `json:"source_id" binding:"required"`
	SourceType string `json:"source_type"`
}

func (h *SubscriptionHandler) Subscribe(c *gin.Context) {
	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, forum.InvalidArgumentf("%s", err.Error()))
		return
	}
	sub, err := h.svc.Subscribe(c.Request.Context(), c.Param("user_id"), req.SourceID, req.SourceType)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

func (h *SubscriptionHandler) Unsubscribe(c *gin.Context) {
	sourceID := c.Query("source_id")
	if sourceID == "" {
		abortWithError(c, forum.InvalidArgumentf("source_id required"))
		return
	}
	if err := h.svc.Unsubscribe(c.Request.Context(), c.Param("user_id"), sourceID); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

// ListSubscribed pages through the course threads the user follows.
func (h *SubscriptionHandler) ListSubscribed(c *gin.Context) {
	if err := h.svc.ValidateThreadListParams(c.Request.Context(), c.Request.URL.Query()); err != nil {
		abortWithError(c, err)
		return
	}
	result, err := h.svc.ListSubscribedThreads(c.Request.Context(), c.Param("user_id"), bindThreadListRequest(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ThreadSubscribers lists the subscriptions pointing at a thread.
func (h *SubscriptionHandler) ThreadSubscribers(c *gin.Context) {
	subs, err := h.svc.GetThreadSubscribers(c.Request.Context(), c.Param("thread_id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, subs)
}
