package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"coursetalk/internal/api"
	"coursetalk/internal/forum"
)

type VoteHandler struct {
	svc *api.Service
}

func NewVoteHandler(svc *api.Service) *VoteHandler {
	return &VoteHandler{svc: svc}
}

type voteRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Value  string `json:"value"`
}

func (h *VoteHandler) VoteThread(c *gin.Context) {
	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, forum.InvalidArgumentf("%s", err.Error()))
		return
	}
	thread, err := h.svc.VoteOnThread(c.Request.Context(), c.Param("thread_id"), req.UserID, req.Value)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, thread)
}

func (h *VoteHandler) UnvoteThread(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		abortWithError(c, forum.InvalidArgumentf("user_id required"))
		return
	}
	thread, err := h.svc.RemoveThreadVote(c.Request.Context(), c.Param("thread_id"), userID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, thread)
}

func (h *VoteHandler) VoteComment(c *gin.Context) {
	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, forum.InvalidArgumentf("%s", err.Error()))
		return
	}
	comment, err := h.svc.VoteOnComment(c.Request.Context(), c.Param("comment_id"), req.UserID, req.Value)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, comment)
}

func (h *VoteHandler) UnvoteComment(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		abortWithError(c, forum.InvalidArgumentf("user_id required"))
		return
	}
	comment, err := h.svc.RemoveCommentVote(c.Request.Context(), c.Param("comment_id"), userID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, comment)
}
