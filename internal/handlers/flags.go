package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"coursetalk/internal/api"
	"coursetalk/internal/forum"
	"coursetalk/internal/utils"
)

type FlagHandler struct {
	svc *api.Service
}

func NewFlagHandler(svc *api.Service) *FlagHandler {
	return &FlagHandler{svc: svc}
}

type flagRequest struct {
	UserID string `json:"user_id" binding:"required"`
	All    bool   `json:"all"`
}

func (h *FlagHandler) FlagThread(c *gin.Context) {
	var req flagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, forum.InvalidArgumentf("%s", err.Error()))
		return
	}
	thread, err := h.svc.FlagThread(c.Request.Context(), c.Param("thread_id"), req.UserID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, thread)
}

// UnflagThread removes one user's flag, or with all=true retires every
// active flag on the thread.
func (h *FlagHandler) UnflagThread(c *gin.Context) {
	var req flagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		req.UserID = c.Query("user_id")
		req.All = utils.StrToBool(c.Query("all"))
	}
	thread, err := h.svc.UnflagThread(c.Request.Context(), c.Param("thread_id"), req.UserID, req.All)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, thread)
}

func (h *FlagHandler) FlagComment(c *gin.Context) {
	var req flagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, forum.InvalidArgumentf("%s", err.Error()))
		return
	}
	comment, err := h.svc.FlagComment(c.Request.Context(), c.Param("comment_id"), req.UserID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, comment)
}

func (h *FlagHandler) UnflagComment(c *gin.Context) {
	var req flagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		req.UserID = c.Query("user_id")
		req.All = utils.StrToBool(c.Query("all"))
	}
	comment, err := h.svc.UnflagComment(c.Request.Context(), c.Param("comment_id"), req.UserID, req.All)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, comment)
}
