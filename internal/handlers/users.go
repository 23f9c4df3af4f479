package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"coursetalk/internal/api"
	"coursetalk/internal/forum"
	"coursetalk/internal/utils"
)

type UserHandler struct {
	svc *api.Service
}

func NewUserHandler(svc *api.Service) *UserHandler {
	return &UserHandler{svc: svc}
}

type upsertUserRequest struct {
	ID       string `json:"id" binding:"required"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Create upserts the forum-side user record.
func (h *UserHandler) Create(c *gin.Context) {
	var req upsertUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, forum.InvalidArgumentf("%s", err.Error()))
		return
	}
	user, err := h.svc.FindOrCreateUser(c.Request.Context(), req.ID, req.Username, req.Email)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// Get returns the user, with course stats when course_id is given.
func (h *UserHandler) Get(c *gin.Context) {
	profile, err := h.svc.GetUserProfile(c.Request.Context(), c.Param("user_id"), c.Query("course_id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

type updateUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

func (h *UserHandler) Update(c *gin.Context) {
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, forum.InvalidArgumentf("%s", err.Error()))
		return
	}
	user, err := h.svc.UpdateUser(c.Request.Context(), c.Param("user_id"), req.Username, req.Email)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

type retireUserRequest struct {
	RetiredUsername string `json:"retired_username" binding:"required"`
}

// Retire blanks the user's identity and retires all their content.
func (h *UserHandler) Retire(c *gin.Context) {
	var req retireUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, forum.InvalidArgumentf("%s", err.Error()))
		return
	}
	if err := h.svc.RetireUser(c.Request.Context(), c.Param("user_id"), req.RetiredUsername); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

type markReadRequest struct {
	SourceID string `json:"source_id" binding:"required"`
}

// MarkRead stamps the user's read state for a thread.
func (h *UserHandler) MarkRead(c *gin.Context) {
	var req markReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, forum.InvalidArgumentf("%s", err.Error()))
		return
	}
	if err := h.svc.MarkThreadAsRead(c.Request.Context(), c.Param("user_id"), req.SourceID); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

// ListThreads pages through the threads a user authored in a course.
func (h *UserHandler) ListThreads(c *gin.Context) {
	if err := h.svc.ValidateThreadListParams(c.Request.Context(), c.Request.URL.Query()); err != nil {
		abortWithError(c, err)
		return
	}
	result, err := h.svc.ListUserThreads(c.Request.Context(), c.Param("user_id"), bindThreadListRequest(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Stats lists per-user activity stats of a course.
func (h *UserHandler) Stats(c *gin.Context) {
	q := forum.UserStatsQuery{
		SortKey: c.Query("sort_key"),
		Page:    utils.StringToInt(c.Query("page")),
		PerPage: utils.StringToInt(c.Query("per_page")),
	}
	if usernames := c.Query("usernames"); usernames != "" {
		q.Usernames = utils.SplitCSV(usernames)
	}
	page, err := h.svc.GetUserStats(c.Request.Context(), c.Param("course_id"), q)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// RebuildStats recomputes the stats of every author in the course.
func (h *UserHandler) RebuildStats(c *gin.Context) {
	userIDs, err := h.svc.RebuildCourseStats(c.Request.Context(), c.Param("course_id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_ids": userIDs})
}
