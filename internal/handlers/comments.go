package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"coursetalk/internal/api"
	"coursetalk/internal/forum"
)

type CommentHandler struct {
	svc *api.Service
}

func NewCommentHandler(svc *api.Service) *CommentHandler {
	return &CommentHandler{svc: svc}
}

// CreateOnThread posts a top-level response to a thread.
func (h *CommentHandler) CreateOnThread(c *gin.Context) {
	var req api.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, forum.InvalidArgumentf("%s", err.Error()))
		return
	}
	req.ThreadID = c.Param("thread_id")
	req.ParentID = ""
	comment, err := h.svc.CreateComment(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, comment)
}

// CreateReply posts a reply under an existing comment.
func (h *CommentHandler) CreateReply(c *gin.Context) {
	var req api.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, forum.InvalidArgumentf("%s", err.Error()))
		return
	}
	req.ParentID = c.Param("comment_id")
	comment, err := h.svc.CreateComment(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, comment)
}

func (h *CommentHandler) Get(c *gin.Context) {
	comment, err := h.svc.GetComment(c.Request.Context(), c.Param("comment_id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, comment)
}

// ListForThread returns a thread's comments in creation order.
func (h *CommentHandler) ListForThread(c *gin.Context) {
	comments, err := h.svc.GetThreadComments(c.Request.Context(), c.Param("thread_id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, comments)
}

type updateCommentRequest struct {
	Body              *string `json:"body"`
	Anonymous         *bool   `json:"anonymous"`
	Endorsed          *bool   `json:"endorsed"`
	EndorsementUserID string  `json:"endorsement_user_id"`
	EditingUserID     string  `json:"editing_user_id"`
	EditReasonCode    string  `json:"edit_reason_code"`
}

func (h *CommentHandler) Update(c *gin.Context) {
	var req updateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, forum.InvalidArgumentf("%s", err.Error()))
		return
	}
	update := forum.CommentUpdate{
		Body:              req.Body,
		Anonymous:         req.Anonymous,
		Endorsed:          req.Endorsed,
		EndorsementUserID: req.EndorsementUserID,
		EditingUserID:     req.EditingUserID,
		EditReasonCode:    req.EditReasonCode,
	}
	if req.EditingUserID != "" {
		if editor, err := h.svc.Backend().GetUser(c.Request.Context(), req.EditingUserID); err == nil {
			update.EditingUserUsername = editor.Username
		}
	}
	comment, err := h.svc.UpdateComment(c.Request.Context(), c.Param("comment_id"), update)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, comment)
}

func (h *CommentHandler) Delete(c *gin.Context) {
	comment, err := h.svc.DeleteComment(c.Request.Context(), c.Param("comment_id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, comment)
}
