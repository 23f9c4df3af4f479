package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"coursetalk/internal/api"
	"coursetalk/internal/forum"
	"coursetalk/internal/utils"
)

type ThreadHandler struct {
	svc *api.Service
}

func NewThreadHandler(svc *api.Service) *ThreadHandler {
	return &ThreadHandler{svc: svc}
}

// List pages through a course's threads. Unknown query parameters are
// rejected by name.
func (h *ThreadHandler) List(c *gin.Context) {
	if err := h.svc.ValidateThreadListParams(c.Request.Context(), c.Request.URL.Query()); err != nil {
		abortWithError(c, err)
		return
	}
	result, err := h.svc.ListThreads(c.Request.Context(), bindThreadListRequest(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Search resolves the text against the search index first, then pages
// through the matching threads.
func (h *ThreadHandler) Search(c *gin.Context) {
	if err := h.svc.ValidateThreadListParams(c.Request.Context(), c.Request.URL.Query()); err != nil {
		abortWithError(c, err)
		return
	}
	result, err := h.svc.SearchThreads(c.Request.Context(), c.Query("text"), bindThreadListRequest(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *ThreadHandler) Get(c *gin.Context) {
	userID := c.Query("user_id")
	markRead := utils.StrToBool(c.Query("mark_as_read"))
	thread, err := h.svc.GetThread(c.Request.Context(), c.Param("thread_id"), userID, markRead)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, thread)
}

func (h *ThreadHandler) Create(c *gin.Context) {
	var req api.CreateThreadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, forum.InvalidArgumentf("%s", err.Error()))
		return
	}
	thread, err := h.svc.CreateThread(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, thread)
}

type updateThreadRequest struct {
	Title            *string `json:"title"`
	Body             *string `json:"body"`
	CommentableID    *string `json:"commentable_id"`
	ThreadType       *string `json:"thread_type"`
	Anonymous        *bool   `json:"anonymous"`
	AnonymousToPeers *bool   `json:"anonymous_to_peers"`
	Closed           *bool   `json:"closed"`
	ClosedByID       *string `json:"closing_user_id"`
	CloseReasonCode  *string `json:"close_reason_code"`
	Pinned           *bool   `json:"pinned"`
	EditingUserID    string  `json:"editing_user_id"`
	EditReasonCode   string  `json:"edit_reason_code"`
}

func (h *ThreadHandler) Update(c *gin.Context) {
	var req updateThreadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, forum.InvalidArgumentf("%s", err.Error()))
		return
	}
	update := forum.ThreadUpdate{
		Title:            req.Title,
		Body:             req.Body,
		CommentableID:    req.CommentableID,
		ThreadType:       req.ThreadType,
		Anonymous:        req.Anonymous,
		AnonymousToPeers: req.AnonymousToPeers,
		Closed:           req.Closed,
		ClosedByID:       req.ClosedByID,
		CloseReasonCode:  req.CloseReasonCode,
		Pinned:           req.Pinned,
		EditingUserID:    req.EditingUserID,
		EditReasonCode:   req.EditReasonCode,
	}
	if req.EditingUserID != "" {
		if editor, err := h.svc.Backend().GetUser(c.Request.Context(), req.EditingUserID); err == nil {
			update.EditingUserUsername = editor.Username
		}
	}
	thread, err := h.svc.UpdateThread(c.Request.Context(), c.Param("thread_id"), update)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, thread)
}

func (h *ThreadHandler) Delete(c *gin.Context) {
	thread, err := h.svc.DeleteThread(c.Request.Context(), c.Param("thread_id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, thread)
}

func (h *ThreadHandler) Pin(c *gin.Context) {
	thread, err := h.svc.PinThread(c.Request.Context(), c.Param("thread_id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, thread)
}

func (h *ThreadHandler) Unpin(c *gin.Context) {
	thread, err := h.svc.UnpinThread(c.Request.Context(), c.Param("thread_id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, thread)
}

// CommentablesCounts reports the per-commentable thread counts of a course.
func (h *ThreadHandler) CommentablesCounts(c *gin.Context) {
	counts, err := h.svc.GetCommentablesCounts(c.Request.Context(), c.Param("course_id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, counts)
}
