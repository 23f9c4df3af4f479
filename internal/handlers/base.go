package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"coursetalk/internal/api"
	"coursetalk/internal/forum"
	"coursetalk/internal/utils"
)

// abortWithError maps the error taxonomy onto HTTP status codes and writes
// the standard error shape.
func abortWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, forum.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, forum.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, forum.ErrConflictingState):
		status = http.StatusConflict
	default:
		log.WithError(err).Error("request failed")
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

// bindThreadListRequest reads the shared listing parameters from the query
// string.
func bindThreadListRequest(c *gin.Context) api.ThreadListRequest {
	groupIDs := utils.SplitCSVInts(c.Query("group_ids"))
	if gid := c.Query("group_id"); gid != "" {
		groupIDs = append(groupIDs, utils.StringToInt(gid))
	}
	return api.ThreadListRequest{
		CourseID:       c.Query("course_id"),
		UserID:         c.Query("user_id"),
		GroupIDs:       groupIDs,
		AuthorID:       c.Query("author_id"),
		ThreadType:     c.Query("thread_type"),
		CommentableIDs: utils.SplitCSV(c.Query("commentable_ids")),
		Flagged:        utils.StrToBool(c.Query("flagged")),
		Unread:         utils.StrToBool(c.Query("unread")),
		Unanswered:     utils.StrToBool(c.Query("unanswered")),
		Unresponded:    utils.StrToBool(c.Query("unresponded")),
		CountFlagged:   utils.StrToBool(c.Query("count_flagged")),
		SortKey:        c.Query("sort_key"),
		Page:           utils.StringToInt(c.Query("page")),
		PerPage:        utils.StringToInt(c.Query("per_page")),
		Context:        c.Query("context"),
	}
}
