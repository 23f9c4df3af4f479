package router

import (
	"github.com/gin-gonic/gin"

	"coursetalk/internal/api"
	"coursetalk/internal/handlers"
)

// RegisterRoutes wires the HTTP surface onto the engine.
func RegisterRoutes(r *gin.Engine, svc *api.Service) {
	threadHandler := handlers.NewThreadHandler(svc)
	commentHandler := handlers.NewCommentHandler(svc)
	voteHandler := handlers.NewVoteHandler(svc)
	flagHandler := handlers.NewFlagHandler(svc)
	subscriptionHandler := handlers.NewSubscriptionHandler(svc)
	userHandler := handlers.NewUserHandler(svc)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/threads", threadHandler.List)
		v1.GET("/search/threads", threadHandler.Search)
		v1.POST("/threads", threadHandler.Create)
		v1.GET("/threads/:thread_id", threadHandler.Get)
		v1.PUT("/threads/:thread_id", threadHandler.Update)
		v1.DELETE("/threads/:thread_id", threadHandler.Delete)
		v1.PUT("/threads/:thread_id/pin", threadHandler.Pin)
		v1.PUT("/threads/:thread_id/unpin", threadHandler.Unpin)

		v1.GET("/threads/:thread_id/comments", commentHandler.ListForThread)
		v1.POST("/threads/:thread_id/comments", commentHandler.CreateOnThread)
		v1.GET("/comments/:comment_id", commentHandler.Get)
		v1.POST("/comments/:comment_id", commentHandler.CreateReply)
		v1.PUT("/comments/:comment_id", commentHandler.Update)
		v1.DELETE("/comments/:comment_id", commentHandler.Delete)

		v1.PUT("/threads/:thread_id/votes", voteHandler.VoteThread)
		v1.DELETE("/threads/:thread_id/votes", voteHandler.UnvoteThread)
		v1.PUT("/comments/:comment_id/votes", voteHandler.VoteComment)
		v1.DELETE("/comments/:comment_id/votes", voteHandler.UnvoteComment)

		v1.PUT("/threads/:thread_id/abuse_flags", flagHandler.FlagThread)
		v1.DELETE("/threads/:thread_id/abuse_flags", flagHandler.UnflagThread)
		v1.PUT("/comments/:comment_id/abuse_flags", flagHandler.FlagComment)
		v1.DELETE("/comments/:comment_id/abuse_flags", flagHandler.UnflagComment)

		v1.GET("/threads/:thread_id/subscriptions", subscriptionHandler.ThreadSubscribers)
		v1.GET("/users/:user_id/subscribed_threads", subscriptionHandler.ListSubscribed)
		v1.POST("/users/:user_id/subscriptions", subscriptionHandler.Subscribe)
		v1.DELETE("/users/:user_id/subscriptions", subscriptionHandler.Unsubscribe)

		v1.POST("/users", userHandler.Create)
		v1.GET("/users/:user_id", userHandler.Get)
		v1.PUT("/users/:user_id", userHandler.Update)
		v1.POST("/users/:user_id/retire", userHandler.Retire)
		v1.POST("/users/:user_id/read", userHandler.MarkRead)
		v1.GET("/users/:user_id/active_threads", userHandler.ListThreads)

		v1.GET("/courses/:course_id/stats", userHandler.Stats)
		v1.POST("/courses/:course_id/stats", userHandler.RebuildStats)
		v1.GET("/courses/:course_id/commentables/counts", threadHandler.CommentablesCounts)
	}
}
