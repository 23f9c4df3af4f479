package api

import (
	"context"

	log "github.com/sirupsen/logrus"

	"coursetalk/internal/forum"
	"coursetalk/internal/search"
)

// Service combines the storage backend and the search engine into the
// forum's operation set. Handlers call Service methods and never touch the
// backend directly.
type Service struct {
	backend forum.Backend
	search  search.Engine
}

func NewService(backend forum.Backend, engine search.Engine) *Service {
	return &Service{backend: backend, search: engine}
}

// Backend exposes the storage backend for maintenance commands.
func (s *Service) Backend() forum.Backend { return s.backend }

// Search exposes the search engine for maintenance commands.
func (s *Service) Search() search.Engine { return s.search }

func threadSearchDocument(t *forum.Thread) forum.SearchDocument {
	lastActivity := t.LastActivityAt
	return forum.SearchDocument{
		ID:             t.ID,
		ContentType:    forum.ContentTypeThread,
		CourseID:       t.CourseID,
		CommentableID:  t.CommentableID,
		Context:        t.Context,
		GroupID:        t.GroupID,
		AuthorID:       t.AuthorID,
		Title:          t.Title,
		Body:           t.Body,
		CommentCount:   t.CommentCount,
		VotesPoint:     t.Votes.Point,
		LastActivityAt: &lastActivity,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}

func commentSearchDocument(c *forum.Comment) forum.SearchDocument {
	return forum.SearchDocument{
		ID:          c.ID,
		ContentType: forum.ContentTypeComment,
		ThreadID:    c.ThreadID,
		CourseID:    c.CourseID,
		AuthorID:    c.AuthorID,
		Body:        c.Body,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

// Index writes are best-effort: a search outage must not fail the storage
// write that already happened.
func (s *Service) indexDocument(ctx context.Context, doc forum.SearchDocument) {
	if err := s.search.IndexDocument(ctx, doc); err != nil {
		log.WithError(err).WithField("id", doc.ID).Warn("failed to index document")
	}
}

func (s *Service) unindexDocument(ctx context.Context, contentType, id string) {
	if err := s.search.DeleteDocument(ctx, contentType, id); err != nil {
		log.WithError(err).WithField("id", id).Warn("failed to remove document from index")
	}
}
