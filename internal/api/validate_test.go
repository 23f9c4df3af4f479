package api

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursetalk/internal/forum"
)

func TestValidateThreadListParams(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	alice := seedUser(t, svc, "1", "alice")

	err := svc.ValidateThreadListParams(ctx, map[string][]string{
		"course_id": {"course-1"},
		"sort_key":  {"votes"},
		"user_id":   {alice.ID},
	})
	require.NoError(t, err)

	err = svc.ValidateThreadListParams(ctx, map[string][]string{
		"course_id": {"course-1"},
		"surprise":  {"1"},
	})
	assert.True(t, errors.Is(err, forum.ErrInvalidArgument))

	err = svc.ValidateThreadListParams(ctx, map[string][]string{
		"sort_key": {"votes"},
	})
	assert.True(t, errors.Is(err, forum.ErrInvalidArgument))

	err = svc.ValidateThreadListParams(ctx, map[string][]string{
		"course_id": {"course-1"},
		"user_id":   {"ghost"},
	})
	assert.True(t, errors.Is(err, forum.ErrNotFound))
}
