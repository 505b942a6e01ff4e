// Package scheduler runs time-based revalidation of CMS content, so posts
// published without a webhook still show up.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wanderher/wanderher/internal/cms"
)

const refreshTimeout = 30 * time.Second

// TagInvalidator drops cached entries by tag.
type TagInvalidator interface {
	InvalidateTag(ctx context.Context, tag string) error
}

// PostLister lists one page of posts.
type PostLister interface {
	ListPosts(ctx context.Context, page, perPage int) (*cms.PostList, error)
}

// Scheduler refreshes the post list on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	parser  cron.Parser
	store   TagInvalidator
	posts   PostLister
	perPage int
	logger  *slog.Logger
}

// New creates a Scheduler. Call Schedule to add the refresh job and Start
// to run it.
func New(store TagInvalidator, posts PostLister, perPage int) *Scheduler {
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &Scheduler{
		cron:    cron.New(cron.WithParser(parser)),
		parser:  parser,
		store:   store,
		posts:   posts,
		perPage: perPage,
		logger:  slog.Default().With(slog.String("service", "scheduler")),
	}
}

// Schedule registers the post refresh under pattern, which accepts
// standard cron fields, an optional seconds field and descriptors such as
// "@every 1h".
func (s *Scheduler) Schedule(pattern string) error {
	if _, err := s.parser.Parse(pattern); err != nil {
		return fmt.Errorf("invalid cron pattern %q: %w", pattern, err)
	}
	_, err := s.cron.AddFunc(pattern, func() {
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		if err := s.RefreshPosts(ctx); err != nil {
			s.logger.Warn("scheduled post refresh failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("scheduling post refresh: %w", err)
	}
	s.logger.Info("post refresh scheduled", "pattern", pattern)
	return nil
}

// RefreshPosts drops everything tagged with posts and warms the first page
// of the index. A failed warm-up leaves the cache empty, which is still
// correct.
func (s *Scheduler) RefreshPosts(ctx context.Context) error {
	if err := s.store.InvalidateTag(ctx, cms.TagPosts); err != nil {
		return fmt.Errorf("invalidating posts: %w", err)
	}
	list, err := s.posts.ListPosts(ctx, 1, s.perPage)
	if err != nil {
		return fmt.Errorf("warming posts: %w", err)
	}
	s.logger.Info("posts refreshed", "posts", len(list.Posts), "totalPages", list.TotalPages)
	return nil
}

// Start runs scheduled jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling and waits for a running job or for ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out")
	}
}
