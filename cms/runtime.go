package cms

import (
	"context"
	"fmt"

	"github.com/dmitrymomot/trellis"
	"github.com/dmitrymomot/trellis/pkg/slug"
)

// PagePostType is the post type served at the site root.
const PagePostType = "page"

// RebuildRoutesTaskName is the job name of the runtime route rebuild.
const RebuildRoutesTaskName = "cms.rebuild_routes"

// PostPath returns the public path of a post: "/<slug>/" for pages and
// "/<type>/<slug>/" for every other post type.
func PostPath(pt PostType, p Post) string {
	s := p.Slug
	if s == "" {
		s = slug.Make(p.Title)
	}
	if pt.Slug == PagePostType {
		return "/" + s + "/"
	}
	return "/" + pt.Slug + "/" + s + "/"
}

// Source returns the runtime routes of every stored post.
func (c *CMS) Source() trellis.RuntimeSource {
	return trellis.RuntimeSourceFunc(func(ctx context.Context) ([]trellis.RuntimeRoute, error) {
		types, err := c.store.PostTypes(ctx)
		if err != nil {
			return nil, fmt.Errorf("cms: load post types: %w", err)
		}

		var routes []trellis.RuntimeRoute
		for _, pt := range types {
			posts, err := c.store.Posts(ctx, pt.ID)
			if err != nil {
				return nil, fmt.Errorf("cms: load posts of %s: %w", pt.Slug, err)
			}
			modules := c.templates[pt.Slug]
			if len(modules) == 0 {
				modules = []string{ModulePage}
			}
			for _, p := range posts {
				routes = append(routes, trellis.RuntimeRoute{
					Pattern:  PostPath(pt, p),
					RecordID: p.ID,
					Modules:  modules,
				})
			}
		}
		return routes, nil
	})
}

// RebuildPayload is the payload of the rebuild task.
type RebuildPayload struct {
	// Reason is logged with the rebuild.
	Reason string `json:"reason,omitempty"`
}

// RebuildRoutesTask rebuilds the runtime routes in a background job.
type RebuildRoutesTask struct {
	cms *CMS
}

// NewRebuildRoutesTask returns the rebuild task for job.WithTask.
func NewRebuildRoutesTask(c *CMS) *RebuildRoutesTask {
	return &RebuildRoutesTask{cms: c}
}

func (t *RebuildRoutesTask) Name() string { return RebuildRoutesTaskName }

func (t *RebuildRoutesTask) Handle(ctx context.Context, p RebuildPayload) error {
	if p.Reason != "" {
		t.cms.logger.InfoContext(ctx, "rebuilding runtime routes", "reason", p.Reason)
	}
	return t.cms.Rebuild(ctx)
}

// RebuildRoutesSchedule rebuilds the runtime routes periodically, picking up
// content written by other processes.
type RebuildRoutesSchedule struct {
	cms      *CMS
	schedule string
}

// NewRebuildRoutesSchedule returns the periodic rebuild for
// job.WithScheduledTask. schedule is a cron expression or descriptor such as
// "@every 10m".
func NewRebuildRoutesSchedule(c *CMS, schedule string) *RebuildRoutesSchedule {
	return &RebuildRoutesSchedule{cms: c, schedule: schedule}
}

func (s *RebuildRoutesSchedule) Name() string { return RebuildRoutesTaskName + ".periodic" }

func (s *RebuildRoutesSchedule) Schedule() string { return s.schedule }

func (s *RebuildRoutesSchedule) Handle(ctx context.Context) error {
	return s.cms.Rebuild(ctx)
}
