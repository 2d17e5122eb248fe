package page

import (
	"context"
	"fmt"

	"github.com/buzkaaclicker/streams"
)

// VisibilityScope memoizes the non-public groups one viewer may see for the
// lifetime of a single request. It is resolved on first use only. Create one
// per request and pass it by pointer, it is not safe for concurrent use.
type VisibilityScope struct {
	viewer streams.UserId
	source streams.GroupScopeSource

	resolved bool
	groups   map[streams.GroupId]struct{}
}

func NewVisibilityScope(viewer streams.UserId, source streams.GroupScopeSource) *VisibilityScope {
	return &VisibilityScope{viewer: viewer, source: source}
}

func (s *VisibilityScope) Viewer() streams.UserId {
	return s.viewer
}

// Resolved reports whether the group set was already looked up.
func (s *VisibilityScope) Resolved() bool {
	return s.resolved
}

func (s *VisibilityScope) Contains(ctx context.Context, group streams.GroupId) (bool, error) {
	if !s.resolved {
		ids, err := s.source.VisibleGroupIds(ctx, s.viewer)
		if err != nil {
			return false, fmt.Errorf("visible group ids of %d: %w", s.viewer, err)
		}
		s.groups = make(map[streams.GroupId]struct{}, len(ids))
		for _, id := range ids {
			s.groups[id] = struct{}{}
		}
		s.resolved = true
	}
	_, ok := s.groups[group]
	return ok, nil
}
