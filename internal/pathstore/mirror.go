package pathstore

import (
	"context"
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"

	"github.com/dgallion1/kgest/internal/kg"
)

// GraphKey is the node path under which a graph's entities live.
func GraphKey(graphID string) string {
	return "graphs/" + graphID
}

// EntityKey is the node path of one entity in a graph.
func EntityKey(graphID, entity string) string {
	return GraphKey(graphID) + "/entities/" + Slugify(entity)
}

// MirrorTriplets writes one node per distinct entity and one link per
// triplet, with the predicate as the link summary. It returns the number of
// links written.
func (c *Client) MirrorTriplets(ctx context.Context, graphID string, triplets []kg.Triplet) (int, error) {
	g := kg.NewGraph(triplets)
	for _, entity := range g.Nodes() {
		err := c.PutNode(ctx, EntityKey(graphID, entity), NodeRequest{
			Value:      map[string]string{"name": entity, "graph": graphID},
			MergeMode:  "replace",
			MemoryType: "semantic",
			Source:     "kgest:" + graphID,
		})
		if err != nil {
			return 0, fmt.Errorf("mirror entity %q: %w", entity, err)
		}
	}

	links := 0
	for _, e := range g.Edges() {
		err := c.PutLink(ctx, LinkRequest{
			From:    EntityKey(graphID, e.From),
			To:      EntityKey(graphID, e.To),
			Weight:  1.0,
			Summary: e.Predicate,
		})
		if err != nil {
			return links, fmt.Errorf("mirror link %s -> %s: %w", e.From, e.To, err)
		}
		links++
	}
	return links, nil
}

// DeleteGraph removes a mirrored graph and everything under it.
func (c *Client) DeleteGraph(ctx context.Context, graphID string) error {
	return c.DeleteNode(ctx, GraphKey(graphID), true)
}

var (
	nonSlugRe = regexp.MustCompile(`[^a-z0-9-]`)
	dashRunRe = regexp.MustCompile(`-+`)
)

// Slugify converts an entity name to a path-safe slug. Names with no ASCII
// letters or digits get a stable hash-based slug.
func Slugify(s string) string {
	slug := strings.ToLower(strings.TrimSpace(s))
	slug = nonSlugRe.ReplaceAllString(slug, "-")
	slug = dashRunRe.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > 50 {
		slug = strings.TrimRight(slug[:50], "-")
	}
	if slug == "" {
		h := fnv.New32a()
		h.Write([]byte(s))
		slug = fmt.Sprintf("entity-%08x", h.Sum32())
	}
	return slug
}
