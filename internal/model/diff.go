package model

import (
	"slices"
	"strings"
	"time"
)

// PageLinkDiff lists the links a page gained or lost between two crawls.
type PageLinkDiff struct {
	URL          string   `json:"url"`
	AddedLinks   []string `json:"added_links,omitempty"`
	RemovedLinks []string `json:"removed_links,omitempty"`
}

// SitemapDiff is the difference between two sitemaps of the same seed.
type SitemapDiff struct {
	Seed string `json:"seed"`

	// BaseID and TargetID identify the compared crawls. Target is the newer.
	BaseID     string    `json:"base_id,omitempty"`
	TargetID   string    `json:"target_id,omitempty"`
	BaseDate   time.Time `json:"base_date"`
	TargetDate time.Time `json:"target_date"`

	// AddedPages exist only in the target sitemap.
	AddedPages []string `json:"added_pages"`

	// RemovedPages exist only in the base sitemap.
	RemovedPages []string `json:"removed_pages"`

	// ChangedPages exist in both and have different outbound link sets.
	ChangedPages []PageLinkDiff `json:"changed_pages"`
}

// DiffSitemaps compares base with target. Link lists are compared as sets,
// so reordering or duplicating a link is not a change. All slices in the
// result are sorted and non-nil.
func DiffSitemaps(base, target map[string][]string) *SitemapDiff {
	diff := &SitemapDiff{
		AddedPages:   []string{},
		RemovedPages: []string{},
		ChangedPages: []PageLinkDiff{},
	}

	for url := range target {
		if _, ok := base[url]; !ok {
			diff.AddedPages = append(diff.AddedPages, url)
		}
	}
	for url, baseLinks := range base {
		targetLinks, ok := target[url]
		if !ok {
			diff.RemovedPages = append(diff.RemovedPages, url)
			continue
		}
		added, removed := diffLinks(baseLinks, targetLinks)
		if len(added) > 0 || len(removed) > 0 {
			diff.ChangedPages = append(diff.ChangedPages, PageLinkDiff{
				URL:          url,
				AddedLinks:   added,
				RemovedLinks: removed,
			})
		}
	}

	slices.Sort(diff.AddedPages)
	slices.Sort(diff.RemovedPages)
	slices.SortFunc(diff.ChangedPages, func(a, b PageLinkDiff) int {
		return strings.Compare(a.URL, b.URL)
	})
	return diff
}

func diffLinks(base, target []string) (added, removed []string) {
	baseSet := toSet(base)
	targetSet := toSet(target)
	for link := range targetSet {
		if _, ok := baseSet[link]; !ok {
			added = append(added, link)
		}
	}
	for link := range baseSet {
		if _, ok := targetSet[link]; !ok {
			removed = append(removed, link)
		}
	}
	slices.Sort(added)
	slices.Sort(removed)
	return added, removed
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}

// HasChanges reports whether the two sitemaps differ at all.
func (d *SitemapDiff) HasChanges() bool {
	return len(d.AddedPages) > 0 || len(d.RemovedPages) > 0 || len(d.ChangedPages) > 0
}

// LinkChanges returns the total number of added and removed links.
func (d *SitemapDiff) LinkChanges() (added, removed int) {
	for _, c := range d.ChangedPages {
		added += len(c.AddedLinks)
		removed += len(c.RemovedLinks)
	}
	return added, removed
}
