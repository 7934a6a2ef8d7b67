package crawler

import (
	"container/heap"

	"github.com/ternarybob/prospect/internal/common"
	"github.com/ternarybob/prospect/internal/extractor"
	"github.com/ternarybob/prospect/internal/models"
)

// Frontier priorities, highest crawled first.
const (
	priorityHome    = 4
	priorityContact = 3 // contact, about, team
	priorityLegal   = 2 // pricing, legal
	priorityGeneric = 1 // unclassified internal pages
	priorityLow     = 0 // blog and similar
)

// priorityFor maps a page classification to its frontier priority.
func priorityFor(pageType models.PageType) int {
	switch pageType {
	case models.PageTypeHome:
		return priorityHome
	case models.PageTypeContact, models.PageTypeAbout, models.PageTypeTeam:
		return priorityContact
	case models.PageTypePricing, models.PageTypeLegal:
		return priorityLegal
	case models.PageTypeOther:
		return priorityGeneric
	default:
		return priorityLow
	}
}

type frontierItem struct {
	url      string
	seedType models.SeedType
	priority int
	order    int // insertion sequence, FIFO tiebreak
}

type frontierHeap []*frontierItem

func (h frontierHeap) Len() int { return len(h) }
func (h frontierHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].order < h[j].order
}
func (h frontierHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *frontierHeap) Push(x interface{}) { *h = append(*h, x.(*frontierItem)) }
func (h *frontierHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// frontier is the crawl's priority queue. URLs are deduplicated by
// normalized visit key; a URL enters the frontier at most once, ever, so
// each is fetched at most once. Equal priorities pop in discovery order.
type frontier struct {
	heap    frontierHeap
	seen    map[string]struct{}
	counter int
}

func newFrontier() *frontier {
	return &frontier{seen: make(map[string]struct{})}
}

// Push enqueues a URL unless its visit key was already seen. Returns true
// when the URL was accepted.
func (f *frontier) Push(url string, seedType models.SeedType, priority int) bool {
	key := common.VisitKey(url)
	if _, dup := f.seen[key]; dup {
		return false
	}
	f.seen[key] = struct{}{}

	heap.Push(&f.heap, &frontierItem{
		url:      url,
		seedType: seedType,
		priority: priority,
		order:    f.counter,
	})
	f.counter++
	return true
}

// MarkSeen reserves a visit key without enqueueing, for URLs loaded out
// of band (the seed page).
func (f *frontier) MarkSeen(url string) {
	f.seen[common.VisitKey(url)] = struct{}{}
}

// PushLink enqueues a discovered link, prioritized by its classification
// from URL and anchor text.
func (f *frontier) PushLink(link extractor.Link, baseURL string) bool {
	pageType := extractor.ClassifyLink(link.URL, link.Text, baseURL)
	return f.Push(link.URL, models.SeedTypeLink, priorityFor(pageType))
}

func (f *frontier) Pop() (*frontierItem, bool) {
	if f.heap.Len() == 0 {
		return nil, false
	}
	return heap.Pop(&f.heap).(*frontierItem), true
}

func (f *frontier) Len() int {
	return f.heap.Len()
}
