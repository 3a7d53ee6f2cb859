package nav

import (
	"errors"
	"sync"
)

var errTest = errors.New("storage down")

// memStore is an in-memory Storage for tests. coalesce, when set, may remap a
// saved node onto an existing id, mimicking a store that merges equivalent
// records.
type memStore struct {
	mu       sync.Mutex
	nodes    map[string]*NavigationNode
	edges    []*NavigationEdge
	order    []string
	coalesce func(n *NavigationNode) (string, bool)
	saveErr  error
}

func newMemStore() *memStore {
	return &memStore{nodes: make(map[string]*NavigationNode)}
}

func (s *memStore) GetNode(id string) (*NavigationNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return nil, nil
	}
	cp := *n
	return &cp, nil
}

func (s *memStore) SaveNode(n *NavigationNode) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return "", s.saveErr
	}
	id := n.ID
	if s.coalesce != nil {
		if mapped, ok := s.coalesce(n); ok {
			id = mapped
		}
	}
	cp := *n
	cp.ID = id
	if _, exists := s.nodes[id]; !exists {
		s.order = append(s.order, id)
	}
	s.nodes[id] = &cp
	return id, nil
}

func (s *memStore) UpdateNode(id string, patch NodePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return nil
	}
	if patch.URL != nil {
		n.URL = *patch.URL
	}
	if patch.Title != nil {
		n.Title = *patch.Title
	}
	if patch.Favicon != nil {
		n.Favicon = *patch.Favicon
	}
	if patch.ParentID != nil {
		n.ParentID = *patch.ParentID
	}
	if patch.Referrer != nil {
		n.Referrer = *patch.Referrer
	}
	if patch.Source != nil {
		n.Source = *patch.Source
	}
	if patch.LoadTime != nil {
		n.LoadTime = patch.LoadTime
	}
	if patch.FirstVisit != nil {
		n.FirstVisit = *patch.FirstVisit
	}
	if patch.LastVisit != nil {
		n.LastVisit = *patch.LastVisit
	}
	if patch.IsClosed != nil {
		n.IsClosed = *patch.IsClosed
	}
	if patch.CloseTime != nil {
		n.CloseTime = patch.CloseTime
	}
	if patch.ActiveTimeDelta != 0 {
		var cur int64
		if n.ActiveTime != nil {
			cur = *n.ActiveTime
		}
		total := cur + patch.ActiveTimeDelta
		n.ActiveTime = &total
	}
	n.VisitCount += patch.VisitDelta
	n.ReloadCount += patch.ReloadDelta
	n.SPARequestCount += patch.SPADelta
	return nil
}

func (s *memStore) QueryNodes(filter NodeFilter) ([]NavigationNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []NavigationNode
	for _, id := range s.order {
		n := s.nodes[id]
		if filter.SessionID != "" && n.SessionID != filter.SessionID {
			continue
		}
		if filter.TabID != "" && n.TabID != filter.TabID {
			continue
		}
		if filter.IsClosed != nil && n.IsClosed != *filter.IsClosed {
			continue
		}
		out = append(out, *n)
	}
	return out, nil
}

func (s *memStore) SaveEdge(e *NavigationEdge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	s.edges = append(s.edges, &cp)
	return nil
}

func (s *memStore) mustGet(id string) *NavigationNode {
	n, err := s.GetNode(id)
	if err != nil {
		panic(err)
	}
	if n == nil {
		panic(errors.New("node not found: " + id))
	}
	return n
}

func (s *memStore) edgeBetween(sourceID, targetID string) *NavigationEdge {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.edges {
		if e.SourceID == sourceID && e.TargetID == targetID {
			cp := *e
			return &cp
		}
	}
	return nil
}
