package storage

import "sync"

// Scope 一次请求产生的文件集合。Close 时删除所有未被 Keep 的文件，
// 无论请求成功与否都应在 defer 中调用。
type Scope struct {
	manager *Manager
	mu      sync.Mutex
	tracked []*Artifact
	kept    map[string]bool
	closed  bool
}

// NewScope 开始一次请求的文件跟踪
func (m *Manager) NewScope() *Scope {
	return &Scope{manager: m, kept: make(map[string]bool)}
}

// Track 登记一个临时文件
func (s *Scope) Track(a *Artifact) {
	if a == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracked = append(s.tracked, a)
}

// Keep 标记文件为输出，Close 时保留
func (s *Scope) Keep(a *Artifact) {
	if a == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kept[a.Path] = true
}

// Close 删除未保留的文件，删除失败只记录日志。重复调用无效果。
func (s *Scope) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true

	for _, a := range s.tracked {
		if s.kept[a.Path] {
			continue
		}
		s.manager.Remove(a.Path)
	}
	s.tracked = nil
}
