package netsync

import (
	"sort"
	"sync"
	"time"
)

type Member struct {
	PeerID   string
	Name     string
	Conn     Conn
	JoinedAt time.Time
}

// Members binds peer ids to their connections. A closed connection unbinds
// itself and reports the peer through onGone.
type Members struct {
	sync.RWMutex
	byPeer  map[string]*Member
	byConn  map[Conn]string
	watched map[Conn]struct{}
	onGone  func(peerID string)
	now     func() time.Time
}

func NewMembers(onGone func(peerID string)) *Members {
	return &Members{
		byPeer:  make(map[string]*Member),
		byConn:  make(map[Conn]string),
		watched: make(map[Conn]struct{}),
		onGone:  onGone,
		now:     time.Now,
	}
}

// Bind registers conn for peerID and returns the connection it replaced,
// which the caller should notify and close.
func (s *Members) Bind(peerID, name string, conn Conn) Conn {
	if conn == nil {
		return nil
	}
	s.Lock()
	defer s.Unlock()

	// one watcher per connection so byConn cannot grow without bound
	if _, ok := s.watched[conn]; !ok {
		s.watched[conn] = struct{}{}
		go s.watchConnDone(conn)
	}

	var replaced Conn
	if old := s.byPeer[peerID]; old != nil && old.Conn != conn {
		replaced = old.Conn
		delete(s.byConn, old.Conn)
		delete(s.watched, old.Conn)
	}
	s.byPeer[peerID] = &Member{PeerID: peerID, Name: name, Conn: conn, JoinedAt: s.now()}
	s.byConn[conn] = peerID
	return replaced
}

func (s *Members) watchConnDone(conn Conn) {
	<-conn.Done()
	if peerID, ok := s.UnbindConn(conn); ok && s.onGone != nil {
		s.onGone(peerID)
	}
}

// UnbindConn removes conn and reports the peer it belonged to.
func (s *Members) UnbindConn(conn Conn) (string, bool) {
	s.Lock()
	defer s.Unlock()
	delete(s.watched, conn)
	peerID, ok := s.byConn[conn]
	if !ok {
		return "", false
	}
	delete(s.byConn, conn)
	if m := s.byPeer[peerID]; m != nil && m.Conn == conn {
		delete(s.byPeer, peerID)
	}
	return peerID, true
}

// Unbind removes peerID and returns its connection.
func (s *Members) Unbind(peerID string) (Conn, bool) {
	s.Lock()
	defer s.Unlock()
	m, ok := s.byPeer[peerID]
	if !ok {
		return nil, false
	}
	delete(s.byPeer, peerID)
	delete(s.byConn, m.Conn)
	delete(s.watched, m.Conn)
	return m.Conn, true
}

func (s *Members) Conn(peerID string) (Conn, bool) {
	s.RLock()
	defer s.RUnlock()
	m, ok := s.byPeer[peerID]
	if !ok {
		return nil, false
	}
	return m.Conn, true
}

func (s *Members) PeerOf(conn Conn) (string, bool) {
	s.RLock()
	defer s.RUnlock()
	peerID, ok := s.byConn[conn]
	return peerID, ok
}

func (s *Members) Has(peerID string) bool {
	s.RLock()
	defer s.RUnlock()
	_, ok := s.byPeer[peerID]
	return ok
}

// List returns the members sorted by peer id.
func (s *Members) List() []Member {
	s.RLock()
	out := make([]Member, 0, len(s.byPeer))
	for _, m := range s.byPeer {
		out = append(out, *m)
	}
	s.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].PeerID < out[j].PeerID })
	return out
}

func (s *Members) IDs() []string {
	list := s.List()
	out := make([]string, len(list))
	for i, m := range list {
		out[i] = m.PeerID
	}
	return out
}
