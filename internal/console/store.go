package console

import (
	"strconv"
	"strings"
	"sync"

	"github.com/cargoyard/cargoyard/internal/registry"
)

// Store caches the users the console has fetched. Entries are replaced on
// every fetch and patched after successful mutations; the last write wins.
type Store struct {
	mu     sync.Mutex
	users  map[int64]registry.User
	logins map[string]int64
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		users:  make(map[int64]registry.User),
		logins: make(map[string]int64),
	}
}

// Push stores u, replacing any previous record with the same id, and returns
// a copy of the stored record.
func (s *Store) Push(u *registry.User) *registry.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.users[u.ID]; ok && !strings.EqualFold(prev.Login, u.Login) {
		delete(s.logins, strings.ToLower(prev.Login))
	}
	s.users[u.ID] = *u
	if u.Login != "" {
		s.logins[strings.ToLower(u.Login)] = u.ID
	}

	out := *u
	return &out
}

// Lookup finds a user by numeric id or by login, case-insensitively.
func (s *Store) Lookup(id string) (*registry.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.logins[strings.ToLower(id)]
	if !ok {
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return nil, false
		}
		key = n
	}
	u, ok := s.users[key]
	if !ok {
		return nil, false
	}
	return &u, true
}

// Patch applies fn to the stored user with id and returns the result.
func (s *Store) Patch(id int64, fn func(u *registry.User)) (*registry.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, false
	}
	fn(&u)
	s.users[id] = u

	out := u
	return &out, true
}
