package blocking

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/haukened/rr-block/internal/block/domain"
)

// memStore is an in-memory PrivacyListStore that records every call and
// can fail selected methods.
type memStore struct {
	mu       sync.Mutex
	lists    map[string]domain.RuleList
	def      string
	active   string
	calls    []string
	failures map[string][]error // method -> errors returned by successive calls (nil entries succeed)
}

func newMemStore(lists ...domain.RuleList) *memStore {
	s := &memStore{lists: make(map[string]domain.RuleList), failures: make(map[string][]error)}
	for _, l := range lists {
		s.lists[l.Name] = l.Clone()
	}
	return s
}

// failNext makes the next calls of method return errs in order.
func (s *memStore) failNext(method string, errs ...error) {
	s.mu.Lock()
	s.failures[method] = append(s.failures[method], errs...)
	s.mu.Unlock()
}

func (s *memStore) record(method string) error {
	s.calls = append(s.calls, method)
	if q := s.failures[method]; len(q) > 0 {
		s.failures[method] = q[1:]
		return q[0]
	}
	return nil
}

func (s *memStore) callsTo(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c == method {
			n++
		}
	}
	return n
}

func (s *memStore) writes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, c := range s.calls {
		switch c {
		case "SaveList", "RemoveList", "SetDefaultListName", "SetActiveListName":
			out = append(out, c)
		}
	}
	return out
}

func (s *memStore) ListNames(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("ListNames"); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(s.lists))
	for n := range s.lists {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

func (s *memStore) GetList(ctx context.Context, name string) (domain.RuleList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("GetList"); err != nil {
		return domain.RuleList{}, err
	}
	l, ok := s.lists[name]
	if !ok {
		return domain.RuleList{}, domain.ErrListNotFound
	}
	return l.Clone(), nil
}

func (s *memStore) DefaultListName(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("DefaultListName"); err != nil {
		return "", err
	}
	return s.def, nil
}

func (s *memStore) SetDefaultListName(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("SetDefaultListName"); err != nil {
		return err
	}
	if _, ok := s.lists[name]; name != "" && !ok {
		return &domain.ProtocolError{Condition: domain.ConditionItemNotFound}
	}
	s.def = name
	return nil
}

func (s *memStore) SetActiveListName(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("SetActiveListName"); err != nil {
		return err
	}
	if _, ok := s.lists[name]; name != "" && !ok {
		return &domain.ProtocolError{Condition: domain.ConditionItemNotFound}
	}
	s.active = name
	return nil
}

func (s *memStore) SaveList(ctx context.Context, list domain.RuleList) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("SaveList"); err != nil {
		return err
	}
	if list.Empty() {
		return &domain.ProtocolError{Condition: domain.ConditionBadRequest, Text: "empty list"}
	}
	s.lists[list.Name] = list.Clone()
	return nil
}

func (s *memStore) RemoveList(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("RemoveList"); err != nil {
		return err
	}
	if _, ok := s.lists[name]; !ok {
		return &domain.ProtocolError{Condition: domain.ConditionItemNotFound}
	}
	delete(s.lists, name)
	if s.active == name {
		s.active = ""
	}
	return nil
}

func (s *memStore) list(name string) (domain.RuleList, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lists[name]
	return l.Clone(), ok
}

func (s *memStore) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for n := range s.lists {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

var _ PrivacyListStore = (*memStore)(nil)

// MockCommander is a testify mock for BlockCommander.
type MockCommander struct {
	mock.Mock
}

func (m *MockCommander) SendBlockCommand(ctx context.Context, op domain.BlockOp, addr domain.Address) error {
	args := m.Called(ctx, op, addr)
	return args.Error(0)
}

func (m *MockCommander) QueryNativeBlocklist(ctx context.Context) (domain.BlockedSet, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.BlockedSet), args.Error(1)
}

// MockDiscoverer is a testify mock for FeatureDiscoverer.
type MockDiscoverer struct {
	mock.Mock
}

func (m *MockDiscoverer) IsFeatureSupported(ctx context.Context, feature string) (bool, error) {
	args := m.Called(ctx, feature)
	return args.Bool(0), args.Error(1)
}

// recLogger collects log messages by level.
type recLogger struct {
	mu      sync.Mutex
	entries []string
}

func (l *recLogger) add(level, msg string) {
	l.mu.Lock()
	l.entries = append(l.entries, level+":"+msg)
	l.mu.Unlock()
}

func (l *recLogger) Info(_ map[string]any, msg string)  { l.add("INFO", msg) }
func (l *recLogger) Error(_ map[string]any, msg string) { l.add("ERROR", msg) }
func (l *recLogger) Debug(_ map[string]any, msg string) { l.add("DEBUG", msg) }
func (l *recLogger) Warn(_ map[string]any, msg string)  { l.add("WARN", msg) }
func (l *recLogger) Panic(_ map[string]any, msg string) { l.add("PANIC", msg) }
func (l *recLogger) Fatal(_ map[string]any, msg string) { l.add("FATAL", msg) }

func (l *recLogger) has(entry string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Contains(l.entries, entry)
}
