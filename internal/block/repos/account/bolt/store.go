// Package bolt provides a single-account server store on bbolt. It holds
// privacy lists with their default and active designations, the native
// blocklist and the set of advertised service discovery features, and
// answers the blocking ports the way an XMPP server would.
package bolt

import (
	"context"
	"fmt"
	"sort"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/haukened/rr-block/internal/block/domain"
	"github.com/haukened/rr-block/internal/block/services/blocking"
)

var (
	bucketLists    = []byte("lists")
	bucketMeta     = []byte("meta")
	bucketNative   = []byte("native")
	bucketFeatures = []byte("features")

	keyDefault = []byte("default")
	keyActive  = []byte("active")
)

// Store implements the privacy list, native blocking and discovery ports
// for one account.
type Store struct {
	db *bbolt.DB
}

// New opens (or creates) a Bolt database at path and ensures buckets exist.
func New(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketLists, bucketMeta, bucketNative, bucketFeatures} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func itemNotFound(format string, args ...any) error {
	return &domain.ProtocolError{Condition: domain.ConditionItemNotFound, Text: fmt.Sprintf(format, args...)}
}

// view and update fail fast on a done context; bbolt itself does not take one.
func (s *Store) view(ctx context.Context, fn func(tx *bbolt.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(fn)
}

func (s *Store) update(ctx context.Context, fn func(tx *bbolt.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(fn)
}

// ListNames returns the stored list names in key order.
func (s *Store) ListNames(ctx context.Context) ([]string, error) {
	var names []string
	err := s.view(ctx, func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketLists).ForEach(func(k, _ []byte) error {
			names = append(names, string(k))
			return nil
		})
	})
	return names, err
}

// GetList returns the named list or domain.ErrListNotFound.
func (s *Store) GetList(ctx context.Context, name string) (domain.RuleList, error) {
	var l domain.RuleList
	err := s.view(ctx, func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketLists).Get([]byte(name))
		if v == nil {
			return fmt.Errorf("%w: %s", domain.ErrListNotFound, name)
		}
		var err error
		l, err = decodeList(name, v)
		if err != nil {
			return fmt.Errorf("decode list %s: %w", name, err)
		}
		return nil
	})
	return l, err
}

func (s *Store) DefaultListName(ctx context.Context) (string, error) {
	return s.pointer(ctx, keyDefault)
}

// ActiveListName returns the active list name, or "" when unset.
func (s *Store) ActiveListName(ctx context.Context) (string, error) {
	return s.pointer(ctx, keyActive)
}

func (s *Store) SetDefaultListName(ctx context.Context, name string) error {
	return s.setPointer(ctx, keyDefault, name)
}

func (s *Store) SetActiveListName(ctx context.Context, name string) error {
	return s.setPointer(ctx, keyActive, name)
}

func (s *Store) pointer(ctx context.Context, key []byte) (string, error) {
	var name string
	err := s.view(ctx, func(tx *bbolt.Tx) error {
		name = string(tx.Bucket(bucketMeta).Get(key))
		return nil
	})
	return name, err
}

// setPointer designates name, which must exist. The empty name clears it.
func (s *Store) setPointer(ctx context.Context, key []byte, name string) error {
	return s.update(ctx, func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		if name == "" {
			return meta.Delete(key)
		}
		if tx.Bucket(bucketLists).Get([]byte(name)) == nil {
			return itemNotFound("no list named %q", name)
		}
		return meta.Put(key, []byte(name))
	})
}

// SaveList creates or replaces a list. Empty lists and invalid rules are
// rejected with bad-request.
func (s *Store) SaveList(ctx context.Context, l domain.RuleList) error {
	if l.Empty() {
		return &domain.ProtocolError{Condition: domain.ConditionBadRequest, Text: "list has no items"}
	}
	if err := l.Validate(); err != nil {
		return &domain.ProtocolError{Condition: domain.ConditionBadRequest, Text: err.Error()}
	}
	return s.update(ctx, func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketLists).Put([]byte(l.Name), encodeList(l))
	})
}

// RemoveList deletes a list. The default list cannot be removed
// (conflict); removing the active list clears the active designation.
func (s *Store) RemoveList(ctx context.Context, name string) error {
	return s.update(ctx, func(tx *bbolt.Tx) error {
		lists := tx.Bucket(bucketLists)
		if lists.Get([]byte(name)) == nil {
			return itemNotFound("no list named %q", name)
		}
		meta := tx.Bucket(bucketMeta)
		if string(meta.Get(keyDefault)) == name {
			return &domain.ProtocolError{Condition: domain.ConditionConflict, Text: "list is the default list"}
		}
		if string(meta.Get(keyActive)) == name {
			if err := meta.Delete(keyActive); err != nil {
				return err
			}
		}
		return lists.Delete([]byte(name))
	})
}

// State returns the current default and active designations.
func (s *Store) State(ctx context.Context) (domain.PrivacyState, error) {
	var st domain.PrivacyState
	err := s.view(ctx, func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		st.Default = string(meta.Get(keyDefault))
		st.Active = string(meta.Get(keyActive))
		return nil
	})
	return st, err
}

// SendBlockCommand adds addr to or removes it from the native blocklist.
// Removing an absent address succeeds.
func (s *Store) SendBlockCommand(ctx context.Context, op domain.BlockOp, addr domain.Address) error {
	if addr.IsZero() {
		return &domain.ProtocolError{Condition: domain.ConditionBadRequest, Text: "missing jid"}
	}
	return s.update(ctx, func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketNative)
		switch op {
		case domain.OpBlock:
			return b.Put([]byte(addr.String()), []byte{1})
		case domain.OpUnblock:
			return b.Delete([]byte(addr.String()))
		default:
			return &domain.ProtocolError{Condition: domain.ConditionBadRequest, Text: fmt.Sprintf("unknown block operation %d", op)}
		}
	})
}

// QueryNativeBlocklist returns the native blocklist. Keys that no longer
// parse are skipped.
func (s *Store) QueryNativeBlocklist(ctx context.Context) (domain.BlockedSet, error) {
	var set domain.BlockedSet
	err := s.view(ctx, func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketNative).ForEach(func(k, _ []byte) error {
			if a, err := domain.ParseAddress(string(k)); err == nil {
				set.Add(a)
			}
			return nil
		})
	})
	return set, err
}

// Advertise turns a service discovery feature on or off.
func (s *Store) Advertise(feature string, on bool) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketFeatures)
		if on {
			return b.Put([]byte(feature), []byte{1})
		}
		return b.Delete([]byte(feature))
	})
}

func (s *Store) IsFeatureSupported(ctx context.Context, feature string) (bool, error) {
	var ok bool
	err := s.view(ctx, func(tx *bbolt.Tx) error {
		ok = tx.Bucket(bucketFeatures).Get([]byte(feature)) != nil
		return nil
	})
	return ok, err
}

// Features returns the advertised features sorted.
func (s *Store) Features(ctx context.Context) ([]string, error) {
	var out []string
	err := s.view(ctx, func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketFeatures).ForEach(func(k, _ []byte) error {
			out = append(out, string(k))
			return nil
		})
	})
	sort.Strings(out)
	return out, err
}

var (
	_ blocking.PrivacyListStore  = (*Store)(nil)
	_ blocking.BlockCommander    = (*Store)(nil)
	_ blocking.FeatureDiscoverer = (*Store)(nil)
)
