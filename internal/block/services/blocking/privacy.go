package blocking

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/haukened/rr-block/internal/block/common/log"
	"github.com/haukened/rr-block/internal/block/domain"
)

// Step names reported in logs and InconsistentStateError.
const (
	stepSave         = "save-list"
	stepSetDefault   = "set-default"
	stepSetActive    = "set-active"
	stepClearDefault = "clear-default"
	stepRemove       = "remove-list"
)

// privacyBackend emulates blocking with a privacy list of deny rules.
//
// Which list holds the blocks is resolved on every call from server state:
// a list literally named domain.BlocklistName wins; otherwise the default
// list is used when it holds nothing but all-traffic deny address rules.
// Without either, the first block creates domain.BlocklistName.
type privacyBackend struct {
	store  PrivacyListStore
	logger log.Logger
}

// NewPrivacyBackend returns a Backend that reconciles block state into
// privacy lists held by store.
func NewPrivacyBackend(store PrivacyListStore, logger log.Logger) Backend {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &privacyBackend{store: store, logger: log.With(logger, map[string]any{"backend": "privacy"})}
}

func (b *privacyBackend) Name() string { return "privacy" }

// resolution is the outcome of resolveBlocklist.
type resolution struct {
	list        domain.RuleList
	found       bool
	defaultName string
}

// resolveBlocklist finds the list that currently holds blocks.
func (b *privacyBackend) resolveBlocklist(ctx context.Context) (resolution, error) {
	def, err := b.store.DefaultListName(ctx)
	if err != nil {
		return resolution{}, fmt.Errorf("get default list: %w", err)
	}
	res := resolution{defaultName: def}

	if def != "" {
		l, err := b.store.GetList(ctx, def)
		switch {
		case errors.Is(err, domain.ErrListNotFound):
			b.logger.Warn(map[string]any{"list": def}, "default list designation points at a missing list")
		case err != nil:
			return resolution{}, fmt.Errorf("get list %q: %w", def, err)
		case def == domain.BlocklistName || l.BlockingShaped():
			res.list, res.found = l, true
		default:
			b.logger.Debug(map[string]any{"list": def, "rules": len(l.Rules)}, "default list holds non-blocking rules, not adopting it")
		}
	}
	if def == domain.BlocklistName {
		return res, nil
	}

	names, err := b.store.ListNames(ctx)
	if err != nil {
		return resolution{}, fmt.Errorf("list names: %w", err)
	}
	if !slices.Contains(names, domain.BlocklistName) {
		return res, nil
	}
	l, err := b.store.GetList(ctx, domain.BlocklistName)
	if err != nil {
		return resolution{}, fmt.Errorf("get list %q: %w", domain.BlocklistName, err)
	}
	res.list, res.found = l, true
	return res, nil
}

// Block adds a deny rule for addr to the resolved list, creating
// domain.BlocklistName if nothing resolves, then saves the list and makes
// it both default and active.
func (b *privacyBackend) Block(ctx context.Context, addr domain.Address) error {
	res, err := b.resolveBlocklist(ctx)
	if err != nil {
		return err
	}

	prev := res.list.Clone()
	list := res.list.Clone()
	created := !res.found
	if created {
		list = domain.RuleList{Name: domain.BlocklistName}
	}
	added := list.Add(domain.NewAddressRule(addr, false, 0))

	logger := log.With(b.logger, map[string]any{"op": "block", "list": list.Name, "address": addr.String()})
	tx := newTxn("block", list.Name, logger)
	tx.add(stepSave,
		func(ctx context.Context) error { return b.store.SaveList(ctx, list) },
		func(ctx context.Context) error {
			if created {
				return b.store.RemoveList(ctx, list.Name)
			}
			return b.store.SaveList(ctx, prev)
		})
	tx.add(stepSetDefault,
		func(ctx context.Context) error { return b.store.SetDefaultListName(ctx, list.Name) },
		func(ctx context.Context) error { return b.store.SetDefaultListName(ctx, res.defaultName) })
	tx.add(stepSetActive,
		func(ctx context.Context) error { return b.store.SetActiveListName(ctx, list.Name) },
		nil)

	if err := tx.run(ctx); err != nil {
		return err
	}
	if created {
		logger.Info(nil, "privacy list created for blocking")
	}
	logger.Debug(map[string]any{"added": added, "rules": len(list.Rules)}, "address blocked")
	return nil
}

// Unblock removes every deny rule for addr from the resolved list. A list
// left empty is deleted, clearing the default designation if it pointed
// at it.
func (b *privacyBackend) Unblock(ctx context.Context, addr domain.Address) error {
	res, err := b.resolveBlocklist(ctx)
	if err != nil {
		return err
	}
	if !res.found {
		return nil
	}

	prev := res.list.Clone()
	list := res.list.Clone()
	removed := list.RemoveDenies(addr)

	logger := log.With(b.logger, map[string]any{"op": "unblock", "list": list.Name, "address": addr.String()})
	if removed == 0 && !list.Empty() {
		logger.Debug(nil, "address not blocked, nothing to do")
		return nil
	}

	tx := newTxn("unblock", list.Name, logger)
	if list.Empty() {
		if res.defaultName == list.Name {
			tx.add(stepClearDefault,
				func(ctx context.Context) error { return b.store.SetDefaultListName(ctx, "") },
				func(ctx context.Context) error { return b.store.SetDefaultListName(ctx, res.defaultName) })
		}
		tx.add(stepRemove,
			func(ctx context.Context) error { return b.store.RemoveList(ctx, list.Name) },
			nil)
	} else {
		tx.add(stepSave,
			func(ctx context.Context) error { return b.store.SaveList(ctx, list) },
			func(ctx context.Context) error { return b.store.SaveList(ctx, prev) })
		tx.add(stepSetDefault,
			func(ctx context.Context) error { return b.store.SetDefaultListName(ctx, list.Name) },
			nil)
	}

	if err := tx.run(ctx); err != nil {
		return err
	}
	if list.Empty() {
		logger.Info(nil, "privacy list emptied and removed")
	}
	logger.Debug(map[string]any{"removed": removed, "rules": len(list.Rules)}, "address unblocked")
	return nil
}

// Blocklist projects the deny address rules of the resolved list.
func (b *privacyBackend) Blocklist(ctx context.Context) (domain.BlockedSet, error) {
	res, err := b.resolveBlocklist(ctx)
	if err != nil {
		return domain.BlockedSet{}, err
	}
	if !res.found {
		return domain.BlockedSet{}, nil
	}
	return res.list.BlockedAddresses(), nil
}

var _ Backend = (*privacyBackend)(nil)
