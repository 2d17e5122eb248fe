package persistent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/buzkaaclicker/streams"
	"github.com/tidwall/buntdb"
)

const DefaultListLimit = 1000

// Cache is the buntdb backed streams.Cache. Values are stored as raw strings,
// id lists as json objects under a "list:" prefix.
type Cache struct {
	Buntdb *buntdb.DB
	// ListLimit truncates lists on every write. Zero means DefaultListLimit.
	ListLimit int
}

var _ streams.Cache = (*Cache)(nil)

func listKey(key string) string {
	return "list:" + key
}

func (c *Cache) listLimit() int {
	if c.ListLimit <= 0 {
		return DefaultListLimit
	}
	return c.ListLimit
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value string
	err := c.Buntdb.View(func(tx *buntdb.Tx) error {
		var err error
		value, err = tx.Get(key)
		return err
	})
	if err != nil {
		if errors.Is(err, buntdb.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("buntdb view: %w", err)
	}
	return []byte(value), true, nil
}

func (c *Cache) MultiGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	found := make(map[string][]byte, len(keys))
	err := c.Buntdb.View(func(tx *buntdb.Tx) error {
		for _, key := range keys {
			value, err := tx.Get(key)
			if err != nil {
				if errors.Is(err, buntdb.ErrNotFound) {
					continue
				}
				return fmt.Errorf("get %s: %w", key, err)
			}
			found[key] = []byte(value)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("buntdb view: %w", err)
	}
	return found, nil
}

func (c *Cache) Set(ctx context.Context, key string, value []byte) error {
	err := c.Buntdb.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(key, string(value), nil)
		return err
	})
	if err != nil {
		return fmt.Errorf("buntdb update: %w", err)
	}
	return nil
}

// Delete removes key both as value and as list.
func (c *Cache) Delete(ctx context.Context, key string) error {
	err := c.Buntdb.Update(func(tx *buntdb.Tx) error {
		for _, k := range []string{key, listKey(key)} {
			if _, err := tx.Delete(k); err != nil && !errors.Is(err, buntdb.ErrNotFound) {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("buntdb update: %w", err)
	}
	return nil
}

func (c *Cache) GetList(ctx context.Context, key string) (streams.IdList, bool, error) {
	var list streams.IdList
	found := false
	err := c.Buntdb.View(func(tx *buntdb.Tx) error {
		var err error
		list, found, err = getList(tx, key)
		return err
	})
	if err != nil {
		return streams.IdList{}, false, fmt.Errorf("buntdb view: %w", err)
	}
	return list, found, nil
}

func (c *Cache) SetList(ctx context.Context, key string, list streams.IdList) error {
	err := c.Buntdb.Update(func(tx *buntdb.Tx) error {
		return c.setList(tx, key, list)
	})
	if err != nil {
		return fmt.Errorf("buntdb update: %w", err)
	}
	return nil
}

func (c *Cache) AddToTop(ctx context.Context, key string, id int64) error {
	return c.modifyList(key, func(list streams.IdList) streams.IdList {
		updated := make([]int64, 0, len(list.Ids)+1)
		updated = append(updated, id)
		for _, existing := range list.Ids {
			if existing != id {
				updated = append(updated, existing)
			}
		}
		return streams.IdList{Ids: updated, Truncated: list.Truncated}
	})
}

func (c *Cache) RemoveFromList(ctx context.Context, key string, id int64) error {
	return c.modifyList(key, func(list streams.IdList) streams.IdList {
		updated := list.Ids[:0]
		for _, existing := range list.Ids {
			if existing != id {
				updated = append(updated, existing)
			}
		}
		return streams.IdList{Ids: updated, Truncated: list.Truncated}
	})
}

// modifyList rewrites an existing list in one buntdb transaction. Missing
// lists stay missing.
func (c *Cache) modifyList(key string, modify func(list streams.IdList) streams.IdList) error {
	err := c.Buntdb.Update(func(tx *buntdb.Tx) error {
		list, found, err := getList(tx, key)
		if err != nil || !found {
			return err
		}
		return c.setList(tx, key, modify(list))
	})
	if err != nil {
		return fmt.Errorf("buntdb update: %w", err)
	}
	return nil
}

func getList(tx *buntdb.Tx, key string) (streams.IdList, bool, error) {
	raw, err := tx.Get(listKey(key))
	if err != nil {
		if errors.Is(err, buntdb.ErrNotFound) {
			return streams.IdList{}, false, nil
		}
		return streams.IdList{}, false, fmt.Errorf("get list %s: %w", key, err)
	}
	var list streams.IdList
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return streams.IdList{}, false, fmt.Errorf("deserialize list %s: %w", key, err)
	}
	if list.Ids == nil {
		list.Ids = []int64{}
	}
	return list, true, nil
}

func (c *Cache) setList(tx *buntdb.Tx, key string, list streams.IdList) error {
	if len(list.Ids) > c.listLimit() {
		list.Ids = list.Ids[:c.listLimit()]
		list.Truncated = true
	}
	if list.Ids == nil {
		list.Ids = []int64{}
	}
	raw, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("serialize list %s: %w", key, err)
	}
	_, _, err = tx.Set(listKey(key), string(raw), nil)
	return err
}
