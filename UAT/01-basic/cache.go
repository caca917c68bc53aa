// Package basic is a read-through cache over a slow store.
package basic

import "errors"

// ErrNotFound is returned by a Store that has no value for a key.
var ErrNotFound = errors.New("not found")

// Store is the slow backing storage.
//
//behave:mockable
type Store interface {
	Get(key string) (string, error)
	Put(key, value string)
	Keys(prefix string, limit ...int) []string
}

// Cache remembers what it reads from its Store.
type Cache struct {
	store Store
	seen  map[string]string
}

// NewCache creates an empty cache over store.
func NewCache(store Store) *Cache {
	return &Cache{store: store, seen: make(map[string]string)}
}

// Lookup returns the value of key, asking the store at most once.
func (c *Cache) Lookup(key string) (string, error) {
	if value, ok := c.seen[key]; ok {
		return value, nil
	}

	value, err := c.store.Get(key)
	if err != nil {
		return "", err
	}

	c.seen[key] = value

	return value, nil
}

// Warm copies every value under prefix into the store's "warm:" namespace.
func (c *Cache) Warm(prefix string) error {
	for _, key := range c.store.Keys(prefix, 10) {
		value, err := c.Lookup(key)
		if err != nil {
			return err
		}

		c.store.Put("warm:"+key, value)
	}

	return nil
}
