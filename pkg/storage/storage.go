// Package storage keeps the catalog of capture sessions in pebble.
package storage

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/segmentio/ksuid"

	"github.com/ssargent/binderdump/pkg/codec"
)

var (
	ErrNotFound = errors.New("storage: session not found")
	ErrNilID    = errors.New("storage: session has no id")
)

var sessionPrefix = []byte("session/")

func sessionKey(id ksuid.KSUID) []byte {
	key := make([]byte, 0, len(sessionPrefix)+len(id))
	return append(append(key, sessionPrefix...), id.Bytes()...)
}

// Catalog stores Session records keyed by their ksuid, so iteration order
// is creation order.
type Catalog struct {
	db *pebble.DB
}

func Open(path string) (*Catalog, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog %s: %w", path, err)
	}
	return &Catalog{db: db}, nil
}

// Create stores s, assigning an ID when s has none.
func (c *Catalog) Create(s *Session) error {
	if s.ID.IsNil() {
		s.ID = ksuid.New()
	}
	return c.put(s)
}

func (c *Catalog) Read(id ksuid.KSUID) (*Session, error) {
	data, closer, err := c.db.Get(sessionKey(id))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	return decodeSession(id, data)
}

// Update replaces an existing session.
func (c *Catalog) Update(s *Session) error {
	if s.ID.IsNil() {
		return ErrNilID
	}
	if _, err := c.Read(s.ID); err != nil {
		return err
	}
	return c.put(s)
}

func (c *Catalog) Delete(id ksuid.KSUID) error {
	if _, err := c.Read(id); err != nil {
		return err
	}
	return c.db.Delete(sessionKey(id), pebble.Sync)
}

// List returns every session, oldest first.
func (c *Catalog) List() ([]*Session, error) {
	upper := append([]byte(nil), sessionPrefix...)
	upper[len(upper)-1]++

	iter, err := c.db.NewIter(&pebble.IterOptions{LowerBound: sessionPrefix, UpperBound: upper})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var sessions []*Session
	for iter.First(); iter.Valid(); iter.Next() {
		id, err := ksuid.FromBytes(bytes.TrimPrefix(iter.Key(), sessionPrefix))
		if err != nil {
			return nil, fmt.Errorf("bad catalog key %q: %w", iter.Key(), err)
		}
		s, err := decodeSession(id, iter.Value())
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, iter.Error()
}

func (c *Catalog) Close() error {
	return c.db.Close()
}

func (c *Catalog) put(s *Session) error {
	data, err := codec.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", s.ID, err)
	}
	return c.db.Set(sessionKey(s.ID), data, pebble.Sync)
}

// decodeSession copies out of data, which pebble owns.
func decodeSession(id ksuid.KSUID, data []byte) (*Session, error) {
	var s Session
	if err := codec.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", id, err)
	}
	s.ID = id
	return &s, nil
}
