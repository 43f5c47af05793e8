// Package ownercache persists previously resolved ticket owners per
// iteration scope, so repeated user lookups do not hit the tracker. The cache
// is best-effort: it is rebuildable from the tracker, so a corrupt file
// degrades to an empty cache instead of failing the caller, and the next
// successful write heals it.
package ownercache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/natefinch/atomic"
	"github.com/sirupsen/logrus"

	"rallyterm/internal/rally"
)

const cacheFileName = "owners.json"

// ownerRecord is the on-disk shape of one cached owner.
type ownerRecord struct {
	ObjectID    int64  `json:"objectId"`
	DisplayName string `json:"displayName"`
	UserName    string `json:"userName,omitempty"`
}

// document is the on-disk shape of the whole cache: scope key to owner list.
type document map[string][]ownerRecord

// Cache is a scope-keyed owner cache persisted as a single JSON document.
// A process is expected to be the only writer of its cache directory; a new
// instance pointed at the same directory observes previously persisted data.
type Cache struct {
	dir string
	log *logrus.Entry
}

// New creates a cache rooted at the given directory.
func New(dir string, logger *logrus.Entry) *Cache {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Cache{dir: dir, log: logger}
}

func (c *Cache) filePath() string {
	return filepath.Join(c.dir, cacheFileName)
}

// load reads and parses the cache document. Parse failure is an explicit
// result here, not an implicit effect: callers decide what to do with it.
// A missing file is an empty document, not an error.
func (c *Cache) load() (document, error) {
	data, err := os.ReadFile(c.filePath())
	if err != nil {
		if os.IsNotExist(err) {
			return document{}, nil
		}
		return nil, fmt.Errorf("cannot read cache file: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("cannot parse cache file: %w", err)
	}
	if doc == nil {
		doc = document{}
	}

	return doc, nil
}

// Get returns the cached owner set for a scope. An absent scope, an absent
// file and an unparseable file all yield an empty set; corruption never
// propagates to the caller.
func (c *Cache) Get(scope string) rally.OwnerSet {
	doc, err := c.load()
	if err != nil {
		c.log.WithError(err).Debug("owner cache unreadable, treating as empty")
		return rally.NewOwnerSet()
	}

	owners := rally.NewOwnerSet()
	for _, record := range doc[scope] {
		owners.Insert(rally.Owner{
			ObjectID:    record.ObjectID,
			DisplayName: record.DisplayName,
			UserName:    record.UserName,
		})
	}

	return owners
}

// Set replaces the entry for a scope wholesale and rewrites the document
// atomically. This is the only write path; there is no partial merge. A
// corrupt existing file is discarded, so a successful Set always leaves a
// well-formed document behind.
func (c *Cache) Set(scope string, owners rally.OwnerSet) error {
	doc, err := c.load()
	if err != nil {
		c.log.WithError(err).Debug("discarding unreadable owner cache")
		doc = document{}
	}

	records := make([]ownerRecord, 0, owners.Len())
	for _, owner := range owners.Values() {
		records = append(records, ownerRecord{
			ObjectID:    owner.ObjectID,
			DisplayName: owner.DisplayName,
			UserName:    owner.UserName,
		})
	}
	doc[scope] = records

	return c.write(doc)
}

// Clear removes the entry for one scope. Clearing a scope that is not cached
// is a no-op.
func (c *Cache) Clear(scope string) error {
	doc, err := c.load()
	if err != nil {
		c.log.WithError(err).Debug("discarding unreadable owner cache")
		doc = document{}
	}

	if _, ok := doc[scope]; !ok {
		return nil
	}
	delete(doc, scope)

	return c.write(doc)
}

// ClearAll removes the whole cache document.
func (c *Cache) ClearAll() error {
	if err := os.Remove(c.filePath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("cannot remove cache file: %w", err)
	}
	return nil
}

// Scopes lists the cached scope keys in sorted order.
func (c *Cache) Scopes() []string {
	doc, err := c.load()
	if err != nil {
		return nil
	}

	scopes := make([]string, 0, len(doc))
	for scope := range doc {
		scopes = append(scopes, scope)
	}
	sort.Strings(scopes)

	return scopes
}

func (c *Cache) write(doc document) error {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("cannot create cache directory: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal cache document: %w", err)
	}

	if err := atomic.WriteFile(c.filePath(), bytes.NewReader(data)); err != nil {
		return fmt.Errorf("cannot write cache file: %w", err)
	}

	return nil
}
