// Package vocab loads the master tag vocabulary and the precomputed synonym
// rings. Both files are produced out of band; this package only reads them.
package vocab

import (
	"fmt"
	"os"
	"sync"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"mnemo/internal/errors"
)

// Manifest is the on-disk shape of the vocabulary file.
type Manifest struct {
	Vocabulary struct {
		Tags        []string `toml:"tags"`
		Buckets     []string `toml:"buckets"`
		DomainTerms []string `toml:"domain_terms"`
	} `toml:"vocabulary"`
}

// Vocabulary gives query-time access to known tags, buckets, domain terms
// and synonym rings. Safe for concurrent use; Reload swaps the snapshot
// atomically.
type Vocabulary struct {
	manifestPath string
	synonymsPath string

	mu       sync.RWMutex
	tags     []string
	buckets  []string
	domain   []string
	synonyms map[string][]string
}

// New creates a Vocabulary reading from the given paths. Either path may be
// empty, in which case that part stays empty.
func New(manifestPath, synonymsPath string) *Vocabulary {
	return &Vocabulary{
		manifestPath: manifestPath,
		synonymsPath: synonymsPath,
		synonyms:     map[string][]string{},
	}
}

// Reload re-reads both files. A missing manifest is an error; a missing
// synonyms file is not, since the miner may simply not have run yet.
func (v *Vocabulary) Reload() error {
	var m Manifest
	if v.manifestPath != "" {
		if _, err := toml.DecodeFile(v.manifestPath, &m); err != nil {
			return errors.New(errors.VocabularyMissing,
				fmt.Sprintf("vocabulary manifest %s", v.manifestPath), err)
		}
	}

	synonyms := map[string][]string{}
	if v.synonymsPath != "" {
		raw, err := os.ReadFile(v.synonymsPath)
		if err == nil {
			if err := yaml.Unmarshal(raw, &synonyms); err != nil {
				return fmt.Errorf("parse synonyms %s: %w", v.synonymsPath, err)
			}
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("read synonyms %s: %w", v.synonymsPath, err)
		}
	}

	v.mu.Lock()
	v.tags = m.Vocabulary.Tags
	v.buckets = m.Vocabulary.Buckets
	v.domain = m.Vocabulary.DomainTerms
	v.synonyms = synonyms
	v.mu.Unlock()
	return nil
}

// Tags returns the known tag list.
func (v *Vocabulary) Tags() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.tags
}

// Buckets returns the known bucket list.
func (v *Vocabulary) Buckets() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.buckets
}

// DomainTerms returns the reduction whitelist.
func (v *Vocabulary) DomainTerms() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.domain
}

// Synonyms returns the synonym ring for a term, or nil.
func (v *Vocabulary) Synonyms(term string) []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.synonyms[term]
}

// Size reports how many tags and synonym rings are loaded.
func (v *Vocabulary) Size() (tags, rings int) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.tags), len(v.synonyms)
}
