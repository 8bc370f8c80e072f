// Package assets resolves logical asset names to the fingerprinted files
// produced by the client bundle build.
//
// The build writes a manifest.json mapping source names to built names:
//
//	{
//	  "main.js": "main.9c1d2e.js",
//	  "main.css": "main.3f2a77.css",
//	  "posts.js": "posts.77aa01.js"
//	}
//
// The manifest is loaded once at startup, from local disk or from S3:
//
//	m, err := assets.LoadURI(ctx, "dist/manifest.json", nil)
//	m, err := assets.LoadURI(ctx, "s3://my-bucket/releases/42/manifest.json", client)
package assets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Manifest holds the mapping from source asset paths to fingerprinted paths.
// It is safe for concurrent use.
type Manifest struct {
	entries map[string]string
	mu      sync.RWMutex
}

// NewManifest creates an empty manifest.
func NewManifest() *Manifest {
	return &Manifest{
		entries: make(map[string]string),
	}
}

// Parse decodes manifest JSON of the form {"source.js": "source.abc123.js"}.
func Parse(data []byte) (*Manifest, error) {
	var entries map[string]string
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("assets: parse manifest: %w", err)
	}
	if entries == nil {
		entries = make(map[string]string)
	}
	return &Manifest{entries: entries}, nil
}

// Load reads a manifest file from local disk.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("assets: read manifest: %w", err)
	}
	return Parse(data)
}

// LoadURI loads a manifest from an s3:// URI using getter, or from a local
// path otherwise.
func LoadURI(ctx context.Context, uri string, getter ObjectGetter) (*Manifest, error) {
	if strings.HasPrefix(uri, "s3://") {
		bucket, key, err := ParseS3URI(uri)
		if err != nil {
			return nil, err
		}
		return LoadS3(ctx, getter, bucket, key)
	}
	return Load(uri)
}

// Resolve returns the fingerprinted path for the given source path.
// If not found, returns the original path unchanged.
func (m *Manifest) Resolve(source string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if resolved, ok := m.entries[source]; ok {
		return resolved
	}
	return source
}

// Has returns true if the manifest contains the given source path.
func (m *Manifest) Has(source string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.entries[source]
	return ok
}

// Set adds or updates an entry.
func (m *Manifest) Set(source, resolved string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[source] = resolved
}

// Len returns the number of entries in the manifest.
func (m *Manifest) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.entries)
}

// All returns a copy of all manifest entries.
func (m *Manifest) All() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]string, len(m.entries))
	for k, v := range m.entries {
		result[k] = v
	}
	return result
}
