package recipe

import (
	"net/url"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache memoizes parsed recipes by source URL. A nil *Cache is a no-op.
type Cache struct {
	entries *lru.Cache[string, Blocks]
}

// NewCache returns a cache holding up to size recipes.
func NewCache(size int) (*Cache, error) {
	entries, err := lru.New[string, Blocks](size)
	if err != nil {
		return nil, err
	}
	return &Cache{entries: entries}, nil
}

// Get returns cached blocks for rawURL.
func (c *Cache) Get(rawURL string) (Blocks, bool) {
	if c == nil {
		return Blocks{}, false
	}
	return c.entries.Get(CacheKey(rawURL))
}

// Add stores blocks for rawURL. Empty results are not cached.
func (c *Cache) Add(rawURL string, blocks Blocks) {
	if c == nil || blocks.IsEmpty() {
		return
	}
	c.entries.Add(CacheKey(rawURL), blocks)
}

// Len reports the number of cached recipes.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.entries.Len()
}

// CacheKey canonicalizes rawURL: lower-case host without www./m., no
// fragment, no trailing slash, and only the "v" query parameter kept.
func CacheKey(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return strings.TrimSpace(rawURL)
	}
	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	host = strings.TrimPrefix(host, "m.")
	key := host + strings.TrimRight(u.Path, "/")
	if v := u.Query().Get("v"); v != "" {
		key += "?v=" + v
	}
	return key
}
