package record

import (
	"os/user"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultNameCacheSize bounds the number of cached uid and gid lookups.
const DefaultNameCacheSize = 512

// NameCache resolves uids and gids to names, remembering recent answers.
// Unresolvable ids fall back to their decimal form.
type NameCache struct {
	users  *lru.Cache[uint32, string]
	groups *lru.Cache[uint32, string]

	lookupUser  func(string) (string, error)
	lookupGroup func(string) (string, error)
}

// NewNameCache returns a cache holding up to size entries per id space.
func NewNameCache(size int) (*NameCache, error) {
	if size <= 0 {
		size = DefaultNameCacheSize
	}
	users, err := lru.New[uint32, string](size)
	if err != nil {
		return nil, err
	}
	groups, err := lru.New[uint32, string](size)
	if err != nil {
		return nil, err
	}
	return &NameCache{
		users:       users,
		groups:      groups,
		lookupUser:  lookupUsername,
		lookupGroup: lookupGroupname,
	}, nil
}

// Owner returns the user name for uid.
func (c *NameCache) Owner(uid uint32) string {
	return resolve(c.users, uid, c.lookupUser)
}

// Group returns the group name for gid.
func (c *NameCache) Group(gid uint32) string {
	return resolve(c.groups, gid, c.lookupGroup)
}

func resolve(cache *lru.Cache[uint32, string], id uint32, lookup func(string) (string, error)) string {
	if name, ok := cache.Get(id); ok {
		return name
	}
	key := strconv.FormatUint(uint64(id), 10)
	name, err := lookup(key)
	if err != nil || name == "" {
		name = key
	}
	cache.Add(id, name)
	return name
}

func lookupUsername(uid string) (string, error) {
	u, err := user.LookupId(uid)
	if err != nil {
		return "", err
	}
	return u.Username, nil
}

func lookupGroupname(gid string) (string, error) {
	g, err := user.LookupGroupId(gid)
	if err != nil {
		return "", err
	}
	return g.Name, nil
}
