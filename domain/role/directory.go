package role

import (
	"permflow/bizerror"

	"github.com/fundwit/go-commons/types"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jinzhu/gorm"
)

const DefaultCacheSize = 1024

type DirectoryTraits interface {
	FindRolesByIds(ids []types.ID, tx *gorm.DB) ([]Role, error)
	FindRole(id types.ID, tx *gorm.DB) (*Role, error)
}

// Directory resolves role records. The type of a role never changes once it is in use,
// so resolved records are kept in an LRU cache.
type Directory struct {
	cache *lru.Cache[types.ID, Role]
}

func NewDirectory(cacheSize int) *Directory {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[types.ID, Role](cacheSize)
	if err != nil {
		panic(err)
	}
	return &Directory{cache: cache}
}

// FindRolesByIds returns the known roles among ids, in the order of ids, duplicates and unknown ids dropped
func (d *Directory) FindRolesByIds(ids []types.ID, tx *gorm.DB) ([]Role, error) {
	result := []Role{}
	if len(ids) == 0 {
		return result, nil
	}

	found := map[types.ID]Role{}
	var missing []types.ID
	for _, id := range ids {
		if r, ok := d.cache.Get(id); ok {
			found[id] = r
		} else {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		var records []Role
		if err := tx.Where("id IN (?)", missing).Find(&records).Error; err != nil {
			return nil, err
		}
		for _, r := range records {
			d.cache.Add(r.ID, r)
			found[r.ID] = r
		}
	}

	seen := map[types.ID]bool{}
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if r, ok := found[id]; ok {
			result = append(result, r)
		}
	}
	return result, nil
}

func (d *Directory) FindRole(id types.ID, tx *gorm.DB) (*Role, error) {
	roles, err := d.FindRolesByIds([]types.ID{id}, tx)
	if err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		return nil, bizerror.NewErrNotFound("role", id)
	}
	return &roles[0], nil
}

// Evict drops a cached role record, used when role records are rewritten out of band
func (d *Directory) Evict(id types.ID) {
	d.cache.Remove(id)
}
