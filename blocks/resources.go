package blocks

import (
	ba "github.com/drpcorg/blockarena"
	"github.com/drpcorg/blockarena/u128"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Resources bounds the image blocks an arena keeps. Images are big
// and referenced weakly, so once more than size are tracked the least
// recently used one is evicted from the arena. An image that some
// handle still holds survives the eviction and drops out of tracking.
type Resources struct {
	arena *ba.Arena
	cache *lru.Cache[u128.ID, struct{}]
}

func NewResources(a *ba.Arena, size int) (*Resources, error) {
	r := &Resources{arena: a}
	cache, err := lru.NewWithEvict[u128.ID, struct{}](size, r.evicted)
	if err != nil {
		return nil, err
	}
	r.cache = cache
	return r, nil
}

func (r *Resources) evicted(id u128.ID, _ struct{}) {
	if r.arena.Evict(id) {
		r.arena.Logger().Debug("image evicted", "id", id.String())
	} else {
		r.arena.Logger().Debug("image still held", "id", id.String())
	}
}

// Add stores img and starts tracking it.
func (r *Resources) Add(img *ImageData) ba.Ref[*ImageData] {
	id := r.arena.Add(img)
	r.cache.Add(id, struct{}{})
	return ba.RefOf[*ImageData](id)
}

// Get resolves ref and marks the image as recently used.
func (r *Resources) Get(ref ba.Ref[*ImageData]) (*ImageData, bool) {
	img, ok := ba.Get[*ImageData](r.arena, ref.ID())
	if !ok {
		return nil, false
	}
	if _, tracked := r.cache.Get(ref.ID()); !tracked {
		r.cache.Add(ref.ID(), struct{}{})
	}
	return img, true
}

// Track adopts the images that reached the arena by merge or load.
func (r *Resources) Track() (adopted int) {
	for id := range ba.All[*ImageData](r.arena) {
		if !r.cache.Contains(id) {
			r.cache.Add(id, struct{}{})
			adopted++
		}
	}
	return
}

func (r *Resources) Len() int {
	return r.cache.Len()
}
