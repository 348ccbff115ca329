package shadow

import (
	"github.com/Carmen-Shannon/umbra-go/engine/renderer/bind_group_provider"
)

func (m *shadowManagerImpl) SyncTable() bind_group_provider.BufferWrite {
	return bind_group_provider.BufferWrite{
		Provider: m.provider,
		Binding:  BindingPageTable,
		Offset:   0,
		Data:     m.marshalTable(),
	}
}

func (m *shadowManagerImpl) SyncParams() bind_group_provider.BufferWrite {
	params := ParamsFromConfig(m.cfg)
	return bind_group_provider.BufferWrite{
		Provider: m.provider,
		Binding:  BindingShadowParams,
		Offset:   0,
		Data:     params.Marshal(),
	}
}

// marshalTable rebuilds the full GPU page table from the resident page set.
// Every slot is re-serialized each call: with a full rebuild there is no stale
// entry to chase when pages move or evict, and the write is a single
// contiguous upload. Slot collisions overwrite in map iteration order; the
// shader validates only that a slot is non-empty, so a collision yields a
// wrong-but-plausible lookup rather than a crash. Capacity should be sized so
// this does not happen.
func (m *shadowManagerImpl) marshalTable() []byte {
	entrySize := (&GPUPageEntry{}).Size()
	buf := make([]byte, int(m.cfg.TableCapacity)*entrySize)

	for key, page := range m.pages {
		uv, ok := m.atlas.UVTransform(page.handle)
		if !ok {
			continue
		}
		slot := PageTableIndex(key.LightID, key.Face, key.X, key.Y, m.cfg.VirtualGridSize, m.cfg.TableCapacity)
		entry := GPUPageEntry{
			ScaleOffset: [4]float32{uv.ScaleX, uv.ScaleY, uv.BiasX, uv.BiasY},
			LayerIndex:  uv.Layer,
			Valid:       1,
		}
		copy(buf[int(slot)*entrySize:], entry.Marshal())
	}
	return buf
}
