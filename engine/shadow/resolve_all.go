package shadow

import (
	"sort"
	"sync"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/umbra-go/engine/light"
)

// lightRequirement is the resolved cell set for one light face, produced by
// the parallel resolve phase and consumed sequentially by the paging phase.
type lightRequirement struct {
	lightID uint32
	face    uint32
	cells   []CellCoord
}

func (m *shadowManagerImpl) IdentifyRequiredPages(camInvViewProj []float32) int {
	requirements := m.resolveRequirements(camInvViewProj)

	// Paging mutates the atlas and the cache, so it stays on the frame thread.
	// Requirement order is deterministic, which keeps allocation order (and
	// therefore atlas layout) reproducible for a given scene.
	dropped := 0
	for _, req := range requirements {
		for _, cell := range req.cells {
			if _, ok := m.RequestPage(req.lightID, req.face, cell.X, cell.Y); !ok {
				dropped++
			}
		}
	}
	return dropped
}

// resolveRequirements fans the per-light-face frustum math out to the worker
// pool. Each task reads only immutable per-light state captured at submit
// time, so no synchronization beyond the completion barrier is needed. Results
// are sorted by (lightID, face) before returning so the caller sees a
// deterministic order regardless of task completion order.
func (m *shadowManagerImpl) resolveRequirements(camInvViewProj []float32) []lightRequirement {
	grid := m.cfg.VirtualGridSize

	type pending struct {
		lightID  uint32
		face     uint32
		viewProj [16]float32
		allCells bool
	}
	var work []pending
	for id, st := range m.lights {
		if st.isPoint {
			// Point lights page every cell of all six faces; no per-face
			// frustum test is performed.
			for face := uint32(0); face < light.PointFaceCount; face++ {
				work = append(work, pending{lightID: id, face: face, allCells: true})
			}
			continue
		}
		work = append(work, pending{lightID: id, viewProj: st.viewProj})
	}

	results := make([]lightRequirement, len(work))

	// Workers are reused across frames; a WaitGroup provides the per-frame
	// barrier since pool.Wait() blocks until workers idle-exit, which is
	// unsuitable for frame-rate workloads.
	var wg sync.WaitGroup
	for i, p := range work {
		wg.Add(1)
		idx, pCap := i, p
		m.resolvePool.SubmitTask(worker.Task{
			ID: idx,
			Do: func() (any, error) {
				defer wg.Done()
				req := lightRequirement{lightID: pCap.lightID, face: pCap.face}
				if pCap.allCells {
					req.cells = AllPages(grid)
				} else {
					req.cells = RequiredPages(pCap.viewProj[:], camInvViewProj, grid)
				}
				results[idx] = req
				return nil, nil
			},
		})
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool {
		if results[i].lightID != results[j].lightID {
			return results[i].lightID < results[j].lightID
		}
		return results[i].face < results[j].face
	})
	return results
}
