package vector

import (
	"encoding/binary"
	"math"
	"slices"

	"github.com/hyperjump/semdex/pkg/utils"
)

// flat is a brute-force cosine index over unit vectors. Callers hold the lock.
type flat struct {
	ids     []string
	vectors [][]float32
}

type scored struct {
	pos   int
	score float64
}

func (f *flat) add(id string, unit []float32) {
	f.ids = append(f.ids, id)
	f.vectors = append(f.vectors, unit)
}

func (f *flat) len() int {
	return len(f.ids)
}

// search returns the positions of the k vectors closest to the unit query.
// Equal scores rank the most recently added first.
func (f *flat) search(unit []float32, k int) []scored {
	if k <= 0 || len(f.ids) == 0 {
		return nil
	}
	hits := make([]scored, len(f.vectors))
	for i, vec := range f.vectors {
		hits[i] = scored{pos: i, score: utils.Dot(unit, vec)}
	}
	slices.SortFunc(hits, func(a, b scored) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		default:
			return b.pos - a.pos
		}
	})
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k]
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size:]))
	}
	return out
}
