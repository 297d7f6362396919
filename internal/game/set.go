package game

import (
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/bits-and-blooms/bitset"
)

// Set is a set of vertices drawn from the identifier space of a Game. Sets
// share their storage when copied by value; use Clone to get an independent
// copy before mutating a Set owned by someone else.
//
// Two Sets are only comparable when they were created for the same identifier
// space.
type Set struct {
	bits *bitset.BitSet
}

// NewSet returns a Set over the identifier space [0, size) holding vs.
func NewSet(size int, vs ...VertexID) Set {
	s := Set{bits: bitset.New(uint(size))}
	for _, v := range vs {
		s.Add(v)
	}
	return s
}

// Size returns the size of the identifier space of s.
func (s Set) Size() int {
	if s.bits == nil {
		return 0
	}
	return int(s.bits.Len())
}

// Len returns the number of vertices in s.
func (s Set) Len() int {
	if s.bits == nil {
		return 0
	}
	return int(s.bits.Count())
}

// Empty returns true if s holds no vertices.
func (s Set) Empty() bool { return s.bits == nil || s.bits.None() }

// Has returns true if v is inside s.
func (s Set) Has(v VertexID) bool {
	return s.bits != nil && s.bits.Test(uint(v))
}

// Add adds v into s. Add panics if v is outside of the identifier space of s.
func (s Set) Add(v VertexID) {
	if int(v) >= s.Size() {
		panic("game: vertex " + strconv.Itoa(int(v)) + " outside of set identifier space")
	}
	s.bits.Set(uint(v))
}

// Remove removes v from s. Remove is a no-op if v isn't in s.
func (s Set) Remove(v VertexID) {
	if s.bits != nil {
		s.bits.Clear(uint(v))
	}
}

// Clone returns an independent copy of s.
func (s Set) Clone() Set {
	if s.bits == nil {
		return Set{bits: bitset.New(0)}
	}
	return Set{bits: s.bits.Clone()}
}

// Without returns a copy of s with v removed.
func (s Set) Without(v VertexID) Set {
	c := s.Clone()
	c.Remove(v)
	return c
}

// Equal returns true if s and other hold the same vertices.
func (s Set) Equal(other Set) bool {
	return s.Len() == other.Len() && s.bits.Equal(other.bits)
}

// Union returns a new Set holding the vertices of both s and other.
func (s Set) Union(other Set) Set {
	return Set{bits: s.bits.Union(other.bits)}
}

// Intersect returns a new Set holding the vertices found in s and other.
func (s Set) Intersect(other Set) Set {
	return Set{bits: s.bits.Intersection(other.bits)}
}

// Difference returns a new Set holding the vertices of s that are not in
// other.
func (s Set) Difference(other Set) Set {
	return Set{bits: s.bits.Difference(other.bits)}
}

// AddAll adds every vertex of other into s.
func (s Set) AddAll(other Set) { s.bits.InPlaceUnion(other.bits) }

// RemoveAll removes every vertex of other from s.
func (s Set) RemoveAll(other Set) { s.bits.InPlaceDifference(other.bits) }

// SubsetOf returns true if every vertex of s is also in other.
func (s Set) SubsetOf(other Set) bool {
	return other.bits.IsSuperSet(s.bits)
}

// Each calls fn for every vertex in s in ascending order.
func (s Set) Each(fn func(v VertexID)) {
	if s.bits == nil {
		return
	}
	for i, ok := s.bits.NextSet(0); ok; i, ok = s.bits.NextSet(i + 1) {
		fn(VertexID(i))
	}
}

// Slice returns the vertices of s in ascending order.
func (s Set) Slice() []VertexID {
	out := make([]VertexID, 0, s.Len())
	s.Each(func(v VertexID) { out = append(out, v) })
	return out
}

// Key returns a string which is identical for two Sets exactly when they hold
// the same vertices. Keys are used to memoize candidates in maps.
func (s Set) Key() string {
	var (
		buf  = make([]byte, 0, s.Len()*2)
		prev VertexID
	)
	s.Each(func(v VertexID) {
		buf = binary.AppendUvarint(buf, uint64(v-prev))
		prev = v
	})
	return string(buf)
}

// String returns s in the form {0 1 2}.
func (s Set) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	first := true
	s.Each(func(v VertexID) {
		if !first {
			sb.WriteByte(' ')
		}
		first = false
		sb.WriteString(strconv.Itoa(int(v)))
	})
	sb.WriteByte('}')
	return sb.String()
}
