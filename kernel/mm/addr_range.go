package mm

import "pios/kernel"

// Range is the half-open address interval [start, end).
type Range[A Address] struct {
	start A
	end   A
}

// VirtualRange is a range of virtual addresses.
type VirtualRange = Range[VirtualAddress]

// PhysicalRange is a range of physical addresses.
type PhysicalRange = Range[PhysicalAddress]

// NewRange returns the range [start, end). It fails with ErrOverflow if end
// lies before start.
func NewRange[A Address](start, end A) (Range[A], *kernel.Error) {
	if end < start {
		return Range[A]{}, ErrOverflow
	}
	return Range[A]{start: start, end: end}, nil
}

// Start returns the first address of the range.
func (r Range[A]) Start() A { return r.start }

// End returns the first address past the range.
func (r Range[A]) End() A { return r.end }

// Size returns the number of bytes covered by the range.
func (r Range[A]) Size() Size { return Size(r.end - r.start) }

// Empty returns true if the range covers no bytes.
func (r Range[A]) Empty() bool { return r.start >= r.end }

// Contains returns true if a lies within the range.
func (r Range[A]) Contains(a A) bool { return a >= r.start && a < r.end }

// Overlaps returns true if the two ranges share at least one byte.
func (r Range[A]) Overlaps(o Range[A]) bool {
	return !r.Empty() && !o.Empty() && r.start < o.end && o.start < r.end
}

// AlignTo4K returns the largest 4K-aligned sub-range of r.
func (r Range[A]) AlignTo4K() Range[A] { return r.alignTo(PageSize) }

// AlignTo2M returns the largest 2M-aligned sub-range of r.
func (r Range[A]) AlignTo2M() Range[A] { return r.alignTo(HugePageSize) }

func (r Range[A]) alignTo(size Size) Range[A] {
	start, end := AlignUp(r.start, size), AlignDown(r.end, size)
	if start < r.start || start >= end {
		// Nothing aligned fits; collapse to an empty range at the end.
		return Range[A]{start: r.end, end: r.end}
	}
	return Range[A]{start: start, end: end}
}

// Split divides r at start + size*percent/100 and returns the two halves. It
// fails with ErrOverflow if percent exceeds 100.
func (r Range[A]) Split(percent uint64) (Range[A], Range[A], *kernel.Error) {
	if percent > 100 {
		return Range[A]{}, Range[A]{}, ErrOverflow
	}

	size := uint64(r.Size())
	at := r.start + A(size/100*percent+size%100*percent/100)
	return Range[A]{start: r.start, end: at}, Range[A]{start: at, end: r.end}, nil
}

// PopFront4K removes the first 4K unit from r and returns it.
func (r *Range[A]) PopFront4K() (Range[A], *kernel.Error) { return r.popFront(PageSize) }

// PopFront2M removes the first 2M unit from r and returns it.
func (r *Range[A]) PopFront2M() (Range[A], *kernel.Error) { return r.popFront(HugePageSize) }

func (r *Range[A]) popFront(size Size) (Range[A], *kernel.Error) {
	if AlignDown(r.start, size) != r.start {
		return Range[A]{}, ErrAlign
	}
	if r.Empty() || r.Size() < size {
		return Range[A]{}, ErrOverflow
	}

	unit := Range[A]{start: r.start, end: r.start + A(size)}
	r.start = unit.end
	return unit, nil
}

// Iter returns an iterator over the granule-aligned addresses inside r.
// Granule must be a power of 2.
func (r Range[A]) Iter(granule Size) *RangeIter[A] {
	it := &RangeIter[A]{r: r, step: granule}
	it.Reset()
	return it
}

// RangeIter walks the granule-aligned addresses of a range in ascending
// order. The zero value yields nothing.
type RangeIter[A Address] struct {
	r    Range[A]
	step Size
	next A
	done bool
}

// Next returns the following address and true, or false once the range
// has been exhausted.
func (it *RangeIter[A]) Next() (A, bool) {
	if it.done || it.step == 0 || it.next >= it.r.end {
		it.done = true
		return 0, false
	}

	cur := it.next
	if it.next += A(it.step); it.next < cur {
		// Wrapped around the top of the address space.
		it.done = true
		it.next = it.r.end
	}
	return cur, true
}

// Reset rewinds the iterator to the first aligned address of the range.
func (it *RangeIter[A]) Reset() {
	it.done = it.step == 0
	if it.done {
		return
	}
	it.next = AlignUp(it.r.start, it.step)
	if it.next < it.r.start {
		it.done = true
	}
}
