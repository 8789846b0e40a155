package mm

import "pios/kernel"

// FreeList is a bounded, order-preserving list of disjoint free ranges. It
// lives in a fixed array so it can be used before any heap exists.
type FreeList[A Address] struct {
	ranges [FreeListCapacity]Range[A]
	count  int

	// reserved slots are held for PushReserved calls.
	reserved int
}

// Len returns the number of ranges currently tracked.
func (l *FreeList[A]) Len() int { return l.count }

// At returns the i-th tracked range.
func (l *FreeList[A]) At(i int) Range[A] { return l.ranges[i] }

// Available returns the total number of free bytes.
func (l *FreeList[A]) Available() Size {
	var total Size
	for i := 0; i < l.count; i++ {
		total += l.ranges[i].Size()
	}
	return total
}

// Push adds r to the list. A range touching an entry extends that entry
// instead of taking a new slot. Empty ranges are ignored. A range
// overlapping one already in the list is rejected with ErrInvalid;
// ErrOverflow is returned when r needs a slot and none is left.
func (l *FreeList[A]) Push(r Range[A]) *kernel.Error {
	if r.Empty() {
		return nil
	}
	if l.overlaps(r) {
		return ErrInvalid
	}

	for i := 0; i < l.count; i++ {
		switch {
		case l.ranges[i].end == r.start:
			l.ranges[i].end = r.end
		case r.end == l.ranges[i].start:
			l.ranges[i].start = r.start
		default:
			continue
		}
		l.joinNext(i)
		return nil
	}

	if l.count+l.reserved >= len(l.ranges) {
		return ErrOverflow
	}
	l.ranges[l.count] = r
	l.count++
	return nil
}

// joinNext folds an entry touching entry i, if any, into
// entry i. At most one such entry exists since entries never overlap.
func (l *FreeList[A]) joinNext(i int) {
	for j := 0; j < l.count; j++ {
		if j == i {
			continue
		}
		switch {
		case l.ranges[i].end == l.ranges[j].start:
			l.ranges[i].end = l.ranges[j].end
		case l.ranges[j].end == l.ranges[i].start:
			l.ranges[i].start = l.ranges[j].start
		default:
			continue
		}
		l.remove(j)
		return
	}
}

func (l *FreeList[A]) remove(i int) {
	copy(l.ranges[i:l.count], l.ranges[i+1:l.count])
	l.count--
	l.ranges[l.count] = Range[A]{}
}

func (l *FreeList[A]) overlaps(r Range[A]) bool {
	for i := 0; i < l.count; i++ {
		if l.ranges[i].Overlaps(r) {
			return true
		}
	}
	return false
}

// Reserve sets a slot aside for a later PushReserved. It returns false if
// the list has no slot left.
func (l *FreeList[A]) Reserve() bool {
	if l.count+l.reserved >= len(l.ranges) {
		return false
	}
	l.reserved++
	return true
}

// Unreserve gives back a slot obtained from Reserve.
func (l *FreeList[A]) Unreserve() {
	if l.reserved > 0 {
		l.reserved--
	}
}

// PushReserved behaves like Push but consumes a slot obtained from Reserve.
func (l *FreeList[A]) PushReserved(r Range[A]) *kernel.Error {
	l.Unreserve()
	return l.Push(r)
}

// PopFront carves a unit of the given size off the first range that can
// supply an aligned one. Ranges left empty are dropped.
func (l *FreeList[A]) PopFront(size Size) (Range[A], bool) {
	for i := 0; i < l.count; i++ {
		unit, err := l.ranges[i].popFront(size)
		if err != nil {
			continue
		}

		if l.ranges[i].Empty() {
			l.remove(i)
		}
		return unit, true
	}
	return Range[A]{}, false
}

// RangePool hands out 4K and 2M units carved from a seed range. A share of
// the seed (HugePoolPercent) is kept for 2M units.
type RangePool[A Address] struct {
	huge  FreeList[A]
	small FreeList[A]

	// errExhausted is reported when neither list can serve a request.
	errExhausted *kernel.Error
	initialized  bool
}

// Init splits seed between the 2M and 4K lists. Bytes that cannot be
// aligned to a list's granule are discarded.
func (p *RangePool[A]) Init(seed Range[A], hugePercent uint64, errExhausted *kernel.Error) *kernel.Error {
	head, tail, err := seed.Split(hugePercent)
	if err != nil {
		return err
	}

	*p = RangePool[A]{errExhausted: errExhausted}
	if err = p.huge.Push(head.AlignTo2M()); err != nil {
		return err
	}
	if err = p.small.Push(tail.AlignTo4K()); err != nil {
		return err
	}
	p.initialized = true
	return nil
}

// Allocate returns a free unit of the requested size, which must be Block4K
// or Block2M.
func (p *RangePool[A]) Allocate(size Size) (Range[A], *kernel.Error) {
	if !p.initialized {
		return Range[A]{}, ErrNotInitialized
	}
	list, err := p.listFor(size)
	if err != nil {
		return Range[A]{}, err
	}

	unit, ok := list.PopFront(size)
	if !ok {
		return Range[A]{}, p.errExhausted
	}
	return unit, nil
}

// Free returns a unit obtained from Allocate. A unit adjacent to a free
// range of the same list extends it.
func (p *RangePool[A]) Free(unit Range[A]) *kernel.Error {
	list, err := p.unitList(unit)
	if err != nil {
		return err
	}
	return list.Push(unit)
}

// ReserveFree checks that unit can be handed back and holds a slot for it
// until CommitFree or CancelFree is called.
func (p *RangePool[A]) ReserveFree(unit Range[A]) *kernel.Error {
	list, err := p.unitList(unit)
	if err != nil {
		return err
	}
	if list.overlaps(unit) {
		return ErrInvalid
	}
	if !list.Reserve() {
		return ErrOverflow
	}
	return nil
}

// CommitFree frees a unit passed to ReserveFree.
func (p *RangePool[A]) CommitFree(unit Range[A]) *kernel.Error {
	list, err := p.unitList(unit)
	if err != nil {
		return err
	}
	return list.PushReserved(unit)
}

// CancelFree drops the slot held by ReserveFree.
func (p *RangePool[A]) CancelFree(unit Range[A]) {
	if list, err := p.unitList(unit); err == nil {
		list.Unreserve()
	}
}

// unitList validates unit and returns the list it belongs to.
func (p *RangePool[A]) unitList(unit Range[A]) (*FreeList[A], *kernel.Error) {
	if !p.initialized {
		return nil, ErrNotInitialized
	}
	list, err := p.listFor(unit.Size())
	if err != nil {
		return nil, err
	}
	if AlignDown(unit.start, unit.Size()) != unit.start {
		return nil, ErrAlign
	}
	return list, nil
}

// Available returns the free bytes held by the list serving size.
func (p *RangePool[A]) Available(size Size) Size {
	list, err := p.listFor(size)
	if err != nil {
		return 0
	}
	return list.Available()
}

func (p *RangePool[A]) listFor(size Size) (*FreeList[A], *kernel.Error) {
	switch size {
	case Block4K:
		return &p.small, nil
	case Block2M:
		return &p.huge, nil
	default:
		return nil, ErrUnsupported
	}
}
