package page

// Collide returns the ids of a that also occur in b, in the order of a,
// truncated to limit. Duplicates collapse to their first occurrence.
func Collide(a []int64, b []int64, limit int) []int64 {
	if limit <= 0 || len(a) == 0 || len(b) == 0 {
		return []int64{}
	}

	// the membership set is built from the smaller list, the output order
	// always follows a
	small, large := b, a
	if len(a) < len(b) {
		small, large = a, b
	}
	inSmall := make(map[int64]struct{}, len(small))
	for _, id := range small {
		inSmall[id] = struct{}{}
	}
	inBoth := inSmall
	if len(a) < len(b) {
		inBoth = make(map[int64]struct{}, len(small))
		for _, id := range large {
			if _, ok := inSmall[id]; ok {
				inBoth[id] = struct{}{}
			}
		}
	}

	size := limit
	if len(inBoth) < size {
		size = len(inBoth)
	}
	out := make([]int64, 0, size)
	emitted := make(map[int64]struct{}, size)
	for _, id := range a {
		if len(out) >= limit {
			break
		}
		if _, ok := inBoth[id]; !ok {
			continue
		}
		if _, dup := emitted[id]; dup {
			continue
		}
		emitted[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
