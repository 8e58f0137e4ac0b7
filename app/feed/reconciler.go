package feed

// Reconcile returns the entries whose link is not among the known links, in
// their original order. Entries without a link can't be matched and are
// always new. A link repeated within entries is returned once, first
// occurrence wins.
func Reconcile(known []string, entries []ParsedEntry) []ParsedEntry {
	seen := make(map[string]struct{}, len(known)+len(entries))
	for _, link := range known {
		if link != "" {
			seen[link] = struct{}{}
		}
	}

	fresh := make([]ParsedEntry, 0, len(entries))
	for _, entry := range entries {
		link := entry.LinkKey()
		if link == "" {
			fresh = append(fresh, entry)
			continue
		}
		if _, ok := seen[link]; ok {
			continue
		}
		seen[link] = struct{}{}
		fresh = append(fresh, entry)
	}

	return fresh
}
