package dsr

import "sort"

// matchFile pairs before/after symbols for a single file using the
// three-pass key relaxation, emitting add/modify/delete/
// rename operations. Order of the returned slice is not significant;
// callers canonicalize afterward.
func matchFile(before, after []symbolEntry) []Operation {
	matchedBefore := make([]bool, len(before))
	matchedAfter := make([]bool, len(after))
	var ops []Operation

	// Pass 1: exact key (container, kind, name, signature).
	byKey1 := map[string][]int{}
	for i, s := range before {
		k := key1(s)
		byKey1[k] = append(byKey1[k], i)
	}
	for j, a := range after {
		for _, i := range byKey1[key1(a)] {
			if matchedBefore[i] {
				continue
			}
			matchedBefore[i] = true
			matchedAfter[j] = true
			if before[i].ContentHash != a.ContentHash {
				ops = append(ops, modifyOp(before[i], a))
			}
			break
		}
	}

	// Pass 2: key ignoring signature (container, kind, name), exactly
	// one unmatched candidate on both sides.
	ops = append(ops, matchPass(before, after, matchedBefore, matchedAfter, key2, func(b, a symbolEntry) Operation {
		return modifyOp(b, a)
	})...)

	// Pass 3: key ignoring signature and name (container, kind,
	// content_hash), exactly one unmatched candidate on both sides.
	ops = append(ops, matchPass(before, after, matchedBefore, matchedAfter, key3, func(b, a symbolEntry) Operation {
		if b.Name != a.Name || b.Signature != a.Signature {
			return renameOp(b, a)
		}
		return modifyOp(b, a)
	})...)

	for j, a := range after {
		if !matchedAfter[j] {
			ops = append(ops, addOp(a))
		}
	}
	for i, b := range before {
		if !matchedBefore[i] {
			ops = append(ops, deleteOp(b))
		}
	}

	return ops
}

// matchPass groups the still-unmatched entries on each side by keyFn
// and pairs any group that has exactly one candidate on both sides,
// building the resulting operation via makeOp.
func matchPass(before, after []symbolEntry, matchedBefore, matchedAfter []bool, keyFn func(symbolEntry) string, makeOp func(b, a symbolEntry) Operation) []Operation {
	beforeByKey := map[string][]int{}
	for i, s := range before {
		if matchedBefore[i] {
			continue
		}
		k := keyFn(s)
		beforeByKey[k] = append(beforeByKey[k], i)
	}
	afterByKey := map[string][]int{}
	for j, s := range after {
		if matchedAfter[j] {
			continue
		}
		k := keyFn(s)
		afterByKey[k] = append(afterByKey[k], j)
	}

	keys := make([]string, 0, len(beforeByKey))
	for k := range beforeByKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var ops []Operation
	for _, k := range keys {
		bidx := beforeByKey[k]
		aidx := afterByKey[k]
		if len(bidx) != 1 || len(aidx) != 1 {
			continue
		}
		i, j := bidx[0], aidx[0]
		matchedBefore[i] = true
		matchedAfter[j] = true
		ops = append(ops, makeOp(before[i], after[j]))
	}
	return ops
}

func key1(s symbolEntry) string {
	return s.Container + "\x00" + s.Kind + "\x00" + s.Name + "\x00" + s.Signature
}

func key2(s symbolEntry) string {
	return s.Container + "\x00" + s.Kind + "\x00" + s.Name
}

func key3(s symbolEntry) string {
	return s.Container + "\x00" + s.Kind + "\x00" + s.ContentHash
}

func addOp(a symbolEntry) Operation {
	return Operation{Type: OpAdd, Symbol: a.ref()}
}

func deleteOp(b symbolEntry) Operation {
	return Operation{Type: OpDelete, Symbol: b.ref()}
}

func modifyOp(b, a symbolEntry) Operation {
	prev := b.ref()
	return Operation{Type: OpModify, Symbol: a.ref(), Previous: &prev}
}

func renameOp(b, a symbolEntry) Operation {
	prev := b.ref()
	return Operation{Type: OpRename, Symbol: a.ref(), Previous: &prev}
}
