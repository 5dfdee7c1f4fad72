package replaycache

import "strings"

// DefaultIgnoredKeys is the small documented set of request keys excluded
// from an exact-match comparison because they vary run to run with no
// bearing on whether the request is "the same" (e.g. a key bound to the
// calling environment rather than the test case itself).
var DefaultIgnoredKeys = map[string]bool{
	"experian_consumer_key": true,
}

// MatchRecursively performs a depth-first, exact-structure comparison of
// two decoded JSON values: same map keys at every level, same list length
// and order, and equal leaf values — except where a leaf's key is in
// ignoreKeys, which always matches regardless of value.
func MatchRecursively(current, baseline interface{}, ignoreKeys map[string]bool) bool {
	return matchRecursively(current, baseline, ignoreKeys, "")
}

func matchRecursively(current, baseline interface{}, ignoreKeys map[string]bool, parentKey string) bool {
	switch cur := current.(type) {
	case map[string]interface{}:
		base, ok := baseline.(map[string]interface{})
		if !ok || len(cur) != len(base) {
			return false
		}
		for k, v := range cur {
			bv, ok := base[k]
			if !ok {
				return false
			}
			if !matchRecursively(v, bv, ignoreKeys, k) {
				return false
			}
		}
		return true

	case []interface{}:
		base, ok := baseline.([]interface{})
		if !ok || len(cur) != len(base) {
			return false
		}
		for i := range cur {
			if !matchRecursively(cur[i], base[i], ignoreKeys, parentKey) {
				return false
			}
		}
		return true

	default:
		if cur == baseline {
			return true
		}
		return ignoreKeys[parentKey]
	}
}

// InquiryStringsMatch compares two credit-bureau inquiry strings
// semicolon-block by semicolon-block. Blocks are required to match
// exactly, with two exceptions: a "VERIFY" block matches when its
// slash-delimited keyword set is equal regardless of order, and an "M-"
// (mode) block is ignored entirely.
func InquiryStringsMatch(current, baseline string) bool {
	currentBlocks := strings.Split(current, ";")
	baselineBlocks := strings.Split(baseline, ";")
	if len(currentBlocks) != len(baselineBlocks) {
		return false
	}

	for i, currentBlock := range currentBlocks {
		baselineBlock := baselineBlocks[i]
		if currentBlock == baselineBlock {
			continue
		}
		switch {
		case strings.HasPrefix(currentBlock, "VERIFY"):
			if !verifyKeywordsEqual(currentBlock, baselineBlock) {
				return false
			}
		case strings.HasPrefix(currentBlock, "M-"):
			continue
		default:
			return false
		}
	}
	return true
}

// verifyKeywordsEqual compares the set of slash-delimited keywords
// following the "VERIFY" prefix (7 characters, e.g. "VERIFY/") regardless
// of order or duplicate count.
func verifyKeywordsEqual(currentBlock, baselineBlock string) bool {
	if len(currentBlock) < 7 || len(baselineBlock) < 7 {
		return false
	}
	currentSet := toSet(strings.Split(currentBlock[7:], "/"))
	baselineSet := toSet(strings.Split(baselineBlock[7:], "/"))

	if len(currentSet) != len(baselineSet) {
		return false
	}
	for k := range currentSet {
		if !baselineSet[k] {
			return false
		}
	}
	return true
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}
