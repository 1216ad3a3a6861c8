package model

import (
	"regexp"
	"strconv"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// NatSortToken is one run of a natural-sort key: either a parsed integer
// (IsNum true, from a run of digits) or a casefolded, NFKD-normalized text
// run, mirroring original_source/rnr/utils.py:natsort_key /
// try_int(unicodedata.normalize('NFKD', s.casefold())).
type NatSortToken struct {
	IsNum bool
	Num   int64
	Text  string
}

var reDigits = regexp.MustCompile(`(\d+)`)

var foldCaser = cases.Fold()

// NatSortKey produces a slice of tokens such that comparing two keys
// lexicographically (numeric runs compared numerically, text runs compared
// as normalized strings) reproduces Python's natsort_key ordering, e.g.
// "file2" < "file10".
func NatSortKey(s string) []NatSortToken {
	folded := foldCaser.String(s)
	normalized := norm.NFKD.String(folded)

	parts := reDigits.Split(normalized, -1)
	nums := reDigits.FindAllString(normalized, -1)

	tokens := make([]NatSortToken, 0, len(parts)+len(nums))
	for i, part := range parts {
		tokens = append(tokens, NatSortToken{Text: part})
		if i < len(nums) {
			n, err := strconv.ParseInt(nums[i], 10, 64)
			if err != nil {
				// Overflow on a pathologically long digit run: keep the
				// run as text rather than failing the sort.
				tokens = append(tokens, NatSortToken{Text: nums[i]})

				continue
			}
			tokens = append(tokens, NatSortToken{IsNum: true, Num: n})
		}
	}

	return tokens
}

// CompareNatSortKeys orders two natural-sort keys, returning <0, 0, >0 like
// strings.Compare. Where one key has a numeric token and the other a text
// token at the same position, the numeric token compares as the text "0"
// against the text token (matching Python's tuple comparison of ('0', int)
// vs (s, 0), where the string half compares first).
func CompareNatSortKeys(a, b []NatSortToken) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		ta, tb := a[i], b[i]

		switch {
		case ta.IsNum && tb.IsNum:
			switch {
			case ta.Num < tb.Num:
				return -1
			case ta.Num > tb.Num:
				return 1
			}
		case !ta.IsNum && !tb.IsNum:
			if c := compareStrings(ta.Text, tb.Text); c != 0 {
				return c
			}
		default:
			// One token is the numeric half (textual placeholder "0") and
			// the other the literal text half; Python compares the string
			// component of the tuple first, which for a numeric token is
			// always "0".
			numText := "0"
			if ta.IsNum {
				if c := compareStrings(numText, tb.Text); c != 0 {
					return c
				}
			} else {
				if c := compareStrings(ta.Text, numText); c != 0 {
					return c
				}
			}
		}
	}

	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
