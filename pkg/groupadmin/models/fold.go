package models

import "golang.org/x/text/cases"

// FoldName returns the Unicode case-folded form used for case-insensitive
// matching of group names and usernames.
func FoldName(s string) string {
	return cases.Fold().String(s)
}
