package domain

import (
	"regexp"
	"strconv"
	"strings"
)

const orderIDPrefix = "order_"

// orderRefPattern matches "order" followed by optional separators and up to
// 18 digits that are not part of a longer digit run.
var orderRefPattern = regexp.MustCompile(`(?i)order[\s_\-#:.]*(\d{1,18})(?:\D|$)`)

// orderIDPattern is the whole-string form accepted from API callers.
var orderIDPattern = regexp.MustCompile(`^(?i)(?:order[_\-]?)?(\d{1,18})$`)

// ParseOrderReference extracts the order id from free-form transfer text.
// Matching is case-insensitive and tolerates the separators banks commonly
// substitute for "_". The result is the normalized form "order_<n>".
// Text that mentions more than one distinct order is rejected.
func ParseOrderReference(text string) (string, bool) {
	matches := orderRefPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return "", false
	}

	var found string
	for _, m := range matches {
		id, ok := FormatOrderID(m[1])
		if !ok {
			continue
		}
		if found != "" && found != id {
			return "", false
		}
		found = id
	}
	return found, found != ""
}

// FormatOrderID normalizes a numeric order id to "order_<n>". Leading zeros
// are dropped; zero is not a valid id.
func FormatOrderID(digits string) (string, bool) {
	n, err := strconv.ParseUint(digits, 10, 63)
	if err != nil || n == 0 {
		return "", false
	}
	return orderIDPrefix + strconv.FormatUint(n, 10), true
}

// NormalizeOrderID accepts an order id as supplied by API callers
// ("order_500", "ORDER-500" or "500") and returns its canonical form.
func NormalizeOrderID(raw string) (string, bool) {
	m := orderIDPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return "", false
	}
	return FormatOrderID(m[1])
}

// TransferNote is the reference text buyers are asked to put on a bank transfer.
func TransferNote(prefix, orderID string) string {
	if prefix == "" {
		return orderID
	}
	return prefix + " " + orderID
}
