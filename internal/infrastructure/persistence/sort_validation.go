package persistence

import (
	"strings"
)

// ValidateSortOrder normalizes orderDir to ASC or DESC. Anything else is DESC.
func ValidateSortOrder(orderDir string) string {
	if strings.ToUpper(strings.TrimSpace(orderDir)) == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField returns sortField if it is whitelisted, otherwise
// defaultField. The result is safe to splice into an ORDER BY clause.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// LedgerEntrySortFields are the columns history may be ordered by
var LedgerEntrySortFields = map[string]bool{
	"id":             true,
	"created_at":     true,
	"updated_at":     true,
	"paid_at":        true,
	"amount":         true,
	"receipt_number": true,
	"status":         true,
	"mode":           true,
}
