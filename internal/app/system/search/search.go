// internal/app/system/search/search.go
package search

import (
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MaxQueryLen caps free-text search input.
const MaxQueryLen = 100

// Regex returns a case-insensitive substring match for q with all regex
// metacharacters escaped. ok is false for a blank query.
func Regex(q string) (primitive.Regex, bool) {
	q = strings.TrimSpace(q)
	if q == "" {
		return primitive.Regex{}, false
	}
	if len(q) > MaxQueryLen {
		q = q[:MaxQueryLen]
	}
	return primitive.Regex{Pattern: regexp.QuoteMeta(q), Options: "i"}, true
}

// AnyField returns an $or filter matching q in any of fields, or nil for a
// blank query. Array fields match when any element matches.
func AnyField(q string, fields ...string) bson.M {
	re, ok := Regex(q)
	if !ok || len(fields) == 0 {
		return nil
	}
	or := make(bson.A, 0, len(fields))
	for _, f := range fields {
		or = append(or, bson.M{f: re})
	}
	return bson.M{"$or": or}
}
