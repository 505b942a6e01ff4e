package validation

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Limits on revalidation webhook payloads.
const (
	MaxRevalidateBodyBytes  = 10 * 1024
	MaxRevalidateItems      = 25
	MaxRevalidateItemLength = 200
)

// AllowedTagPrefixes lists the tag namespaces the CMS may invalidate. A tag
// is accepted when it equals or starts with one of them.
var AllowedTagPrefixes = []string{"posts", "post:", "posts:page:"}

// decodeStringList decodes an optional JSON array of strings. Absent and
// null both mean an empty list.
func decodeStringList(field string, raw json.RawMessage) ([]string, []FieldError) {
	if len(raw) == 0 || string(raw) == "null" {
		return []string{}, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, []FieldError{{Field: field, Message: field + " must be an array of strings"}}
	}
	if len(items) > MaxRevalidateItems {
		return nil, []FieldError{{Field: field, Message: fmt.Sprintf("%s must contain at most %d items", field, MaxRevalidateItems)}}
	}

	out := make([]string, 0, len(items))
	var errs []FieldError
	for i, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err != nil {
			errs = append(errs, FieldError{Field: fmt.Sprintf("%s[%d]", field, i), Message: "must be a string"})
			continue
		}
		if utf8.RuneCountInString(s) > MaxRevalidateItemLength {
			errs = append(errs, FieldError{Field: fmt.Sprintf("%s[%d]", field, i), Message: fmt.Sprintf("must be at most %d characters", MaxRevalidateItemLength)})
			continue
		}
		out = append(out, s)
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return out, nil
}

// ValidateRevalidatePaths accepts relative paths only: each must start with
// "/" and contain neither "://" nor "http".
func ValidateRevalidatePaths(raw json.RawMessage) ([]string, []FieldError) {
	paths, errs := decodeStringList("paths", raw)
	if errs != nil {
		return nil, errs
	}
	for i, p := range paths {
		if !strings.HasPrefix(p, "/") || strings.Contains(p, "://") || strings.Contains(strings.ToLower(p), "http") {
			errs = append(errs, FieldError{Field: fmt.Sprintf("paths[%d]", i), Message: "must be a relative path starting with /"})
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return paths, nil
}

// ValidateRevalidateTags accepts tags in the AllowedTagPrefixes namespaces.
func ValidateRevalidateTags(raw json.RawMessage) ([]string, []FieldError) {
	tags, errs := decodeStringList("tags", raw)
	if errs != nil {
		return nil, errs
	}
	for i, t := range tags {
		if !allowedTag(t) {
			errs = append(errs, FieldError{Field: fmt.Sprintf("tags[%d]", i), Message: "must be in the posts, post: or posts:page: namespace"})
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return tags, nil
}

func allowedTag(t string) bool {
	for _, ns := range AllowedTagPrefixes {
		if t == ns || strings.HasPrefix(t, ns) {
			return true
		}
	}
	return false
}
