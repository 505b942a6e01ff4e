package validation_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wanderher/wanderher/internal/api/validation"
)

func assertFieldError(t *testing.T, errs []validation.FieldError, field, contains string) {
	t.Helper()
	for _, e := range errs {
		if e.Field == field && strings.Contains(e.Message, contains) {
			return
		}
	}
	t.Errorf("expected field error on %q containing %q, got %+v", field, contains, errs)
}

func raw(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func repeat(s string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = s
	}
	return out
}

func TestValidateRevalidatePaths(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input json.RawMessage
		valid bool
	}{
		{"absent", nil, true},
		{"null", json.RawMessage("null"), true},
		{"empty", json.RawMessage("[]"), true},
		{"relative", json.RawMessage(`["/blog"]`), true},
		{"nested", json.RawMessage(`["/blog/lisbon-alone", "/"]`), true},
		{"absolute url", json.RawMessage(`["https://evil.com"]`), false},
		{"scheme in path", json.RawMessage(`["/redirect?to=ftp://x"]`), false},
		{"http substring", json.RawMessage(`["/go/http-proxy"]`), false},
		{"no leading slash", json.RawMessage(`["blog"]`), false},
		{"not an array", json.RawMessage(`"/blog"`), false},
		{"non-string item", json.RawMessage(`[1]`), false},
		{"25 items", raw(t, repeat("/x", 25)), true},
		{"26 items", raw(t, repeat("/x", 26)), false},
		{"200 chars", raw(t, []string{"/" + strings.Repeat("a", 199)}), true},
		{"201 chars", raw(t, []string{"/" + strings.Repeat("a", 200)}), false},
		{"200 multibyte chars", raw(t, []string{"/" + strings.Repeat("é", 199)}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			paths, errs := validation.ValidateRevalidatePaths(tt.input)
			if tt.valid {
				assert.Empty(t, errs)
				assert.NotNil(t, paths)
			} else {
				assert.NotEmpty(t, errs)
				assert.Nil(t, paths)
			}
		})
	}
}

func TestValidateRevalidatePaths_NoPartialResult(t *testing.T) {
	t.Parallel()
	paths, errs := validation.ValidateRevalidatePaths(json.RawMessage(`["/ok", "https://evil.com", "/also-ok"]`))

	assert.Nil(t, paths)
	require.Len(t, errs, 1)
	assert.Equal(t, "paths[1]", errs[0].Field)
}

func TestValidateRevalidateTags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input json.RawMessage
		valid bool
	}{
		{"absent", nil, true},
		{"posts", json.RawMessage(`["posts"]`), true},
		{"post id", json.RawMessage(`["post:123"]`), true},
		{"post slug", json.RawMessage(`["post:lisbon-alone"]`), true},
		{"posts page", json.RawMessage(`["posts:page:2"]`), true},
		{"comments", json.RawMessage(`["comments"]`), false},
		{"empty string", json.RawMessage(`[""]`), false},
		{"mixed", json.RawMessage(`["posts", "users"]`), false},
		{"26 items", raw(t, repeat("posts", 26)), false},
		{"too long", raw(t, []string{"post:" + strings.Repeat("a", 196)}), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tags, errs := validation.ValidateRevalidateTags(tt.input)
			if tt.valid {
				assert.Empty(t, errs)
				assert.NotNil(t, tags)
			} else {
				assert.NotEmpty(t, errs)
				assert.Nil(t, tags)
			}
		})
	}
}
