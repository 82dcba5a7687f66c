package common

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const handleKeyLen = 8

var (
	ErrEmptyHandle = errors.New("handle cannot be empty")
	nonHandleChars = regexp.MustCompile(`[^a-z0-9]+`)
)

// Slugify lowercases input and joins its alphanumeric runs with hyphens,
// using fallback when input has none.
func Slugify(input, fallback string) (string, error) {
	slug := slugify(input)
	if slug == "" {
		slug = slugify(fallback)
	}
	if slug == "" {
		return "", ErrEmptyHandle
	}
	return slug, nil
}

// ItemHandle builds the catalog URL handle for an item created by an
// action: the slugged title plus the first characters of the action's
// idempotency key, so a created item can be traced back to its action.
func ItemHandle(title, key string) (string, error) {
	slug, err := Slugify(title, "item")
	if err != nil {
		return "", err
	}
	key = slugify(key)
	if key == "" {
		return slug, nil
	}
	if len(key) > handleKeyLen {
		key = key[:handleKeyLen]
	}
	return fmt.Sprintf("%s-%s", slug, key), nil
}

func slugify(s string) string {
	lower := strings.ToLower(strings.TrimSpace(s))
	slug := nonHandleChars.ReplaceAllString(lower, "-")
	return strings.Trim(slug, "-")
}
