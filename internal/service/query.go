package service

import (
	"errors"
	"net/url"
	"strings"
)

var ErrEmptyQuery = errors.New("paste a valid DEX link, token address or name")

// NormalizeQuery reduces user input to a market-data search term. Links keep
// only their last path segment, which for DexScreener pages is the pair
// address.
func NormalizeQuery(input string) (string, error) {
	q := strings.TrimSpace(input)
	if q == "" {
		return "", ErrEmptyQuery
	}

	lower := strings.ToLower(q)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return q, nil
	}

	u, err := url.Parse(q)
	if err != nil {
		return q, nil
	}
	segments := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
	if len(segments) == 0 {
		if u.Host == "" {
			return "", ErrEmptyQuery
		}
		return u.Host, nil
	}
	return segments[len(segments)-1], nil
}
