package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/samber/lo"

	"github.com/utkarsh5026/keyedpool/pool"
)

type transform func(line string) (string, error)

// maxSquarable is the largest int64 whose square still fits in an int64.
const maxSquarable = 3037000499

var transforms = map[string]transform{
	"upper": func(s string) (string, error) {
		return strings.ToUpper(s), nil
	},
	"lower": func(s string) (string, error) {
		return strings.ToLower(s), nil
	},
	"reverse": func(s string) (string, error) {
		return string(lo.Reverse([]rune(s))), nil
	},
	"len": func(s string) (string, error) {
		return strconv.Itoa(utf8.RuneCountInString(s)), nil
	},
	"words": func(s string) (string, error) {
		return strconv.Itoa(len(strings.Fields(s))), nil
	},
	"sha256": func(s string) (string, error) {
		sum := sha256.Sum256([]byte(s))
		return hex.EncodeToString(sum[:]), nil
	},
	"square": func(s string) (string, error) {
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return "", fmt.Errorf("not an integer: %q", s)
		}
		if n > maxSquarable || n < -maxSquarable {
			return "", fmt.Errorf("%d overflows int64 when squared", n)
		}
		return strconv.FormatInt(n*n, 10), nil
	},
}

func transformNames() []string {
	names := lo.Keys(transforms)
	slices.Sort(names)
	return names
}

// lookupTransform returns the named transform as a pool function.
func lookupTransform(name string) (pool.ProcessFunc[string, string], error) {
	fn, ok := transforms[name]
	if !ok {
		return nil, fmt.Errorf("unknown transform %q (available: %s)", name, strings.Join(transformNames(), ", "))
	}
	return func(_ context.Context, line string) (string, error) {
		return fn(line)
	}, nil
}
