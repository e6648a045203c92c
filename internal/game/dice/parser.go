package dice

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidExpression is wrapped by every Parse failure.
var ErrInvalidExpression = errors.New("invalid dice expression")

// Expression is a parsed dice expression such as "1d20+3" or "2d20kh1".
type Expression struct {
	Raw      string
	Count    int
	Sides    int
	Modifier int
	// KeepHighest keeps only the N highest dice when > 0.
	KeepHighest int
}

// Parse parses "[N]dS[khK][+M|-M]".
//
// Postcondition: Count >= 1, Sides >= 2 and 0 <= KeepHighest < Count on success.
func Parse(expr string) (Expression, error) {
	s := strings.ToLower(strings.ReplaceAll(expr, " ", ""))
	if s == "" {
		return Expression{}, fmt.Errorf("%w: empty", ErrInvalidExpression)
	}
	d := strings.IndexByte(s, 'd')
	if d < 0 {
		return Expression{}, fmt.Errorf("%w: missing 'd' in %q", ErrInvalidExpression, expr)
	}

	count := 1
	if d > 0 {
		n, err := strconv.Atoi(s[:d])
		if err != nil || n < 1 {
			return Expression{}, fmt.Errorf("%w: bad die count in %q", ErrInvalidExpression, expr)
		}
		count = n
	}

	rest := s[d+1:]
	modifier := 0
	if i := strings.IndexAny(rest, "+-"); i >= 0 {
		m, err := strconv.Atoi(rest[i:])
		if err != nil {
			return Expression{}, fmt.Errorf("%w: bad modifier in %q", ErrInvalidExpression, expr)
		}
		modifier = m
		rest = rest[:i]
	}

	keep := 0
	if i := strings.Index(rest, "kh"); i >= 0 {
		k, err := strconv.Atoi(rest[i+2:])
		if err != nil || k < 1 || k >= count {
			return Expression{}, fmt.Errorf("%w: keep-highest must be in [1, %d) in %q", ErrInvalidExpression, count, expr)
		}
		keep = k
		rest = rest[:i]
	}

	sides, err := strconv.Atoi(rest)
	if err != nil || sides < 2 {
		return Expression{}, fmt.Errorf("%w: bad die sides in %q", ErrInvalidExpression, expr)
	}

	return Expression{
		Raw:         expr,
		Count:       count,
		Sides:       sides,
		Modifier:    modifier,
		KeepHighest: keep,
	}, nil
}

// MustParse parses expr and panics on error. Intended for package-level values.
func MustParse(expr string) Expression {
	e, err := Parse(expr)
	if err != nil {
		panic("dice: " + err.Error())
	}
	return e
}
