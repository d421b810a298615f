// Package calculator evaluates the arithmetic expressions of the calculator command.
package calculator

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/Shopify/go-lua"
	"github.com/dustin/go-humanize"
)

var (
	ErrInvalidCharacter  = errors.New("invalid character in expression")
	ErrInvalidExpression = errors.New("invalid expression")
)

const (
	allowed = "0123456789.+-*/%() "
	maxLen  = 200
)

// Validate only lets digits, decimal points, the four operators, modulo and
// parentheses through. Exponentiation is refused.
func Validate(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidExpression)
	}
	if len(expr) > maxLen {
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidExpression, maxLen)
	}
	for _, r := range expr {
		if !strings.ContainsRune(allowed, r) {
			return fmt.Errorf("%w: %q", ErrInvalidCharacter, r)
		}
	}
	if strings.Contains(strings.ReplaceAll(expr, " ", ""), "**") {
		return fmt.Errorf("%w: **", ErrInvalidCharacter)
	}
	return nil
}

// Evaluate computes expr in a lua state without any libraries loaded.
func Evaluate(expr string) (float64, error) {
	if err := Validate(expr); err != nil {
		return 0, err
	}

	state := lua.NewState()
	if err := lua.LoadString(state, "return "+expr); err != nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidExpression, expr)
	}
	if err := state.ProtectedCall(0, 1, 0); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidExpression, err)
	}
	result, ok := state.ToNumber(-1)
	state.Pop(1)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrInvalidExpression, expr)
	}
	if math.IsInf(result, 0) || math.IsNaN(result) {
		return 0, fmt.Errorf("%w: division by zero", ErrInvalidExpression)
	}
	return result, nil
}

// Format prints a result with thousands separators and at most six decimals.
func Format(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return humanize.Comma(int64(v))
	}
	return humanize.CommafWithDigits(v, 6)
}
