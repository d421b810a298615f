package calculator

import (
	"errors"
	"testing"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		want    float64
		wantErr error
	}{
		{name: "precedence", expr: "2 + 3 * 4", want: 14},
		{name: "parentheses", expr: "(2 + 3) * 4", want: 20},
		{name: "division", expr: "7 / 2", want: 3.5},
		{name: "modulo", expr: "10 % 4", want: 2},
		{name: "decimals", expr: "1.5 * 2", want: 3},
		{name: "letters", expr: "os.exit()", wantErr: ErrInvalidCharacter},
		{name: "power", expr: "2 ** 8", wantErr: ErrInvalidCharacter},
		{name: "caret", expr: "2 ^ 8", wantErr: ErrInvalidCharacter},
		{name: "dangling operator", expr: "2 +", wantErr: ErrInvalidExpression},
		{name: "division by zero", expr: "1 / 0", wantErr: ErrInvalidExpression},
		{name: "empty", expr: "  ", wantErr: ErrInvalidExpression},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate(tt.expr)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Evaluate() error = %v, want %v", err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("Evaluate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{in: 1234567, want: "1,234,567"},
		{in: 3.5, want: "3.5"},
		{in: -42, want: "-42"},
	}
	for _, tt := range tests {
		if got := Format(tt.in); got != tt.want {
			t.Errorf("Format(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
