package tools

import (
	"context"
	"strings"
	"testing"
)

func TestCalculatorExpressions(t *testing.T) {
	calc := NewCalculatorTool()
	cases := []struct {
		expr string
		want string
	}{
		{"2+2", `{"result":4}`},
		{"10 - 3", `{"result":7}`},
		{"3*4", `{"result":12}`},
		{"10/4", `{"result":2.5}`},
		{"2+3*4", `{"result":14}`},
		{"(2+3)*4", `{"result":20}`},
		{"-5+3", `{"result":-2}`},
		{"3.5*2", `{"result":7}`},
		{"((1+2)*(3+4))", `{"result":21}`},
	}
	for _, tc := range cases {
		got, err := calc.Execute(context.Background(), map[string]any{"expr": tc.expr})
		if err != nil {
			t.Errorf("%q: unexpected error %v", tc.expr, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%q = %s, want %s", tc.expr, got, tc.want)
		}
	}
}

func TestCalculatorDivisionByZero(t *testing.T) {
	calc := NewCalculatorTool()
	_, err := calc.Execute(context.Background(), map[string]any{"expr": "1/0"})
	if err == nil || !strings.Contains(err.Error(), "division by zero") {
		t.Fatalf("err = %v, want division by zero", err)
	}
}

func TestCalculatorInvalidExpressions(t *testing.T) {
	calc := NewCalculatorTool()
	for _, expr := range []string{"2+", "(1+2", "abc", "2 2", "1+*2"} {
		if _, err := calc.Execute(context.Background(), map[string]any{"expr": expr}); err == nil {
			t.Errorf("%q: expected error", expr)
		}
	}
}

func TestCalculatorMissingExpr(t *testing.T) {
	calc := NewCalculatorTool()
	if _, err := calc.Execute(context.Background(), map[string]any{}); err == nil {
		t.Fatal("expected error for missing expr")
	}
}
