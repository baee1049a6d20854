// Package funcall parses the function-call notation used for textual
// configuration values, such as "Momentum(0.9)", "LeakyReLU(0.1)" or
// "MultiStepLR(0.1;50,75;0.1)". Arguments are separated by semicolons; an
// argument may itself be a comma separated list.
package funcall

import (
	"fmt"
	"strconv"
	"strings"
)

// Call is a parsed name with its raw arguments.
type Call struct {
	Name string
	Args []string
}

// Parse splits text into a name and its arguments. A bare name has no arguments.
//
// Example:
//
//	c, _ := funcall.Parse("Nesterov(0.9)") // c.Name = "Nesterov", c.Args = ["0.9"]
func Parse(text string) (Call, error) {
	text = strings.TrimSpace(text)
	open := strings.IndexByte(text, '(')
	if open < 0 {
		if strings.ContainsAny(text, ")") || text == "" {
			return Call{}, fmt.Errorf("invalid expression %q", text)
		}
		return Call{Name: text}, nil
	}
	if !strings.HasSuffix(text, ")") || open == 0 {
		return Call{}, fmt.Errorf("invalid expression %q", text)
	}
	c := Call{Name: strings.TrimSpace(text[:open])}
	inner := strings.TrimSpace(text[open+1 : len(text)-1])
	if inner == "" {
		return c, nil
	}
	for _, arg := range strings.Split(inner, ";") {
		c.Args = append(c.Args, strings.TrimSpace(arg))
	}
	return c, nil
}

// Arity returns an error unless the call has between lo and hi arguments.
func (c Call) Arity(lo, hi int) error {
	if len(c.Args) < lo || len(c.Args) > hi {
		if lo == hi {
			return fmt.Errorf("%s expects %d argument(s), got %d", c.Name, lo, len(c.Args))
		}
		return fmt.Errorf("%s expects %d to %d arguments, got %d", c.Name, lo, hi, len(c.Args))
	}
	return nil
}

// Float returns argument i as a float64, or def if the argument is absent.
func (c Call) Float(i int, def float64) (float64, error) {
	if i >= len(c.Args) {
		return def, nil
	}
	v, err := strconv.ParseFloat(c.Args[i], 64)
	if err != nil {
		return 0, fmt.Errorf("%s: argument %d: %w", c.Name, i+1, err)
	}
	return v, nil
}

// Floats returns argument i as a comma separated list of float64.
func (c Call) Floats(i int) ([]float64, error) {
	if i >= len(c.Args) || c.Args[i] == "" {
		return nil, nil
	}
	parts := strings.Split(c.Args[i], ",")
	values := make([]float64, len(parts))
	for k, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("%s: argument %d: %w", c.Name, i+1, err)
		}
		values[k] = v
	}
	return values, nil
}

// Ints returns argument i as a comma separated list of int.
func (c Call) Ints(i int) ([]int, error) {
	if i >= len(c.Args) || c.Args[i] == "" {
		return nil, nil
	}
	parts := strings.Split(c.Args[i], ",")
	values := make([]int, len(parts))
	for k, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("%s: argument %d: %w", c.Name, i+1, err)
		}
		values[k] = v
	}
	return values, nil
}

// String formats the call back into text.
func (c Call) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + "(" + strings.Join(c.Args, ";") + ")"
}
