package core

import (
	"github.com/nikolaydubina/fpdecimal"
)

// dec parses a decimal literal, panicking on malformed input
func dec(s string) fpdecimal.Decimal {
	d, err := fpdecimal.FromString(s)
	if err != nil {
		panic(err)
	}
	return d
}
