package market

import (
	"fmt"
	"strings"
)

// Direction is the side of a position: +1 long, -1 short.
type Direction int

const (
	Long  Direction = 1
	Short Direction = -1
)

func (d Direction) String() string {
	switch d {
	case Long:
		return "long"
	case Short:
		return "short"
	default:
		return "unknown"
	}
}

// Sign returns +1 for long and -1 for short.
func (d Direction) Sign() float64 {
	return float64(d)
}

// Opposite returns the side used to close a position.
func (d Direction) Opposite() Direction {
	return -d
}

func (d Direction) Valid() bool {
	return d == Long || d == Short
}

// ParseDirection accepts long/buy and short/sell in any case.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "long", "buy":
		return Long, nil
	case "short", "sell":
		return Short, nil
	}
	return 0, fmt.Errorf("invalid direction %q", s)
}

func (d Direction) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("invalid direction %d", int(d))
	}
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(b []byte) error {
	v, err := ParseDirection(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}
