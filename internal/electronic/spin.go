// Package electronic holds the band-structure and density-of-states data
// objects stored by the calculation database. Only the fields needed to
// summarise and plot the data are decoded; the physics is left to the caller.
package electronic

import "fmt"

// Spin is a spin channel. JSON payloads key per-spin data by "1" and "-1".
type Spin int

const (
	Up   Spin = 1
	Down Spin = -1
)

func (s Spin) String() string {
	switch s {
	case Up:
		return "up"
	case Down:
		return "down"
	default:
		return fmt.Sprintf("Spin(%d)", int(s))
	}
}

// Valid reports whether s is Up or Down.
func (s Spin) Valid() bool {
	return s == Up || s == Down
}
