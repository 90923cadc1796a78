package electronic

import (
	"fmt"

	"github.com/bytedance/sonic"
	"gonum.org/v1/gonum/floats"
)

// Dos is a total density of states on an energy grid.
type Dos struct {
	Efermi    float64            `json:"efermi"`
	Energies  []float64          `json:"energies"`
	Densities map[Spin][]float64 `json:"densities"`
}

// DosFromJSON decodes a DOS payload.
func DosFromJSON(data []byte) (*Dos, error) {
	var d Dos
	if err := sonic.ConfigStd.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode dos: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Validate checks that each spin channel matches the energy grid.
func (d *Dos) Validate() error {
	if len(d.Densities) == 0 {
		return fmt.Errorf("dos has no densities")
	}
	for spin, dens := range d.Densities {
		if !spin.Valid() {
			return fmt.Errorf("dos has unknown spin key %d", int(spin))
		}
		if len(dens) != len(d.Energies) {
			return fmt.Errorf("spin %s has %d densities for %d energies", spin, len(dens), len(d.Energies))
		}
	}
	return nil
}

// TotalDensities returns the densities summed over spin channels.
func (d *Dos) TotalDensities() []float64 {
	total := make([]float64, len(d.Energies))
	for _, spin := range []Spin{Up, Down} {
		if dens, ok := d.Densities[spin]; ok {
			floats.Add(total, dens)
		}
	}
	return total
}

// IsSpinPolarized reports whether a down channel is present.
func (d *Dos) IsSpinPolarized() bool {
	_, ok := d.Densities[Down]
	return ok
}
