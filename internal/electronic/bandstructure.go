package electronic

import (
	"encoding/json"
	"fmt"

	"github.com/bytedance/sonic"
)

// Lattice is a 3x3 lattice matrix, row vectors.
type Lattice struct {
	Matrix [3][3]float64 `json:"matrix"`
}

// Branch is a continuous segment of the high-symmetry k-path.
type Branch struct {
	StartIndex int    `json:"start_index"`
	EndIndex   int    `json:"end_index"`
	Name       string `json:"name"`
}

// BandStructureSymmLine is a band structure computed along a high-symmetry
// line path.
type BandStructureSymmLine struct {
	Efermi          float64               `json:"efermi"`
	Kpoints         [][3]float64          `json:"kpoints"`
	Bands           map[Spin][][]float64  `json:"bands"`
	LabelsDict      map[string][3]float64 `json:"labels_dict"`
	LatticeRec      Lattice               `json:"lattice_rec"`
	IsSpinPolarized bool                  `json:"is_spin_polarized"`
	Branches        []Branch              `json:"branches,omitempty"`
	Structure       json.RawMessage       `json:"structure,omitempty"`
}

// BandStructureFromJSON decodes a band structure payload.
func BandStructureFromJSON(data []byte) (*BandStructureSymmLine, error) {
	var bs BandStructureSymmLine
	if err := sonic.ConfigStd.Unmarshal(data, &bs); err != nil {
		return nil, fmt.Errorf("decode band structure: %w", err)
	}
	if err := bs.Validate(); err != nil {
		return nil, err
	}
	return &bs, nil
}

// Validate checks that every band carries one energy per k-point.
func (bs *BandStructureSymmLine) Validate() error {
	if len(bs.Bands) == 0 {
		return fmt.Errorf("band structure has no bands")
	}
	for spin, bands := range bs.Bands {
		if !spin.Valid() {
			return fmt.Errorf("band structure has unknown spin key %d", int(spin))
		}
		for i, band := range bands {
			if len(band) != len(bs.Kpoints) {
				return fmt.Errorf("spin %s band %d has %d energies for %d kpoints", spin, i, len(band), len(bs.Kpoints))
			}
		}
	}
	return nil
}

// NumBands returns the number of bands in the up channel.
func (bs *BandStructureSymmLine) NumBands() int {
	return len(bs.Bands[Up])
}

// IsMetal reports whether any band crosses the Fermi level.
func (bs *BandStructureSymmLine) IsMetal() bool {
	for _, bands := range bs.Bands {
		for _, band := range bands {
			below, above := false, false
			for _, e := range band {
				if e < bs.Efermi {
					below = true
				} else if e > bs.Efermi {
					above = true
				}
			}
			if below && above {
				return true
			}
		}
	}
	return false
}
