// Package tasklabel names the stages of the band-structure workflow. Each
// firework's name ends with its label, and the calculation database stores it
// as task_label.
package tasklabel

const (
	StructureOptimization = "structure optimization"
	Static                = "static"
	NSCFLine              = "nscf line"
	NSCFUniform           = "nscf uniform"
)

// BandStructure lists the band-structure stages in workflow order.
var BandStructure = []string{
	StructureOptimization,
	Static,
	NSCFLine,
	NSCFUniform,
}
