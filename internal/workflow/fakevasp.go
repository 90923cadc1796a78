package workflow

import (
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/matflow/wkshp/internal/monitoring"
	"github.com/matflow/wkshp/internal/tasklabel"
)

// FakeVaspTask is the serialized name of the task that replays a recorded run
// in place of a real VASP task.
const FakeVaspTask = "{{matmethods.vasp.firetasks.run_calc.RunVaspFake}}"

// DefaultParamsToCheck are the INCAR tags compared against a recorded run
// when the caller does not name any.
var DefaultParamsToCheck = []string{
	"ISPIN", "ENCUT", "ISMEAR", "SIGMA", "IBRION", "LORBIT", "NBANDS", "LMAXMIX",
}

// Deformation is a 3x3 deformation gradient applied in an elasticity workflow.
type Deformation [3][3]float64

// UseFakeVasp replaces every RunVasp* task in fireworks whose name contains a
// key of refDirs with a FakeVaspTask reading from that directory. If a
// firework matches several keys the longest key wins. wf is modified in place
// and returned.
func UseFakeVasp(wf *Workflow, refDirs map[string]string, paramsToCheck []string) *Workflow {
	if len(paramsToCheck) == 0 {
		paramsToCheck = DefaultParamsToCheck
	}

	keys := make([]string, 0, len(refDirs))
	for k := range refDirs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	for _, fw := range wf.Fireworks {
		var stage string
		for _, k := range keys {
			if strings.Contains(fw.Name, k) {
				stage = k
				break
			}
		}
		if stage == "" {
			continue
		}
		for i, t := range fw.Spec.Tasks {
			if !strings.Contains(t.Name, "RunVasp") {
				continue
			}
			fw.Spec.Tasks[i] = Task{
				Name: FakeVaspTask,
				Params: map[string]any{
					"ref_dir":         refDirs[stage],
					"params_to_check": append([]string(nil), paramsToCheck...),
				},
			}
			monitoring.Logf("workflow: fw %d %q task %d -> %s (%s)", fw.ID, fw.Name, i, FakeVaspTask, refDirs[stage])
		}
	}
	return wf
}

// BandStructureRefDirs maps the four band-structure stages to the recorded Si
// runs under refDir.
func BandStructureRefDirs(refDir string) map[string]string {
	base := filepath.Join(refDir, "Si_bandstructure_runs")
	return map[string]string{
		tasklabel.StructureOptimization: filepath.Join(base, "Si_structure_optimization"),
		tasklabel.Static:                filepath.Join(base, "Si_static"),
		tasklabel.NSCFUniform:           filepath.Join(base, "Si_nscf_uniform"),
		tasklabel.NSCFLine:              filepath.Join(base, "Si_nscf_line"),
	}
}

// SimulateBandStructureRun rewires a band-structure workflow to the recorded
// runs under refDir, checking the default INCAR parameters.
func SimulateBandStructureRun(wf *Workflow, refDir string) *Workflow {
	return UseFakeVasp(wf, BandStructureRefDirs(refDir), nil)
}

// ElasticityRefDirs maps the structure optimization and n deformation stages
// (numbered from 1) to the recorded Si runs under refDir.
func ElasticityRefDirs(refDir string, n int) map[string]string {
	base := filepath.Join(refDir, "Si_elastic_runs")
	dirs := map[string]string{
		tasklabel.StructureOptimization: filepath.Join(base, "Si-structure_optimization"),
	}
	for i := 1; i <= n; i++ {
		idx := strconv.Itoa(i)
		dirs["elastic_deformation_"+idx] = filepath.Join(base, "Si-elastic_deformation-"+idx)
	}
	return dirs
}

// SimulateElasticityRun rewires an elasticity workflow with one stage per
// deformation. Only ENCUT is checked against the recorded inputs.
func SimulateElasticityRun(wf *Workflow, deformations []Deformation, refDir string) *Workflow {
	return UseFakeVasp(wf, ElasticityRefDirs(refDir, len(deformations)), []string{"ENCUT"})
}
