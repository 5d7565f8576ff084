package facts

import "strconv"

// Delta captures added and removed fact rows between two runs.
type Delta struct {
	Added   Tables `json:"added"`
	Removed Tables `json:"removed"`
}

// Empty reports whether the delta carries no rows.
func (d Delta) Empty() bool {
	return d.Added.Len() == 0 && d.Removed.Len() == 0
}

// Len returns the total number of rows.
func (t Tables) Len() int {
	return len(t.Files) + len(t.Defines) + len(t.Modules) + len(t.Ports)
}

// ComputeDelta computes row-level additions and removals between two runs.
func ComputeDelta(prev, next Tables) Delta {
	return Delta{
		Added:   diffTables(prev, next),
		Removed: diffTables(next, prev),
	}
}

func diffTables(from, to Tables) Tables {
	return Tables{
		Files: diffRows(from.Files, to.Files, func(r FileRow) string {
			return r.Path + "|" + strconv.Itoa(r.Modules) + "|" + strconv.Itoa(r.Defines)
		}),
		Defines: diffRows(from.Defines, to.Defines, func(r DefineRow) string {
			return r.Name + "|" + r.Value + "|" + r.File + "|" + strconv.Itoa(r.Ordinal)
		}),
		Modules: diffRows(from.Modules, to.Modules, func(r ModuleRow) string {
			return r.Name + "|" + r.File + "|" + strconv.Itoa(r.Ports)
		}),
		Ports: diffRows(from.Ports, to.Ports, func(r PortRow) string {
			return r.Module + "|" + r.Name + "|" + r.Direction + "|" + r.Type + "|" + r.Width + "|" +
				r.Expression + "|" + r.File + "|" + strconv.Itoa(r.Position)
		}),
	}
}

func diffRows[T any](from, to []T, key func(T) string) []T {
	fromSet := make(map[string]struct{}, len(from))
	for _, row := range from {
		fromSet[key(row)] = struct{}{}
	}
	diff := []T{}
	for _, row := range to {
		if _, ok := fromSet[key(row)]; !ok {
			diff = append(diff, row)
		}
	}
	return diff
}
