package facts

// FilterTablesByFiles returns the rows whose file or path is in files.
func FilterTablesByFiles(tables Tables, files map[string]bool) Tables {
	out := emptyTables()
	if len(files) == 0 {
		return out
	}
	out.Files = filterRows(tables.Files, func(r FileRow) string { return r.Path }, files)
	out.Defines = filterRows(tables.Defines, func(r DefineRow) string { return r.File }, files)
	out.Modules = filterRows(tables.Modules, func(r ModuleRow) string { return r.File }, files)
	out.Ports = filterRows(tables.Ports, func(r PortRow) string { return r.File }, files)
	return out
}

// FilterDeltaByFiles returns a Delta containing only rows for files.
func FilterDeltaByFiles(delta Delta, files map[string]bool) Delta {
	return Delta{
		Added:   FilterTablesByFiles(delta.Added, files),
		Removed: FilterTablesByFiles(delta.Removed, files),
	}
}

func filterRows[T any](rows []T, file func(T) string, files map[string]bool) []T {
	out := []T{}
	for _, r := range rows {
		if files[file(r)] {
			out = append(out, r)
		}
	}
	return out
}
