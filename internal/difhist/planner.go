package difhist

// FilePlan is a pure description of the filesystem writes and deletes
// needed to move from one FileMap to another. It never touches disk.
type FilePlan struct {
	Writes  FileMap
	Deletes []string
}

// IsEmpty reports whether the plan has no writes and no deletes.
func (p FilePlan) IsEmpty() bool {
	return len(p.Writes) == 0 && len(p.Deletes) == 0
}

// Plan computes the writes and deletes required to move the filesystem
// from current to target.
func Plan(current, target FileMap) FilePlan {
	plan := FilePlan{Writes: FileMap{}}
	for p, content := range target {
		if existing, ok := current[p]; !ok || existing != content {
			plan.Writes[p] = content
		}
	}
	for p := range current {
		if _, ok := target[p]; !ok {
			plan.Deletes = append(plan.Deletes, p)
		}
	}
	return plan
}
