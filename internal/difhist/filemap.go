// Package difhist implements the diff history engine: a timeline-based
// snapshot store that records every file mutation a coding assistant makes
// to a user's working tree, exposes the cumulative pending diff, and lets
// the user accept, reject, or rewind those changes with filesystem-accurate
// results.
package difhist

// FileMap is an immutable-by-convention snapshot of path to full file
// content at one instant. Absence of a key means the file does not exist
// at that snapshot. An empty string means the file exists and is empty —
// callers must preserve this distinction; do not collapse it to absence.
type FileMap map[string]string

// Clone returns a shallow copy of m. A shallow copy is sufficient because
// values are immutable Go strings: no caller can mutate a string in place
// to corrupt a stored snapshot.
func (m FileMap) Clone() FileMap {
	if m == nil {
		return FileMap{}
	}
	out := make(FileMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// With returns a clone of m with path set to content.
func (m FileMap) With(path, content string) FileMap {
	out := m.Clone()
	out[path] = content
	return out
}

// Without returns a clone of m with path removed.
func (m FileMap) Without(path string) FileMap {
	out := m.Clone()
	delete(out, path)
	return out
}

// Equal reports whether two FileMaps contain exactly the same paths with
// exactly the same content.
func (m FileMap) Equal(other FileMap) bool {
	if len(m) != len(other) {
		return false
	}
	for k, v := range m {
		ov, ok := other[k]
		if !ok || ov != v {
			return false
		}
	}
	return true
}
