package difhist

// ComputeBaseline replays acceptedPaths across history[1:cursor+1] on top of
// history[0].Files to derive the state the user has implicitly committed
// to — the floor below which a reject cannot drop. The baseline is always
// derived, never stored.
func ComputeBaseline(history []*TimelineNode, cursor int) FileMap {
	if len(history) == 0 || cursor < 0 {
		return FileMap{}
	}
	if cursor >= len(history) {
		cursor = len(history) - 1
	}

	baseline := history[0].Files.Clone()
	for i := 1; i <= cursor; i++ {
		node := history[i]
		for _, p := range node.AcceptedPaths {
			if content, ok := node.Files[p]; ok {
				baseline[p] = content
			} else {
				delete(baseline, p)
			}
		}
	}
	return baseline
}
