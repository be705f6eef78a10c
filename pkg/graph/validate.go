package graph

import "fmt"

// ValidationSeverity indicates whether a validation finding blocks
// serialization or is merely informational.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // blocks serialization
	SeverityWarning                           // informational
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// ValidationError describes a single validation finding.
type ValidationError struct {
	NodeID   NodeID             // which node has the problem (zero if graph-level)
	Message  string             // human-readable description
	Severity ValidationSeverity // error or warning
}

func (e ValidationError) Error() string {
	if e.NodeID.IsZero() {
		return fmt.Sprintf("[%s] %s", e.Severity, e.Message)
	}
	return fmt.Sprintf("[%s] node %s: %s", e.Severity, e.NodeID.Short(), e.Message)
}

// Validate runs the structural checks on a shader graph and returns the
// findings. An empty slice means the graph is well formed. It is read-only
// and never mutates the shader.
func Validate(s *Shader) []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateIDs(s)...)
	errs = append(errs, validateLinks(s)...)
	errs = append(errs, validateAcyclic(s)...)
	errs = append(errs, validateOutputs(s)...)
	return errs
}

// HasErrors reports whether any finding has error severity.
func HasErrors(errs []ValidationError) bool {
	for _, e := range errs {
		if e.Severity == SeverityError {
			return true
		}
	}
	return false
}

// validateIDs checks that node IDs are set and unique.
func validateIDs(s *Shader) []ValidationError {
	var errs []ValidationError
	seen := make(map[NodeID]bool, len(s.Nodes))
	for i, n := range s.Nodes {
		if n.ID.IsZero() {
			errs = append(errs, ValidationError{
				Message:  fmt.Sprintf("node %d (%q) has no id", i, n.Name),
				Severity: SeverityError,
			})
			continue
		}
		if seen[n.ID] {
			errs = append(errs, ValidationError{
				NodeID:   n.ID,
				Message:  fmt.Sprintf("duplicate node id shared by %q", n.Name),
				Severity: SeverityError,
			})
		}
		seen[n.ID] = true
	}
	return errs
}

// validateLinks checks that every link endpoint names an existing node and
// a socket of the right direction, and that no input is fed twice.
func validateLinks(s *Shader) []ValidationError {
	var errs []ValidationError

	type inputKey struct {
		node   NodeID
		socket int
	}
	fed := make(map[inputKey]bool)

	for i, l := range s.Links {
		from := s.Get(l.FromNode)
		if from == nil {
			errs = append(errs, ValidationError{
				Message:  fmt.Sprintf("link %d: source node %s does not exist", i, l.FromNode.Short()),
				Severity: SeverityError,
			})
		} else if from.Socket(Output, l.FromSocket) == nil {
			errs = append(errs, ValidationError{
				NodeID:   from.ID,
				Message:  fmt.Sprintf("link %d: output socket %d out of range", i, l.FromSocket),
				Severity: SeverityError,
			})
		}

		to := s.Get(l.ToNode)
		if to == nil {
			errs = append(errs, ValidationError{
				Message:  fmt.Sprintf("link %d: destination node %s does not exist", i, l.ToNode.Short()),
				Severity: SeverityError,
			})
			continue
		}
		if to.Socket(Input, l.ToSocket) == nil {
			errs = append(errs, ValidationError{
				NodeID:   to.ID,
				Message:  fmt.Sprintf("link %d: input socket %d out of range", i, l.ToSocket),
				Severity: SeverityError,
			})
			continue
		}

		k := inputKey{l.ToNode, l.ToSocket}
		if fed[k] {
			errs = append(errs, ValidationError{
				NodeID:   to.ID,
				Message:  fmt.Sprintf("input %q has more than one incoming link", to.Inputs[l.ToSocket].Name),
				Severity: SeverityError,
			})
		}
		fed[k] = true
	}

	return errs
}

// validateAcyclic checks for cycles using DFS with 3-color marking.
// White (0) = unvisited, gray (1) = in current DFS path, black (2) = fully explored.
// Encountering a gray node during traversal means a cycle.
func validateAcyclic(s *Shader) []ValidationError {
	const (
		white = iota
		gray
		black
	)

	next := make(map[NodeID][]NodeID)
	for _, l := range s.Links {
		next[l.FromNode] = append(next[l.FromNode], l.ToNode)
	}

	color := make(map[NodeID]int)
	var errs []ValidationError

	var visit func(id NodeID) bool // returns true if cycle found
	visit = func(id NodeID) bool {
		switch color[id] {
		case black:
			return false
		case gray:
			errs = append(errs, ValidationError{
				NodeID:   id,
				Message:  fmt.Sprintf("cycle detected: node %s is part of a cycle", id.Short()),
				Severity: SeverityError,
			})
			return true
		}

		color[id] = gray
		for _, to := range next[id] {
			if visit(to) {
				return true
			}
		}
		color[id] = black
		return false
	}

	// Declaration order keeps the reported node deterministic.
	for _, n := range s.Nodes {
		if color[n.ID] == white {
			if visit(n.ID) {
				// One cycle error is sufficient; stop early.
				break
			}
		}
	}

	return errs
}

// validateOutputs warns when more than one output candidate exists, since
// only one of them is serialized.
func validateOutputs(s *Shader) []ValidationError {
	outs := s.OutputCandidates()
	if len(outs) <= 1 {
		return nil
	}
	return []ValidationError{{
		NodeID:   outs[0].ID,
		Message:  fmt.Sprintf("%d output nodes; only one is exported", len(outs)),
		Severity: SeverityWarning,
	}}
}
