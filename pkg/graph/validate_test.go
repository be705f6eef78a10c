package graph

import (
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

// buildValidMix creates a well-formed material: two BSDFs mixed into the
// output.
func buildValidMix() *Shader {
	s := New("Mix", KindMaterial)

	diffuse := NewNode(NewNodeID("Mix/0"), "BSDF_DIFFUSE", "Diffuse BSDF")
	glossy := NewNode(NewNodeID("Mix/1"), "BSDF_GLOSSY", "Glossy BSDF")
	mix := NewNode(NewNodeID("Mix/2"), "MIX_SHADER", "Mix Shader")
	out := NewNode(NewNodeID("Mix/3"), "OUTPUT_MATERIAL", "Material Output")
	for _, n := range []*Node{diffuse, glossy, mix, out} {
		s.AddNode(n)
	}
	mustConnect(s, diffuse, "BSDF", mix, "Shader1")
	mustConnect(s, glossy, "BSDF", mix, "Shader2")
	mustConnect(s, mix, "Shader", out, "Surface")
	return s
}

func mustConnect(s *Shader, from *Node, output string, to *Node, input string) {
	if err := s.Connect(from, output, to, input); err != nil {
		panic(err)
	}
}

// hasError returns true if errs contains at least one error-severity finding
// whose message contains substr.
func hasError(errs []ValidationError, substr string) bool {
	for _, e := range errs {
		if e.Severity == SeverityError && strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

// hasWarning returns true if errs contains at least one warning-severity
// finding whose message contains substr.
func hasWarning(errs []ValidationError, substr string) bool {
	for _, e := range errs {
		if e.Severity == SeverityWarning && strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestValidateValidGraph(t *testing.T) {
	errs := Validate(buildValidMix())
	if len(errs) != 0 {
		t.Fatalf("expected no findings, got %v", errs)
	}
	if HasErrors(errs) {
		t.Error("HasErrors should be false")
	}
}

func TestValidateEmptyGraph(t *testing.T) {
	if errs := Validate(New("Empty", KindMaterial)); len(errs) != 0 {
		t.Fatalf("expected no findings for empty shader, got %v", errs)
	}
}

func TestValidateDanglingSource(t *testing.T) {
	s := buildValidMix()
	s.AddLink(Link{FromNode: NewNodeID("ghost"), FromSocket: 0, ToNode: s.Nodes[3].ID, ToSocket: 1})
	errs := Validate(s)
	if !hasError(errs, "source node") {
		t.Errorf("expected dangling source error, got %v", errs)
	}
}

func TestValidateDanglingDestination(t *testing.T) {
	s := buildValidMix()
	s.AddLink(Link{FromNode: s.Nodes[0].ID, FromSocket: 0, ToNode: NewNodeID("ghost"), ToSocket: 0})
	if !hasError(Validate(s), "destination node") {
		t.Error("expected dangling destination error")
	}
}

func TestValidateSocketOutOfRange(t *testing.T) {
	s := buildValidMix()
	s.AddLink(Link{FromNode: s.Nodes[0].ID, FromSocket: 7, ToNode: s.Nodes[3].ID, ToSocket: 1})
	s.AddLink(Link{FromNode: s.Nodes[1].ID, FromSocket: 0, ToNode: s.Nodes[3].ID, ToSocket: 9})
	errs := Validate(s)
	if !hasError(errs, "output socket 7") {
		t.Errorf("expected output range error, got %v", errs)
	}
	if !hasError(errs, "input socket 9") {
		t.Errorf("expected input range error, got %v", errs)
	}
}

func TestValidateDoubleFedInput(t *testing.T) {
	s := buildValidMix()
	mustConnect(s, s.Nodes[1], "BSDF", s.Nodes[3], "Surface")
	if !hasError(Validate(s), "more than one incoming link") {
		t.Error("expected double-fed input error")
	}
}

func TestValidateDuplicateIDs(t *testing.T) {
	s := New("Dup", KindMaterial)
	s.AddNode(NewNode(NewNodeID("same"), "VALUE", "A"))
	s.AddNode(NewNode(NewNodeID("same"), "VALUE", "B"))
	s.AddNode(&Node{Name: "no id", Type: "VALUE"})
	errs := Validate(s)
	if !hasError(errs, "duplicate node id") {
		t.Errorf("expected duplicate id error, got %v", errs)
	}
	if !hasError(errs, "has no id") {
		t.Errorf("expected missing id error, got %v", errs)
	}
}

func TestValidateCycle(t *testing.T) {
	s := New("Loop", KindMaterial)
	a := NewNode(NewNodeID("a"), "MATH", "A")
	b := NewNode(NewNodeID("b"), "MATH", "B")
	s.AddNode(a)
	s.AddNode(b)
	mustConnect(s, a, "Value", b, "Value1")
	mustConnect(s, b, "Value", a, "Value1")

	errs := Validate(s)
	if !hasError(errs, "cycle detected") {
		t.Fatalf("expected cycle error, got %v", errs)
	}
	count := 0
	for _, e := range errs {
		if strings.Contains(e.Message, "cycle") {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected exactly one cycle error, got %d", count)
	}
}

func TestValidateMultipleOutputsWarns(t *testing.T) {
	s := buildValidMix()
	s.AddNode(NewNode(NewNodeID("Mix/4"), "OUTPUT_MATERIAL", "Second Output"))
	errs := Validate(s)
	if !hasWarning(errs, "2 output nodes") {
		t.Errorf("expected multiple output warning, got %v", errs)
	}
	if HasErrors(errs) {
		t.Error("multiple outputs should not be an error")
	}
}

func TestValidationErrorString(t *testing.T) {
	e := ValidationError{Message: "graph-level", Severity: SeverityWarning}
	if got := e.Error(); got != "[warning] graph-level" {
		t.Errorf("Error() = %q", got)
	}
	id := NewNodeID("n")
	e = ValidationError{NodeID: id, Message: "bad", Severity: SeverityError}
	if got := e.Error(); got != "[error] node "+id.Short()+": bad" {
		t.Errorf("Error() = %q", got)
	}
}
