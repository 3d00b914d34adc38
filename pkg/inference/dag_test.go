package inference

import (
	"testing"
)

type fakeNode struct {
	id   TensorID
	deps []TensorID
}

func (n fakeNode) TensorID() TensorID       { return n.id }
func (n fakeNode) Dependencies() []TensorID { return n.deps }

type fakeGraph []fakeNode

func (g fakeGraph) AllTensors() map[TensorID]node {
	m := make(map[TensorID]node, len(g))
	for _, n := range g {
		m[n.id] = n
	}
	return m
}

func TestBuildDAGOrdersDependencies(t *testing.T) {
	g := fakeGraph{
		{id: 4, deps: []TensorID{2, 3}},
		{id: 3, deps: []TensorID{1}},
		{id: 2, deps: []TensorID{1}},
		{id: 1},
		{id: 9, deps: []TensorID{1}},
	}

	order, err := BuildDAG(g, []TensorID{4})
	if err != nil {
		t.Fatalf("building DAG: %v", err)
	}

	pos := make(map[TensorID]int)
	for i, id := range order {
		pos[id] = i
	}
	if len(order) != 4 {
		t.Fatalf("expected 4 tensors after pruning, got %v", order)
	}
	if _, found := pos[9]; found {
		t.Errorf("tensor 9 is not needed and should be pruned: %v", order)
	}
	for _, n := range g[:4] {
		for _, dep := range n.deps {
			if pos[dep] >= pos[n.id] {
				t.Errorf("tensor %d evaluated before its dependency %d: %v", n.id, dep, order)
			}
		}
	}
}

func TestBuildDAGUnreachable(t *testing.T) {
	g := fakeGraph{
		{id: 1, deps: []TensorID{2}},
		{id: 2, deps: []TensorID{1}},
		{id: 3},
	}
	if _, err := BuildDAG(g, []TensorID{1}); err == nil {
		t.Errorf("expected error for a cycle")
	}
	if _, err := BuildDAG(g, []TensorID{3}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestParseModelVersion(t *testing.T) {
	grid := []struct {
		raw     string
		want    ModelVersion
		wantErr bool
	}{
		{raw: "", want: ModelVersion{RawName: "", Name: "none", InputVersion: 0, OutputVersion: 1}},
		{raw: "VPUNN", want: ModelVersion{RawName: "VPUNN", Name: "VPUNN", InputVersion: 1, OutputVersion: 1}},
		{raw: "VPUNN-11-2", want: ModelVersion{RawName: "VPUNN-11-2", Name: "VPUNN", InputVersion: 11, OutputVersion: 2}},
		{raw: "-10", want: ModelVersion{RawName: "-10", Name: "none", InputVersion: 10, OutputVersion: 1}},
		{raw: "VPUNN-x-2", wantErr: true},
	}
	for _, g := range grid {
		got, err := ParseModelVersion(g.raw)
		if g.wantErr {
			if err == nil {
				t.Errorf("%q: expected error", g.raw)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: unexpected error: %v", g.raw, err)
			continue
		}
		if got != g.want {
			t.Errorf("%q: expected %+v, got %+v", g.raw, g.want, got)
		}
	}
}
