package inference

import "fmt"

type TensorID int

type node interface {
	TensorID() TensorID
	Dependencies() []TensorID
}

type graph interface {
	AllTensors() map[TensorID]node
}

// BuildDAG orders the tensors of g so every tensor follows its dependencies,
// and fails if any of wantTensors cannot be reached.
func BuildDAG(g graph, wantTensors []TensorID) ([]TensorID, error) {
	allTensors := g.AllTensors()

	evaluationOrder := make([]TensorID, 0, len(allTensors))
	done := make(map[TensorID]bool)

	for {
		progress := false
		for _, tensor := range allTensors {
			id := tensor.TensorID()
			if done[id] {
				continue
			}

			ready := true
			for _, dep := range tensor.Dependencies() {
				if !done[dep] {
					ready = false
					break
				}
			}
			if ready {
				done[id] = true
				evaluationOrder = append(evaluationOrder, id)
				progress = true
			}
		}
		if !progress {
			break
		}
	}

	for _, id := range wantTensors {
		if !done[id] {
			return nil, fmt.Errorf("tensor %d could not be computed (unreachable in computation graph)", id)
		}
	}

	return pruneTo(allTensors, evaluationOrder, wantTensors), nil
}

// pruneTo drops tensors that no wanted tensor depends on, keeping the order.
func pruneTo(allTensors map[TensorID]node, order []TensorID, wantTensors []TensorID) []TensorID {
	needed := make(map[TensorID]bool)
	var visit func(id TensorID)
	visit = func(id TensorID) {
		if needed[id] {
			return
		}
		needed[id] = true
		for _, dep := range allTensors[id].Dependencies() {
			visit(dep)
		}
	}
	for _, id := range wantTensors {
		visit(id)
	}

	pruned := order[:0]
	for _, id := range order {
		if needed[id] {
			pruned = append(pruned, id)
		}
	}
	return pruned
}
