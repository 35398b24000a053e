package engine

import (
	"fmt"
	"sort"

	"github.com/shaiso/Nodeflow/internal/domain"
	"github.com/shaiso/Nodeflow/internal/graph"
)

// plan — порядок выполнения снимка.
type plan struct {
	order []*graph.Node
	start *graph.Node
}

// compile строит порядок выполнения алгоритмом Кана по всем связям
// (control и data). Из нескольких готовых узлов первым берётся
// добавленный в граф раньше, поэтому порядок детерминирован.
func compile(snap *graph.Snapshot) (*plan, error) {
	inDegree := make(map[string]int, len(snap.Nodes))
	for _, n := range snap.Nodes {
		// несколько связей между парой узлов считаются отдельно
		inDegree[n.ID] = len(snap.InLinks(n.ID))
	}

	// ready — позиции узлов в снимке, отсортированы по возрастанию
	ready := make([]int, 0)
	for i, n := range snap.Nodes {
		if inDegree[n.ID] == 0 {
			ready = append(ready, i)
		}
	}

	p := &plan{order: make([]*graph.Node, 0, len(snap.Nodes))}

	for len(ready) > 0 {
		node := snap.Nodes[ready[0]]
		ready = ready[1:]
		p.order = append(p.order, node)

		for _, l := range snap.OutLinks(node.ID) {
			inDegree[l.To]--
			if inDegree[l.To] == 0 {
				ready = insertSorted(ready, snap.Position(l.To))
			}
		}
	}

	if len(p.order) != len(snap.Nodes) {
		return nil, fmt.Errorf("%w: graph snapshot contains a cycle", ErrInvariant)
	}

	for _, n := range p.order {
		if n.Type == domain.NodeTypeStart {
			p.start = n
			break
		}
	}
	return p, nil
}

func insertSorted(list []int, v int) []int {
	i := sort.SearchInts(list, v)
	list = append(list, 0)
	copy(list[i+1:], list[i:])
	list[i] = v
	return list
}
