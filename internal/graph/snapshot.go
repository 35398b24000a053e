package graph

// Snapshot — неизменяемая копия графа, с которой работает run.
//
// Узлы и связи перечислены в порядке добавления; этот порядок
// используется движком как детерминированный tie-break.
type Snapshot struct {
	GraphID string
	Name    string
	Nodes   []*Node
	Links   []*Link

	index map[string]int
	in    map[string][]*Link
	out   map[string][]*Link
}

// snapshot копирует граф. Вызывается под блокировкой.
func (g *Graph) snapshot() *Snapshot {
	s := &Snapshot{
		GraphID: g.id,
		Name:    g.name,
		Nodes:   make([]*Node, 0, len(g.nodeOrder)),
		Links:   make([]*Link, 0, len(g.linkOrder)),
	}
	for _, id := range g.nodeOrder {
		s.Nodes = append(s.Nodes, g.nodes[id].clone())
	}
	for _, id := range g.linkOrder {
		l := *g.links[id]
		s.Links = append(s.Links, &l)
	}
	s.buildIndex()
	return s
}

func (s *Snapshot) buildIndex() {
	s.index = make(map[string]int, len(s.Nodes))
	s.in = make(map[string][]*Link)
	s.out = make(map[string][]*Link)

	for i, n := range s.Nodes {
		s.index[n.ID] = i
	}
	for _, l := range s.Links {
		s.out[l.From] = append(s.out[l.From], l)
		s.in[l.To] = append(s.in[l.To], l)
	}
}

// Node возвращает узел по ID (nil, если не найден).
func (s *Snapshot) Node(id string) *Node {
	i, ok := s.index[id]
	if !ok {
		return nil
	}
	return s.Nodes[i]
}

// Position возвращает порядковый номер узла (-1, если не найден).
func (s *Snapshot) Position(id string) int {
	i, ok := s.index[id]
	if !ok {
		return -1
	}
	return i
}

// InLinks возвращает входящие связи узла.
func (s *Snapshot) InLinks(id string) []*Link {
	return s.in[id]
}

// OutLinks возвращает исходящие связи узла.
func (s *Snapshot) OutLinks(id string) []*Link {
	return s.out[id]
}

// InputLink возвращает связь, подключённую ко входу port узла.
func (s *Snapshot) InputLink(id, port string) *Link {
	for _, l := range s.in[id] {
		if l.ToPort == port {
			return l
		}
	}
	return nil
}

// NodesOfType возвращает узлы заданного типа.
func (s *Snapshot) NodesOfType(typeName string) []*Node {
	var nodes []*Node
	for _, n := range s.Nodes {
		if n.Type == typeName {
			nodes = append(nodes, n)
		}
	}
	return nodes
}
