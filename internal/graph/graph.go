package graph

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/shaiso/Nodeflow/internal/domain"
	"github.com/shaiso/Nodeflow/internal/registry"
)

// Graph — граф workflow.
//
// Владеет узлами и связями. Чтение допускается параллельно с run,
// изменения во время run возвращают ErrGraphLocked.
type Graph struct {
	mu sync.RWMutex

	id   string
	name string
	reg  *registry.Registry

	nodes     map[string]*Node
	nodeOrder []string

	links     map[string]*Link
	linkOrder []string

	// bound — входной порт → ID связи (node/port).
	bound map[portKey]string

	// out — исходящие связи узла (ID связей в порядке добавления).
	out map[string][]string

	running bool
}

type portKey struct {
	node string
	port string
}

// New создаёт пустой граф.
func New(reg *registry.Registry) *Graph {
	return &Graph{
		id:    uuid.New().String(),
		reg:   reg,
		nodes: make(map[string]*Node),
		links: make(map[string]*Link),
		bound: make(map[portKey]string),
		out:   make(map[string][]string),
	}
}

// ID возвращает идентификатор графа.
func (g *Graph) ID() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.id
}

// Name возвращает имя графа.
func (g *Graph) Name() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.name
}

// SetName задаёт имя графа.
func (g *Graph) SetName(name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		return ErrGraphLocked
	}
	g.name = name
	return nil
}

// Registry возвращает реестр типов графа.
func (g *Graph) Registry() *registry.Registry {
	return g.reg
}

// AddNode добавляет узел и возвращает его сгенерированный ID.
func (g *Graph) AddNode(typeName string, props map[string]any) (string, error) {
	return g.AddNodeWithID("", typeName, props)
}

// AddNodeWithID добавляет узел с заданным ID (используется при импорте).
// Пустой id заменяется сгенерированным.
func (g *Graph) AddNodeWithID(id, typeName string, props map[string]any) (string, error) {
	spec, err := g.reg.Lookup(typeName)
	if err != nil {
		return "", editError(id, "", fmt.Sprintf("unknown node type %q", typeName), ErrUnknownType)
	}
	if id == "" {
		id = uuid.New().String()
	}

	node, err := buildNode(id, spec, props)
	if err != nil {
		return "", err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.running {
		return "", ErrGraphLocked
	}
	if _, exists := g.nodes[id]; exists {
		return "", editError(id, "", "node already exists", ErrDuplicateNode)
	}

	g.nodes[id] = node
	g.nodeOrder = append(g.nodeOrder, id)
	return id, nil
}

// buildNode создаёт экземпляр: проверяет свойства и фиксирует набор портов.
func buildNode(id string, spec *registry.NodeType, props map[string]any) (*Node, error) {
	props = copyProperties(props)
	if props == nil {
		props = make(map[string]any)
	}

	if err := checkProperties(id, spec, props); err != nil {
		return nil, err
	}

	outputs := append([]registry.PortSpec(nil), spec.Outputs...)
	if spec.DynamicOutputs != nil {
		dynamic, err := spec.DynamicOutputs(props)
		if err != nil {
			return nil, editError(id, "", err.Error(), ErrInvalidProperty)
		}
		outputs = append(outputs, dynamic...)
		if err := registry.ValidatePorts(spec.Name, domain.DirectionOut, outputs); err != nil {
			return nil, editError(id, "", err.Error(), ErrInvalidProperty)
		}
	}

	node := &Node{
		ID:         id,
		Type:       spec.Name,
		Properties: props,
		Inputs:     makePorts(spec.Inputs, domain.DirectionIn),
		Outputs:    makePorts(outputs, domain.DirectionOut),
		spec:       spec,
	}
	return node, nil
}

func makePorts(specs []registry.PortSpec, dir domain.Direction) []Port {
	ports := make([]Port, 0, len(specs))
	for _, s := range specs {
		ports = append(ports, Port{
			Name:      s.Name,
			Type:      s.Type,
			Direction: dir,
			Required:  s.Required,
			Error:     s.Error,
		})
	}
	return ports
}

// AddLink связывает выход srcPort узла srcID со входом dstPort узла dstID.
//
// Возвращает ErrNodeNotFound, ErrPortNotFound, ErrPortTypeMismatch,
// ErrInputAlreadyBound или ErrCycleDetected. Цикл проверяется обходом
// достижимости от получателя к источнику по всем связям.
func (g *Graph) AddLink(srcID, srcPort, dstID, dstPort string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.running {
		return "", ErrGraphLocked
	}

	src, ok := g.nodes[srcID]
	if !ok {
		return "", editError(srcID, "", "source node not found", ErrNodeNotFound)
	}
	dst, ok := g.nodes[dstID]
	if !ok {
		return "", editError(dstID, "", "target node not found", ErrNodeNotFound)
	}

	out, ok := src.Output(srcPort)
	if !ok {
		return "", editError(srcID, srcPort, fmt.Sprintf("no output port %q", srcPort), ErrPortNotFound)
	}
	in, ok := dst.Input(dstPort)
	if !ok {
		return "", editError(dstID, dstPort, fmt.Sprintf("no input port %q", dstPort), ErrPortNotFound)
	}

	if out.Type != in.Type {
		return "", editError(dstID, dstPort,
			fmt.Sprintf("cannot link %s output %q to %s input %q", out.Type, srcPort, in.Type, dstPort),
			ErrPortTypeMismatch)
	}

	if linkID, bound := g.bound[portKey{dstID, dstPort}]; bound {
		return "", editError(dstID, dstPort,
			fmt.Sprintf("input %q already bound by link %s", dstPort, linkID), ErrInputAlreadyBound)
	}

	if srcID == dstID || g.reachable(dstID, srcID) {
		return "", editError(dstID, dstPort,
			fmt.Sprintf("link %s.%s -> %s.%s creates a cycle", srcID, srcPort, dstID, dstPort), ErrCycleDetected)
	}

	link := &Link{
		ID:        uuid.New().String(),
		From:      srcID,
		FromPort:  srcPort,
		To:        dstID,
		ToPort:    dstPort,
		Type:      out.Type,
		FromError: out.Error,
	}

	g.links[link.ID] = link
	g.linkOrder = append(g.linkOrder, link.ID)
	g.bound[portKey{dstID, dstPort}] = link.ID
	g.out[srcID] = append(g.out[srcID], link.ID)

	return link.ID, nil
}

// reachable проверяет, достижим ли target из start по связям (DFS).
func (g *Graph) reachable(start, target string) bool {
	visited := make(map[string]bool)
	stack := []string{start}

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if id == target {
			return true
		}
		if visited[id] {
			continue
		}
		visited[id] = true

		for _, linkID := range g.out[id] {
			stack = append(stack, g.links[linkID].To)
		}
	}
	return false
}

// RemoveNode удаляет узел вместе со всеми инцидентными связями.
func (g *Graph) RemoveNode(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.running {
		return ErrGraphLocked
	}
	if _, ok := g.nodes[id]; !ok {
		return editError(id, "", "node not found", ErrNodeNotFound)
	}

	for _, linkID := range append([]string(nil), g.linkOrder...) {
		link := g.links[linkID]
		if link.From == id || link.To == id {
			g.removeLink(linkID)
		}
	}

	delete(g.nodes, id)
	delete(g.out, id)
	g.nodeOrder = removeString(g.nodeOrder, id)
	return nil
}

// RemoveLink удаляет связь.
func (g *Graph) RemoveLink(linkID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.running {
		return ErrGraphLocked
	}
	if _, ok := g.links[linkID]; !ok {
		return fmt.Errorf("%w: %s", ErrLinkNotFound, linkID)
	}
	g.removeLink(linkID)
	return nil
}

func (g *Graph) removeLink(linkID string) {
	link := g.links[linkID]
	delete(g.links, linkID)
	delete(g.bound, portKey{link.To, link.ToPort})
	g.out[link.From] = removeString(g.out[link.From], linkID)
	g.linkOrder = removeString(g.linkOrder, linkID)
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, item := range list {
		if item != s {
			out = append(out, item)
		}
	}
	return out
}

// Node возвращает копию узла по ID.
func (g *Graph) Node(id string) (*Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	n, ok := g.nodes[id]
	if !ok {
		return nil, false
	}
	return n.clone(), true
}

// Nodes возвращает копии узлов в порядке добавления.
func (g *Graph) Nodes() []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	nodes := make([]*Node, 0, len(g.nodeOrder))
	for _, id := range g.nodeOrder {
		nodes = append(nodes, g.nodes[id].clone())
	}
	return nodes
}

// Links возвращает копии связей в порядке добавления.
func (g *Graph) Links() []*Link {
	g.mu.RLock()
	defer g.mu.RUnlock()

	links := make([]*Link, 0, len(g.linkOrder))
	for _, id := range g.linkOrder {
		l := *g.links[id]
		links = append(links, &l)
	}
	return links
}

// Len возвращает количество узлов.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// Validate возвращает все структурные нарушения графа.
func (g *Graph) Validate() []Violation {
	return g.Snapshot().Validate()
}

// Snapshot возвращает независимую копию графа.
func (g *Graph) Snapshot() *Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.snapshot()
}

// BeginRun блокирует граф для run и возвращает снимок.
// Повторный вызов до EndRun возвращает ErrGraphLocked.
func (g *Graph) BeginRun() (*Snapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.running {
		return nil, ErrGraphLocked
	}
	g.running = true
	return g.snapshot(), nil
}

// EndRun снимает блокировку run.
func (g *Graph) EndRun() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.running = false
}

// Running возвращает true, пока граф заблокирован run.
func (g *Graph) Running() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.running
}
