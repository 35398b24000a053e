package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/shaiso/Nodeflow/internal/domain"
)

// Registry — реестр типов узлов.
//
// Регистрация только добавляет типы: повторная регистрация имени
// возвращает ErrDuplicateType, удаления нет. Потокобезопасен.
type Registry struct {
	mu    sync.RWMutex
	types map[string]*NodeType
}

// New создаёт пустой реестр.
func New() *Registry {
	return &Registry{
		types: make(map[string]*NodeType),
	}
}

// Register регистрирует тип узла.
func (r *Registry) Register(t NodeType) error {
	if err := validateSignature(&t); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.types[t.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateType, t.Name)
	}

	// Копируем срезы, чтобы вызывающий код не мог изменить сигнатуру
	t.Inputs = append([]PortSpec(nil), t.Inputs...)
	t.Outputs = append([]PortSpec(nil), t.Outputs...)
	t.Properties = append([]PropertySpec(nil), t.Properties...)

	r.types[t.Name] = &t
	return nil
}

// MustRegister регистрирует тип и паникует при ошибке.
// Используется только при старте процесса для встроенных типов.
func (r *Registry) MustRegister(t NodeType) {
	if err := r.Register(t); err != nil {
		panic(err)
	}
}

// Lookup возвращает тип по имени.
// Возвращает ErrUnknownType, если тип не найден.
func (r *Registry) Lookup(name string) (*NodeType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, exists := r.types[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, name)
	}
	return t, nil
}

// Has проверяет, зарегистрирован ли тип.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.types[name]
	return exists
}

// Types возвращает отсортированный список имён типов.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List возвращает все типы в порядке имён.
func (r *Registry) List() []*NodeType {
	names := r.Types()

	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]*NodeType, 0, len(names))
	for _, name := range names {
		list = append(list, r.types[name])
	}
	return list
}

// Count возвращает количество зарегистрированных типов.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.types)
}

// validateSignature проверяет объявление типа.
func validateSignature(t *NodeType) error {
	if t.Name == "" {
		return fmt.Errorf("%w: empty type name", ErrInvalidSignature)
	}
	if t.Executor == nil {
		return fmt.Errorf("%w: %s: nil executor", ErrInvalidSignature, t.Name)
	}
	switch t.Class {
	case domain.ClassPure, domain.ClassIO:
	case "":
		t.Class = domain.ClassPure
	default:
		return fmt.Errorf("%w: %s: unknown class %q", ErrInvalidSignature, t.Name, t.Class)
	}

	if err := ValidatePorts(t.Name, domain.DirectionIn, t.Inputs); err != nil {
		return err
	}
	if err := ValidatePorts(t.Name, domain.DirectionOut, t.Outputs); err != nil {
		return err
	}

	seen := make(map[string]bool, len(t.Properties))
	for _, p := range t.Properties {
		if p.Name == "" {
			return fmt.Errorf("%w: %s: property with empty name", ErrInvalidSignature, t.Name)
		}
		if seen[p.Name] {
			return fmt.Errorf("%w: %s: duplicate property %q", ErrInvalidSignature, t.Name, p.Name)
		}
		seen[p.Name] = true
	}
	return nil
}

// ValidatePorts проверяет список портов одного направления:
// непустые уникальные имена, известные типы, error-порты только
// среди строковых выходов.
func ValidatePorts(typeName string, dir domain.Direction, ports []PortSpec) error {
	seen := make(map[string]bool, len(ports))
	for _, p := range ports {
		if p.Name == "" {
			return fmt.Errorf("%w: %s: %s port with empty name", ErrInvalidSignature, typeName, dir)
		}
		if seen[p.Name] {
			return fmt.Errorf("%w: %s: duplicate %s port %q", ErrInvalidSignature, typeName, dir, p.Name)
		}
		seen[p.Name] = true

		if !p.Type.IsValid() {
			return fmt.Errorf("%w: %s: port %q has unknown type %q", ErrInvalidSignature, typeName, p.Name, p.Type)
		}
		if p.Error && (dir != domain.DirectionOut || p.Type != domain.TypeString) {
			return fmt.Errorf("%w: %s: error port %q must be a string output", ErrInvalidSignature, typeName, p.Name)
		}
	}
	return nil
}
