package domain

// ValueType — тип значения, которое переносит порт.
type ValueType string

const (
	TypeNumber  ValueType = "number"
	TypeString  ValueType = "string"
	TypeBoolean ValueType = "boolean"

	// TypeControl — порт управления ("next"), не переносит данных.
	TypeControl ValueType = "control"
)

// IsValid проверяет, что тип известен.
func (t ValueType) IsValid() bool {
	switch t {
	case TypeNumber, TypeString, TypeBoolean, TypeControl:
		return true
	default:
		return false
	}
}

// IsControl возвращает true для портов управления.
func (t ValueType) IsControl() bool {
	return t == TypeControl
}

// Direction — направление порта.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// SideEffectClass — классификация побочных эффектов типа узла.
type SideEffectClass string

const (
	// ClassPure — executor не выполняет I/O.
	ClassPure SideEffectClass = "pure"

	// ClassIO — executor работает через effects.Effects.
	ClassIO SideEffectClass = "io"
)

// PropertyType — тип значения свойства узла.
type PropertyType string

const (
	PropString  PropertyType = "string"
	PropNumber  PropertyType = "number"
	PropBoolean PropertyType = "boolean"
	PropList    PropertyType = "list"
	PropMap     PropertyType = "map"
)

// Имена типов узлов, на которые опираются проверки графа и движок.
const (
	NodeTypeStart     = "core/Start"
	NodeTypeEnd       = "core/End"
	NodeTypeCondition = "core/Condition"
)
