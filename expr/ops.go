package expr

// BinaryOp is the operator tag of a Binary node.
type BinaryOp uint8

const (
	Add BinaryOp = iota
	Subtract
	Multiply
	Divide
	Modulo
	Power
	And
	Or
	ExclusiveOr
	AndAlso
	OrElse
	Equal
	NotEqual
	LessThan
	LessThanOrEqual
	GreaterThan
	GreaterThanOrEqual
	LeftShift
	RightShift
	Coalesce
	ArrayIndex
)

var binaryNames = [...]string{
	Add:                "Add",
	Subtract:           "Subtract",
	Multiply:           "Multiply",
	Divide:             "Divide",
	Modulo:             "Modulo",
	Power:              "Power",
	And:                "And",
	Or:                 "Or",
	ExclusiveOr:        "ExclusiveOr",
	AndAlso:            "AndAlso",
	OrElse:             "OrElse",
	Equal:              "Equal",
	NotEqual:           "NotEqual",
	LessThan:           "LessThan",
	LessThanOrEqual:    "LessThanOrEqual",
	GreaterThan:        "GreaterThan",
	GreaterThanOrEqual: "GreaterThanOrEqual",
	LeftShift:          "LeftShift",
	RightShift:         "RightShift",
	Coalesce:           "Coalesce",
	ArrayIndex:         "ArrayIndex",
}

var binarySymbols = [...]string{
	Add:                "+",
	Subtract:           "-",
	Multiply:           "*",
	Divide:             "/",
	Modulo:             "%",
	Power:              "**",
	And:                "&",
	Or:                 "|",
	ExclusiveOr:        "^",
	AndAlso:            "&&",
	OrElse:             "||",
	Equal:              "==",
	NotEqual:           "!=",
	LessThan:           "<",
	LessThanOrEqual:    "<=",
	GreaterThan:        ">",
	GreaterThanOrEqual: ">=",
	LeftShift:          "<<",
	RightShift:         ">>",
	Coalesce:           "??",
	ArrayIndex:         "[]",
}

func (op BinaryOp) String() string {
	if int(op) < len(binaryNames) {
		return binaryNames[op]
	}
	return "Binary"
}

// Symbol returns the textual operator, or "" when op has none.
func (op BinaryOp) Symbol() string {
	if int(op) < len(binarySymbols) {
		return binarySymbols[op]
	}
	return ""
}

// Valid reports whether op is a known operator.
func (op BinaryOp) Valid() bool { return int(op) < len(binaryNames) }

// UnaryOp is the operator tag of a Unary node.
type UnaryOp uint8

const (
	Negate UnaryOp = iota
	UnaryPlus
	Not
	OnesComplement
	Convert
	TypeAs
	ArrayLength
	Quote
)

var unaryNames = [...]string{
	Negate:         "Negate",
	UnaryPlus:      "UnaryPlus",
	Not:            "Not",
	OnesComplement: "OnesComplement",
	Convert:        "Convert",
	TypeAs:         "TypeAs",
	ArrayLength:    "ArrayLength",
	Quote:          "Quote",
}

// Only operators with a conventional spelling get a symbol; the rest are
// keyed by name.
var unarySymbols = [...]string{
	Negate:         "-",
	UnaryPlus:      "+",
	Not:            "Not",
	OnesComplement: "~",
}

func (op UnaryOp) String() string {
	if int(op) < len(unaryNames) {
		return unaryNames[op]
	}
	return "Unary"
}

// Symbol returns the textual operator, or "" when op has none.
func (op UnaryOp) Symbol() string {
	if int(op) < len(unarySymbols) {
		return unarySymbols[op]
	}
	return ""
}

// Valid reports whether op is a known operator.
func (op UnaryOp) Valid() bool { return int(op) < len(unaryNames) }
