// Package filter provides AIP-160 filter expression parsing and SQL translation
// for planner listings.
package filter

import (
	"fmt"
	"strings"
	"time"

	"go.einride.tech/aip/filtering"
	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

// SQLCondition represents a SQL WHERE clause fragment with parameters.
type SQLCondition struct {
	// Clause is the SQL WHERE clause (e.g., "status = ?").
	Clause string
	// Params are the positional parameters for the clause.
	Params []any
}

// IsEmpty reports whether the condition matches everything.
func (c SQLCondition) IsEmpty() bool {
	return strings.TrimSpace(c.Clause) == ""
}

type fieldKind int

const (
	kindString fieldKind = iota
	kindInt
	kindTimestamp
)

type field struct {
	column string
	kind   fieldKind
}

// Schema maps filter identifiers onto SQL columns of one table.
type Schema struct {
	name   string
	fields map[string]field
}

// Tasks is the filter schema over the tasks table.
var Tasks = Schema{
	name: "task",
	fields: map[string]field{
		"id":         {column: "id", kind: kindString},
		"list":       {column: "list", kind: kindString},
		"group_id":   {column: "group_id", kind: kindString},
		"parent_id":  {column: "parent_id", kind: kindString},
		"title":      {column: "title", kind: kindString},
		"status":     {column: "status", kind: kindString},
		"priority":   {column: "priority", kind: kindString},
		"intent":     {column: "schedule_intent", kind: kindString},
		"date":       {column: "schedule_date", kind: kindString},
		"estimate":   {column: "estimate_minutes", kind: kindInt},
		"created_at": {column: "created_at", kind: kindTimestamp},
		"updated_at": {column: "updated_at", kind: kindTimestamp},
	},
}

// Reminders is the filter schema over the reminders table.
var Reminders = Schema{
	name: "reminder",
	fields: map[string]field{
		"id":         {column: "id", kind: kindString},
		"task_id":    {column: "task_id", kind: kindString},
		"status":     {column: "status", kind: kindString},
		"priority":   {column: "priority", kind: kindString},
		"attempts":   {column: "attempts", kind: kindInt},
		"fire_at":    {column: "fire_at", kind: kindTimestamp},
		"created_at": {column: "created_at", kind: kindTimestamp},
	},
}

// Events is the filter schema over the event journal.
var Events = Schema{
	name: "event",
	fields: map[string]field{
		"seq":         {column: "seq", kind: kindInt},
		"entity_kind": {column: "entity_kind", kind: kindString},
		"entity_id":   {column: "entity_id", kind: kindString},
		"kind":        {column: "kind", kind: kindString},
		"ts":          {column: "occurred_at", kind: kindTimestamp},
	},
}

// Declarations returns the einride declarations for the schema's identifiers.
func (s Schema) Declarations() (*filtering.Declarations, error) {
	opts := []filtering.DeclarationOption{filtering.DeclareStandardFunctions()}
	for name, f := range s.fields {
		var typ = filtering.TypeString
		switch f.kind {
		case kindInt:
			typ = filtering.TypeInt
		case kindTimestamp:
			typ = filtering.TypeTimestamp
		}
		opts = append(opts, filtering.DeclareIdent(name, typ))
	}
	return filtering.NewDeclarations(opts...)
}

// Parse parses an AIP-160 filter expression and returns a SQL condition.
// Returns an empty condition for an empty filter string.
func (s Schema) Parse(filterStr string) (SQLCondition, error) {
	if strings.TrimSpace(filterStr) == "" {
		return SQLCondition{}, nil
	}

	decls, err := s.Declarations()
	if err != nil {
		return SQLCondition{}, fmt.Errorf("create %s declarations: %w", s.name, err)
	}

	parsed, err := filtering.ParseFilterString(filterStr, decls)
	if err != nil {
		return SQLCondition{}, fmt.Errorf("parse %s filter: %w", s.name, err)
	}

	return s.translateExpr(parsed.CheckedExpr.GetExpr())
}

func (s Schema) translateExpr(e *expr.Expr) (SQLCondition, error) {
	if e == nil {
		return SQLCondition{}, nil
	}

	switch kind := e.ExprKind.(type) {
	case *expr.Expr_CallExpr:
		return s.translateCall(kind.CallExpr)
	default:
		return SQLCondition{}, fmt.Errorf("unsupported expression type: %T", kind)
	}
}

func (s Schema) translateCall(call *expr.Expr_Call) (SQLCondition, error) {
	switch call.Function {
	case "_&&_", filtering.FunctionAnd:
		return s.translateJunction(call.Args, "AND")
	case "_||_", filtering.FunctionOr:
		return s.translateJunction(call.Args, "OR")
	case "!_", filtering.FunctionNot:
		return s.translateNot(call.Args)
	case "_==_", filtering.FunctionEquals:
		return s.translateComparison(call.Args, "=")
	case "_!=_", filtering.FunctionNotEquals:
		return s.translateComparison(call.Args, "!=")
	case "_<_", filtering.FunctionLessThan:
		return s.translateComparison(call.Args, "<")
	case "_<=_", filtering.FunctionLessEquals:
		return s.translateComparison(call.Args, "<=")
	case "_>_", filtering.FunctionGreaterThan:
		return s.translateComparison(call.Args, ">")
	case "_>=_", filtering.FunctionGreaterEquals:
		return s.translateComparison(call.Args, ">=")
	default:
		return SQLCondition{}, fmt.Errorf("unsupported function: %s", call.Function)
	}
}

func (s Schema) translateJunction(args []*expr.Expr, op string) (SQLCondition, error) {
	if len(args) != 2 {
		return SQLCondition{}, fmt.Errorf("%s requires 2 arguments", op)
	}

	left, err := s.translateExpr(args[0])
	if err != nil {
		return SQLCondition{}, err
	}

	right, err := s.translateExpr(args[1])
	if err != nil {
		return SQLCondition{}, err
	}

	return SQLCondition{
		Clause: fmt.Sprintf("(%s %s %s)", left.Clause, op, right.Clause),
		Params: append(left.Params, right.Params...),
	}, nil
}

func (s Schema) translateNot(args []*expr.Expr) (SQLCondition, error) {
	if len(args) != 1 {
		return SQLCondition{}, fmt.Errorf("NOT requires 1 argument")
	}
	inner, err := s.translateExpr(args[0])
	if err != nil {
		return SQLCondition{}, err
	}
	return SQLCondition{
		Clause: fmt.Sprintf("(NOT %s)", inner.Clause),
		Params: inner.Params,
	}, nil
}

func (s Schema) translateComparison(args []*expr.Expr, op string) (SQLCondition, error) {
	if len(args) != 2 {
		return SQLCondition{}, fmt.Errorf("comparison requires 2 arguments")
	}

	name, err := extractFieldName(args[0])
	if err != nil {
		return SQLCondition{}, err
	}

	f, ok := s.fields[name]
	if !ok {
		return SQLCondition{}, fmt.Errorf("unknown %s field: %s", s.name, name)
	}

	value, err := extractValue(args[1])
	if err != nil {
		return SQLCondition{}, err
	}
	if f.kind == kindTimestamp {
		ts, ok := value.(time.Time)
		if !ok {
			return SQLCondition{}, fmt.Errorf("field %s requires a timestamp value", name)
		}
		value = ts.UTC().UnixMilli()
	}

	return SQLCondition{
		Clause: fmt.Sprintf("%s %s ?", f.column, op),
		Params: []any{value},
	}, nil
}

func extractFieldName(e *expr.Expr) (string, error) {
	if e == nil {
		return "", fmt.Errorf("nil expression")
	}

	switch kind := e.ExprKind.(type) {
	case *expr.Expr_IdentExpr:
		return kind.IdentExpr.Name, nil
	default:
		return "", fmt.Errorf("expected identifier, got %T", kind)
	}
}

func extractValue(e *expr.Expr) (any, error) {
	if e == nil {
		return nil, fmt.Errorf("nil expression")
	}

	switch kind := e.ExprKind.(type) {
	case *expr.Expr_ConstExpr:
		return extractConstValue(kind.ConstExpr)
	case *expr.Expr_CallExpr:
		if kind.CallExpr.Function == filtering.FunctionTimestamp && len(kind.CallExpr.Args) == 1 {
			return extractTimestampValue(kind.CallExpr.Args[0])
		}
		return nil, fmt.Errorf("unsupported function in value position: %s", kind.CallExpr.Function)
	default:
		return nil, fmt.Errorf("expected constant or timestamp, got %T", kind)
	}
}

func extractConstValue(c *expr.Constant) (any, error) {
	if c == nil {
		return nil, fmt.Errorf("nil constant")
	}

	switch kind := c.ConstantKind.(type) {
	case *expr.Constant_StringValue:
		return kind.StringValue, nil
	case *expr.Constant_Int64Value:
		return kind.Int64Value, nil
	case *expr.Constant_Uint64Value:
		return kind.Uint64Value, nil
	case *expr.Constant_DoubleValue:
		return kind.DoubleValue, nil
	case *expr.Constant_BoolValue:
		return kind.BoolValue, nil
	default:
		return nil, fmt.Errorf("unsupported constant type: %T", kind)
	}
}

func extractTimestampValue(e *expr.Expr) (time.Time, error) {
	if e == nil {
		return time.Time{}, fmt.Errorf("nil timestamp argument")
	}

	kind, ok := e.ExprKind.(*expr.Expr_ConstExpr)
	if !ok {
		return time.Time{}, fmt.Errorf("timestamp argument must be a constant string")
	}
	strVal, ok := kind.ConstExpr.ConstantKind.(*expr.Constant_StringValue)
	if !ok {
		return time.Time{}, fmt.Errorf("timestamp argument must be a string")
	}
	t, err := time.Parse(time.RFC3339Nano, strVal.StringValue)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp format: %s", strVal.StringValue)
	}
	return t, nil
}
