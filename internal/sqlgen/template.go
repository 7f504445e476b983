package sqlgen

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jonboulle/clockwork"

	"metricgate/internal/domain"
	"metricgate/internal/sqlast"
)

// DefaultLimit caps the rows a generated query may return.
const DefaultLimit = 100

// TemplateGenerator assembles SQL deterministically from the request by
// building an sqlast tree and formatting it.
type TemplateGenerator struct {
	clock clockwork.Clock
	limit int
}

// NewTemplateGenerator creates a TemplateGenerator. A nil clock uses the
// real clock; a non-positive limit uses DefaultLimit.
func NewTemplateGenerator(clock clockwork.Clock, limit int) *TemplateGenerator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &TemplateGenerator{clock: clock, limit: limit}
}

// GenerateSQL implements domain.TextGenerator.
func (g *TemplateGenerator) GenerateSQL(_ context.Context, req domain.GenerationRequest) (string, error) {
	stmt, err := g.Build(req)
	if err != nil {
		return "", err
	}
	return sqlast.Format(stmt), nil
}

// Build returns the statement for req:
//
//	SELECT AGG(measure) AS value[, dims] FROM fact [JOIN ...]
//	WHERE time >= 'start' AND time < 'end' [AND filters]
//	[GROUP BY dims] LIMIT n
func (g *TemplateGenerator) Build(req domain.GenerationRequest) (*sqlast.SelectStmt, error) {
	window, err := ResolveWindow(req.TimeRange, g.clock.Now())
	if err != nil {
		return nil, err
	}

	measure, err := sqlast.ParseExpr(req.MeasureExpression)
	if err != nil {
		return nil, fmt.Errorf("measure expression %q: %w", req.MeasureExpression, err)
	}

	core := &sqlast.SelectCore{
		Columns: []sqlast.SelectItem{{
			Expr:  &sqlast.FuncCall{Name: req.Aggregation, Args: []sqlast.Expr{measure}},
			Alias: "value",
		}},
		Limit: &sqlast.Literal{Type: sqlast.LiteralNumber, Value: strconv.Itoa(g.limit)},
	}

	from := &sqlast.FromClause{Source: tableRef(req.FactTable)}
	for _, j := range req.Joins {
		jt, err := joinType(j.Type)
		if err != nil {
			return nil, err
		}
		from.Joins = append(from.Joins, &sqlast.Join{
			Type:  jt,
			Right: tableRef(j.RightTable()),
			Condition: &sqlast.BinaryExpr{
				Left:  columnRef(j.Left),
				Op:    sqlast.TOKEN_EQ,
				Right: columnRef(j.Right),
			},
		})
	}
	core.From = from

	where := []sqlast.Expr{
		&sqlast.BinaryExpr{
			Left:  columnRef(req.TimeColumn),
			Op:    sqlast.TOKEN_GE,
			Right: &sqlast.Literal{Type: sqlast.LiteralString, Value: window.StartDate()},
		},
		&sqlast.BinaryExpr{
			Left:  columnRef(req.TimeColumn),
			Op:    sqlast.TOKEN_LT,
			Right: &sqlast.Literal{Type: sqlast.LiteralString, Value: window.EndDate()},
		},
	}
	for _, f := range req.Filters {
		pred, err := filterExpr(f)
		if err != nil {
			return nil, err
		}
		where = append(where, pred)
	}
	core.Where = andAll(where)

	for _, dim := range req.GroupBy {
		core.Columns = append(core.Columns, sqlast.SelectItem{Expr: columnRef(dim)})
		core.GroupBy = append(core.GroupBy, columnRef(dim))
	}

	return &sqlast.SelectStmt{Body: &sqlast.SelectBody{Left: core}}, nil
}

// filterExpr converts a plan filter to a predicate.
func filterExpr(f domain.FilterPlan) (sqlast.Expr, error) {
	col := columnRef(f.Column)
	op := strings.ToUpper(strings.TrimSpace(f.Operator))

	if f.Value.Kind == domain.LiteralNull {
		switch op {
		case "IS", "=":
			return &sqlast.IsNullExpr{Expr: col}, nil
		case "IS NOT", "!=", "<>":
			return &sqlast.IsNullExpr{Expr: col, Not: true}, nil
		}
		return nil, fmt.Errorf("filter on %s: operator %q cannot compare with NULL", f.Column, f.Operator)
	}

	parsed, err := domain.ParseOperator(f.Operator)
	if err != nil {
		return nil, fmt.Errorf("filter on %s: %w", f.Column, err)
	}
	tok, err := operatorToToken(parsed)
	if err != nil {
		return nil, err
	}
	return &sqlast.BinaryExpr{Left: col, Op: tok, Right: literalExpr(f.Value)}, nil
}

// operatorToToken converts a catalog operator to an sqlast token type.
func operatorToToken(op domain.Operator) (sqlast.TokenType, error) {
	switch op {
	case domain.OpEq:
		return sqlast.TOKEN_EQ, nil
	case domain.OpNeq:
		return sqlast.TOKEN_NE, nil
	case domain.OpGt:
		return sqlast.TOKEN_GT, nil
	case domain.OpGte:
		return sqlast.TOKEN_GE, nil
	case domain.OpLt:
		return sqlast.TOKEN_LT, nil
	case domain.OpLte:
		return sqlast.TOKEN_LE, nil
	default:
		return 0, fmt.Errorf("unsupported operator: %q", op)
	}
}

func joinType(t domain.JoinType) (sqlast.JoinType, error) {
	switch t {
	case domain.JoinInner:
		return sqlast.JoinInner, nil
	case domain.JoinLeft:
		return sqlast.JoinLeft, nil
	case domain.JoinRight:
		return sqlast.JoinRight, nil
	default:
		return "", fmt.Errorf("unsupported join type: %q", t)
	}
}

func literalExpr(l domain.Literal) sqlast.Expr {
	switch l.Kind {
	case domain.LiteralNumber:
		return &sqlast.Literal{Type: sqlast.LiteralNumber, Value: l.Text}
	case domain.LiteralNull:
		return &sqlast.Literal{Type: sqlast.LiteralNull, Value: "NULL"}
	default:
		return &sqlast.Literal{Type: sqlast.LiteralString, Value: l.Text}
	}
}

// columnRef builds a column reference from a possibly qualified name.
func columnRef(name string) *sqlast.ColumnRef {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return &sqlast.ColumnRef{Column: name}
	}
	return &sqlast.ColumnRef{Table: name[:i], Column: name[i+1:]}
}

// tableRef builds a table reference from a possibly schema-qualified name.
func tableRef(name string) *sqlast.TableName {
	parts := strings.Split(name, ".")
	t := &sqlast.TableName{Name: parts[len(parts)-1]}
	switch len(parts) {
	case 2:
		t.Schema = parts[0]
	case 3:
		t.Catalog, t.Schema = parts[0], parts[1]
	}
	return t
}

// andAll folds predicates into a left-associative AND chain.
func andAll(preds []sqlast.Expr) sqlast.Expr {
	var out sqlast.Expr
	for _, p := range preds {
		if out == nil {
			out = p
			continue
		}
		out = &sqlast.BinaryExpr{Left: out, Op: sqlast.TOKEN_AND, Right: p}
	}
	return out
}
