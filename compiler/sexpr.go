package compiler

import (
	"strconv"
	"strings"
)

// Sexpr renders a node as a parenthesized prefix form. The -ast flag and
// the parser tests use it.
func Sexpr(n Node) string {
	var sb strings.Builder
	writeSexpr(&sb, n)
	return sb.String()
}

func writeSexpr(sb *strings.Builder, n Node) {
	switch n := n.(type) {
	case nil:
		sb.WriteString("nil")

	case *NumberExpr:
		if n.Kind == NumberInt {
			sb.WriteString(strconv.FormatInt(n.Int, 10))
		} else {
			s := strconv.FormatFloat(n.Float, 'g', -1, 64)
			if !strings.ContainsAny(s, ".eEnN") {
				s += ".0"
			}
			sb.WriteString(s)
		}

	case *VariableExpr:
		if len(n.Indices) == 0 {
			sb.WriteString(n.Name)
			return
		}
		list(sb, "index "+n.Name, exprNodes(n.Indices)...)

	case *DerefExpr:
		list(sb, "@", n.Addr)

	case *ArrayDecl:
		sb.WriteString("(arr ")
		sb.WriteString(n.Name)
		for _, d := range n.Dims {
			sb.WriteByte(' ')
			sb.WriteString(strconv.Itoa(d))
		}
		sb.WriteByte(')')

	case *VarDecl:
		if n.Init == nil {
			sb.WriteString("(var " + n.Name + ")")
			return
		}
		list(sb, "var "+n.Name, n.Init)

	case *UnaryExpr:
		list(sb, n.Op, n.Operand)

	case *BinaryExpr:
		list(sb, n.Op, n.Left, n.Right)

	case *CallExpr:
		list(sb, "call "+n.Callee, exprNodes(n.Args)...)

	case *IfExpr:
		if n.Else == nil {
			list(sb, "if", n.Cond, n.Then)
			return
		}
		list(sb, "if", n.Cond, n.Then, n.Else)

	case *ForExpr:
		if n.Step == nil {
			list(sb, "for "+n.Var, n.Start, n.End, n.Body)
			return
		}
		list(sb, "for "+n.Var, n.Start, n.End, n.Step, n.Body)

	case *WhileExpr:
		list(sb, "while", n.Cond, n.Body)

	case *RepeatExpr:
		list(sb, "rept", n.Count, n.Body)

	case *LoopExpr:
		list(sb, "loop", n.Body)

	case *BlockExpr:
		list(sb, "block", exprNodes(n.Exprs)...)

	case *BreakExpr:
		list(sb, "break", n.Value)

	case *ReturnExpr:
		list(sb, "return", n.Value)

	case *FunctionDef:
		sb.WriteString("(func ")
		writePrototype(sb, n.Proto)
		sb.WriteByte(' ')
		writeSexpr(sb, n.Body)
		sb.WriteByte(')')

	case *ExternDecl:
		sb.WriteString("(extern ")
		writePrototype(sb, n.Proto)
		sb.WriteByte(')')

	case *ImportDecl:
		sb.WriteString("(import " + n.Path + ")")

	case *TopLevelExpr:
		writeSexpr(sb, n.Body)
	}
}

func writePrototype(sb *strings.Builder, p *Prototype) {
	sb.WriteString(p.Name)
	if p.Kind == BinaryOperator {
		sb.WriteByte(':')
		sb.WriteString(strconv.Itoa(p.Precedence))
	}
	sb.WriteString(" (")
	sb.WriteString(strings.Join(p.Params, " "))
	sb.WriteByte(')')
}

func list(sb *strings.Builder, head string, items ...Node) {
	sb.WriteByte('(')
	sb.WriteString(head)
	for _, item := range items {
		sb.WriteByte(' ')
		writeSexpr(sb, item)
	}
	sb.WriteByte(')')
}

func exprNodes(exprs []Expr) []Node {
	nodes := make([]Node, len(exprs))
	for i, e := range exprs {
		nodes[i] = e
	}
	return nodes
}
