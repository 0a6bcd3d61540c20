// Package instrument - Loop rewriting logic.
//
// This file implements the statement-level rewriter that gives every loop a
// guard check. Two shapes are produced:
//
//	// Counted loop with a recognizable bound: pre-check the bound.
//	if !guard.CheckSize(uint64(n), "main.go:12") {
//		for i := 0; i < n; i++ { ... }
//	}
//
//	// Any other loop: count iterations as they happen.
//	var loopguardCount1 uint64
//	for cond() {
//		if guard.CheckCount(&loopguardCount1, "main.go:20") {
//			break
//		}
//		...
//	}
//
// Labeled loops always take the counter form so the label stays attached to
// the for statement. The rewriter never descends into function literals
// directly; their bodies are collected up front and rewritten independently.
package instrument

import (
	"fmt"
	"go/ast"
	"go/token"
	"path/filepath"
)

// Stats counts what the rewriter did to a file.
type Stats struct {
	// SizeChecks is the number of counted loops wrapped in a bound
	// pre-check.
	SizeChecks int

	// CounterChecks is the number of loops given a per-iteration counter.
	CounterChecks int

	// LoopsSkipped is the number of loops left alone because they already
	// carry a guard check (typically from a previous run of the tool).
	LoopsSkipped int
}

// Total returns the number of guard checks inserted.
func (s Stats) Total() int {
	return s.SizeChecks + s.CounterChecks
}

// rewriter holds per-file rewriting state.
type rewriter struct {
	fset       *token.FileSet
	stats      Stats
	counterSeq int
}

func newRewriter(fset *token.FileSet) *rewriter {
	return &rewriter{fset: fset}
}

// rewriteFile rewrites every function body in the file, function literals
// included. Bodies are collected before any rewriting so that wrapping a
// loop cannot cause a body to be visited twice.
func (r *rewriter) rewriteFile(file *ast.File) error {
	var bodies []*ast.BlockStmt
	ast.Inspect(file, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.FuncDecl:
			if n.Body != nil {
				bodies = append(bodies, n.Body)
			}
		case *ast.FuncLit:
			bodies = append(bodies, n.Body)
		}
		return true
	})

	for _, body := range bodies {
		// A goto can jump backward over an injected counter declaration,
		// which does not compile. Refuse such functions outright.
		if pos, hazard := gotoHazard(body); hazard {
			return NewRewriteErrorWithSuggestion(r.fset, pos,
				"cannot insert loop counters in a function that mixes goto with loops",
				"guard this function's loops manually with guard.CheckCount, or restructure the goto")
		}
		body.List = r.rewriteStmts(body.List)
	}
	return nil
}

// gotoHazard reports whether the body contains both a goto statement and a
// loop. Function literal bodies are rewritten independently and do not
// count.
func gotoHazard(body *ast.BlockStmt) (token.Pos, bool) {
	var gotoPos token.Pos
	hasGoto := false
	hasLoop := false
	ast.Inspect(body, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.FuncLit:
			return false
		case *ast.BranchStmt:
			if n.Tok == token.GOTO && !hasGoto {
				hasGoto = true
				gotoPos = n.Pos()
			}
		case *ast.ForStmt, *ast.RangeStmt:
			hasLoop = true
		}
		return true
	})
	return gotoPos, hasGoto && hasLoop
}

// rewriteStmts rewrites a statement list. Loop statements may expand into
// multiple statements (counter declaration plus loop, or an if wrapper), so
// the result is a fresh slice.
func (r *rewriter) rewriteStmts(stmts []ast.Stmt) []ast.Stmt {
	out := make([]ast.Stmt, 0, len(stmts))
	for _, stmt := range stmts {
		out = append(out, r.rewriteStmt(stmt)...)
	}
	return out
}

// rewriteStmt rewrites a single statement, recursing into every nested
// statement list except function literal bodies (handled by rewriteFile).
func (r *rewriter) rewriteStmt(stmt ast.Stmt) []ast.Stmt {
	switch s := stmt.(type) {
	case *ast.ForStmt:
		return r.rewriteFor(s, false)
	case *ast.RangeStmt:
		return r.rewriteRange(s)
	case *ast.LabeledStmt:
		return r.rewriteLabeled(s)
	case *ast.BlockStmt:
		s.List = r.rewriteStmts(s.List)
	case *ast.IfStmt:
		r.rewriteIf(s)
	case *ast.SwitchStmt:
		r.rewriteCaseBodies(s.Body)
	case *ast.TypeSwitchStmt:
		r.rewriteCaseBodies(s.Body)
	case *ast.SelectStmt:
		r.rewriteCommBodies(s.Body)
	}
	return []ast.Stmt{stmt}
}

// rewriteIf recurses into both branches. An if whose condition is already a
// size guard marks its wrapped loops as instrumented.
func (r *rewriter) rewriteIf(s *ast.IfStmt) {
	if isSizeGuard(s.Cond) {
		var list []ast.Stmt
		for _, inner := range s.Body.List {
			if loop, ok := inner.(*ast.ForStmt); ok {
				r.stats.LoopsSkipped++
				loop.Body.List = r.rewriteStmts(loop.Body.List)
				list = append(list, loop)
				continue
			}
			list = append(list, r.rewriteStmt(inner)...)
		}
		s.Body.List = list
	} else {
		s.Body.List = r.rewriteStmts(s.Body.List)
	}

	switch e := s.Else.(type) {
	case *ast.BlockStmt:
		e.List = r.rewriteStmts(e.List)
	case *ast.IfStmt:
		r.rewriteIf(e)
	}
}

func (r *rewriter) rewriteCaseBodies(body *ast.BlockStmt) {
	for _, stmt := range body.List {
		if clause, ok := stmt.(*ast.CaseClause); ok {
			clause.Body = r.rewriteStmts(clause.Body)
		}
	}
}

func (r *rewriter) rewriteCommBodies(body *ast.BlockStmt) {
	for _, stmt := range body.List {
		if clause, ok := stmt.(*ast.CommClause); ok {
			clause.Body = r.rewriteStmts(clause.Body)
		}
	}
}

// rewriteFor instruments a for statement. Counted loops with a recognizable
// bound get the pre-check form; everything else gets a counter. Labeled
// loops are forced to the counter form so the label stays on the for.
func (r *rewriter) rewriteFor(s *ast.ForStmt, labeled bool) []ast.Stmt {
	if hasCounterCheck(s.Body) {
		r.stats.LoopsSkipped++
		rest := r.rewriteStmts(s.Body.List[1:])
		s.Body.List = append(s.Body.List[:1:1], rest...)
		return []ast.Stmt{s}
	}

	name := r.loopName(s.Pos())
	s.Body.List = r.rewriteStmts(s.Body.List)

	if !labeled {
		if bound, ok := countedBound(s); ok {
			r.stats.SizeChecks++
			return []ast.Stmt{r.sizeGuard(bound, name, s)}
		}
	}

	counter := r.nextCounterName()
	s.Body.List = append([]ast.Stmt{counterCheck(counter, name)}, s.Body.List...)
	r.stats.CounterChecks++
	return []ast.Stmt{counterDecl(counter), s}
}

// rewriteRange instruments a range statement with the counter form. Range
// bounds (map sizes, channel drains) are not knowable up front.
func (r *rewriter) rewriteRange(s *ast.RangeStmt) []ast.Stmt {
	if hasCounterCheck(s.Body) {
		r.stats.LoopsSkipped++
		rest := r.rewriteStmts(s.Body.List[1:])
		s.Body.List = append(s.Body.List[:1:1], rest...)
		return []ast.Stmt{s}
	}

	name := r.loopName(s.Pos())
	s.Body.List = r.rewriteStmts(s.Body.List)

	counter := r.nextCounterName()
	s.Body.List = append([]ast.Stmt{counterCheck(counter, name)}, s.Body.List...)
	r.stats.CounterChecks++
	return []ast.Stmt{counterDecl(counter), s}
}

// rewriteLabeled instruments a labeled loop while keeping the label attached
// to the loop statement itself. Counter declarations land before the label.
func (r *rewriter) rewriteLabeled(s *ast.LabeledStmt) []ast.Stmt {
	switch inner := s.Stmt.(type) {
	case *ast.ForStmt:
		return reattachLabel(s, r.rewriteFor(inner, true))
	case *ast.RangeStmt:
		return reattachLabel(s, r.rewriteRange(inner))
	default:
		// Labeled non-loop statements never expand.
		rewritten := r.rewriteStmt(s.Stmt)
		s.Stmt = rewritten[len(rewritten)-1]
		return []ast.Stmt{s}
	}
}

// reattachLabel puts the label back on the loop, which the loop rewriters
// always return as the last statement.
func reattachLabel(s *ast.LabeledStmt, stmts []ast.Stmt) []ast.Stmt {
	s.Stmt = stmts[len(stmts)-1]
	out := make([]ast.Stmt, 0, len(stmts))
	out = append(out, stmts[:len(stmts)-1]...)
	return append(out, s)
}

// loopName builds the diagnostic label for a loop: "file.go:line".
func (r *rewriter) loopName(pos token.Pos) string {
	p := r.fset.Position(pos)
	return fmt.Sprintf("%s:%d", filepath.Base(p.Filename), p.Line)
}

// nextCounterName returns a fresh per-loop counter identifier. A file-wide
// sequence keeps names unique regardless of nesting.
func (r *rewriter) nextCounterName() string {
	r.counterSeq++
	return fmt.Sprintf("loopguardCount%d", r.counterSeq)
}

// GetStats returns the rewriting statistics.
func (r *rewriter) GetStats() Stats {
	return r.stats
}

// countedBound recognizes the canonical counted loop
//
//	for i := 0; i < bound; i++
//
// and returns the bound expression. The bound must be side-effect free
// because the generated pre-check evaluates it a second time.
func countedBound(loop *ast.ForStmt) (ast.Expr, bool) {
	if loop.Init == nil || loop.Cond == nil || loop.Post == nil {
		return nil, false
	}

	assign, ok := loop.Init.(*ast.AssignStmt)
	if !ok || assign.Tok != token.DEFINE || len(assign.Lhs) != 1 || len(assign.Rhs) != 1 {
		return nil, false
	}
	idx, ok := assign.Lhs[0].(*ast.Ident)
	if !ok {
		return nil, false
	}
	zero, ok := assign.Rhs[0].(*ast.BasicLit)
	if !ok || zero.Kind != token.INT || zero.Value != "0" {
		return nil, false
	}

	cond, ok := loop.Cond.(*ast.BinaryExpr)
	if !ok || cond.Op != token.LSS {
		return nil, false
	}
	condIdx, ok := cond.X.(*ast.Ident)
	if !ok || condIdx.Name != idx.Name {
		return nil, false
	}
	if !isSideEffectFree(cond.Y) {
		return nil, false
	}

	post, ok := loop.Post.(*ast.IncDecStmt)
	if !ok || post.Tok != token.INC {
		return nil, false
	}
	postIdx, ok := post.X.(*ast.Ident)
	if !ok || postIdx.Name != idx.Name {
		return nil, false
	}

	return cond.Y, true
}

// isSideEffectFree reports whether evaluating the expression twice is safe.
// Identifiers, integer literals, selector chains, and len/cap of any of
// those qualify. Anything else falls back to the counter form.
func isSideEffectFree(expr ast.Expr) bool {
	switch e := expr.(type) {
	case *ast.Ident:
		return true
	case *ast.BasicLit:
		return e.Kind == token.INT
	case *ast.ParenExpr:
		return isSideEffectFree(e.X)
	case *ast.SelectorExpr:
		return isSideEffectFree(e.X)
	case *ast.CallExpr:
		fn, ok := e.Fun.(*ast.Ident)
		if !ok || (fn.Name != "len" && fn.Name != "cap") {
			return false
		}
		return len(e.Args) == 1 && isSideEffectFree(e.Args[0])
	default:
		return false
	}
}

// hasCounterCheck reports whether the loop body already starts with a
// guard.CheckCount check.
func hasCounterCheck(body *ast.BlockStmt) bool {
	if body == nil || len(body.List) == 0 {
		return false
	}
	ifStmt, ok := body.List[0].(*ast.IfStmt)
	if !ok {
		return false
	}
	return isGuardCall(ifStmt.Cond, "CheckCount")
}

// isSizeGuard reports whether the condition is a negated guard.CheckSize
// call, the wrapper produced by the pre-check form.
func isSizeGuard(cond ast.Expr) bool {
	unary, ok := cond.(*ast.UnaryExpr)
	if !ok || unary.Op != token.NOT {
		return false
	}
	return isGuardCall(unary.X, "CheckSize")
}

func isGuardCall(expr ast.Expr, fn string) bool {
	call, ok := expr.(*ast.CallExpr)
	if !ok {
		return false
	}
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok {
		return false
	}
	ident, ok := sel.X.(*ast.Ident)
	if !ok {
		return false
	}
	return ident.Name == GuardPackageAlias && sel.Sel.Name == fn
}

// sizeGuard builds: if !guard.CheckSize(uint64(bound), "name") { loop }
func (r *rewriter) sizeGuard(bound ast.Expr, name string, loop *ast.ForStmt) *ast.IfStmt {
	call := &ast.CallExpr{
		Fun: guardSelector("CheckSize"),
		Args: []ast.Expr{
			&ast.CallExpr{
				Fun:  ast.NewIdent("uint64"),
				Args: []ast.Expr{bound},
			},
			stringLit(name),
		},
	}
	return &ast.IfStmt{
		Cond: &ast.UnaryExpr{Op: token.NOT, X: call},
		Body: &ast.BlockStmt{List: []ast.Stmt{loop}},
	}
}

// counterDecl builds: var <counter> uint64
func counterDecl(counter string) ast.Stmt {
	return &ast.DeclStmt{
		Decl: &ast.GenDecl{
			Tok: token.VAR,
			Specs: []ast.Spec{
				&ast.ValueSpec{
					Names: []*ast.Ident{ast.NewIdent(counter)},
					Type:  ast.NewIdent("uint64"),
				},
			},
		},
	}
}

// counterCheck builds: if guard.CheckCount(&<counter>, "name") { break }
func counterCheck(counter, name string) *ast.IfStmt {
	call := &ast.CallExpr{
		Fun: guardSelector("CheckCount"),
		Args: []ast.Expr{
			&ast.UnaryExpr{Op: token.AND, X: ast.NewIdent(counter)},
			stringLit(name),
		},
	}
	return &ast.IfStmt{
		Cond: call,
		Body: &ast.BlockStmt{
			List: []ast.Stmt{&ast.BranchStmt{Tok: token.BREAK}},
		},
	}
}

func guardSelector(fn string) *ast.SelectorExpr {
	return &ast.SelectorExpr{
		X:   ast.NewIdent(GuardPackageAlias),
		Sel: ast.NewIdent(fn),
	}
}

func stringLit(s string) *ast.BasicLit {
	return &ast.BasicLit{Kind: token.STRING, Value: fmt.Sprintf("%q", s)}
}
