// Package interpreter turns command strings into executor calls.
//
// The grammar is fixed. The first token selects a verb; verbs that act on
// several kinds of object use the second token to pick the form. Anything else
// is rejected rather than guessed at.
package interpreter

import (
	"context"
	"runtime/debug"
	"sort"
	"strings"

	"minidbms/catalog"
	"minidbms/common"
	"minidbms/executor"
	"minidbms/logger"
)

// Session is the per-connection state: the database chosen with USE.
type Session struct {
	ID       string
	database string
}

func NewSession(id string) *Session {
	return &Session{ID: id}
}

// Database returns the selected database, or "" before any USE.
func (s *Session) Database() string {
	return s.database
}

type handler func(ctx context.Context, in *Interpreter, s *Session, p *parser) (executor.Result, error)

// forms maps verb -> object keyword -> handler. An empty object keyword means
// the verb takes no object.
var forms = map[string]map[string]handler{
	"SHOW": {
		"DATABASES": showDatabases,
		"TABLES":    showTables,
	},
	"USE": {"": use},
	"CREATE": {
		"DATABASE": createDatabase,
		"TABLE":    createTable,
		"INDEX":    createIndex,
		"UNIQUE":   createUniqueIndex,
	},
	"DROP": {
		"DATABASE": dropDatabase,
		"TABLE":    dropTable,
	},
	"INSERT":   {"INTO": insert},
	"DELETE":   {"FROM": deleteRecord},
	"SELECT":   {"": selectRecord},
	"DESCRIBE": {"": describeTable},
	"DESC":     {"": describeTable},
}

type Interpreter struct {
	exec *executor.Executor
}

func New(exec *executor.Executor) *Interpreter {
	return &Interpreter{exec: exec}
}

// Execute runs one command for a session. It never panics: internal faults
// become an InternalError result so the connection stays usable.
func (in *Interpreter) Execute(ctx context.Context, s *Session, command string) (res executor.Result) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("command panicked", "session", s.ID, "cmd", command, "panic", r, "stack", string(debug.Stack()))
			res = executor.Result{Kind: common.KindInternal, Message: "Internal error while executing command."}
		}
	}()

	res, err := in.dispatch(ctx, s, command)
	if err != nil {
		return executor.Result{Kind: common.KindOf(err), Message: err.Error()}
	}
	return res
}

func (in *Interpreter) dispatch(ctx context.Context, s *Session, command string) (executor.Result, error) {
	toks, err := Tokenize(command)
	if err != nil {
		return executor.Result{}, common.Errorf(common.KindInvalidCommand, "Invalid syntax: %v", err)
	}
	p := &parser{toks: toks}

	first := p.next()
	if first.Type == TokenEOF {
		return executor.Result{}, common.Errorf(common.KindInvalidCommand, "Invalid command.")
	}
	verb := strings.ToUpper(first.Value)
	byObject, ok := forms[verb]
	if first.Type != TokenIdent || !ok {
		return executor.Result{}, common.Errorf(common.KindUnknownCommand, "Unknown command: %s", first.Value)
	}

	if h, ok := byObject[""]; ok {
		return h(ctx, in, s, p)
	}
	obj := p.next()
	if h, ok := byObject[strings.ToUpper(obj.Value)]; ok && obj.Type == TokenIdent {
		return h(ctx, in, s, p)
	}
	return executor.Result{}, common.Errorf(common.KindInvalidCommand,
		"Invalid command: %s must be followed by %s.", verb, objectList(byObject))
}

func objectList(byObject map[string]handler) string {
	names := make([]string, 0, len(byObject))
	for k := range byObject {
		names = append(names, k)
	}
	sort.Strings(names)
	return strings.Join(names, " or ")
}

func showDatabases(ctx context.Context, in *Interpreter, s *Session, p *parser) (executor.Result, error) {
	if err := p.end(); err != nil {
		return executor.Result{}, err
	}
	return in.exec.ListDatabases(ctx), nil
}

func showTables(ctx context.Context, in *Interpreter, s *Session, p *parser) (executor.Result, error) {
	if err := p.end(); err != nil {
		return executor.Result{}, err
	}
	return in.exec.ListTables(ctx, s.database), nil
}

func use(ctx context.Context, in *Interpreter, s *Session, p *parser) (executor.Result, error) {
	name, err := p.ident("database")
	if err != nil {
		return executor.Result{}, err
	}
	if err := p.end(); err != nil {
		return executor.Result{}, err
	}
	res := in.exec.DatabaseExists(ctx, name)
	if res.OK() {
		s.database = name
	}
	return res, nil
}

func createDatabase(ctx context.Context, in *Interpreter, s *Session, p *parser) (executor.Result, error) {
	name, err := p.ident("database")
	if err != nil {
		return executor.Result{}, err
	}
	if err := p.end(); err != nil {
		return executor.Result{}, err
	}
	return in.exec.CreateDatabase(ctx, name), nil
}

func dropDatabase(ctx context.Context, in *Interpreter, s *Session, p *parser) (executor.Result, error) {
	name, err := p.ident("database")
	if err != nil {
		return executor.Result{}, err
	}
	if err := p.end(); err != nil {
		return executor.Result{}, err
	}
	res := in.exec.DropDatabase(ctx, name)
	if res.OK() && s.database == name {
		s.database = ""
	}
	return res, nil
}

func createTable(ctx context.Context, in *Interpreter, s *Session, p *parser) (executor.Result, error) {
	name, err := p.ident("table")
	if err != nil {
		return executor.Result{}, err
	}
	def := executor.TableDef{Name: name}
	if err := p.tableBody(&def); err != nil {
		return executor.Result{}, err
	}
	if err := p.end(); err != nil {
		return executor.Result{}, err
	}
	return in.exec.CreateTable(ctx, s.database, def), nil
}

func dropTable(ctx context.Context, in *Interpreter, s *Session, p *parser) (executor.Result, error) {
	name, err := p.ident("table")
	if err != nil {
		return executor.Result{}, err
	}
	if err := p.end(); err != nil {
		return executor.Result{}, err
	}
	return in.exec.DropTable(ctx, s.database, name), nil
}

func createUniqueIndex(ctx context.Context, in *Interpreter, s *Session, p *parser) (executor.Result, error) {
	if err := p.expectKeyword("INDEX"); err != nil {
		return executor.Result{}, err
	}
	return parseIndex(ctx, in, s, p, true)
}

func createIndex(ctx context.Context, in *Interpreter, s *Session, p *parser) (executor.Result, error) {
	return parseIndex(ctx, in, s, p, false)
}

// parseIndex handles "<name> ON <table> (<column>) [UNIQUE] [USING <kind>]".
func parseIndex(ctx context.Context, in *Interpreter, s *Session, p *parser, unique bool) (executor.Result, error) {
	def := executor.IndexDef{Unique: unique, Kind: catalog.IndexBTree}
	var err error
	if def.Name, err = p.ident("index"); err != nil {
		return executor.Result{}, err
	}
	if err := p.expectKeyword("ON"); err != nil {
		return executor.Result{}, err
	}
	if def.Table, err = p.ident("table"); err != nil {
		return executor.Result{}, err
	}
	cols, err := p.identList("column")
	if err != nil {
		return executor.Result{}, err
	}
	if len(cols) != 1 {
		return executor.Result{}, invalid("an index covers exactly one column")
	}
	def.Column = cols[0]

	if p.keyword("UNIQUE") {
		def.Unique = true
	}
	if p.keyword("USING") {
		kindName, err := p.ident("index kind")
		if err != nil {
			return executor.Result{}, err
		}
		kind, ok := catalog.ParseIndexKind(kindName)
		if !ok {
			return executor.Result{}, invalid("unknown index kind %s", kindName)
		}
		def.Kind = kind
	}
	if err := p.end(); err != nil {
		return executor.Result{}, err
	}
	return in.exec.CreateIndex(ctx, s.database, def), nil
}

func insert(ctx context.Context, in *Interpreter, s *Session, p *parser) (executor.Result, error) {
	table, err := p.ident("table")
	if err != nil {
		return executor.Result{}, err
	}
	fields, err := p.fields()
	if err != nil {
		return executor.Result{}, err
	}
	if err := p.end(); err != nil {
		return executor.Result{}, err
	}
	return in.exec.Insert(ctx, s.database, table, fields), nil
}

func deleteRecord(ctx context.Context, in *Interpreter, s *Session, p *parser) (executor.Result, error) {
	table, err := p.ident("table")
	if err != nil {
		return executor.Result{}, err
	}
	key, err := p.keyCondition()
	if err != nil {
		return executor.Result{}, err
	}
	if err := p.end(); err != nil {
		return executor.Result{}, err
	}
	return in.exec.Delete(ctx, s.database, table, key), nil
}

// selectRecord handles "SELECT * FROM <table> WHERE key = <value>".
func selectRecord(ctx context.Context, in *Interpreter, s *Session, p *parser) (executor.Result, error) {
	if err := p.expect(TokenStar); err != nil {
		return executor.Result{}, err
	}
	if err := p.expectKeyword("FROM"); err != nil {
		return executor.Result{}, err
	}
	table, err := p.ident("table")
	if err != nil {
		return executor.Result{}, err
	}
	key, err := p.keyCondition()
	if err != nil {
		return executor.Result{}, err
	}
	if err := p.end(); err != nil {
		return executor.Result{}, err
	}
	return in.exec.Get(ctx, s.database, table, key), nil
}

func describeTable(ctx context.Context, in *Interpreter, s *Session, p *parser) (executor.Result, error) {
	table, err := p.ident("table")
	if err != nil {
		return executor.Result{}, err
	}
	if err := p.end(); err != nil {
		return executor.Result{}, err
	}
	return in.exec.DescribeTable(ctx, s.database, table), nil
}
