package interpreter

import (
	"strconv"
	"strings"

	"minidbms/catalog"
	"minidbms/codec"
	"minidbms/common"
	"minidbms/executor"
)

// parser walks the tokens of one command. Every method fails with an
// InvalidCommand error describing what was expected.
type parser struct {
	toks []Token
	pos  int
}

func (p *parser) peek() Token {
	if p.pos >= len(p.toks) {
		return Token{Type: TokenEOF}
	}
	return p.toks[p.pos]
}

func (p *parser) next() Token {
	t := p.peek()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

func invalid(format string, args ...any) error {
	return common.Errorf(common.KindInvalidCommand, "Invalid syntax: "+format, args...)
}

func describe(t Token) string {
	if t.Type == TokenEOF {
		return t.Type.String()
	}
	return strconv.Quote(t.Value)
}

// keyword consumes the next token if it is the given keyword.
func (p *parser) keyword(kw string) bool {
	t := p.peek()
	if t.Type == TokenIdent && strings.EqualFold(t.Value, kw) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expectKeyword(kw string) error {
	if !p.keyword(kw) {
		return invalid("expected %s, got %s", kw, describe(p.peek()))
	}
	return nil
}

func (p *parser) expect(tt TokenType) error {
	if t := p.next(); t.Type != tt {
		return invalid("expected %s, got %s", tt, describe(t))
	}
	return nil
}

func (p *parser) ident(what string) (string, error) {
	t := p.next()
	if t.Type != TokenIdent {
		return "", invalid("expected %s name, got %s", what, describe(t))
	}
	return t.Value, nil
}

// value accepts a number, a quoted string, a bare word, or a bare composite key.
func (p *parser) value() (string, error) {
	t := p.next()
	switch t.Type {
	case TokenNumber, TokenString, TokenIdent, TokenKey:
		return t.Value, nil
	}
	return "", invalid("expected a value, got %s", describe(t))
}

// end accepts an optional trailing ';' and requires nothing after it.
func (p *parser) end() error {
	if p.peek().Type == TokenSemicolon {
		p.pos++
	}
	if t := p.peek(); t.Type != TokenEOF {
		return invalid("unexpected %s", describe(t))
	}
	return nil
}

// list parses "(" item {"," item} ")".
func (p *parser) list(item func() (string, error)) ([]string, error) {
	if err := p.expect(TokenLParen); err != nil {
		return nil, err
	}
	var out []string
	for {
		v, err := item()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		t := p.next()
		if t.Type == TokenRParen {
			return out, nil
		}
		if t.Type != TokenComma {
			return nil, invalid("expected ',' or ')', got %s", describe(t))
		}
	}
}

func (p *parser) identList(what string) ([]string, error) {
	return p.list(func() (string, error) { return p.ident(what) })
}

// tableBody parses the parenthesized definitions of CREATE TABLE. Commas are
// only separators at the top level of the body.
func (p *parser) tableBody(def *executor.TableDef) error {
	if err := p.expect(TokenLParen); err != nil {
		return err
	}
	for {
		if err := p.definition(def); err != nil {
			return err
		}
		t := p.next()
		if t.Type == TokenRParen {
			return nil
		}
		if t.Type != TokenComma {
			return invalid("expected ',' or ')' in table definition, got %s", describe(t))
		}
	}
}

func (p *parser) definition(def *executor.TableDef) error {
	switch {
	case p.keyword("PRIMARY"):
		if err := p.expectKeyword("KEY"); err != nil {
			return err
		}
		cols, err := p.identList("column")
		if err != nil {
			return err
		}
		def.PrimaryKey = append(def.PrimaryKey, cols...)
		return nil

	case p.keyword("FOREIGN"):
		if err := p.expectKeyword("KEY"); err != nil {
			return err
		}
		cols, err := p.identList("column")
		if err != nil {
			return err
		}
		if len(cols) != 1 {
			return invalid("FOREIGN KEY takes exactly one column")
		}
		if err := p.expectKeyword("REFERENCES"); err != nil {
			return err
		}
		fk, err := p.reference(cols[0])
		if err != nil {
			return err
		}
		def.ForeignKeys = append(def.ForeignKeys, fk)
		return nil
	}
	return p.column(def)
}

// reference parses "table(column)" after REFERENCES.
func (p *parser) reference(local string) (catalog.ForeignKey, error) {
	table, err := p.ident("table")
	if err != nil {
		return catalog.ForeignKey{}, err
	}
	cols, err := p.identList("column")
	if err != nil {
		return catalog.ForeignKey{}, err
	}
	if len(cols) != 1 {
		return catalog.ForeignKey{}, invalid("REFERENCES takes exactly one column")
	}
	return catalog.ForeignKey{Column: local, RefTable: table, RefColumn: cols[0]}, nil
}

// column parses "name TYPE[(len)] [NOT NULL|NULL] [PRIMARY [KEY]] [REFERENCES t(c)]".
func (p *parser) column(def *executor.TableDef) error {
	name, err := p.ident("column")
	if err != nil {
		return err
	}
	typeName, err := p.ident("type")
	if err != nil {
		return err
	}
	colType, ok := catalog.ParseColumnType(typeName)
	if !ok {
		return invalid("unknown type %s for column %s", typeName, name)
	}
	col := catalog.Column{Name: name, Type: colType, Nullable: true}

	if p.peek().Type == TokenLParen {
		p.pos++
		t := p.next()
		n, err := strconv.Atoi(t.Value)
		if t.Type != TokenNumber || err != nil || n <= 0 {
			return invalid("length of column %s must be a positive integer", name)
		}
		if err := p.expect(TokenRParen); err != nil {
			return err
		}
		col.Length = n
	}

	for {
		switch {
		case p.keyword("NOT"):
			if err := p.expectKeyword("NULL"); err != nil {
				return err
			}
			col.Nullable = false
		case p.keyword("NULL"):
			col.Nullable = true
		case p.keyword("PRIMARY"):
			p.keyword("KEY")
			def.PrimaryKey = append(def.PrimaryKey, name)
		case p.keyword("REFERENCES"):
			fk, err := p.reference(name)
			if err != nil {
				return err
			}
			def.ForeignKeys = append(def.ForeignKeys, fk)
		default:
			def.Columns = append(def.Columns, col)
			return nil
		}
	}
}

// fields pairs "(cols) VALUES (vals)" in the order given.
func (p *parser) fields() ([]codec.Field, error) {
	cols, err := p.identList("column")
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("VALUES"); err != nil {
		return nil, err
	}
	vals, err := p.list(p.value)
	if err != nil {
		return nil, err
	}
	if len(cols) != len(vals) {
		return nil, invalid("%d columns but %d values", len(cols), len(vals))
	}
	fields := make([]codec.Field, len(cols))
	for i := range cols {
		fields[i] = codec.Field{Name: cols[i], Value: vals[i]}
	}
	return fields, nil
}

// keyCondition parses "WHERE key = <value>". Only the composite key can be
// addressed.
func (p *parser) keyCondition() (string, error) {
	if err := p.expectKeyword("WHERE"); err != nil {
		return "", err
	}
	col, err := p.ident("column")
	if err != nil {
		return "", err
	}
	if !strings.EqualFold(col, "key") {
		return "", common.Errorf(common.KindInvalidCommand, "Error: Only the primary key can be used in WHERE. Use WHERE key = <value>.")
	}
	if err := p.expect(TokenEqual); err != nil {
		return "", err
	}
	v, err := p.value()
	if err != nil {
		return "", err
	}
	if p.keyword("AND") || p.keyword("OR") {
		return "", common.Errorf(common.KindInvalidCommand, "Error: Multiple conditions not allowed. Use only the primary key in WHERE.")
	}
	return v, nil
}
