package interpreter

import (
	"fmt"

	"github.com/timtadh/lexmachine"
	"github.com/timtadh/lexmachine/machines"
)

type TokenType int

const (
	TokenIdent TokenType = iota
	TokenNumber
	TokenString
	TokenKey
	TokenLParen
	TokenRParen
	TokenComma
	TokenEqual
	TokenSemicolon
	TokenStar
	TokenEOF

	tokenWhitespace
)

var tokenNames = map[TokenType]string{
	TokenIdent:     "identifier",
	TokenNumber:    "number",
	TokenString:    "string",
	TokenKey:       "composite key",
	TokenLParen:    "'('",
	TokenRParen:    "')'",
	TokenComma:     "','",
	TokenEqual:     "'='",
	TokenSemicolon: "';'",
	TokenStar:      "'*'",
	TokenEOF:       "end of command",
}

func (t TokenType) String() string {
	return tokenNames[t]
}

type Token struct {
	Type  TokenType
	Value string
	Pos   int // byte offset in the command
}

var tokenRules = []struct {
	Type  TokenType
	Regex string
}{
	{TokenIdent, `[a-zA-Z_][a-zA-Z0-9_]*`},
	{TokenNumber, `-?[0-9]+(\.[0-9]+)?`},
	// Unquoted composite keys such as 1#2 in WHERE key = 1#2.
	{TokenKey, `[a-zA-Z0-9_.\-]+(#[a-zA-Z0-9_.\-]+)+`},
	{TokenString, `'[^']*'`},
	{TokenString, `"[^"]*"`},
	{TokenLParen, `\(`},
	{TokenRParen, `\)`},
	{TokenComma, `,`},
	{TokenEqual, `=`},
	{TokenSemicolon, `;`},
	{TokenStar, `\*`},
	{tokenWhitespace, `( |\t|\n|\r)+`},
}

var lexMach = lexmachine.NewLexer()

func init() {
	for _, rule := range tokenRules {
		rule := rule
		lexMach.Add([]byte(rule.Regex), func(s *lexmachine.Scanner, m *machines.Match) (interface{}, error) {
			if rule.Type == tokenWhitespace {
				return nil, nil
			}
			value := string(m.Bytes)
			if rule.Type == TokenString {
				value = value[1 : len(value)-1]
			}
			return Token{Type: rule.Type, Value: value, Pos: m.TC}, nil
		})
	}
	if err := lexMach.Compile(); err != nil {
		panic(err)
	}
}

// Tokenize splits a command into tokens. Whitespace is dropped; anything the
// grammar has no token for is an error naming its offset.
func Tokenize(command string) ([]Token, error) {
	scanner, err := lexMach.Scanner([]byte(command))
	if err != nil {
		return nil, err
	}
	var tokens []Token
	for tok, err, eos := scanner.Next(); !eos; tok, err, eos = scanner.Next() {
		if ui, ok := err.(*machines.UnconsumedInput); ok {
			return nil, fmt.Errorf("unexpected input %q at offset %d", snippet(command, ui.StartTC), ui.StartTC)
		}
		if err != nil {
			return nil, err
		}
		if tok == nil {
			continue
		}
		tokens = append(tokens, tok.(Token))
	}
	return tokens, nil
}

func snippet(s string, at int) string {
	if at < 0 || at >= len(s) {
		return ""
	}
	return s[at : at+1]
}
