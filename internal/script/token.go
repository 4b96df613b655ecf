// Package script tokenizes and parses the embedded script block into a statement-level
// AST. Block boundaries come from brace-depth counting over tokens, so braces and
// keywords inside string literals or comments never affect structure.
package script

import (
	"fmt"

	"github.com/recera/mxc/internal/diag"
)

// TokenType represents the type of a lexical token.
type TokenType int

const (
	// Special tokens
	TokenEOF     TokenType = iota // end of input
	TokenComment                  // comment, skipped by the parser

	// Literals
	TokenIdent  // identifier
	TokenNumber // numeric literal: 1, 0xff, 1.5e3
	TokenString // string literal: "..." or '...'
	TokenRegexp // regular expression literal: /ab+c/g

	// Punctuation
	TokenLBrace    // {
	TokenRBrace    // }
	TokenLParen    // (
	TokenRParen    // )
	TokenLBracket  // [
	TokenRBracket  // ]
	TokenSemicolon // ;
	TokenComma     // ,
	TokenDot       // .
	TokenColon     // :
	TokenQuestion  // ?
	TokenEllipsis  // ...
	TokenOperator  // any other operator: = + == && ...

	// Structural keywords
	TokenIf        // if
	TokenElse      // else
	TokenFor       // for
	TokenWhile     // while
	TokenDo        // do
	TokenReturn    // return
	TokenVar       // var
	TokenLet       // let
	TokenConst     // const
	TokenFunction  // function
	TokenPublic    // public
	TokenPrivate   // private
	TokenProtected // protected
	TokenInternal  // internal
	TokenStatic    // static
	TokenOverride  // override
	TokenFinal     // final
	TokenAsync     // async
	TokenImport    // import
	TokenBreak     // break
	TokenContinue  // continue
	TokenThrow     // throw
	TokenIn        // in

	// TokenKeyword is any other reserved word (this, new, true, null, switch, ...)
	TokenKeyword
)

var tokenNames = map[TokenType]string{
	TokenEOF:       "end of script",
	TokenComment:   "comment",
	TokenIdent:     "identifier",
	TokenNumber:    "number",
	TokenString:    "string",
	TokenRegexp:    "regexp",
	TokenLBrace:    "'{'",
	TokenRBrace:    "'}'",
	TokenLParen:    "'('",
	TokenRParen:    "')'",
	TokenLBracket:  "'['",
	TokenRBracket:  "']'",
	TokenSemicolon: "';'",
	TokenComma:     "','",
	TokenDot:       "'.'",
	TokenColon:     "':'",
	TokenQuestion:  "'?'",
	TokenEllipsis:  "'...'",
	TokenOperator:  "operator",
	TokenKeyword:   "keyword",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	for word, typ := range keywords {
		if typ == t {
			return "'" + word + "'"
		}
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

var keywords = map[string]TokenType{
	"if":        TokenIf,
	"else":      TokenElse,
	"for":       TokenFor,
	"while":     TokenWhile,
	"do":        TokenDo,
	"return":    TokenReturn,
	"var":       TokenVar,
	"let":       TokenLet,
	"const":     TokenConst,
	"function":  TokenFunction,
	"public":    TokenPublic,
	"private":   TokenPrivate,
	"protected": TokenProtected,
	"internal":  TokenInternal,
	"static":    TokenStatic,
	"override":  TokenOverride,
	"final":     TokenFinal,
	"async":     TokenAsync,
	"import":    TokenImport,
	"break":     TokenBreak,
	"continue":  TokenContinue,
	"throw":     TokenThrow,
	"in":        TokenIn,
}

// reserved words that are not structural but can never name a field
var reserved = map[string]bool{
	"this": true, "super": true, "new": true, "delete": true, "typeof": true,
	"instanceof": true, "void": true, "as": true, "is": true,
	"true": true, "false": true, "null": true, "undefined": true, "NaN": true, "Infinity": true,
	"switch": true, "case": true, "default": true, "try": true, "catch": true, "finally": true,
	"with": true, "class": true, "interface": true, "extends": true, "implements": true,
	"package": true, "namespace": true, "use": true, "include": true, "dynamic": true,
	"native": true, "await": true, "yield": true, "enum": true, "export": true,
}

// IsReserved reports whether word is a keyword or reserved word of the script language
func IsReserved(word string) bool {
	_, kw := keywords[word]
	return kw || reserved[word]
}

// IsLiteralWord reports whether word is a boolean, null or numeric constant
func IsLiteralWord(word string) bool {
	switch word {
	case "true", "false", "null", "undefined", "NaN", "Infinity":
		return true
	}
	return false
}

// Token is a lexical token with its document position
type Token struct {
	Type   TokenType
	Text   string
	Line   int
	Column int
	// Space is set when whitespace or a comment separates this token from the previous one
	Space bool
	// Newline is set when a line break separates this token from the previous one
	Newline bool
}

// Pos returns the token's document position
func (t Token) Pos() diag.Pos {
	return diag.Pos{Line: t.Line, Column: t.Column}
}

// Is reports whether the token is an identifier or reserved word with the given text
func (t Token) Is(word string) bool {
	return (t.Type == TokenIdent || t.Type == TokenKeyword) && t.Text == word
}

func (t Token) String() string {
	switch t.Type {
	case TokenEOF:
		return "end of script"
	case TokenIdent, TokenNumber, TokenString, TokenOperator, TokenKeyword:
		return fmt.Sprintf("%q", t.Text)
	}
	return t.Type.String()
}

// isModifier reports whether typ is a declaration modifier
func isModifier(typ TokenType) bool {
	switch typ {
	case TokenPublic, TokenPrivate, TokenProtected, TokenInternal,
		TokenStatic, TokenOverride, TokenFinal, TokenAsync:
		return true
	}
	return false
}

// endsOperand reports whether a token can end an expression operand; used to tell a
// division from a regexp literal and to detect statement ends at line breaks.
func endsOperand(t Token) bool {
	switch t.Type {
	case TokenIdent, TokenNumber, TokenString, TokenRegexp, TokenRParen, TokenRBracket, TokenRBrace:
		return true
	case TokenKeyword:
		return t.Text == "this" || t.Text == "super" || IsLiteralWord(t.Text)
	case TokenOperator:
		return t.Text == "++" || t.Text == "--"
	}
	return false
}
