package script

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/recera/mxc/internal/diag"
)

// operators ordered longest first so the lexer takes the longest match
var operators = []string{
	">>>=", "===", "!==", ">>>", "<<=", ">>=", "&&=", "||=",
	"==", "=>", "!=", "<=", ">=", "&&", "||", "++", "--", "+=", "-=", "*=", "/=", "%=",
	"&=", "|=", "^=", "<<", ">>", "::",
	"+", "-", "*", "/", "%", "=", "<", ">", "!", "~", "&", "|", "^", "@",
}

var punctuation = map[byte]TokenType{
	'{': TokenLBrace, '}': TokenRBrace,
	'(': TokenLParen, ')': TokenRParen,
	'[': TokenLBracket, ']': TokenRBracket,
	';': TokenSemicolon, ',': TokenComma,
	':': TokenColon, '?': TokenQuestion,
}

// Lexer turns script source into tokens
type Lexer struct {
	src    string
	pos    int
	line   int
	col    int
	tokens []Token
	errors diag.List

	space   bool
	newline bool
}

// NewLexer creates a lexer whose first character sits at base in the document
func NewLexer(src string, base diag.Pos) *Lexer {
	if base.Line == 0 {
		base.Line = 1
	}
	if base.Column == 0 {
		base.Column = 1
	}
	return &Lexer{src: src, line: base.Line, col: base.Column}
}

// Tokenize splits src into tokens. Comments are returned as TokenComment; the stream
// always ends with TokenEOF. An unterminated string or comment is a StructuralError
// that makes the whole block unusable.
func Tokenize(src string, base diag.Pos) ([]Token, diag.List) {
	l := NewLexer(src, base)
	l.run()
	return l.tokens, l.errors
}

func (l *Lexer) run() {
	for {
		l.skipWhitespace()
		if l.pos >= len(l.src) {
			l.emit(TokenEOF, "", l.line, l.col)
			return
		}

		line, col := l.line, l.col
		c := l.src[l.pos]

		switch {
		case strings.HasPrefix(l.src[l.pos:], "//"):
			l.lexLineComment(line, col)
		case strings.HasPrefix(l.src[l.pos:], "/*"):
			l.lexBlockComment(line, col)
		case c == '"' || c == '\'':
			l.lexString(c, line, col)
		case c == '/' && l.regexpAllowed():
			l.lexRegexp(line, col)
		case isDigit(c) || (c == '.' && l.pos+1 < len(l.src) && isDigit(l.src[l.pos+1])):
			l.lexNumber(line, col)
		case isIdentStart(l.firstRune()):
			l.lexIdent(line, col)
		default:
			l.lexPunct(line, col)
		}
	}
}

func (l *Lexer) emit(typ TokenType, text string, line, col int) {
	l.tokens = append(l.tokens, Token{
		Type:    typ,
		Text:    text,
		Line:    line,
		Column:  col,
		Space:   l.space,
		Newline: l.newline,
	})
	if typ == TokenComment {
		// a comment separates its neighbours like whitespace does
		l.space = true
		return
	}
	l.space = false
	l.newline = false
}

func (l *Lexer) lexLineComment(line, col int) {
	start := l.pos
	for l.pos < len(l.src) && l.src[l.pos] != '\n' {
		l.advance()
	}
	l.emit(TokenComment, l.src[start:l.pos], line, col)
}

func (l *Lexer) lexBlockComment(line, col int) {
	start := l.pos
	end := strings.Index(l.src[l.pos+2:], "*/")
	if end < 0 {
		l.errors.Errorf(diag.Pos{Line: line, Column: col}, "unterminated block comment")
		l.advanceTo(len(l.src))
	} else {
		l.advanceTo(l.pos + 2 + end + 2)
	}
	text := l.src[start:l.pos]
	if strings.Contains(text, "\n") {
		l.newline = true
	}
	l.emit(TokenComment, text, line, col)
}

func (l *Lexer) lexString(quote byte, line, col int) {
	start := l.pos
	l.advance()
	for {
		if l.pos >= len(l.src) || l.src[l.pos] == '\n' {
			l.errors.Errorf(diag.Pos{Line: line, Column: col}, "unterminated string literal")
			l.emit(TokenString, l.src[start:l.pos], line, col)
			return
		}
		c := l.src[l.pos]
		if c == '\\' {
			l.advance()
			if l.pos < len(l.src) {
				l.advance()
			}
			continue
		}
		l.advance()
		if c == quote {
			break
		}
	}
	l.emit(TokenString, l.src[start:l.pos], line, col)
}

// regexpAllowed reports whether a '/' starts a regexp literal rather than a division
func (l *Lexer) regexpAllowed() bool {
	last := l.lastSignificant()
	return last == nil || !endsOperand(*last)
}

func (l *Lexer) lastSignificant() *Token {
	for i := len(l.tokens) - 1; i >= 0; i-- {
		if l.tokens[i].Type != TokenComment {
			return &l.tokens[i]
		}
	}
	return nil
}

func (l *Lexer) lexRegexp(line, col int) {
	start := l.pos
	l.advance()
	inClass := false
	for {
		if l.pos >= len(l.src) || l.src[l.pos] == '\n' {
			l.errors.Errorf(diag.Pos{Line: line, Column: col}, "unterminated regular expression literal")
			l.emit(TokenRegexp, l.src[start:l.pos], line, col)
			return
		}
		c := l.src[l.pos]
		l.advance()
		switch {
		case c == '\\':
			if l.pos < len(l.src) {
				l.advance()
			}
		case c == '[':
			inClass = true
		case c == ']':
			inClass = false
		case c == '/' && !inClass:
			for l.pos < len(l.src) && isIdentPart(rune(l.src[l.pos])) {
				l.advance()
			}
			l.emit(TokenRegexp, l.src[start:l.pos], line, col)
			return
		}
	}
}

func (l *Lexer) lexNumber(line, col int) {
	start := l.pos
	if strings.HasPrefix(l.src[l.pos:], "0x") || strings.HasPrefix(l.src[l.pos:], "0X") {
		l.advanceTo(l.pos + 2)
		for l.pos < len(l.src) && isHexDigit(l.src[l.pos]) {
			l.advance()
		}
		l.emit(TokenNumber, l.src[start:l.pos], line, col)
		return
	}
	for l.pos < len(l.src) && (isDigit(l.src[l.pos]) || l.src[l.pos] == '.') {
		// stop before a '..' or '...' so ranges and spreads stay operators
		if l.src[l.pos] == '.' && (l.pos+1 >= len(l.src) || !isDigit(l.src[l.pos+1])) {
			break
		}
		l.advance()
	}
	if l.pos < len(l.src) && (l.src[l.pos] == 'e' || l.src[l.pos] == 'E') {
		next := l.pos + 1
		if next < len(l.src) && (l.src[next] == '+' || l.src[next] == '-') {
			next++
		}
		if next < len(l.src) && isDigit(l.src[next]) {
			l.advanceTo(next)
			for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
				l.advance()
			}
		}
	}
	l.emit(TokenNumber, l.src[start:l.pos], line, col)
}

func (l *Lexer) lexIdent(line, col int) {
	start := l.pos
	for l.pos < len(l.src) {
		r, size := l.peekRune()
		if !isIdentPart(r) {
			break
		}
		l.advanceTo(l.pos + size)
	}
	word := l.src[start:l.pos]
	switch {
	case keywords[word] != 0:
		l.emit(keywords[word], word, line, col)
	case reserved[word]:
		l.emit(TokenKeyword, word, line, col)
	default:
		l.emit(TokenIdent, word, line, col)
	}
}

func (l *Lexer) lexPunct(line, col int) {
	c := l.src[l.pos]

	if strings.HasPrefix(l.src[l.pos:], "...") {
		l.advanceTo(l.pos + 3)
		l.emit(TokenEllipsis, "...", line, col)
		return
	}
	if c == '.' {
		l.advance()
		l.emit(TokenDot, ".", line, col)
		return
	}
	// '::' must win over ':'
	if !strings.HasPrefix(l.src[l.pos:], "::") {
		if typ, ok := punctuation[c]; ok {
			l.advance()
			l.emit(typ, string(c), line, col)
			return
		}
	}
	for _, op := range operators {
		if strings.HasPrefix(l.src[l.pos:], op) {
			l.advanceTo(l.pos + len(op))
			l.emit(TokenOperator, op, line, col)
			return
		}
	}

	r, size := l.peekRune()
	l.errors.Errorf(diag.Pos{Line: line, Column: col}, "unexpected character %q", r)
	l.advanceTo(l.pos + size)
}

// Helper methods

func (l *Lexer) firstRune() rune {
	r, _ := l.peekRune()
	return r
}

func (l *Lexer) peekRune() (rune, int) {
	return utf8.DecodeRuneInString(l.src[l.pos:])
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.src) {
		r, size := l.peekRune()
		if !unicode.IsSpace(r) {
			return
		}
		l.space = true
		if r == '\n' {
			l.newline = true
		}
		l.advanceTo(l.pos + size)
	}
}

func (l *Lexer) advance() {
	if l.pos >= len(l.src) {
		return
	}
	c := l.src[l.pos]
	switch {
	case c == '\n':
		l.line++
		l.col = 1
	case !utf8.RuneStart(c):
	default:
		l.col++
	}
	l.pos++
}

func (l *Lexer) advanceTo(pos int) {
	for l.pos < pos && l.pos < len(l.src) {
		l.advance()
	}
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_' || r == '$'
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r)
}
