package kernelsrc

import "strings"

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokNumber
	tokLiteral
	tokPunct
)

type token struct {
	kind         tokenKind
	text         string
	offset, line int
}

// punctuators of more than one character, longest first.
var punctuators = []string{"<<=", ">>=", "...", "->", "++", "--", "<<", ">>", "<=", ">=", "==", "!=", "&&", "||",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "##"}

// tokenize splits the comment-free C source into tokens. Preprocessor lines are skipped.
func tokenize(code string) []token {
	var tokens []token
	line, lineStart := 1, true
	n := len(code)
	for ii := 0; ii < n; {
		ch := code[ii]
		switch {
		case ch == '\n':
			line++
			lineStart = true
			ii++
			continue
		case ch == ' ' || ch == '\t' || ch == '\r' || ch == '\f' || ch == '\v':
			ii++
			continue
		case ch == '#' && lineStart:
			for ; ii < n && code[ii] != '\n'; ii++ {
				if code[ii] == '\\' && ii+1 < n && code[ii+1] == '\n' {
					line++
					ii++
				}
			}
			continue
		}
		lineStart = false
		start := ii
		kind := tokPunct
		switch {
		case isIdentStart(ch):
			kind = tokIdent
			for ii < n && isIdentChar(code[ii]) {
				ii++
			}
		case isDigit(ch) || (ch == '.' && ii+1 < n && isDigit(code[ii+1])):
			kind = tokNumber
			hex := strings.HasPrefix(code[ii:], "0x") || strings.HasPrefix(code[ii:], "0X")
			for ii < n && (isIdentChar(code[ii]) || code[ii] == '.') {
				if !hex && (code[ii] == 'e' || code[ii] == 'E') && ii+1 < n && (code[ii+1] == '+' || code[ii+1] == '-') {
					ii++
				}
				ii++
			}
		case ch == '"' || ch == '\'':
			kind = tokLiteral
			for ii++; ii < n && code[ii] != ch && code[ii] != '\n'; ii++ {
				if code[ii] == '\\' {
					ii++
				}
			}
			if ii < n && code[ii] == ch {
				ii++
			}
		default:
			ii++
			for _, p := range punctuators {
				if strings.HasPrefix(code[start:], p) {
					ii = start + len(p)
					break
				}
			}
		}
		tokens = append(tokens, token{kind: kind, text: code[start:ii], offset: start, line: line})
	}
	return tokens
}

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentChar(ch byte) bool { return isIdentStart(ch) || isDigit(ch) }

func isDigit(ch byte) bool { return ch >= '0' && ch <= '9' }

// nonExpressionWords can't be the last token of an expression statement.
var nonExpressionWords = map[string]bool{
	"if": true, "else": true, "for": true, "while": true, "do": true, "switch": true, "case": true,
	"default": true, "return": true, "goto": true, "typedef": true, "struct": true, "union": true, "enum": true,
	"sizeof": true, "static": true, "inline": true, "extern": true, "const": true, "volatile": true,
	"restrict": true, "unsigned": true, "signed": true, "void": true, "char": true, "short": true, "int": true,
	"long": true, "float": true, "double": true, "half": true, "bool": true, "uchar": true, "ushort": true,
	"uint": true, "ulong": true, "size_t": true, "__global": true, "global": true, "__local": true, "local": true,
	"__constant": true, "constant": true, "__private": true, "private": true, "__kernel": true, "kernel": true,
	"__attribute__": true,
}

// controlWords are followed by a parenthesized condition that doesn't end a statement.
var controlWords = map[string]bool{"if": true, "for": true, "while": true, "switch": true}

// operators that require an operand after them.
var operators = map[string]bool{
	"+": true, "-": true, "*": true, "/": true, "%": true, "!": true, "~": true, "&": true, "|": true, "^": true,
	"<": true, ">": true, "<=": true, ">=": true, "==": true, "!=": true, "&&": true, "||": true, "<<": true,
	">>": true, "=": true, "+=": true, "-=": true, "*=": true, "/=": true, "%=": true, "&=": true, "|=": true,
	"^=": true, "<<=": true, ">>=": true,
}

// binaryOperators also require an operand before them.
var binaryOperators = map[string]bool{
	"/": true, "%": true, "|": true, "^": true, "<": true, ">": true, "<=": true, ">=": true, "==": true,
	"!=": true, "&&": true, "||": true, "<<": true, ">>": true, "=": true, "+=": true, "-=": true, "*=": true,
	"/=": true, "%=": true, "&=": true, "|=": true, "^=": true, "<<=": true, ">>=": true,
}

// expressionStops can't follow an operator.
var expressionStops = map[string]bool{";": true, ")": true, "]": true, "}": true, ",": true}

// expressionStarts can't precede a binary operator.
var expressionStarts = map[string]bool{"(": true, "[": true, "{": true, ",": true, ";": true}

// CheckStatements reports the statement errors that can be found from the tokens of function bodies,
// without parsing: expression statements not terminated by ';', and operators missing an operand.
// The source must be free of comments and have balanced delimiters.
func CheckStatements(code string) Diagnostics {
	tokens := tokenize(code)
	var diags Diagnostics
	report := func(offset int, message string) {
		line, col := position(code, offset)
		diags = append(diags, Diagnostic{line, col, "error", message})
	}

	// For each open brace, whether it is an initializer list; for each open parenthesis or bracket, whether it
	// holds the condition of a control statement.
	var braces, groups []bool
	for ii, tok := range tokens {
		var prev, next *token
		if ii > 0 {
			prev = &tokens[ii-1]
		}
		if ii+1 < len(tokens) {
			next = &tokens[ii+1]
		}
		closesControl := false
		switch tok.text {
		case "{":
			initializer := prev != nil && (prev.text == "=" || prev.text == "return" ||
				((prev.text == "{" || prev.text == ",") && len(braces) > 0 && braces[len(braces)-1]))
			braces = append(braces, initializer)
		case "}":
			if len(braces) > 0 {
				braces = braces[:len(braces)-1]
			}
		case "(", "[":
			groups = append(groups, tok.text == "(" && prev != nil && prev.kind == tokIdent && controlWords[prev.text])
		case ")", "]":
			if n := len(groups); n > 0 {
				closesControl = groups[n-1]
				groups = groups[:n-1]
			}
		}
		if len(braces) == 0 || next == nil {
			continue
		}

		if tok.kind == tokPunct && operators[tok.text] && expressionStops[next.text] && !(tok.text == "*" && next.text == ")") {
			report(next.offset, "expected expression")
		}
		if binaryOperators[tok.text] && prev != nil && (expressionStarts[prev.text] || operators[prev.text]) {
			report(tok.offset, "expected expression")
		}

		if braces[len(braces)-1] || len(groups) > 0 || !endsExpression(tok, closesControl) {
			continue
		}
		if next.text == "}" || (next.kind == tokIdent && next.line > tok.line) {
			report(tok.offset+len(tok.text), "expected ';' after expression")
		}
	}
	return diags
}

// endsExpression returns whether tok can be the last token of an expression.
func endsExpression(tok token, closesControl bool) bool {
	switch tok.kind {
	case tokIdent:
		return !nonExpressionWords[tok.text]
	case tokNumber, tokLiteral:
		return true
	}
	switch tok.text {
	case ")":
		return !closesControl
	case "]", "++", "--":
		return true
	}
	return false
}
