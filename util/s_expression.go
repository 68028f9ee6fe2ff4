// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// S-expression reader for the shader assembly format.  Numbers may
// be integers or floats, possibly negative.  ';' starts a comment
// that runs to the end of the line.

package util

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type SExpKindT int

const (
	SExpInt SExpKindT = iota
	SExpFloat
	SExpSymbol
	SExpList
)

type SExpT struct {
	Kind    SExpKindT
	Integer int
	Float   float64
	Symbol  string
	List    []*SExpT
	Line    int // where the expression starts, for error messages
}

func (sexp *SExpT) String() string {
	switch sexp.Kind {
	case SExpInt:
		return strconv.Itoa(sexp.Integer)
	case SExpFloat:
		return strconv.FormatFloat(sexp.Float, 'g', -1, 64)
	case SExpSymbol:
		return sexp.Symbol
	case SExpList:
		parts := make([]string, len(sexp.List))
		for i, s := range sexp.List {
			parts[i] = s.String()
		}
		return "(" + strings.Join(parts, " ") + ")"
	}
	panic("bad S-expression")
}

func (sexp *SExpT) IsNumber() bool {
	return sexp.Kind == SExpInt || sexp.Kind == SExpFloat
}

func (sexp *SExpT) Number() float64 {
	if sexp.Kind == SExpInt {
		return float64(sexp.Integer)
	}
	return sexp.Float
}

// The head symbol of a list, or "" if there isn't one.
func (sexp *SExpT) Head() string {
	if sexp.Kind != SExpList || len(sexp.List) == 0 || sexp.List[0].Kind != SExpSymbol {
		return ""
	}
	return sexp.List[0].Symbol
}

// Reads all of the top-level expressions in 'data'.

func ParseSExps(data string) ([]*SExpT, error) {
	reader := &sexpReaderT{data: []rune(data), line: 1}
	result := []*SExpT{}
	for {
		next, err := reader.read()
		if err != nil {
			return nil, err
		}
		if next == nil {
			if reader.depth != 0 {
				return nil, fmt.Errorf("line %d: unexpected end of input", reader.line)
			}
			return result, nil
		}
		result = append(result, next)
	}
}

// Reads exactly one expression.

func ParseSExp(data string) (*SExpT, error) {
	all, err := ParseSExps(data)
	if err != nil {
		return nil, err
	}
	if len(all) != 1 {
		return nil, fmt.Errorf("expected one expression, found %d", len(all))
	}
	return all[0], nil
}

type sexpReaderT struct {
	data  []rune
	pos   int
	line  int
	depth int
}

// Returns nil, nil at a closing parenthesis or the end of the input.

func (reader *sexpReaderT) read() (*SExpT, error) {
	reader.skipSpace()
	if reader.pos == len(reader.data) {
		return nil, nil
	}
	c := reader.data[reader.pos]
	line := reader.line
	switch {
	case c == '(':
		reader.pos += 1
		reader.depth += 1
		list := &SExpT{Kind: SExpList, Line: line}
		for {
			next, err := reader.read()
			if err != nil {
				return nil, err
			}
			if next == nil {
				break
			}
			list.List = append(list.List, next)
		}
		if reader.pos == len(reader.data) {
			return nil, fmt.Errorf("line %d: unterminated list", line)
		}
		reader.pos += 1 // the ')'
		reader.depth -= 1
		return list, nil
	case c == ')':
		if reader.depth == 0 {
			return nil, fmt.Errorf("line %d: unexpected ')'", line)
		}
		return nil, nil
	case isAtomConstituent(c):
		start := reader.pos
		for reader.pos < len(reader.data) && isAtomConstituent(reader.data[reader.pos]) {
			reader.pos += 1
		}
		return makeAtom(string(reader.data[start:reader.pos]), line), nil
	}
	return nil, fmt.Errorf("line %d: unrecognized character %s", line, strconv.QuoteRune(c))
}

func (reader *sexpReaderT) skipSpace() {
	for reader.pos < len(reader.data) {
		c := reader.data[reader.pos]
		if c == ';' {
			for reader.pos < len(reader.data) && reader.data[reader.pos] != '\n' {
				reader.pos += 1
			}
			continue
		}
		if !unicode.IsSpace(c) {
			return
		}
		if c == '\n' {
			reader.line += 1
		}
		reader.pos += 1
	}
}

func makeAtom(text string, line int) *SExpT {
	if i, err := strconv.Atoi(text); err == nil {
		return &SExpT{Kind: SExpInt, Integer: i, Line: line}
	}
	if looksNumeric(text) {
		if f, err := strconv.ParseFloat(text, 64); err == nil {
			return &SExpT{Kind: SExpFloat, Float: f, Line: line}
		}
	}
	return &SExpT{Kind: SExpSymbol, Symbol: text, Line: line}
}

// Avoids turning symbols like "inf" or "nan" into floats.
func looksNumeric(text string) bool {
	if strings.HasPrefix(text, "-") || strings.HasPrefix(text, "+") {
		text = text[1:]
	}
	return text != "" && (unicode.IsDigit(rune(text[0])) || text[0] == '.')
}

func isAtomConstituent(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) ||
		strings.ContainsRune(":_*&.-+<>=!?/", r)
}
