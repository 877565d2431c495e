// Package jni generates mangled native symbol names for guest methods,
// following the standard native-interface overload resolution rules:
// a short form carrying only the method name, and a long form qualified
// with the parameter signature to disambiguate overloads.
package jni

import (
	"fmt"
	"strings"
)

// Mangle returns the native symbol name for a method of the given
// class. The short form is "Java_<class>_<name>"; when withSignature is
// true the parameter descriptor (the text between the parentheses) is
// appended after a double underscore. Callers probing a library must
// try the short form first and fall back to the long form.
func Mangle(className, methodName, rawSignature string, withSignature bool) string {
	var sb strings.Builder
	sb.WriteString("Java_")
	mangleInto(&sb, className)
	sb.WriteByte('_')
	mangleInto(&sb, methodName)

	if withSignature {
		sb.WriteString("__")
		params := rawSignature
		if open := strings.IndexByte(params, '('); open >= 0 {
			params = params[open+1:]
		}
		if close := strings.IndexByte(params, ')'); close >= 0 {
			params = params[:close]
		}
		mangleInto(&sb, params)
	}
	return sb.String()
}

// mangleInto applies the symbol character escapes: '/' separates
// package components and becomes '_'; '_', ';' and '[' get numeric
// escapes; anything outside [A-Za-z0-9] is escaped as _0xxxx.
func mangleInto(sb *strings.Builder, s string) {
	for _, r := range s {
		switch {
		case r == '/' || r == '.':
			sb.WriteByte('_')
		case r == '_':
			sb.WriteString("_1")
		case r == ';':
			sb.WriteString("_2")
		case r == '[':
			sb.WriteString("_3")
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			sb.WriteRune(r)
		default:
			fmt.Fprintf(sb, "_0%04x", r)
		}
	}
}
