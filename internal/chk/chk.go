// Package chk implements the relay's "if chk.E(err) { return }" convention:
// each function logs a non-nil error at its associated level and reports
// whether the caller should treat it as a failure, collapsing the usual
// `if err != nil { log(...); return }` boilerplate into one line.
package chk

import (
	"github.com/nostrelay/relay/internal/logx"
)

// E logs err at error level and returns true if err is non-nil.
func E(err error) bool {
	if err == nil {
		return false
	}
	logx.E.F("%v", err)
	return true
}

// W logs err at warn level and returns true if err is non-nil.
func W(err error) bool {
	if err == nil {
		return false
	}
	logx.W.F("%v", err)
	return true
}

// D logs err at debug level and returns true if err is non-nil.
func D(err error) bool {
	if err == nil {
		return false
	}
	logx.D.F("%v", err)
	return true
}

// T logs err at trace level and returns true if err is non-nil.
func T(err error) bool {
	if err == nil {
		return false
	}
	logx.T.F("%v", err)
	return true
}
