// Copyright (C) 2022 Michael J. Fromberger. All Rights Reserved.

package cap

import "fmt"

// A UsageError reports a violation of one of the call-context or request
// lifecycle contracts described in spec §3 and §4.2 — for example reading
// params after release, or sending a request twice. Usage errors are
// recoverable failures on the future they are attached to; they are also
// expected to be caught by whatever diagnostic layer a caller has in
// place, the same way the teacher treats a recoverable exception.
type UsageError struct {
	Op  string // the operation that was misused, e.g. "GetParams"
	Msg string
}

func (e *UsageError) Error() string { return fmt.Sprintf("%s: %s", e.Op, e.Msg) }

func usageErrorf(op, format string, args ...any) *UsageError {
	return &UsageError{Op: op, Msg: fmt.Sprintf(format, args...)}
}

// An UnimplementedError reports a call against an interface or method ID
// the server does not recognize. It carries enough detail for a caller to
// log or match against, matching the fields spec §7 requires
// (interface name, type ID, method ID, optional method name).
type UnimplementedError struct {
	InterfaceName string
	TypeID        uint64
	MethodID      uint16
	MethodName    string // "" if unknown
}

// Error formats e as "interface.method", falling back to the raw numeric
// ID for whichever half has no name on record.
func (e *UnimplementedError) Error() string {
	iface := e.InterfaceName
	if iface == "" {
		iface = fmt.Sprintf("@0x%x", e.TypeID)
	}
	method := e.MethodName
	if method == "" {
		method = fmt.Sprintf("@%d", e.MethodID)
	}
	return fmt.Sprintf("method not implemented: %s.%s", iface, method)
}

// A BrokenError is the fixed error every operation on a broken capability
// fails with.
type BrokenError struct {
	Msg string
}

func (e *BrokenError) Error() string { return e.Msg }

// ErrAlreadySent is returned by Request.Send when called a second time on
// the same request.
var ErrAlreadySent = usageErrorf("Send", "request was already sent")
