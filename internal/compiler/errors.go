package compiler

import "errors"

// ErrNoSuchLanguage is returned for a language tag the registry has never
// heard of (spec §4.B).
var ErrNoSuchLanguage = errors.New("compiler: no such language")

// ErrUnavailableToolchain is returned for a known language whose
// toolchain was not found on the host at Probe time.
var ErrUnavailableToolchain = errors.New("compiler: toolchain unavailable")
