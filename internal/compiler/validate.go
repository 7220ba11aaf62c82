package compiler

import "strings"

// shellMetacharacters mirrors the original compiler_service.c's rejection
// list: characters that could let a client-controlled args string escape
// the intended compiler/interpreter invocation when interpolated into a
// shell command line (SPEC_FULL.md §11.3).
const shellMetacharacters = ";&|><$`\n"

// ValidateArgs rejects compiler_args/execution_args containing shell
// metacharacters. Plain space-separated flags are fine; anything that
// could chain or substitute commands is not.
func ValidateArgs(args string) bool {
	return !strings.ContainsAny(args, shellMetacharacters)
}
