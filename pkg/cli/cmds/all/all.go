// Package all registers all shell commands.
package all

import (
	_ "github.com/robotalks/mbox.go/pkg/cli/cmds/attest"
)
