package command

import (
	"strconv"
	"strings"
)

// Launcher wraps a program in a parallel job launcher such as mpirun.
type Launcher struct {
	Path      string
	Procs     int
	Hostfile  string
	ExtraArgs []string
}

func (l *Launcher) argv() []string {
	argv := []string{l.Path, "--allow-run-as-root"}
	if l.Procs > 0 {
		argv = append(argv, "-np", strconv.Itoa(l.Procs))
	}
	if l.Hostfile != "" {
		argv = append(argv, "--hostfile", l.Hostfile)
	}
	return append(argv, l.ExtraArgs...)
}

// Invocation describes one run of an external tool. It is only turned
// into an argv at the exec boundary; nothing here ever builds a shell
// string that gets executed.
type Invocation struct {
	// Tool is the logical tool name ("dcp", "ior", ...), used for
	// attributing outcomes.
	Tool     string
	Launcher *Launcher
	Program  string
	Args     []string
}

func (inv Invocation) Argv() []string {
	var argv []string
	if inv.Launcher != nil && inv.Launcher.Path != "" {
		argv = inv.Launcher.argv()
	}
	argv = append(argv, inv.Program)
	return append(argv, inv.Args...)
}

// Procs returns the launcher's process count, or 1 when not launched.
func (inv Invocation) Procs() int {
	if inv.Launcher == nil || inv.Launcher.Path == "" || inv.Launcher.Procs < 1 {
		return 1
	}
	return inv.Launcher.Procs
}

// String renders the argv quoted for logs.
func (inv Invocation) String() string {
	argv := inv.Argv()
	quoted := make([]string, len(argv))
	for i, a := range argv {
		quoted[i] = quote(a)
	}
	return strings.Join(quoted, " ")
}

func quote(s string) string {
	if s == "" {
		return "''"
	}
	if strings.IndexFunc(s, func(r rune) bool {
		return !(r == '/' || r == '-' || r == '_' || r == '.' || r == ':' || r == '=' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'))
	}) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
