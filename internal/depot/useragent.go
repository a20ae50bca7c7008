package depot

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/depotpm/depot/internal/depoterr"
)

// UserAgent resolves an ambiguous name that matched more than one
// UUID across reachable registries, per spec.md §4.7.
type UserAgent interface {
	ChoosePackage(name string, uuids []string) (string, error)
}

// NonInteractiveAgent always fails an ambiguous choice, the rule for
// any depot command run with no controlling terminal.
type NonInteractiveAgent struct{}

// ChoosePackage implements UserAgent.
func (NonInteractiveAgent) ChoosePackage(name string, uuids []string) (string, error) {
	return "", depoterr.AmbiguousPackage(name, uuids)
}

// InteractiveAgent prompts on In/Out, but only when In is attached to
// a real terminal; otherwise it behaves like NonInteractiveAgent,
// since prompting a pipe would hang forever waiting for input no one
// can supply.
type InteractiveAgent struct {
	In  *os.File
	Out io.Writer
}

// ChoosePackage implements UserAgent.
func (a InteractiveAgent) ChoosePackage(name string, uuids []string) (string, error) {
	if a.In == nil || !term.IsTerminal(int(a.In.Fd())) {
		return NonInteractiveAgent{}.ChoosePackage(name, uuids)
	}

	fmt.Fprintf(a.Out, "%q matches %d registered packages:\n", name, len(uuids))
	for i, u := range uuids {
		fmt.Fprintf(a.Out, "  [%d] %s\n", i+1, u)
	}
	fmt.Fprintf(a.Out, "choose 1-%d: ", len(uuids))

	line, err := bufio.NewReader(a.In).ReadString('\n')
	if err != nil {
		return "", depoterr.AmbiguousPackage(name, uuids)
	}
	line = strings.TrimSpace(line)
	for i, u := range uuids {
		if line == fmt.Sprint(i+1) {
			return u, nil
		}
	}
	return "", depoterr.AmbiguousPackage(name, uuids)
}
