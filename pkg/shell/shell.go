// pkg/shell/shell.go - unpinning Office shortcuts from the taskbar and Start menu.
//
// Explorer exposes pin state only as localized context-menu verbs, so a
// shortcut is unpinned by invoking whichever verb's display name matches a
// known phrase for the current UI language.

package shell

import (
	"errors"
	"os"
	"strings"

	"github.com/spf13/afero"

	"github.com/windowsadmins/c2rscrub/pkg/logging"
)

// Action is an unpin target.
type Action int

const (
	UnpinTaskbar Action = iota
	UnpinStart
)

func (a Action) String() string {
	if a == UnpinStart {
		return "unpin-start"
	}
	return "unpin-taskbar"
}

// Phrases maps each action to lower-case verb names in the supported UI languages.
type Phrases map[Action][]string

// DefaultPhrases covers English and the common European UI languages.
func DefaultPhrases() Phrases {
	return Phrases{
		UnpinTaskbar: {
			"unpin from taskbar",
			"von taskleiste lösen",
			"détacher de la barre des tâches",
			"desanclar de la barra de tareas",
			"ta bort från aktivitetsfältet",
			"frigør fra proceslinje",
			"odepnout z hlavního panelu",
			"van de taakbalk losmaken",
			"poista kiinnitys tehtäväpalkista",
			"rimuovi dalla barra delle applicazioni",
		},
		UnpinStart: {
			"unpin from start",
			"vom startmenü lösen",
			"détacher du menu démarrer",
			"desanclar del menú inicio",
			"odepnout z nabídky start",
			"frigør fra menuen start",
			"van het menu start losmaken",
			"poista kiinnitys käynnistä-valikosta",
			"irrota aloitusvalikosta",
		},
	}
}

// Matches reports whether a verb display name performs action. Accelerator
// ampersands are ignored and the comparison is case-insensitive.
func Matches(verb string, action Action, phrases Phrases) bool {
	name := strings.ToLower(strings.ReplaceAll(verb, "&", ""))
	for _, p := range phrases[action] {
		if strings.Contains(name, p) {
			return true
		}
	}
	return false
}

// VerbInvoker runs the context-menu verbs of a file for which pick returns
// true, returning how many ran.
type VerbInvoker interface {
	InvokeVerbs(path string, pick func(verb string) bool) (int, error)
}

// Unpinner removes pins for shortcut files.
type Unpinner struct {
	fs      afero.Fs
	invoker VerbInvoker
	phrases Phrases
}

// NewUnpinner returns an Unpinner using the default phrase table.
func NewUnpinner(fs afero.Fs, invoker VerbInvoker) *Unpinner {
	return &Unpinner{fs: fs, invoker: invoker, phrases: DefaultPhrases()}
}

// ErrNoShortcut is returned when the shortcut file does not exist.
var ErrNoShortcut = errors.New("shortcut not found")

// Unpin runs every verb matching action on path and reports whether any ran.
func (u *Unpinner) Unpin(path string, action Action) (bool, error) {
	if _, err := u.fs.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, ErrNoShortcut
		}
		return false, err
	}
	n, err := u.invoker.InvokeVerbs(path, func(verb string) bool {
		return Matches(verb, action, u.phrases)
	})
	if err != nil {
		return false, err
	}
	if n > 0 {
		logging.Info("Unpinned shortcut", "path", path, "action", action)
	}
	return n > 0, nil
}

// UnpinAll removes both taskbar and Start pins. It reports whether any verb
// ran; a missing shortcut returns ErrNoShortcut.
func (u *Unpinner) UnpinAll(path string) (bool, error) {
	unpinned := false
	var errs []error
	for _, action := range []Action{UnpinTaskbar, UnpinStart} {
		ok, err := u.Unpin(path, action)
		if errors.Is(err, ErrNoShortcut) {
			return false, err
		}
		if err != nil {
			errs = append(errs, err)
		}
		unpinned = unpinned || ok
	}
	return unpinned, errors.Join(errs...)
}
