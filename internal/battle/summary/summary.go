// Package summary prints localized battle reports.
package summary

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/louisbranch/skirmish/internal/battle/result"
	i18n "github.com/louisbranch/skirmish/internal/platform/i18n/catalog"
)

// DefaultLocale is used when the requested locale has no translation.
const DefaultLocale = i18n.BaseLocale

const (
	keyHeader   = "battle.header"
	keyVictory  = "battle.status.victory"
	keyDefeat   = "battle.status.defeat"
	keyFlee     = "battle.status.flee"
	keyFriendly = "battle.side.friendly"
	keyEnemy    = "battle.side.enemy"
	keySquad    = "battle.squad"
	keyNone     = "battle.none"
	keySaved    = "battle.saved"
)

// Printer writes reports in one locale.
type Printer struct {
	p *message.Printer
}

// NewPrinter returns a printer for locale, falling back to DefaultLocale.
func NewPrinter(locale string) (*Printer, error) {
	bundle, err := i18n.Default()
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	b, err := bundle.Builder()
	if err != nil {
		return nil, err
	}

	tag := language.MustParse(DefaultLocale)
	if locale = strings.TrimSpace(locale); locale != "" {
		requested, err := language.Parse(locale)
		if err != nil {
			return nil, fmt.Errorf("parse locale %q: %w", locale, err)
		}
		supported := b.Languages()
		_, index, confidence := language.NewMatcher(supported).Match(requested)
		if confidence != language.No {
			tag = supported[index]
		}
	}
	return &Printer{p: message.NewPrinter(tag, message.Catalog(b))}, nil
}

// Report writes the verdict and survivors of an encounter.
func (p *Printer) Report(w io.Writer, encounter string, seed int64, res result.Result) error {
	lines := []string{
		p.p.Sprintf(keyHeader, encounter, seed),
		p.p.Sprintf(statusKey(res.Status), res.Rounds),
		p.p.Sprintf(keyFriendly),
	}
	lines = append(lines, p.squads(res.Friendly)...)
	lines = append(lines, p.p.Sprintf(keyEnemy))
	lines = append(lines, p.squads(res.Enemy)...)
	_, err := io.WriteString(w, strings.Join(lines, "\n")+"\n")
	return err
}

// Saved writes the stored result id.
func (p *Printer) Saved(w io.Writer, id string) error {
	_, err := p.p.Fprintln(w, p.p.Sprintf(keySaved, id))
	return err
}

func (p *Printer) squads(list []result.Snapshot) []string {
	if len(list) == 0 {
		return []string{p.p.Sprintf(keyNone)}
	}
	out := make([]string, 0, len(list))
	for _, s := range list {
		out = append(out, p.p.Sprintf(keySquad, s.Name, s.Faction, s.Troops))
	}
	return out
}

func statusKey(s result.Status) string {
	switch s {
	case result.StatusDefeat:
		return keyDefeat
	case result.StatusFlee:
		return keyFlee
	default:
		return keyVictory
	}
}
