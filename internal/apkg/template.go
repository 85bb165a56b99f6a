package apkg

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/conorfennell/decker/internal/domain"
)

// clozeMask is the literal token that replaces a cloze deletion in the
// question rendering.
const clozeMask = "[...]"

var (
	// {{...}} placeholder of any kind. Substitution resolves field names
	// against the model; markers it does not recognise are left for the
	// later FrontSide and stripping passes.
	placeholderRe = regexp.MustCompile(`\{\{([^}]+)\}\}`)

	// {{cN::answer}} or {{cN::answer::hint}} inside a field value.
	clozeRe = regexp.MustCompile(`\{\{c(\d+)::(.*?)(?:::(.*?))?\}\}`)

	// [sound:filename] inline audio reference.
	soundRe = regexp.MustCompile(`\[sound:([^\]]+)\]`)

	// {{#Field}} / {{^Field}} / {{/Field}} conditional section markers and
	// {{type:Field}} type-in prompts. Presentation hints with no equivalent
	// here; they are removed, never shown.
	conditionalRe = regexp.MustCompile(`\{\{[#^/][^}]+\}\}`)
	typeInputRe   = regexp.MustCompile(`\{\{type:[^}]+\}\}`)
)

// Rendered is one card's display-ready faces: field placeholders expanded,
// cloze deletions masked or revealed, sound markers pulled out into the
// ordered audio lists.
type Rendered struct {
	Front      string
	Back       string
	FrontAudio []string
	BackAudio  []string
	Type       domain.CardType
}

// RenderCard expands a note's field values through the model template at the
// given ordinal. Returns ErrUnknownTemplate when the ordinal is out of range.
func RenderCard(m Model, n Note, ordinal int) (Rendered, error) {
	if ordinal < 0 || ordinal >= len(m.Templates) {
		return Rendered{}, fmt.Errorf("%w: model %q has no template ordinal %d", ErrUnknownTemplate, m.Name, ordinal)
	}
	tmpl := m.Templates[ordinal]

	values := make(map[string]string, len(m.Fields))
	for i, name := range m.Fields {
		if i < len(n.Fields) {
			values[name] = n.Fields[i]
		} else {
			values[name] = ""
		}
	}

	front := expand(tmpl.Question, values, false)
	back := expand(tmpl.Answer, values, true)

	// Reverse-style answer templates reuse the already-rendered front. The
	// front still carries its sound markers at this point, so back audio
	// includes anything the front plays.
	back = strings.ReplaceAll(back, "{{FrontSide}}", front)

	front = stripMarkers(front)
	back = stripMarkers(back)

	var r Rendered
	r.Front, r.FrontAudio = extractSounds(front)
	r.Back, r.BackAudio = extractSounds(back)
	r.Type = cardType(m, ordinal)
	return r, nil
}

// cardType derives the card's type discriminant from the owning model: a
// cloze model always yields cloze cards; a non-zero ordinal within a
// multi-template model marks the reversed card.
func cardType(m Model, ordinal int) domain.CardType {
	switch {
	case m.IsCloze:
		return domain.CardTypeCloze
	case ordinal > 0 && len(m.Templates) > 1:
		return domain.CardTypeStandardReverse
	default:
		return domain.CardTypeStandard
	}
}

// expand substitutes field placeholders in a single pass over the pattern.
// Substituted values are never rescanned, so a field value that happens to
// contain placeholder syntax stays literal text.
func expand(pattern string, values map[string]string, revealAnswers bool) string {
	return placeholderRe.ReplaceAllStringFunc(pattern, func(marker string) string {
		name := marker[2 : len(marker)-2]
		if field, ok := strings.CutPrefix(name, "cloze:"); ok {
			return renderCloze(values[field], revealAnswers)
		}
		if value, ok := values[name]; ok {
			return value
		}
		return marker
	})
}

// renderCloze processes {{cN::answer[::hint]}} markers in a field value: the
// question side masks every deletion with a literal token, the answer side
// reveals the bracketed answer text. Hints are not surfaced.
func renderCloze(value string, revealAnswers bool) string {
	return clozeRe.ReplaceAllStringFunc(value, func(marker string) string {
		if !revealAnswers {
			return clozeMask
		}
		sub := clozeRe.FindStringSubmatch(marker)
		return "[" + sub[2] + "]"
	})
}

// extractSounds pulls [sound:...] filenames out of the text in order and
// returns the text with the markers removed.
func extractSounds(text string) (string, []string) {
	var files []string
	for _, match := range soundRe.FindAllStringSubmatch(text, -1) {
		files = append(files, match[1])
	}
	cleaned := soundRe.ReplaceAllString(text, "")
	return strings.TrimSpace(cleaned), files
}

func stripMarkers(text string) string {
	text = conditionalRe.ReplaceAllString(text, "")
	return typeInputRe.ReplaceAllString(text, "")
}
