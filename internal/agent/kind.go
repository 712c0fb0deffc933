package agent

import "strings"

// Kind describes one analysis profile: what the agent looks for and how
// many reasoning steps it may take.
type Kind struct {
	Name     string
	Preamble string
	MaxSteps int
}

// MentionScoutKind is the name of the built-in mention analysis profile.
const MentionScoutKind = "mention-scout"

const mentionScoutPreamble = `You analyze a spoken-word transcript and extract every notable mention
of a person, organization, product, or project. For each mention produce a
finding with the subject name, any attributes stated about it (role,
affiliation, sentiment), an urgency classification, and a short supporting
quote from the transcript.

Urgency levels:
  HIGH   - the mention needs prompt human attention (accusations, legal or
           safety issues, breaking announcements).
  MEDIUM - noteworthy but not time sensitive.
  LOW    - routine or passing mention.

Only report what the transcript supports. Never invent subjects or quotes.`

var builtinKinds = map[string]Kind{
	MentionScoutKind: {
		Name:     MentionScoutKind,
		Preamble: mentionScoutPreamble,
	},
}

// LookupKind resolves a built-in kind by name.
func LookupKind(name string) (Kind, bool) {
	kind, ok := builtinKinds[strings.ToLower(strings.TrimSpace(name))]
	return kind, ok
}

// BuiltinKinds returns the names of all built-in analysis profiles.
func BuiltinKinds() []string {
	names := make([]string, 0, len(builtinKinds))
	for name := range builtinKinds {
		names = append(names, name)
	}
	return names
}
