package policy

import (
	"strconv"
	"strings"

	"go.mau.fi/whatsmeow/types"
)

// Placeholder tokens usable in welcome/exit templates.
const (
	TokenParticipant = "#numerodele#"
	TokenGroupName   = "#nomedogp#"
	TokenDescription = "#desc#"
	TokenMemberCount = "#membros#"
)

const (
	defaultWelcomeTemplate = "Bem-vindo(a) #numerodele# ao grupo #nomedogp#! 👋\nAgora somos #membros# membros.\n\n#desc#"
	defaultExitTemplate    = "👋 #numerodele# saiu do grupo #nomedogp#. Agora somos #membros# membros."
)

// Substitute replaces every occurrence of each placeholder token. The
// description token becomes the empty string when the group has no topic.
func Substitute(template string, participant types.JID, info *types.GroupInfo) string {
	out := strings.ReplaceAll(template, TokenParticipant, "@"+participant.User)
	out = strings.ReplaceAll(out, TokenGroupName, info.Name)
	out = strings.ReplaceAll(out, TokenDescription, info.Topic)
	out = strings.ReplaceAll(out, TokenMemberCount, strconv.Itoa(len(info.Participants)))
	return strings.TrimSpace(out)
}
