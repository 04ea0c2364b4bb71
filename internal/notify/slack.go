// Package notify sends owner alerts about moderation removals to Slack.
package notify

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
)

// SlackNotifier posts removal alerts to a Slack channel.
type SlackNotifier struct {
	api     *slack.Client
	channel string
}

// NewSlackNotifier creates a notifier. Returns nil when token or channel is
// empty, so callers can treat alerts as disabled.
func NewSlackNotifier(token, channel string) *SlackNotifier {
	if token == "" || channel == "" {
		return nil
	}
	return &SlackNotifier{api: slack.New(token), channel: channel}
}

// Removal announces that a participant was removed from a group.
func (n *SlackNotifier) Removal(ctx context.Context, groupJID, participant, rule, detail string) error {
	if n == nil {
		return nil
	}
	text := fmt.Sprintf(":no_entry: removed `%s` from `%s` (rule=%s)", participant, groupJID, rule)
	if detail != "" {
		text += ": " + detail
	}
	_, _, err := n.api.PostMessageContext(ctx, n.channel, slack.MsgOptionText(text, false))
	return err
}
