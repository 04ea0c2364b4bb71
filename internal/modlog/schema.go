package modlog

import "time"

// ModAction represents one executed moderation action.
type ModAction struct {
	ID          int64     `json:"id"`
	ActionID    string    `json:"action_id"` // unique id (uuid)
	GroupJID    string    `json:"group_jid"`
	Participant string    `json:"participant"`
	Rule        string    `json:"rule"`   // x9, antifake, antipt, blacklist, welcome, exit
	Verb        string    `json:"verb"`   // remove, message, banner
	Detail      string    `json:"detail"` // reason text or message excerpt
	SessionRole string    `json:"session_role"`
	CreatedAt   time.Time `json:"created_at"`
}

const Schema = `
CREATE TABLE IF NOT EXISTS moderation_actions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	action_id TEXT UNIQUE,
	group_jid TEXT NOT NULL,
	participant TEXT,
	rule TEXT NOT NULL,
	verb TEXT NOT NULL,
	detail TEXT DEFAULT '',
	session_role TEXT DEFAULT 'primary',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_mod_actions_group ON moderation_actions(group_jid);
CREATE INDEX IF NOT EXISTS idx_mod_actions_rule ON moderation_actions(rule);
CREATE INDEX IF NOT EXISTS idx_mod_actions_created ON moderation_actions(created_at);

CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT,
	updated_at DATETIME
);
`
