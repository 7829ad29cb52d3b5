package db

// Reason is the closed set of punishment reason codes. The string values
// are the wire/storage format and must stay stable, the audit log and any
// external tooling reading it depend on them.
type Reason string

const (
	// ReasonSpammerFromBase: the sender was already in the spammer set.
	ReasonSpammerFromBase Reason = "spamer_from_base"
	// ReasonBanWord: exact match against the zero-tolerance ban list.
	ReasonBanWord Reason = "ban_word"
	// ReasonNewMemberSpam: oracle flagged a message inside the probation window.
	ReasonNewMemberSpam Reason = "by_gpt_newmember_control"
	// ReasonCheckWordSpam: fuzzy lexicon hit confirmed as spam by the oracle.
	ReasonCheckWordSpam Reason = "spam-message"
	// ReasonReport: oracle confirmed a peer-reported message.
	ReasonReport Reason = "by_report"
	// ReasonLink: link posted by a low-trust user. Short mute, not a ban.
	ReasonLink Reason = "link in message"

	ReasonManualMute Reason = "manual-mute"
	ReasonManualBan  Reason = "manual-ban"
)

// NotifyCategory selects which per-chat toggle gates the chat notice for
// a punishment.
type NotifyCategory int

const (
	NotifyManual NotifyCategory = iota
	NotifyAuto
	NotifyRemoval
)

func (r Reason) Valid() bool {
	switch r {
	case ReasonSpammerFromBase, ReasonBanWord, ReasonNewMemberSpam,
		ReasonCheckWordSpam, ReasonReport, ReasonLink,
		ReasonManualMute, ReasonManualBan:
		return true
	}
	return false
}

// Category maps a reason to its notification toggle. Exhaustive over the
// enum, unknown reasons fall into the manual bucket so they are at least
// visible.
func (r Reason) Category() NotifyCategory {
	switch r {
	case ReasonManualMute, ReasonManualBan:
		return NotifyManual
	case ReasonSpammerFromBase, ReasonBanWord, ReasonNewMemberSpam,
		ReasonCheckWordSpam, ReasonReport, ReasonLink:
		return NotifyAuto
	}
	return NotifyManual
}

// MarksSpammer reports whether a punishment with this reason also inserts
// the user into the spammer set. Link violations and manual mutes never
// do, a previously flagged spammer already is one.
func (r Reason) MarksSpammer() bool {
	switch r {
	case ReasonBanWord, ReasonNewMemberSpam, ReasonCheckWordSpam,
		ReasonReport, ReasonManualBan:
		return true
	}
	return false
}
