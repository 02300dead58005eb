// Package i18n holds the user-facing strings of the engine: refusal reasons and the labels of
// mandatory turn actions. Traditional Chinese is the default locale.
package i18n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys.
const (
	KeyBusy               = "reason.busy"
	KeyNotYourTurn        = "reason.not_your_turn"
	KeyNotStarted         = "reason.not_started"
	KeyDecisionPending    = "reason.decision_pending"
	KeyInteractionPending = "reason.interaction_pending"
	KeyProtocolViolation  = "reason.protocol_violation"
	KeyIllegal            = "reason.illegal"
	KeyTimeout            = "reason.timeout"
	KeyInspectOnly        = "reason.inspect_only"

	KeyActionDraw      = "action.draw"
	KeyActionSendCheer = "action.send_cheer"
	KeyMissingActions  = "detail.missing_actions"
	KeyListSeparator   = "detail.list_separator"
)

var (
	zhTW = language.MustParse("zh-TW")
	en   = language.English

	supported = []language.Tag{zhTW, en}
	matcher   = language.NewMatcher(supported)
	messages  = buildCatalog()
)

func buildCatalog() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(zhTW))
	set := func(key, zh, english string) {
		_ = b.SetString(zhTW, key, zh)
		_ = b.SetString(en, key, english)
	}
	set(KeyBusy, "上一個動作仍在處理中", "another action is still in flight")
	set(KeyNotYourTurn, "現在不是你的回合", "it is not your turn")
	set(KeyNotStarted, "對戰尚未開始", "the match has not started")
	set(KeyDecisionPending, "請先完成待處理的選擇", "resolve the pending decision first")
	set(KeyInteractionPending, "請先完成待處理的確認", "resolve the pending interaction first")
	set(KeyProtocolViolation, "伺服器狀態不一致", "inconsistent server state")
	set(KeyIllegal, "目前無法執行此動作", "this action is not allowed right now")
	set(KeyTimeout, "動作逾時", "the action timed out")
	set(KeyInspectOnly, "中央與聯動位置皆已有成員，僅能檢視", "center and collab are both occupied; inspection only")
	set(KeyActionDraw, "抽牌", "draw")
	set(KeyActionSendCheer, "發送吶喊", "send cheer")
	set(KeyMissingActions, "尚未完成：%s", "still required: %s")
	set(KeyListSeparator, "、", ", ")
	return b
}

// Printer formats catalog messages for one locale.
type Printer struct {
	p *message.Printer
}

// NewPrinter returns a printer for the closest supported locale to the given BCP 47 tag.
func NewPrinter(locale string) *Printer {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = zhTW
	}
	_, idx, _ := matcher.Match(tag)
	return &Printer{p: message.NewPrinter(supported[idx], message.Catalog(messages))}
}

// Sprintf formats the message stored under key.
func (p *Printer) Sprintf(key string, args ...any) string {
	return p.p.Sprintf(key, args...)
}
