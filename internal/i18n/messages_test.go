package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrinterLocales(t *testing.T) {
	zh := NewPrinter("zh-TW")
	assert.Equal(t, "發送吶喊", zh.Sprintf(KeyActionSendCheer))
	assert.Equal(t, "尚未完成：抽牌", zh.Sprintf(KeyMissingActions, zh.Sprintf(KeyActionDraw)))

	english := NewPrinter("en-US")
	assert.Equal(t, "send cheer", english.Sprintf(KeyActionSendCheer))
}

func TestPrinterUnknownLocaleFallsBackToChinese(t *testing.T) {
	p := NewPrinter("not a tag")
	assert.Equal(t, "現在不是你的回合", p.Sprintf(KeyNotYourTurn))
}
