// Package intent implements the deterministic caller-utterance classifier.
//
// The cascade and keyword lists are a direct port of the rule table the
// gateway has always used in production; new labels must be inserted in the
// same relative order the original cascade checked them, since callers have
// learned to route around ambiguous phrasing at specific priority points
// (handoff requests before system inquiries, sales-call detection before
// yes/no, and so on).
package intent

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Label is one of the closed set of intents the classifier can produce.
type Label string

const (
	Unknown         Label = "UNKNOWN"
	NotHeard        Label = "NOT_HEARD"
	Greeting        Label = "GREETING"
	Inquiry         Label = "INQUIRY"
	InquiryPassive  Label = "INQUIRY_PASSIVE"
	SystemInquiry   Label = "SYSTEM_INQUIRY"
	SystemExplain   Label = "SYSTEM_EXPLAIN"
	AIIdentity      Label = "AI_IDENTITY"
	AICallTopic     Label = "AI_CALL_TOPIC"
	Price           Label = "PRICE"
	Setup           Label = "SETUP"
	SetupDifficulty Label = "SETUP_DIFFICULTY"
	Function        Label = "FUNCTION"
	Support         Label = "SUPPORT"
	Reservation     Label = "RESERVATION"
	MultiStore      Label = "MULTI_STORE"
	Dialect         Label = "DIALECT"
	Interrupt       Label = "INTERRUPT"
	Busy            Label = "BUSY"
	CallbackRequest Label = "CALLBACK_REQUEST"
	SalesCall       Label = "SALES_CALL"
	HandoffRequest  Label = "HANDOFF_REQUEST"
	HandoffYes      Label = "HANDOFF_YES"
	HandoffNo       Label = "HANDOFF_NO"
	EndCall         Label = "END_CALL"
)

var (
	greetingKeywords = []string{"もしもし", "こんにちは", "こんばんは", "おはよう", "はじめまして"}
	inquiryKeywords  = []string{"ホームページ", "hp", "lp", "メール", "dm", "導入", "しすてむ", "システム", "サービス", "詳しく", "案内", "相談"}
	priceKeywords    = []string{"金額", "料金", "値段", "月額", "費用", "初期費用", "最低契約", "解約", "返金", "無料", "トライアル", "効果", "コスト", "削減", "人件費", "ストレス"}
	setupKeywords    = []string{
		"導入したら", "いつから", "どれくらい", "どうやって", "設定", "初期設定",
		"セットアップ", "パソコン", "pc", "スマホ", "電話番号", "転送", "環境", "すぐ使える",
	}
	functionKeywords = []string{
		"aiの声", "声変え", "テンプレ", "語尾", "聞き取れ", "間違ったら", "クレーム",
		"転送", "予約管理", "予約の変更", "キャンセル", "飲食", "美容院", "施術", "席",
		"スタッフ", "個人情報", "セキュリティ", "録音", "ダブルブッキング", "方言", "精度", "カスタマイズ",
	}
	supportKeywords = []string{"サポート", "不具合", "エラー", "トラブル", "障害", "バグ"}
	endCallKeywords = []string{
		"もうだいじょうぶ", "大丈夫です", "他はない", "以上です", "けっこうです", "結構です",
		"そんなもん", "大丈夫", "もういい", "今日は聞くだけ", "今日は聞くだけなんで",
		"また考えます", "やめときます", "やめておきます", "また今度", "一旦やめて",
	}
	yesKeywords = []string{"はい", "ええ", "お願いします", "お願い", "承知", "はいお願いします"}
	noKeywords  = []string{"必要ない", "いりません", "間に合ってます"}

	noiseKeywords       = []string{"ゴニョゴニョ", "ごにょごにょ", "ごにょ", "ゴニョ"}
	specialChars        = []string{"…", "。", "、", ".", ","}
	handoffKeywords     = []string{"担当者", "たんとうしゃ", "担当の者", "当者", "人間", "オペレーター", "ひと", "人"}
	handoffVerbs        = []string{"つないで", "つなげて", "繋いで", "繋げて", "代わって", "替わって", "変わって", "回して", "まわして"}
	handoffPhrases      = []string{"お願いします", "お願い", "ください", "もらえますか", "してほしい"}
	systemInquiryPhrase = []string{"システムについて", "システムの", "システムを", "システムが", "システムに", "システムは", "システムで"}
	salesKeywords       = []string{"営業", "ご提案", "サービスのご提案", "新しいサービス"}
	aiCallTopicKeywords = []string{"ai電話", "aiの電話", "aiの件", "ai電話の件"}
	aiIdentityKeywords  = []string{"あなたはai", "aiですか", "自己紹介", "あなたは誰", "aiがやってる"}
	difficultyTerms     = []string{"難", "むず"}
	setupDifficultyKws  = []string{
		"設定むずい", "設定難しい", "設定むずかしい", "設定がむずい", "設定が難しい",
		"設定は難しい", "設定はむずい", "設定はむずかしい",
		"設定するの", "設定するのは", "設定するのが",
		"難しい", "むずい", "むずかしい", "難しそう", "むずかしそう",
		"設定", "セットアップ", "導入", "初期設定",
	}
	difficultyContextWords = []string{"システム", "この", "その", "導入", "初期", "設定"}
	systemExplainKeywords  = []string{"どういうシステム", "どんなシステム", "どういうサービス", "どんなサービス", "これどういう", "どういう"}
	busyKeywords           = []string{"混んでます", "混んでる", "込み合って", "混雑", "混ん"}
	callbackKeywords       = []string{"折り返し", "折り返して", "かけ直し", "かけなおし", "折り返しもらえ"}
	dialectKeywords        = []string{"関西弁", "方言", "イントネーション"}
	interruptKeywords      = []string{"口挟ん", "割り込ん", "途中で話しても", "途中で口挟ん", "口挟んだり"}
	reservationKeywords    = []string{"予約", "キャンセル", "ダブルブッキング", "席", "スタッフ別", "何席"}
	multiStoreKeywords     = []string{"店舗いくつか", "複数店舗", "別店舗", "複数番号", "複数拠点", "全部まとめて", "店舗いくつ"}
	immediateEndKeywords   = []string{"やめときます", "やめておきます", "また今度", "一旦やめて"}
	securityKeywords       = []string{"セキュリティ", "個人情報"}
	otherStoreKeywords     = []string{"他の店", "他店", "他の店舗"}

	// lowIntentKeywords marks a caller as a passive, not-yet-committed lead
	// rather than UNKNOWN. Ported from LOW_INTENT_KEYWORDS
	// (original_source/libertycall/gateway/intent_rules.py), plus "検討中"
	// on its own: the literal list only matches it inside longer phrases
	// ("検討中です", "まだ検討中"), but shorter hedges like "ちょっと検討中なん
	// ですけど" carry the same low-intent signal.
	lowIntentKeywords = []string{
		"いやまだそこまでは", "まだ検討中", "様子を見てる", "今のところ考えてない",
		"導入までは考えてない", "検討してるところ", "迷っている", "まだ決めてない",
		"検討中です", "考え中", "様子見", "まだそこまでは", "そこまでは考えてない",
		"まだ考えてない", "検討中",
	}
)

// NormalizeText applies the same normalization the caller-facing transcript
// goes through before classification: Unicode NFKC, lowercasing, and
// stripping of regular and full-width spaces.
func NormalizeText(text string) string {
	if text == "" {
		return ""
	}
	normalized := norm.NFKC.String(text)
	normalized = strings.ToLower(normalized)
	normalized = strings.ReplaceAll(normalized, " ", "")
	normalized = strings.ReplaceAll(normalized, "　", "")
	return normalized
}

// ContainsInquiryKeyword reports whether already-normalized text carries one
// of the ENTRY-phase trigger keywords (the same list Classify uses for
// Inquiry) — exported for the dialogue phase handler's ENTRY_TRIGGER_KEYWORDS
// check, which fires before the full Classify cascade runs.
func ContainsInquiryKeyword(normalizedText string) bool {
	return containsAny(normalizedText, inquiryKeywords)
}

// ContainsYesKeyword reports whether already-normalized text carries one of
// the plain affirmative keywords Classify uses for HANDOFF_YES — exported
// for the dialogue phase handler's CLOSING_YES_KEYWORDS check (ENTRY_CONFIRM
// and CLOSING both ask a yes/no question outside the handoff confirmation
// sub-machine, so they read the same affirmative list rather than routing
// through InterpretHandoffReply).
func ContainsYesKeyword(normalizedText string) bool {
	return containsAny(normalizedText, yesKeywords)
}

func containsAny(t string, keywords []string) bool {
	for _, k := range keywords {
		if k != "" && strings.Contains(t, k) {
			return true
		}
	}
	return false
}

// Classify runs the ordered-predicate cascade over raw caller text and
// returns the matched label. It is pure and deterministic.
func Classify(text string) Label {
	t := NormalizeText(text)
	if t == "" {
		return Unknown
	}

	if containsAny(t, noiseKeywords) {
		return NotHeard
	}
	specialCount := 0
	for _, c := range specialChars {
		specialCount += strings.Count(t, c)
	}
	if specialCount >= 3 {
		return NotHeard
	}

	if containsAny(t, handoffKeywords) && containsAny(t, handoffPhrases) {
		return HandoffRequest
	}
	if containsAny(t, handoffKeywords) && containsAny(t, handoffVerbs) {
		return HandoffRequest
	}
	if strings.Contains(t, "担当者") && (strings.Contains(t, "お願い") || strings.Contains(t, "おねがい")) {
		return HandoffRequest
	}
	if strings.Contains(t, "担当者") && strings.Contains(t, "話") {
		return HandoffRequest
	}
	if (strings.Contains(t, "人間") || strings.Contains(t, "オペレーター")) &&
		(strings.Contains(t, "話") || strings.Contains(t, "繋") || strings.Contains(t, "代")) {
		return HandoffRequest
	}
	if strings.Contains(t, "人間") && strings.Contains(t, "話") {
		return HandoffRequest
	}

	if containsAny(t, lowIntentKeywords) {
		return InquiryPassive
	}

	if containsAny(t, systemInquiryPhrase) {
		return SystemInquiry
	}

	if containsAny(t, salesKeywords) {
		return SalesCall
	}

	if containsAny(t, yesKeywords) {
		return HandoffYes
	}
	if containsAny(t, noKeywords) {
		return HandoffNo
	}

	if containsAny(t, aiCallTopicKeywords) {
		return AICallTopic
	}
	if containsAny(t, aiIdentityKeywords) {
		return AIIdentity
	}

	if containsAny(t, difficultyTerms) && containsAny(t, setupDifficultyKws) {
		if containsAny(t, difficultyContextWords) {
			return SetupDifficulty
		}
	}

	if containsAny(t, systemExplainKeywords) {
		return SystemExplain
	}

	if containsAny(t, busyKeywords) {
		return Busy
	}
	if containsAny(t, callbackKeywords) {
		return CallbackRequest
	}

	if containsAny(t, dialectKeywords) {
		return Dialect
	}
	if containsAny(t, interruptKeywords) {
		return Interrupt
	}

	if containsAny(t, reservationKeywords) {
		return Reservation
	}

	if containsAny(t, multiStoreKeywords) {
		return MultiStore
	}

	if containsAny(t, immediateEndKeywords) {
		return EndCall
	}

	if containsAny(t, greetingKeywords) {
		return Greeting
	}
	if containsAny(t, securityKeywords) || (strings.Contains(t, "情報") && strings.Contains(t, "保存")) {
		return Function
	}
	if containsAny(t, otherStoreKeywords) {
		return Function
	}
	if strings.Contains(t, "転送") && !strings.Contains(t, "番号") {
		return Function
	}
	if containsAny(t, endCallKeywords) {
		return EndCall
	}
	if containsAny(t, priceKeywords) {
		return Price
	}
	if containsAny(t, setupKeywords) {
		return Setup
	}
	if containsAny(t, functionKeywords) {
		return Function
	}
	if containsAny(t, supportKeywords) {
		return Support
	}
	if containsAny(t, inquiryKeywords) {
		return Inquiry
	}
	return Unknown
}

// InterpretHandoffReply resolves a caller's reply to a handoff confirmation
// prompt into HANDOFF_YES, HANDOFF_NO, or UNKNOWN when the base intent was
// itself a handoff prompt or confirmation wait; otherwise it falls back to
// a plain yes/no keyword read of the reply.
func InterpretHandoffReply(rawText string, baseIntent Label) Label {
	t := NormalizeText(rawText)
	if baseIntent == "HANDOFF_CONFIRM_WAIT" || baseIntent == HandoffRequest {
		if containsAny(t, yesKeywords) {
			return HandoffYes
		}
		if containsAny(t, noKeywords) {
			return HandoffNo
		}
	}
	if containsAny(t, yesKeywords) {
		return HandoffYes
	}
	if containsAny(t, noKeywords) {
		return HandoffNo
	}
	return Unknown
}
