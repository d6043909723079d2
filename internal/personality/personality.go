package personality

// Trigger selects a group of canned chat lines.
type Trigger string

const (
	TriggerThinking   Trigger = "thinking"
	TriggerSubmission Trigger = "submission"
	TriggerVoting     Trigger = "voting"
	TriggerWinning    Trigger = "winning"
	TriggerLosing     Trigger = "losing"
	TriggerGeneral    Trigger = "general"
)

// Triggers lists every trigger a personality must carry templates for.
var Triggers = []Trigger{TriggerThinking, TriggerSubmission, TriggerVoting, TriggerWinning, TriggerLosing, TriggerGeneral}

type HumorStyle string

const (
	HumorSarcastic HumorStyle = "sarcastic"
	HumorWholesome HumorStyle = "wholesome"
	HumorAbsurd    HumorStyle = "absurd"
	HumorDark      HumorStyle = "dark"
	HumorPunny     HumorStyle = "punny"
	HumorNerdy     HumorStyle = "nerdy"
	HumorDeadpan   HumorStyle = "deadpan"
	HumorChaotic   HumorStyle = "chaotic"
)

type ChatFrequency string

const (
	ChatLow    ChatFrequency = "low"
	ChatMedium ChatFrequency = "medium"
	ChatHigh   ChatFrequency = "high"
)

type MemePreference string

const (
	MemeClassic MemePreference = "classic"
	MemeModern  MemePreference = "modern"
	MemeObscure MemePreference = "obscure"
	MemeAny     MemePreference = "any"
)

type VotingStyle string

const (
	VoteFunniest  VotingStyle = "funniest"
	VoteStrategic VotingStyle = "strategic"
	VoteRandom    VotingStyle = "random"
	VoteLoyal     VotingStyle = "loyal"
)

// ResponseTime is the think delay range in milliseconds.
type ResponseTime struct {
	MinMs int `json:"minMs"`
	MaxMs int `json:"maxMs"`
}

type Traits struct {
	HumorStyle     HumorStyle     `json:"humorStyle"`
	ResponseTime   ResponseTime   `json:"responseTime"`
	ChatFrequency  ChatFrequency  `json:"chatFrequency"`
	MemePreference MemePreference `json:"memePreference"`
	VotingStyle    VotingStyle    `json:"votingStyle"`
}

// Personality is an immutable catalog entry describing how an AI player behaves.
type Personality struct {
	ID            string               `json:"id"`
	Name          string               `json:"name"`
	Avatar        string               `json:"avatar"`
	Description   string               `json:"description"`
	Traits        Traits               `json:"traits"`
	ChatTemplates map[Trigger][]string `json:"chatTemplates"`
}
