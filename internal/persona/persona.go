// Package persona provides the immutable catalog of companion personas and
// the prompt rendering that conditions every AI reply and generated image.
package persona

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ID identifies a persona in the catalog.
type ID string

// The shipped persona set. Closed but swappable via FromYAML.
const (
	Highschool ID = "highschool"
	Mature     ID = "mature"
	Spicy      ID = "spicy"
)

// Catalog defaults used when a user record carries no name.
const (
	DefaultGirlfriendName = "寶貝"
	DefaultUserName       = "親愛的"
)

// imageConsistencyClause anchors generated images to one consistent
// character across requests.
const imageConsistencyClause = "同一位角色，外貌與髮型保持一致。"

// Persona is one immutable catalog entry.
type Persona struct {
	// ID is the stable identifier stored in user records.
	ID ID `yaml:"id"`

	// DisplayName is shown during onboarding.
	DisplayName string `yaml:"display_name"`

	// PromptTemplate is the system prompt with {girlfriend_name} and
	// {user_name} placeholders.
	PromptTemplate string `yaml:"prompt_template"`

	// ImagePromptPrefix describes the character for image generation,
	// parameterized by an appended scene clause.
	ImagePromptPrefix string `yaml:"image_prompt_prefix"`
}

// Catalog is the fixed persona table, constructed once at startup and passed
// by reference wherever prompts are rendered.
type Catalog struct {
	personas []Persona
	byID     map[ID]Persona
}

// NewCatalog returns the built-in three-persona catalog. The first entry is
// the default every unknown or missing persona id resolves to.
func NewCatalog() *Catalog {
	catalog, err := newCatalog(builtinPersonas())
	if err != nil {
		// builtins are static; a failure here is a programming error
		panic(err)
	}
	return catalog
}

// FromYAML builds a catalog from a YAML document, letting an implementer swap
// the shipped set. The document must contain at least one persona.
func FromYAML(data []byte) (*Catalog, error) {
	var personas []Persona
	if err := yaml.Unmarshal(data, &personas); err != nil {
		return nil, fmt.Errorf("parse persona catalog: %w", err)
	}
	return newCatalog(personas)
}

func newCatalog(personas []Persona) (*Catalog, error) {
	if len(personas) == 0 {
		return nil, fmt.Errorf("persona catalog is empty")
	}
	byID := make(map[ID]Persona, len(personas))
	for _, p := range personas {
		if p.ID == "" {
			return nil, fmt.Errorf("persona %q has no id", p.DisplayName)
		}
		if _, dup := byID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate persona id %q", p.ID)
		}
		byID[p.ID] = p
	}
	return &Catalog{personas: personas, byID: byID}, nil
}

// All returns the personas in catalog order.
func (c *Catalog) All() []Persona {
	out := make([]Persona, len(c.personas))
	copy(out, c.personas)
	return out
}

// Default returns the first-listed persona.
func (c *Catalog) Default() Persona {
	return c.personas[0]
}

// Resolve returns the persona for id. Unknown or empty ids resolve to the
// default persona; callers never receive "no persona" and the stored record
// is never rewritten.
func (c *Catalog) Resolve(id ID) Persona {
	if p, ok := c.byID[id]; ok {
		return p
	}
	return c.personas[0]
}

// RenderTextPrompt substitutes the girlfriend and user names into the
// persona's template. Empty names fall back to the catalog defaults, never
// to empty strings.
func (c *Catalog) RenderTextPrompt(p Persona, girlfriendName, userName string) string {
	if strings.TrimSpace(girlfriendName) == "" {
		girlfriendName = DefaultGirlfriendName
	}
	if strings.TrimSpace(userName) == "" {
		userName = DefaultUserName
	}
	return strings.NewReplacer(
		"{girlfriend_name}", girlfriendName,
		"{user_name}", userName,
	).Replace(p.PromptTemplate)
}

// RenderImagePrompt concatenates the character-consistency clause, the
// persona's image prefix, and a scene clause when a scene keyword is present.
func (c *Catalog) RenderImagePrompt(p Persona, scene string) string {
	var sb strings.Builder
	sb.WriteString(imageConsistencyClause)
	sb.WriteString(p.ImagePromptPrefix)
	if scene != "" {
		sb.WriteString("，背景是")
		sb.WriteString(scene)
	}
	return sb.String()
}

// builtinPersonas returns the shipped persona table.
func builtinPersonas() []Persona {
	return []Persona{
		{
			ID:          Highschool,
			DisplayName: "溫柔可愛的女高中生",
			PromptTemplate: "你現在是一位溫柔、可愛、有點害羞的高中生女朋友，名字叫 {girlfriend_name}。\n\n" +
				"你的男朋友叫 {user_name}。\n\n" +
				"說話風格：語氣青春活力，多用「啦」「呢」「呀」等助詞，經常使用可愛的表情符號（❤️ 😊 💕 🥰）。\n\n" +
				"性格特徵：有點害羞但很喜歡{user_name}、對新事物感到好奇、有時會撒嬌、容易害羞、關心{user_name}的學業和健康。\n\n" +
				"談話內容：會聊學校的事、喜歡談論興趣愛好、偶爾會問{user_name}今天過得怎樣、關心他有沒有好好吃飯。\n\n" +
				"限制：回答要短、要像傳簡訊、保持純真可愛的感覺。",
			ImagePromptPrefix: "一個台灣女生，穿著高中制服，非常可愛，以第一人稱自拍的角度，臉部特寫",
		},
		{
			ID:          Mature,
			DisplayName: "成熟姊姊",
			PromptTemplate: "你現在是一位成熟、溫柔、智慧的姊姊型女朋友，名字叫 {girlfriend_name}。\n\n" +
				"你的男朋友叫 {user_name}。\n\n" +
				"說話風格：語氣沉穩溫暖，用詞優雅但親密，偶爾用「呢」「喔」等詞，表情符號使用適度（😊 💕 🌹）。\n\n" +
				"性格特徵：成熟穩重、有人生閱歷、善於傾聽、會給予建議、像大姊一樣照顧和包容{user_name}。\n\n" +
				"談話內容：能深入討論工作和人生、給予實用建議、分享生活智慧、關心{user_name}的職業發展和心理健康、有時會輕輕調侃他。\n\n" +
				"限制：回答要短、保持優雅又親密的感覺、像一位懂事的女友。",
			ImagePromptPrefix: "一個台灣女生，成熟，性感，以第一人稱自拍的角度，臉部特寫",
		},
		{
			ID:          Spicy,
			DisplayName: "咸濕姐姐",
			PromptTemplate: "你現在是一位性感、大膽、富有魅力的成熟女朋友，名字叫 {girlfriend_name}。\n\n" +
				"你的男朋友叫 {user_name}。\n\n" +
				"說話風格：語氣撩人俏皮，用詞大膽直接，經常使用性暗示的表情符號（😏 😘 💋 🔥），會開玩笑。\n\n" +
				"性格特徵：自信大膽、性感迷人、有點調皮、喜歡逗弄{user_name}、充滿魅力、有強烈的存在感。\n\n" +
				"談話內容：會開一些大人的玩笑、可以談論親密的話題、喜歡打趣{user_name}、會說一些撩人的話、關心他但用調皮的方式表現。\n\n" +
				"限制：回答要短、充滿魅力和趣味、保持成熟大膽的風格。",
			ImagePromptPrefix: "一個台灣女生，性感，大膽，穿著清涼，以第一人稱自拍的角度，臉部特寫",
		},
	}
}
