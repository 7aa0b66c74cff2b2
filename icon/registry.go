package icon

// Icon identifies a symbol in the registry.
type Icon int

const (
	Fail Icon = iota
	Success
	Progress
	Play
	Pause
	Buffering
	Ended
	Seek
	Audio
	Video
	Text
	Config
	Resume
)

var icons = map[Icon]*iconDef{
	Fail: {
		emoji:   "💀",
		nerd:    "",
		plain:   "X",
		kaomoji: "(×_×)",
		squares: "🟥",
	},
	Success: {
		emoji:   "🎉",
		nerd:    "",
		plain:   "OK",
		kaomoji: "(ᵔ◡ᵔ)",
		squares: "🟩",
	},
	Progress: {
		emoji:   "⏳",
		nerd:    "",
		plain:   "...",
		kaomoji: "(・_・)",
		squares: "🟦",
	},
	Play: {
		emoji:   "▶️",
		nerd:    "",
		plain:   ">",
		kaomoji: "(>‿<)",
		squares: "🟩",
	},
	Pause: {
		emoji:   "⏸️",
		nerd:    "",
		plain:   "||",
		kaomoji: "(-_-)",
		squares: "🟨",
	},
	Buffering: {
		emoji:   "🔄",
		nerd:    "",
		plain:   "~",
		kaomoji: "(○_○)",
		squares: "🟦",
	},
	Ended: {
		emoji:   "⏹️",
		nerd:    "",
		plain:   "[]",
		kaomoji: "(^_^)",
		squares: "⬛",
	},
	Seek: {
		emoji:   "⏩",
		nerd:    "",
		plain:   ">>",
		kaomoji: "(→_→)",
		squares: "🟪",
	},
	Audio: {
		emoji:   "🔊",
		nerd:    "",
		plain:   "A",
		kaomoji: "♪",
		squares: "🟧",
	},
	Video: {
		emoji:   "🎞️",
		nerd:    "",
		plain:   "V",
		kaomoji: "[▓]",
		squares: "🟫",
	},
	Text: {
		emoji:   "💬",
		nerd:    "",
		plain:   "T",
		kaomoji: "(｀・ω・)",
		squares: "⬜",
	},
	Config: {
		emoji:   "⚙️",
		nerd:    "",
		plain:   "*",
		kaomoji: "(¬‿¬)",
		squares: "🟪",
	},
	Resume: {
		emoji:   "🔖",
		nerd:    "",
		plain:   "@",
		kaomoji: "(￣▽￣)",
		squares: "🟨",
	},
}
