package enum

// Mode selects which remote API key and which metadata namespace is in use.
type Mode string

const (
	ModeLive Mode = "live"
	ModeTest Mode = "test"
)

func (m Mode) TestMode() bool {
	return m == ModeTest
}

func Modes() []Mode {
	return []Mode{ModeLive, ModeTest}
}
