package tui

// Keybinding constants
const (
	KeyQuit    = "q"
	KeyCtrlC   = "ctrl+c"
	KeyApprove = "y"
	KeyReject  = "n"
	KeyUp      = "up"
	KeyDown    = "down"
	KeyJ       = "j"
	KeyK       = "k"
)

// HelpView returns a one-line help bar with common keybindings.
func HelpView() string {
	return StyleHelp.Render("j/k: select task | q: cancel and quit")
}

// HelpReviewView returns the help bar shown while a plan awaits approval.
func HelpReviewView() string {
	return StyleHelp.Render("y: approve plan | n: reject | q: cancel and quit")
}
