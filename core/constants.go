package core

// ScreenID identifies a top-level screen of the client
type ScreenID string

const (
	// ScreenSplash is shown while the bootstrap sequence runs
	ScreenSplash ScreenID = "splash"
	// ScreenPermission asks for location permission during onboarding
	ScreenPermission ScreenID = "permission-screen"
	// ScreenMain hosts the map and navigation controls
	ScreenMain ScreenID = "main-screen"
)

// String returns the string representation
func (s ScreenID) String() string {
	return string(s)
}

// IsValid checks if the screen is one the navigator knows about
func (s ScreenID) IsValid() bool {
	switch s {
	case ScreenSplash, ScreenPermission, ScreenMain:
		return true
	default:
		return false
	}
}

// UserMode is the travel mode the user has selected
type UserMode string

const (
	// UserModeWalking is the default mode
	UserModeWalking UserMode = "walking"
	// UserModeWheelchair prefers step-free paths
	UserModeWheelchair UserMode = "wheelchair"
)

// String returns the string representation
func (m UserMode) String() string {
	return string(m)
}

// IsValid checks if the mode is valid
func (m UserMode) IsValid() bool {
	switch m {
	case UserModeWalking, UserModeWheelchair:
		return true
	default:
		return false
	}
}

// Icon returns the mode indicator glyph
func (m UserMode) Icon() string {
	if m == UserModeWheelchair {
		return "♿"
	}
	return "🚶"
}

// Label returns the human readable mode name shown next to the indicator
func (m UserMode) Label() string {
	if m == UserModeWheelchair {
		return "휠체어 모드"
	}
	return "도보 모드"
}
