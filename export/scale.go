package export

import "fmt"

// Target raster dimensions. Fixed regardless of the live viewport.
const (
	TargetWidth  = 1280
	TargetHeight = 640
)

// ScaleFactor multiplies every base desktop dimension when preparing the
// export clone. The base values below mirror the desktop rules in the card
// stylesheet; scaling them rather than stretching the 1x capture keeps text
// crisp at the target resolution.
const ScaleFactor = 1.5

// Base desktop values, in CSS pixels. Must stay in sync with render's
// card.css desktop block.
const (
	baseHeaderPadding = 24
	baseHeaderGap     = 16
	baseAvatarSize    = 64
	baseAvatarBorder  = 2
	baseUsernameFont  = 20
	baseRepoFont      = 16
	baseBodyPadding   = 32
	baseLogoSize      = 72
	baseTitleFont     = 32
	baseDescFont      = 16
	baseFooterHeight  = 48
	baseProviderFont  = 24
	baseCardRadius    = 12
	baseAccentBar     = 6
	baseDescMaxHeight = 92
)

// scaled returns the export-resolution value for a base desktop dimension.
func scaled(base int) int {
	return int(float64(base)*ScaleFactor + 0.5)
}

// px formats a scaled dimension as a CSS pixel length.
func px(base int) string {
	return fmt.Sprintf("%dpx", scaled(base))
}
