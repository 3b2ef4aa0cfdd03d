package telegram

// User-facing reply texts.
const (
	textWelcomeNew          = "Welcome! Please share your phone number to register:"
	textWelcomeBack         = "Welcome back! You're fully registered and ready to chat!"
	textRegistrationNag     = "⚠️ Registration incomplete. Please share your contact:"
	textRegistrationDone    = "✅ Registration successful! Ask me anything:"
	textRegistrationMissing = "⚠️ Registration failed. Please try /start"
	textRegistrationError   = "❌ Registration error. Please try again."
	textGateBlocked         = "⚠️ Complete registration first!\nUse /start and share your contact."
	textServiceUnavailable  = "Service temporarily unavailable. Please try again later."
	textProcessingError     = "❌ Error processing your message"
	textImageError          = "❌ Failed to analyze image"

	shareContactButton = "Share Contact"
)

// imageAnalysisPrompt is the fixed prompt sent alongside every photo.
const imageAnalysisPrompt = "Analyze this image:"
