package config

import "time"

const (
	// Matching
	DefaultGreetingDelay = 1 * time.Second
	SyntheticPartnerName = "TestBot"
	SyntheticAvatarRef   = "https://api.dicebear.com/7.x/avataaars/svg?seed=bot"
	GuestAvatarTemplate  = "https://api.dicebear.com/7.x/avataaars/svg?seed=%s"
	GuestNamePrefix      = "Guest_"

	// Hub
	DefaultSendBuffer       = 256
	DefaultPersistQueueSize = 1024
	DefaultLanguage         = "en"

	// Upload
	DefaultMaxUploadSize = 10 << 20
	DefaultUploadDir     = "uploads"
	DefaultUploadPrefix  = "/uploads"

	// Admin
	DefaultAdminTokenTTL = 72 * time.Hour
	AdminTokenIssuer     = "anonchat-service"
)

// SyntheticPartnerInterests are the fixed interests of the built-in partner.
var SyntheticPartnerInterests = []string{"Gaming", "Music", "Technology", "Movies"}

// AllowedUploadExtensions lists file extensions accepted by the upload endpoint.
var AllowedUploadExtensions = []string{".jpeg", ".jpg", ".png", ".gif", ".webp", ".mp3", ".wav", ".ogg", ".mp4", ".webm"}
