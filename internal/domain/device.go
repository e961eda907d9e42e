package domain

type Platform string

const (
	PlatformAPNS Platform = "APNS"
	PlatformFCM  Platform = "FCM"
)

// Push endpoint attribute names understood by the gateway.
const (
	EndpointAttrOwner   = "CustomUserData"
	EndpointAttrToken   = "Token"
	EndpointAttrEnabled = "Enabled"
)

type DeviceRegistration struct {
	UserID      string   `json:"-"`
	DeviceToken string   `json:"deviceToken" validate:"required"`
	Platform    Platform `json:"platform" validate:"required,oneof=APNS FCM"`
}
