package provisionql

// extensionLabels names the well-known app extension points.
var extensionLabels = map[string]string{
	"com.apple.intents-service":                                                "Siri Intents",
	"com.apple.intents-ui-service":                                             "Siri Intents UI",
	"com.apple.usernotifications.content-extension":                            "Notification Content",
	"com.apple.usernotifications.service":                                      "Notification Service",
	"com.apple.share-services":                                                 "Share Extension",
	"com.apple.widget-extension":                                               "Today Widget",
	"com.apple.widgetkit-extension":                                            "Widget",
	"com.apple.keyboard-service":                                               "Keyboard",
	"com.apple.photo-editing":                                                  "Photo Editing",
	"com.apple.broadcast-services":                                             "Broadcast",
	"com.apple.callkit.call-directory":                                         "Call Directory",
	"com.apple.authentication-services-account-authentication-modification-ui": "Account Auth",
	"com.apple.authentication-services-credential-provider-ui":                 "Credential Provider",
	"com.apple.classkit.context-provider":                                      "ClassKit",
	"com.apple.fileprovider-ui":                                                "File Provider UI",
	"com.apple.fileprovider-nonui":                                             "File Provider",
	"com.apple.message-payload-provider":                                       "Messages",
	"com.apple.networkextension.packet-tunnel":                                 "Packet Tunnel",
	"com.apple.Safari.content-blocker":                                         "Content Blocker",
	"com.apple.Safari.web-extension":                                           "Safari Extension",
}

// ExtensionLabel returns a human name for an NSExtensionPointIdentifier.
func ExtensionLabel(identifier string) string {
	if label, ok := extensionLabels[identifier]; ok {
		return label
	}
	return "App Extension"
}

// extensionPointIdentifier reads NSExtension.NSExtensionPointIdentifier.
func extensionPointIdentifier(info Dict) (string, bool) {
	ext, ok := info.Dict("NSExtension")
	if !ok {
		return "", false
	}
	return ext.GetString("NSExtensionPointIdentifier")
}
