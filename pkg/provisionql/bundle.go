package provisionql

import (
	"fmt"
	"sort"
)

var deviceFamilyLabels = map[int64]string{
	1: "iPhone",
	2: "iPad",
	3: "Apple TV",
	4: "Apple Watch",
	6: "Mac (Designed for iPad)",
	7: "Apple Vision",
}

// appInfoFromPlist derives the scalar AppInfo fields from an Info.plist.
func appInfoFromPlist(info Dict) *AppInfo {
	app := &AppInfo{
		Name:             bundleName(info),
		BundleIdentifier: "Unknown",
		Version:          "1.0",
		BuildNumber:      "1",
		Entitlements:     map[string]EntitlementValue{},
		DeviceFamily:     deviceFamily(info),
		MinimumOSVersion: firstString(info, "MinimumOSVersion", "LSMinimumSystemVersion", "WKMinimumOSVersion"),
		SDKVersion:       firstString(info, "DTSDKName", "DTSDKBuild", "DTPlatformVersion"),
	}
	if s, ok := info.GetString("CFBundleIdentifier"); ok {
		app.BundleIdentifier = s
	}
	if s, ok := info.GetString("CFBundleShortVersionString"); ok {
		app.Version = s
	}
	if s, ok := info.GetString("CFBundleVersion"); ok {
		app.BuildNumber = s
	}
	return app
}

func bundleName(info Dict) string {
	for _, key := range []string{"CFBundleDisplayName", "CFBundleName", "CFBundleExecutable"} {
		if s, ok := info.GetString(key); ok {
			return s
		}
	}
	return "Unknown"
}

// deviceFamily labels the UIDeviceFamily codes and sorts the labels.
// Unknown codes are kept as "Unknown Device (n)".
func deviceFamily(info Dict) []string {
	codes := info.Ints("UIDeviceFamily")
	if n, ok := info["UIDeviceFamily"].AsInt(); ok {
		codes = []int64{n}
	}

	labels := make([]string, 0, len(codes))
	for _, code := range codes {
		label, ok := deviceFamilyLabels[code]
		if !ok {
			label = fmt.Sprintf("Unknown Device (%d)", code)
		}
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// firstString returns the first key holding a string value.
func firstString(info Dict, keys ...string) *string {
	for _, key := range keys {
		if s, ok := info.GetString(key); ok {
			return &s
		}
	}
	return nil
}
