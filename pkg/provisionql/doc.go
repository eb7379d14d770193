// Package provisionql reads Apple provisioning profiles and app archives.
//
// It decodes the CMS envelope of .mobileprovision and .provisionprofile
// files and normalizes their contents, and it extracts app metadata from
// .ipa files, .xcarchive directories, .appex extensions and .app bundles
// without unpacking them to disk.
//
// # Basic Usage
//
// To read a provisioning profile:
//
//	info, err := provisionql.ParseProvisioningProfile("dev.mobileprovision")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(info.ProfileType, info.ExpirationStatus())
//
// To read an app:
//
//	app, err := provisionql.ParseApp("MyApp.ipa")
//
// # Errors
//
// Failures to read the primary document are returned as errors wrapping one
// of the Err* kinds, so callers can use errors.Is. Secondary data (icon,
// embedded profile, entitlements, individual certificates) is dropped
// instead of failing the parse.
//
// # Features
//
//   - Cross-platform: profiles and IPAs are read without macOS frameworks
//   - Entitlements from code signatures, in XML or DER form
//   - Profile classification: development, ad hoc, App Store or enterprise
//   - Icon lookup following the Info.plist icon conventions
package provisionql
