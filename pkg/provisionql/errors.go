package provisionql

import "errors"

// Error kinds returned by the parsers. Callers match them with errors.Is;
// the wrapped chain carries the underlying cause.
var (
	// ErrEnvelopeDecodeFailed means the signed envelope could not be decoded.
	ErrEnvelopeDecodeFailed = errors.New("failed to decode signed envelope")
	// ErrContentExtractionFailed means the envelope decoded but carried no content.
	ErrContentExtractionFailed = errors.New("failed to extract envelope content")
	// ErrInvalidPlistRoot means the bytes are not a property list with a dictionary root.
	ErrInvalidPlistRoot = errors.New("missing or invalid property list root")
	// ErrInvalidProvisioningProfile means the decoded plist does not have the profile shape.
	ErrInvalidProvisioningProfile = errors.New("invalid provisioning profile")

	// ErrUnsupportedFileType means the path extension names no known kind.
	ErrUnsupportedFileType = errors.New("unsupported file type")
	// ErrInvalidArchiveFormat means the file is not a readable zip archive.
	ErrInvalidArchiveFormat = errors.New("invalid archive format")
	// ErrMissingInfoPlist means the app bundle has no usable Info.plist.
	ErrMissingInfoPlist = errors.New("missing Info.plist")
	// ErrInvalidAppBundle means no app bundle was found where the kind expects one.
	ErrInvalidAppBundle = errors.New("invalid app bundle")
	// ErrArchiveExtractionFailed means an archive entry is missing or unreadable.
	ErrArchiveExtractionFailed = errors.New("failed to extract archive entry")

	// Returned by the icon locator.
	ErrAppBundleNotFound = errors.New("app bundle not found")
	ErrInfoPlistNotFound = errors.New("missing Info.plist for icon lookup")

	// ErrNoMatchingCertificate means an identity's certificate is not in a profile.
	ErrNoMatchingCertificate = errors.New("no matching certificate in provisioning profile")
)
