package version

// Value is stamped at release time via
// -ldflags "-X batch-translator/internal/version.Value=v1.2.3".
var Value = "v0.0.0-dev"
