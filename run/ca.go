package run

import (
	// Fallback CA roots for TLS connections to PostgreSQL from images
	// without a system certificate store.
	_ "golang.org/x/crypto/x509roots/fallback"
)
