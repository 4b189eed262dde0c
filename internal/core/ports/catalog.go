package ports

import "context"

// ArtworkFinder looks up album artwork for a song in a music catalog.
// It returns an empty URL and a nil error when the catalog has no match.
type ArtworkFinder interface {
	FindArtwork(ctx context.Context, name, artist string) (string, error)
}

// CredentialProvider supplies bearer tokens for catalog requests.
type CredentialProvider interface {
	AccessToken(ctx context.Context) (string, error)
}
