package model

// DirEntry is an entry of a sandbox directory listing.
type DirEntry struct {
	Name  string
	IsDir bool
}
