package platform

// FileChange is one entry from the PR's file list.
type FileChange struct {
	Filename    string
	Status      string
	Patch       string
	ContentsURL string
}
